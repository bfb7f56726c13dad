package prefs

import (
	"context"
	"errors"
	"fmt"

	"scontrino/internal/core"
)

// MappingsInvalidError reports a stored mapping that no longer validates.
// Saves validate first, so this surfaces only after a manual edit or a
// schema change left partial columns behind.
type MappingsInvalidError struct {
	Err error
}

func (e *MappingsInvalidError) Error() string {
	return fmt.Sprintf("stored column mappings invalid: %v", e.Err)
}

func (e *MappingsInvalidError) Unwrap() error { return e.Err }

// Gate decides whether a row append may proceed for a session.
type Gate struct {
	store Store
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// CheckReady returns the session's validated column mapping, or
// ErrMappingsRequired when none was ever configured, or a
// *MappingsInvalidError when the stored mapping fails validation.
// It never substitutes a default mapping.
func (g *Gate) CheckReady(ctx context.Context, sessionID string) (core.ColumnMapping, error) {
	pref, err := g.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return core.ColumnMapping{}, ErrMappingsRequired
	}
	if err != nil {
		return core.ColumnMapping{}, fmt.Errorf("load preference: %w", err)
	}
	if pref.Mapping == nil {
		return core.ColumnMapping{}, ErrMappingsRequired
	}
	if err := pref.Mapping.Validate(); err != nil {
		return core.ColumnMapping{}, &MappingsInvalidError{Err: err}
	}
	return *pref.Mapping, nil
}
