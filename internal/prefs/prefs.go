// Package prefs defines the per-session preference record and the gate
// that blocks sheet appends until column mappings are configured.
package prefs

import (
	"context"
	"errors"
	"time"

	"scontrino/internal/core"
)

var (
	// ErrNotFound means no preference record exists for the session.
	ErrNotFound = errors.New("preference not found")
	// ErrMappingsRequired means a row append was attempted before the
	// session configured its column mappings.
	ErrMappingsRequired = errors.New("column mappings required")
)

// Preference is one session's saved Google Sheets configuration. Mapping
// stays nil until the session saves its column assignments; records written
// before the mapping feature existed load with Mapping nil and are treated
// as unconfigured, never given a default.
type Preference struct {
	ID            string
	SessionID     string
	SpreadsheetID string
	SheetName     string
	Mapping       *core.ColumnMapping
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store loads and saves preferences keyed by opaque session id.
// Implementations must serialize concurrent saves for the same session and
// never let Load observe a partially written record.
type Store interface {
	// Load returns the session's preference or ErrNotFound.
	Load(ctx context.Context, sessionID string) (Preference, error)

	// Save upserts the spreadsheet selection, preserving any previously
	// saved column mapping.
	Save(ctx context.Context, p Preference) error

	// SaveColumnMapping replaces the session's column mapping in full and
	// bumps the record's updated timestamp. Returns ErrNotFound when the
	// session has no preference record to attach the mapping to.
	SaveColumnMapping(ctx context.Context, sessionID string, m core.ColumnMapping) error

	// HasColumnMapping reports whether a mapping was ever saved. Sessions
	// without a record, or with a record predating the mapping feature,
	// report false rather than an error.
	HasColumnMapping(ctx context.Context, sessionID string) (bool, error)
}
