package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"scontrino/internal/core"
	"scontrino/internal/prefs"
)

type columnMappingsBody struct {
	DateColumn        string `json:"date_column"`
	DescriptionColumn string `json:"description_column"`
	PriceColumn       string `json:"price_column"`
}

type columnMappingsRequest struct {
	DateColumn        *string `json:"date_column"`
	DescriptionColumn *string `json:"description_column"`
	PriceColumn       *string `json:"price_column"`
}

func (s *Server) handleColumnConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetColumnConfig(w, r)
	case http.MethodPost:
		s.handleSaveColumnConfig(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "GET or POST required")
	}
}

// handleGetColumnConfig returns the saved mappings, 404 when the session
// has never configured them. Absence is reported, never defaulted.
func (s *Server) handleGetColumnConfig(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(w, r)

	pref, err := s.store.Load(r.Context(), sessionID)
	if errors.Is(err, prefs.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "Google Sheets configuration required.")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Load preference failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unable to load configuration")
		return
	}
	if pref.Mapping == nil {
		writeError(w, http.StatusNotFound, "COLUMN_MAPPINGS_NOT_CONFIGURED",
			"Column mappings have not been configured yet.")
		return
	}

	writeJSON(w, http.StatusOK, columnMappingsBody{
		DateColumn:        pref.Mapping.Date,
		DescriptionColumn: pref.Mapping.Description,
		PriceColumn:       pref.Mapping.Price,
	})
}

// handleSaveColumnConfig validates and saves a full mapping. Saves are
// all-or-nothing: a partial or invalid mapping changes nothing.
func (s *Server) handleSaveColumnConfig(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(w, r)

	var req columnMappingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON")
		return
	}

	for field, v := range map[string]*string{
		"date_column":        req.DateColumn,
		"description_column": req.DescriptionColumn,
		"price_column":       req.PriceColumn,
	} {
		if v == nil || strings.TrimSpace(*v) == "" {
			writeFieldError(w, http.StatusBadRequest, "MISSING_REQUIRED_FIELD", field,
				fmt.Sprintf("%s is required", field))
			return
		}
	}

	mapping := core.ColumnMapping{
		Date:        *req.DateColumn,
		Description: *req.DescriptionColumn,
		Price:       *req.PriceColumn,
	}
	if err := mapping.Validate(); err != nil {
		var fieldErr *core.FieldError
		field := ""
		if errors.As(err, &fieldErr) {
			field = string(fieldErr.Field) + "_column"
		}
		writeFieldError(w, http.StatusBadRequest, columnErrorCode(err), field, err.Error())
		return
	}

	if err := s.store.SaveColumnMapping(r.Context(), sessionID, mapping); err != nil {
		if errors.Is(err, prefs.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "Google Sheets configuration required.")
			return
		}
		slog.ErrorContext(r.Context(), "Save column mapping failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unable to save column mappings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Column mappings saved successfully",
		"mappings": columnMappingsBody{
			DateColumn:        mapping.Date,
			DescriptionColumn: mapping.Description,
			PriceColumn:       mapping.Price,
		},
	})
}

type validateColumnRequest struct {
	Column *string `json:"column"`
}

// handleValidateColumn checks a single column reference without touching
// any stored state.
func (s *Server) handleValidateColumn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "POST required")
		return
	}

	var req validateColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON")
		return
	}
	if req.Column == nil {
		writeError(w, http.StatusBadRequest, "MISSING_COLUMN_FIELD", "column field is required")
		return
	}

	column := *req.Column
	if err := core.ValidateColumn(column); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":      false,
			"column":     column,
			"error_code": columnErrorCode(err),
			"message":    columnErrorMessage(column, err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  true,
		"column": column,
		"index":  core.ColumnToIndex(column),
	})
}

func columnErrorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrColumnOutOfRange):
		return "COLUMN_OUT_OF_RANGE"
	case errors.Is(err, core.ErrInvalidColumnFormat):
		return "INVALID_COLUMN_FORMAT"
	case errors.Is(err, core.ErrMissingColumn):
		return "MISSING_REQUIRED_FIELD"
	}
	return "INVALID_COLUMN"
}

func columnErrorMessage(column string, err error) string {
	switch {
	case errors.Is(err, core.ErrColumnOutOfRange):
		return fmt.Sprintf("Column '%s' is out of range. Valid range is A-ZZ.", column)
	case errors.Is(err, core.ErrInvalidColumnFormat):
		return fmt.Sprintf("Column '%s' has invalid format. Must be A-ZZ (uppercase letters only).", column)
	}
	return fmt.Sprintf("Invalid column: %v", err)
}
