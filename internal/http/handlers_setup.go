package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"scontrino/internal/prefs"
)

const spreadsheetIDLength = 44

type setupRequest struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	SheetTabName  string `json:"sheet_tab_name"`
}

// handleSetup saves the session's target spreadsheet and sheet tab.
// A previously saved column mapping survives re-setup untouched.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "POST required")
		return
	}

	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON")
		return
	}
	if len(req.SpreadsheetID) != spreadsheetIDLength {
		writeError(w, http.StatusBadRequest, "INVALID_SPREADSHEET_ID", "Spreadsheet ID must be 44 characters")
		return
	}
	if strings.TrimSpace(req.SheetTabName) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_SHEET_NAME", "Sheet tab name cannot be empty")
		return
	}

	if s.inspector != nil {
		title, names, err := s.inspector.Inspect(r.Context(), req.SpreadsheetID)
		if err != nil {
			slog.WarnContext(r.Context(), "Spreadsheet not accessible",
				"spreadsheet_id", req.SpreadsheetID, "error", err)
			writeError(w, http.StatusBadRequest, "SPREADSHEET_NOT_ACCESSIBLE",
				"Could not access the spreadsheet. Check the ID and sharing settings.")
			return
		}
		found := false
		for _, name := range names {
			if name == req.SheetTabName {
				found = true
				break
			}
		}
		if !found {
			writeError(w, http.StatusBadRequest, "SHEET_TAB_NOT_FOUND",
				"Sheet tab '"+req.SheetTabName+"' does not exist in '"+title+"'")
			return
		}
	}

	sessionID := s.sessionID(w, r)
	err := s.store.Save(r.Context(), prefs.Preference{
		SessionID:     sessionID,
		SpreadsheetID: req.SpreadsheetID,
		SheetName:     req.SheetTabName,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "Save preference failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unable to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Preferences saved. You can now upload receipts.",
	})
}

// handleStatus reports what the session has configured so far.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "GET required")
		return
	}

	sessionID := s.sessionID(w, r)
	body := map[string]any{
		"spreadsheet_configured": false,
		"mappings_configured":    false,
	}

	pref, err := s.store.Load(r.Context(), sessionID)
	switch {
	case errors.Is(err, prefs.ErrNotFound):
		// Fresh session, nothing configured.
	case err != nil:
		slog.ErrorContext(r.Context(), "Load preference failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unable to load status")
		return
	default:
		body["spreadsheet_configured"] = true
		body["spreadsheet_id"] = pref.SpreadsheetID
		body["sheet_tab_name"] = pref.SheetName
		body["mappings_configured"] = pref.Mapping != nil
	}

	writeJSON(w, http.StatusOK, body)
}
