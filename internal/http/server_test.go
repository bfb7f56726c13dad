package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scontrino/internal/services"
	"scontrino/internal/sheets/memory"
	"scontrino/internal/storage"
	"scontrino/internal/uploads"
)

type fakeExtractor struct {
	text string
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (string, time.Duration, error) {
	return f.text, 15 * time.Millisecond, nil
}

var validSpreadsheetID = strings.Repeat("a", 44)

func newTestServer(t *testing.T) (*Server, *memory.Appender) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	uploadStore, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("uploads: %v", err)
	}

	appender := memory.New()
	extractor := &fakeExtractor{text: "ACME\n2025-09-28\nCoffee x1 3.50\nTotal 3.50\n"}
	svc := services.NewReceiptService(repo, uploadStore, extractor, nil, appender)

	srv := NewServer(":0", svc, repo, nil)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, appender
}

func doJSON(t *testing.T, srv *Server, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("session_id", session)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestValidateColumn(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name      string
		column    string
		valid     bool
		index     float64
		errorCode string
	}{
		{"single letter", "A", true, 0, ""},
		{"double letter", "ZZ", true, 701, ""},
		{"lowercase", "a", false, 0, "INVALID_COLUMN_FORMAT"},
		{"digits", "A1", false, 0, "INVALID_COLUMN_FORMAT"},
		{"empty", "", false, 0, "INVALID_COLUMN_FORMAT"},
		{"three letters", "AAA", false, 0, "COLUMN_OUT_OF_RANGE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/column-config/validate", "",
				map[string]any{"column": tc.column})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			out := decode(t, rec)
			if out["valid"] != tc.valid {
				t.Fatalf("valid = %v, want %v", out["valid"], tc.valid)
			}
			if tc.valid && out["index"] != tc.index {
				t.Fatalf("index = %v, want %v", out["index"], tc.index)
			}
			if !tc.valid && out["error_code"] != tc.errorCode {
				t.Fatalf("error_code = %v, want %v", out["error_code"], tc.errorCode)
			}
		})
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/column-config/validate", "", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing column status = %d, want 400", rec.Code)
	}
	if out := decode(t, rec); out["error_code"] != "MISSING_COLUMN_FIELD" {
		t.Fatalf("error_code = %v", out["error_code"])
	}
}

func TestColumnConfigLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	session := "sess-1"

	// No preference record at all: configuration required.
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/column-config", session, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Setup spreadsheet first.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/setup", session,
		map[string]any{"spreadsheet_id": validSpreadsheetID, "sheet_tab_name": "Receipts"})
	if rec.Code != http.StatusOK {
		t.Fatalf("setup status = %d: %s", rec.Code, rec.Body.String())
	}

	// Still no mappings configured.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/column-config", session, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if out := decode(t, rec); out["error_code"] != "COLUMN_MAPPINGS_NOT_CONFIGURED" {
		t.Fatalf("error_code = %v", out["error_code"])
	}

	// Save mappings.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/column-config", session,
		map[string]any{"date_column": "A", "description_column": "B", "price_column": "F"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/column-config", session, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	out := decode(t, rec)
	if out["date_column"] != "A" || out["description_column"] != "B" || out["price_column"] != "F" {
		t.Fatalf("mappings = %v", out)
	}
}

func TestSaveColumnConfigValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	session := "sess-1"
	doJSON(t, srv, http.MethodPost, "/api/v1/setup", session,
		map[string]any{"spreadsheet_id": validSpreadsheetID, "sheet_tab_name": "Receipts"})

	// Missing field reports which one.
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/column-config", session,
		map[string]any{"date_column": "A", "price_column": "F"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	out := decode(t, rec)
	if out["error_code"] != "MISSING_REQUIRED_FIELD" || out["field"] != "description_column" {
		t.Fatalf("body = %v", out)
	}

	// Invalid column letter names the field too.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/column-config", session,
		map[string]any{"date_column": "A", "description_column": "b1", "price_column": "F"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	out = decode(t, rec)
	if out["error_code"] != "INVALID_COLUMN_FORMAT" || out["field"] != "description_column" {
		t.Fatalf("body = %v", out)
	}

	// Nothing was stored by the failed saves.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/column-config", session, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get status = %d, want 404", rec.Code)
	}
}

func TestSetupValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/setup", "sess-1",
		map[string]any{"spreadsheet_id": "too-short", "sheet_tab_name": "Receipts"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out := decode(t, rec); out["error_code"] != "INVALID_SPREADSHEET_ID" {
		t.Fatalf("error_code = %v", out["error_code"])
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/setup", "sess-1",
		map[string]any{"spreadsheet_id": validSpreadsheetID, "sheet_tab_name": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out := decode(t, rec); out["error_code"] != "INVALID_SHEET_NAME" {
		t.Fatalf("error_code = %v", out["error_code"])
	}
}

func TestSaveFlow(t *testing.T) {
	srv, appender := newTestServer(t)
	session := "sess-1"

	saveBody := map[string]any{
		"receipt_id":       "rcpt-1",
		"transaction_date": "2024-01-15",
		"items":            "Coffee; Bagel",
		"total_amount":     15.50,
	}

	// Save before any configuration is gated.
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/save", session, saveBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out := decode(t, rec); out["error_code"] != "COLUMN_MAPPINGS_REQUIRED" {
		t.Fatalf("error_code = %v", out["error_code"])
	}

	// Setup alone is not enough; the mapping gate still blocks.
	doJSON(t, srv, http.MethodPost, "/api/v1/setup", session,
		map[string]any{"spreadsheet_id": validSpreadsheetID, "sheet_tab_name": "Receipts"})
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/save", session, saveBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out := decode(t, rec); out["error_code"] != "COLUMN_MAPPINGS_REQUIRED" {
		t.Fatalf("error_code = %v", out["error_code"])
	}

	doJSON(t, srv, http.MethodPost, "/api/v1/column-config", session,
		map[string]any{"date_column": "A", "description_column": "B", "price_column": "F"})

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/save", session, saveBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["success"] != true || out["status"] != storage.SyncDone {
		t.Fatalf("body = %v", out)
	}

	rows := appender.Rows(validSpreadsheetID, "Receipts")
	if len(rows) != 1 {
		t.Fatalf("appended rows = %d, want 1", len(rows))
	}
	want := []string{"2024-01-15", "Coffee; Bagel", "", "", "", "15.50"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Fatalf("row = %q, want %q", rows[0], want)
		}
	}
}

func TestSaveValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/save", "sess-1",
		map[string]any{"receipt_id": "r", "transaction_date": "not-a-date", "items": "x", "total_amount": 1})
	if out := decode(t, rec); rec.Code != http.StatusBadRequest || out["error_code"] != "INVALID_DATE" {
		t.Fatalf("status = %d, body = %v", rec.Code, out)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/save", "sess-1",
		map[string]any{"receipt_id": "r", "transaction_date": "2024-01-15", "items": "x", "total_amount": -3})
	if out := decode(t, rec); rec.Code != http.StatusBadRequest || out["error_code"] != "INVALID_AMOUNT" {
		t.Fatalf("status = %d, body = %v", rec.Code, out)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/save", "sess-1",
		map[string]any{"receipt_id": "", "transaction_date": "2024-01-15", "items": "x", "total_amount": 1})
	if out := decode(t, rec); rec.Code != http.StatusBadRequest || out["error_code"] != "MISSING_REQUIRED_FIELDS" {
		t.Fatalf("status = %d, body = %v", rec.Code, out)
	}
}

func TestUpload(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "receipt.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if _, err := part.Write(pngHeader); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["receipt_id"] == "" || out["status"] != "completed" {
		t.Fatalf("body = %v", out)
	}
	extracted, ok := out["extracted_data"].(map[string]any)
	if !ok {
		t.Fatalf("extracted_data missing: %v", out)
	}
	if extracted["transaction_date"] != "2025-09-28" {
		t.Fatalf("transaction_date = %v", extracted["transaction_date"])
	}
	if extracted["total_amount"] != "3.50" {
		t.Fatalf("total_amount = %v", extracted["total_amount"])
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("plain text, definitely not an image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out := decode(t, rec); out["error_code"] != "INVALID_FORMAT" {
		t.Fatalf("error_code = %v", out["error_code"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	session := "sess-1"

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/status", session, nil)
	out := decode(t, rec)
	if out["spreadsheet_configured"] != false || out["mappings_configured"] != false {
		t.Fatalf("fresh status = %v", out)
	}

	doJSON(t, srv, http.MethodPost, "/api/v1/setup", session,
		map[string]any{"spreadsheet_id": validSpreadsheetID, "sheet_tab_name": "Receipts"})
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/status", session, nil)
	out = decode(t, rec)
	if out["spreadsheet_configured"] != true || out["mappings_configured"] != false {
		t.Fatalf("after setup status = %v", out)
	}
}
