package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"scontrino/internal/core"
	"scontrino/internal/ocr"
	"scontrino/internal/prefs"
	"scontrino/internal/storage"
	"scontrino/internal/uploads"
)

type extractedDataBody struct {
	TransactionDate           *string  `json:"transaction_date"`
	TransactionDateConfidence float64  `json:"transaction_date_confidence"`
	Items                     *string  `json:"items"`
	ItemsConfidence           float64  `json:"items_confidence"`
	TotalAmount               *string  `json:"total_amount"`
	TotalAmountConfidence     float64  `json:"total_amount_confidence"`
}

type uploadResponse struct {
	ReceiptID        string            `json:"receipt_id"`
	Status           string            `json:"status"`
	ExtractedData    extractedDataBody `json:"extracted_data"`
	ProcessingTimeMS int64             `json:"processing_time_ms"`
}

// handleUpload accepts a multipart receipt image, runs OCR and returns
// the extracted fields with confidences.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "POST required")
		return
	}

	// A little headroom over the file cap for multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxFileSize+64*1024)
	if err := r.ParseMultipartForm(uploads.MaxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "FILE_TOO_LARGE", "File size exceeds 5MB limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "No file provided in request")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "Could not read uploaded file")
		return
	}

	ex, err := s.receipts.ProcessUpload(r.Context(), content, header.Filename)
	switch {
	case errors.Is(err, uploads.ErrFileTooLarge):
		writeError(w, http.StatusBadRequest, "FILE_TOO_LARGE", "File size exceeds 5MB limit")
		return
	case errors.Is(err, uploads.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", "Only JPG and PNG formats are supported")
		return
	case errors.Is(err, ocr.ErrOCRFailed):
		slog.ErrorContext(r.Context(), "OCR failed", "error", err)
		writeError(w, http.StatusInternalServerError, "OCR_FAILED", "Unable to process image")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Upload processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Unable to process upload")
		return
	}

	body := uploadResponse{
		ReceiptID:        ex.ReceiptID,
		Status:           "completed",
		ProcessingTimeMS: ex.OCRElapsed.Milliseconds(),
		ExtractedData: extractedDataBody{
			TransactionDateConfidence: ex.DateConfidence,
			ItemsConfidence:           ex.ItemsConfidence,
			TotalAmountConfidence:     ex.AmountConfidence,
		},
	}
	if ex.DateFound {
		d := ex.Date.ISO()
		body.ExtractedData.TransactionDate = &d
	}
	if ex.ItemsFound {
		items := ex.Items
		body.ExtractedData.Items = &items
	}
	if ex.AmountFound {
		amount := ex.Amount.String()
		body.ExtractedData.TotalAmount = &amount
	}

	writeJSON(w, http.StatusOK, body)
}

type saveRequest struct {
	ReceiptID       string      `json:"receipt_id"`
	TransactionDate string      `json:"transaction_date"`
	Items           string      `json:"items"`
	TotalAmount     json.Number `json:"total_amount"`
}

type saveResponse struct {
	Success        bool   `json:"success"`
	Status         string `json:"status"`
	RowID          int64  `json:"row_id"`
	RowNumber      int    `json:"row_number,omitempty"`
	SpreadsheetURL string `json:"spreadsheet_url,omitempty"`
}

// handleSave persists a confirmed receipt. The row goes to the journal
// and, depending on configuration, to Sheets via the worker or inline.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "POST required")
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be valid JSON")
		return
	}
	if req.ReceiptID == "" || strings.TrimSpace(req.TransactionDate) == "" ||
		strings.TrimSpace(req.Items) == "" || req.TotalAmount == "" {
		writeError(w, http.StatusBadRequest, "MISSING_REQUIRED_FIELDS",
			"All fields (receipt_id, transaction_date, items, total_amount) are required")
		return
	}

	date, err := core.ParseDate(req.TransactionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "Transaction date must be a valid YYYY-MM-DD date")
		return
	}
	cents, err := core.ParseDecimalToCents(req.TotalAmount.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Total amount must be a positive number")
		return
	}

	receipt := core.Receipt{Date: date, Items: req.Items, Amount: core.Money{Cents: cents}}
	if err := receipt.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_RECEIPT", err.Error())
		return
	}

	sessionID := s.sessionID(w, r)
	res, err := s.receipts.SaveReceipt(r.Context(), sessionID, req.ReceiptID, receipt)
	var invalid *prefs.MappingsInvalidError
	switch {
	case errors.Is(err, prefs.ErrMappingsRequired):
		writeError(w, http.StatusBadRequest, "COLUMN_MAPPINGS_REQUIRED",
			"Please configure column mappings before processing receipts")
		return
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "COLUMN_MAPPINGS_INVALID", invalid.Error())
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Save failed", "error", err, "receipt_id", req.ReceiptID)
		writeError(w, http.StatusInternalServerError, "SAVE_FAILED", "Unable to save receipt")
		return
	}

	body := saveResponse{
		Success:   true,
		Status:    res.Status,
		RowID:     res.RowID,
		RowNumber: res.RowNumber,
	}
	if res.Status == storage.SyncDone {
		if pref, err := s.store.Load(r.Context(), sessionID); err == nil {
			body.SpreadsheetURL = "https://docs.google.com/spreadsheets/d/" + pref.SpreadsheetID
		}
	}
	writeJSON(w, http.StatusOK, body)
}
