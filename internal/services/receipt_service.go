// Package services orchestrates the upload-extract-save receipt flow
// across storage, OCR, AMQP and the mapping gate.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scontrino/internal/amqp"
	"scontrino/internal/core"
	"scontrino/internal/ocr"
	"scontrino/internal/parse"
	"scontrino/internal/prefs"
	"scontrino/internal/sheets"
	"scontrino/internal/storage"
	"scontrino/internal/uploads"
)

// Extracted is what OCR and parsing pulled out of an uploaded receipt.
// Missing fields carry zero confidence and stay unset for manual entry.
type Extracted struct {
	ReceiptID string
	parse.Extraction
	OCRElapsed time.Duration
}

// SaveResult reports where a confirmed receipt's row ended up.
type SaveResult struct {
	RowID     int64
	Status    string // storage.SyncPending or storage.SyncDone
	RowNumber int    // set only on a synchronous append
}

// ReceiptService saves confirmed receipts locally. With AMQP configured
// the row is journaled and synced by the worker; otherwise it is
// appended to Sheets inline.
type ReceiptService struct {
	repo       *storage.SQLiteRepository
	gate       *prefs.Gate
	uploads    *uploads.Store
	extractor  ocr.TextExtractor
	amqpClient *amqp.Client
	appender   sheets.RowAppender
}

func NewReceiptService(
	repo *storage.SQLiteRepository,
	uploadStore *uploads.Store,
	extractor ocr.TextExtractor,
	amqpClient *amqp.Client,
	appender sheets.RowAppender,
) *ReceiptService {
	return &ReceiptService{
		repo:       repo,
		gate:       prefs.NewGate(repo),
		uploads:    uploadStore,
		extractor:  extractor,
		amqpClient: amqpClient,
		appender:   appender,
	}
}

// ProcessUpload stores the image, runs OCR and parses out the receipt
// fields. Parsing failures are not errors: the user corrects missing
// fields before saving.
func (s *ReceiptService) ProcessUpload(ctx context.Context, content []byte, filename string) (Extracted, error) {
	up, err := s.uploads.Save(ctx, content, filename)
	if err != nil {
		return Extracted{}, err
	}

	text, elapsed, err := s.extractor.Extract(ctx, up.Path)
	if err != nil {
		// Keep nothing around for a receipt we could not read.
		if delErr := s.uploads.Delete(ctx, up.ID); delErr != nil {
			slog.WarnContext(ctx, "Failed to delete unreadable upload",
				"receipt_id", up.ID, "error", delErr)
		}
		return Extracted{}, err
	}

	ex := parse.Parse(text)
	slog.InfoContext(ctx, "Receipt processed",
		"receipt_id", up.ID,
		"date_found", ex.DateFound,
		"items_found", ex.ItemsFound,
		"amount_found", ex.AmountFound)

	return Extracted{ReceiptID: up.ID, Extraction: ex, OCRElapsed: elapsed}, nil
}

// SaveReceipt builds the mapped row for a confirmed receipt, journals it
// and publishes a sync message. The column mapping gate runs first: an
// unconfigured session gets prefs.ErrMappingsRequired, an invalid stored
// mapping gets *prefs.MappingsInvalidError, and in both cases nothing is
// written.
func (s *ReceiptService) SaveReceipt(ctx context.Context, sessionID, receiptID string, r core.Receipt) (SaveResult, error) {
	if err := r.Validate(); err != nil {
		return SaveResult{}, err
	}

	mapping, err := s.gate.CheckReady(ctx, sessionID)
	if err != nil {
		return SaveResult{}, err
	}

	row := core.BuildRow(r, mapping)
	rowID, err := s.repo.AppendJournalRow(ctx, sessionID, receiptID, row)
	if err != nil {
		return SaveResult{}, fmt.Errorf("journal row: %w", err)
	}

	result := SaveResult{RowID: rowID, Status: storage.SyncPending}
	if s.amqpClient != nil {
		// Publish async sync message (non-blocking; the worker also
		// sweeps pending rows, so a lost message is recovered later).
		if err := s.amqpClient.PublishRowSync(ctx, rowID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message",
				"row_id", rowID, "error", err)
		}
	} else if s.appender != nil {
		// No queue configured, append inline.
		rowNumber, err := s.appendNow(ctx, sessionID, rowID, row)
		if err != nil {
			return SaveResult{}, err
		}
		result.Status = storage.SyncDone
		result.RowNumber = rowNumber
	} else {
		slog.WarnContext(ctx, "No AMQP client or appender configured, row left pending",
			"row_id", rowID)
	}

	// The image is no longer needed once the row is journaled.
	if err := s.uploads.Delete(ctx, receiptID); err != nil {
		slog.WarnContext(ctx, "Failed to delete upload after save",
			"receipt_id", receiptID, "error", err)
	}

	return result, nil
}

func (s *ReceiptService) appendNow(ctx context.Context, sessionID string, rowID int64, row []string) (int, error) {
	pref, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("load preference: %w", err)
	}
	rowNumber, err := s.appender.Append(ctx, pref.SpreadsheetID, pref.SheetName, row)
	if err != nil {
		if markErr := s.repo.MarkSyncError(ctx, rowID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "row_id", rowID, "error", markErr)
		}
		return 0, fmt.Errorf("append to sheets: %w", err)
	}
	if err := s.repo.MarkSynced(ctx, rowID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "row_id", rowID, "error", err)
	}
	return rowNumber, nil
}

// Close closes storage and AMQP connections.
func (s *ReceiptService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close receipt service: %v", errs)
	}

	return nil
}
