// Package worker appends journaled rows to Google Sheets.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"scontrino/internal/amqp"
	"scontrino/internal/sheets"
	"scontrino/internal/storage"
)

// SyncWorker moves journaled rows from SQLite to Google Sheets. It is
// driven by AMQP messages, with a pending-row sweep as backup for lost
// messages.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	appender  sheets.RowAppender
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, appender sheets.RowAppender, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single row sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RowSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "row_id", msg.RowID)

	row, err := w.storage.GetJournalRow(ctx, msg.RowID)
	if err != nil {
		return fmt.Errorf("get journal row: %w", err)
	}
	if row.SyncStatus == storage.SyncDone {
		// Redelivered message for a row the sweep already handled.
		slog.InfoContext(ctx, "Row already synced, skipping", "row_id", msg.RowID)
		return nil
	}

	return w.syncRow(ctx, row)
}

// ProcessPendingRows appends any rows that have not been synced yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingRows(ctx context.Context) error {
	pending, err := w.storage.GetPendingRows(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending rows: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending rows", "count", len(pending))
	for _, row := range pending {
		if err := w.syncRow(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to sync row", "row_id", row.ID, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains rows left pending from missed messages or
// worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingRows(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending rows for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending rows found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending rows on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, row := range pending {
		if err := w.syncRow(ctx, row); err != nil {
			slog.ErrorContext(ctx, "Failed to sync row during startup",
				"row_id", row.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

// syncRow appends one journaled row to the sheet stored in the session's
// preference. The row was built from the mapping in force at save time;
// later mapping changes never rewrite it.
func (w *SyncWorker) syncRow(ctx context.Context, row storage.JournalRow) error {
	pref, err := w.storage.Load(ctx, row.SessionID)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, row.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "row_id", row.ID, "error", markErr)
		}
		return fmt.Errorf("load preference for session %s: %w", row.SessionID, err)
	}

	rowNumber, err := w.appender.Append(ctx, pref.SpreadsheetID, pref.SheetName, row.Cells)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, row.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "row_id", row.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, row.ID); err != nil {
		// The append worked; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as synced", "row_id", row.ID, "error", err)
	}

	slog.InfoContext(ctx, "Row synced",
		"row_id", row.ID,
		"receipt_id", row.ReceiptID,
		"sheet", pref.SheetName,
		"row_number", rowNumber)
	return nil
}
