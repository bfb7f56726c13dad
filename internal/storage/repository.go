// Package storage persists per-session preferences and the append journal
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scontrino/internal/core"
	"scontrino/internal/prefs"
)

// Sync states for journaled rows.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// JournalRow is a built spreadsheet row waiting for (or already past)
// its append to Google Sheets. Rows are immutable once appended; mapping
// changes never rewrite them.
type JournalRow struct {
	ID         int64
	SessionID  string
	ReceiptID  string
	Cells      []string
	SyncStatus string
	CreatedAt  time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

var _ prefs.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements prefs.Store.
func (r *SQLiteRepository) Load(ctx context.Context, sessionID string) (prefs.Preference, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, spreadsheet_id, sheet_name,
		       date_column, description_column, price_column,
		       created_at, updated_at
		FROM user_preferences WHERE session_id = ?`, sessionID)

	var (
		p                      prefs.Preference
		dateCol, descCol, priceCol sql.NullString
	)
	err := row.Scan(&p.ID, &p.SessionID, &p.SpreadsheetID, &p.SheetName,
		&dateCol, &descCol, &priceCol, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs.Preference{}, prefs.ErrNotFound
	}
	if err != nil {
		return prefs.Preference{}, fmt.Errorf("load preference: %w", err)
	}

	// Records saved before the mapping migration have all three columns
	// NULL and stay unconfigured. A partially NULL record still surfaces
	// as a mapping so the gate can report it invalid instead of silently
	// treating it as absent.
	if dateCol.Valid || descCol.Valid || priceCol.Valid {
		p.Mapping = &core.ColumnMapping{
			Date:        dateCol.String,
			Description: descCol.String,
			Price:       priceCol.String,
		}
	}
	return p, nil
}

// Save implements prefs.Store. It upserts the spreadsheet selection and
// leaves any previously saved column mapping untouched.
func (r *SQLiteRepository) Save(ctx context.Context, p prefs.Preference) error {
	now := time.Now().UTC()
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_preferences (id, session_id, spreadsheet_id, sheet_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			spreadsheet_id = excluded.spreadsheet_id,
			sheet_name = excluded.sheet_name,
			updated_at = excluded.updated_at`,
		id, p.SessionID, p.SpreadsheetID, p.SheetName, now, now)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}

	slog.InfoContext(ctx, "Preference saved",
		"session_id", p.SessionID,
		"spreadsheet_id", p.SpreadsheetID,
		"sheet_name", p.SheetName)
	return nil
}

// SaveColumnMapping implements prefs.Store. The mapping is replaced as a
// whole; partial updates do not exist.
func (r *SQLiteRepository) SaveColumnMapping(ctx context.Context, sessionID string, m core.ColumnMapping) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_preferences
		SET date_column = ?, description_column = ?, price_column = ?, updated_at = ?
		WHERE session_id = ?`,
		m.Date, m.Description, m.Price, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("save column mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save column mapping: %w", err)
	}
	if n == 0 {
		return prefs.ErrNotFound
	}

	slog.InfoContext(ctx, "Column mapping saved",
		"session_id", sessionID,
		"date_column", m.Date,
		"description_column", m.Description,
		"price_column", m.Price)
	return nil
}

// HasColumnMapping implements prefs.Store.
func (r *SQLiteRepository) HasColumnMapping(ctx context.Context, sessionID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT date_column IS NOT NULL
		FROM user_preferences WHERE session_id = ?`, sessionID)
	var has bool
	err := row.Scan(&has)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has column mapping: %w", err)
	}
	return has, nil
}

// AppendJournalRow records a built row as pending sync and returns its id.
func (r *SQLiteRepository) AppendJournalRow(ctx context.Context, sessionID, receiptID string, cells []string) (int64, error) {
	body, err := json.Marshal(cells)
	if err != nil {
		return 0, fmt.Errorf("marshal row: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sheet_rows (session_id, receipt_id, row_json, sync_status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, receiptID, string(body), SyncPending, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert journal row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal row id: %w", err)
	}

	slog.InfoContext(ctx, "Row journaled",
		"id", id,
		"session_id", sessionID,
		"receipt_id", receiptID,
		"cells", len(cells))
	return id, nil
}

// GetJournalRow retrieves a journaled row by id.
func (r *SQLiteRepository) GetJournalRow(ctx context.Context, id int64) (JournalRow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, receipt_id, row_json, sync_status, created_at
		FROM sheet_rows WHERE id = ?`, id)

	var (
		jr   JournalRow
		body string
	)
	err := row.Scan(&jr.ID, &jr.SessionID, &jr.ReceiptID, &body, &jr.SyncStatus, &jr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalRow{}, fmt.Errorf("journal row %d: not found", id)
	}
	if err != nil {
		return JournalRow{}, fmt.Errorf("get journal row: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &jr.Cells); err != nil {
		return JournalRow{}, fmt.Errorf("decode journal row %d: %w", id, err)
	}
	return jr, nil
}

// GetPendingRows returns journal rows still waiting for append, oldest first.
func (r *SQLiteRepository) GetPendingRows(ctx context.Context, limit int) ([]JournalRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, receipt_id, row_json, sync_status, created_at
		FROM sheet_rows WHERE sync_status = ? ORDER BY id LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending rows: %w", err)
	}
	defer rows.Close()

	var out []JournalRow
	for rows.Next() {
		var (
			jr   JournalRow
			body string
		)
		if err := rows.Scan(&jr.ID, &jr.SessionID, &jr.ReceiptID, &body, &jr.SyncStatus, &jr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &jr.Cells); err != nil {
			return nil, fmt.Errorf("decode journal row %d: %w", jr.ID, err)
		}
		out = append(out, jr)
	}
	return out, rows.Err()
}

// MarkSynced marks a journal row as successfully appended.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sheet_rows SET sync_status = ?, synced_at = ? WHERE id = ?`,
		SyncDone, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark row synced: %w", err)
	}
	slog.InfoContext(ctx, "Row marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a journal row as failed so it can be inspected.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sheet_rows SET sync_status = ? WHERE id = ?`,
		SyncError, id)
	if err != nil {
		return fmt.Errorf("mark row sync error: %w", err)
	}
	slog.WarnContext(ctx, "Row marked with sync error", "id", id)
	return nil
}
