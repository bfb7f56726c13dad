package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"scontrino/internal/core"
	"scontrino/internal/prefs"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "scontrino.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoadUnknownSession(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Load(context.Background(), "nobody")
	if !errors.Is(err, prefs.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	has, err := repo.HasColumnMapping(context.Background(), "nobody")
	if err != nil || has {
		t.Fatalf("HasColumnMapping = %v, %v; want false, nil", has, err)
	}
}

func TestLegacyRecordLoadsUnconfigured(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.Save(ctx, prefs.Preference{
		SessionID:     "sess-1",
		SpreadsheetID: "sheet-id",
		SheetName:     "Receipts",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	p, err := repo.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Mapping != nil {
		t.Fatalf("expected nil mapping on legacy record, got %+v", p.Mapping)
	}
	if p.SpreadsheetID != "sheet-id" || p.SheetName != "Receipts" {
		t.Fatalf("unexpected record: %+v", p)
	}

	has, err := repo.HasColumnMapping(ctx, "sess-1")
	if err != nil || has {
		t.Fatalf("HasColumnMapping = %v, %v; want false, nil", has, err)
	}
}

func TestSaveColumnMapping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := core.ColumnMapping{Date: "A", Description: "B", Price: "F"}
	if err := repo.SaveColumnMapping(ctx, "nobody", m); !errors.Is(err, prefs.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := repo.Save(ctx, prefs.Preference{SessionID: "sess-1", SpreadsheetID: "sid", SheetName: "Receipts"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveColumnMapping(ctx, "sess-1", m); err != nil {
		t.Fatalf("save mapping: %v", err)
	}

	p, err := repo.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Mapping == nil || *p.Mapping != m {
		t.Fatalf("mapping = %+v, want %+v", p.Mapping, m)
	}

	// Second save replaces, never merges.
	replacement := core.ColumnMapping{Date: "C", Description: "D", Price: "E"}
	if err := repo.SaveColumnMapping(ctx, "sess-1", replacement); err != nil {
		t.Fatalf("replace mapping: %v", err)
	}
	p, err = repo.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *p.Mapping != replacement {
		t.Fatalf("mapping = %+v, want %+v", *p.Mapping, replacement)
	}
}

func TestSavePreservesExistingMapping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, prefs.Preference{SessionID: "sess-1", SpreadsheetID: "sid", SheetName: "Receipts"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	m := core.ColumnMapping{Date: "A", Description: "B", Price: "C"}
	if err := repo.SaveColumnMapping(ctx, "sess-1", m); err != nil {
		t.Fatalf("save mapping: %v", err)
	}

	// Changing the spreadsheet selection must not clear the mapping.
	if err := repo.Save(ctx, prefs.Preference{SessionID: "sess-1", SpreadsheetID: "other", SheetName: "Tab2"}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	p, err := repo.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.SpreadsheetID != "other" || p.Mapping == nil || *p.Mapping != m {
		t.Fatalf("unexpected record after resave: %+v", p)
	}
}

func TestJournalLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cells := []string{"2024-01-15", "Coffee; Bagel", "", "", "", "15.50"}
	id, err := repo.AppendJournalRow(ctx, "sess-1", "rcpt-1", cells)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	jr, err := repo.GetJournalRow(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(jr.Cells, cells) {
		t.Fatalf("cells = %q, want %q", jr.Cells, cells)
	}
	if jr.SyncStatus != SyncPending {
		t.Fatalf("status = %q, want pending", jr.SyncStatus)
	}

	pending, err := repo.GetPendingRows(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending = %+v, %v", pending, err)
	}

	if err := repo.MarkSynced(ctx, id); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, err = repo.GetPendingRows(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending after sync = %+v, %v", pending, err)
	}
}
