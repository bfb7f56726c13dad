// Package memory provides an in-memory RowAppender for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "scontrino/internal/sheets"
)

type Appender struct {
	mu   sync.Mutex
	rows map[string][][]string

	// Err, when set, is returned by every Append call.
	Err error
}

var _ ports.RowAppender = (*Appender)(nil)

func New() *Appender {
	return &Appender{rows: make(map[string][][]string)}
}

// Append stores the row and returns its 1-based position within the sheet.
func (a *Appender) Append(_ context.Context, spreadsheetID, sheetName string, row []string) (int, error) {
	if a.Err != nil {
		return 0, a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := sheetKey(spreadsheetID, sheetName)
	a.rows[key] = append(a.rows[key], append([]string(nil), row...))
	return len(a.rows[key]), nil
}

// Rows returns the rows appended to the given sheet so far.
func (a *Appender) Rows(spreadsheetID, sheetName string) [][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	src := a.rows[sheetKey(spreadsheetID, sheetName)]
	out := make([][]string, len(src))
	for i, r := range src {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func sheetKey(spreadsheetID, sheetName string) string {
	return fmt.Sprintf("%s/%s", spreadsheetID, sheetName)
}
