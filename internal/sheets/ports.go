package sheets

import (
	"context"
)

// Ports for outbound adapters.
type (
	// RowAppender appends a single built row to the given sheet and
	// returns the 1-based row number it landed on.
	RowAppender interface {
		Append(ctx context.Context, spreadsheetID, sheetName string, row []string) (rowNumber int, err error)
	}

	// SpreadsheetInspector verifies access to a spreadsheet during setup.
	SpreadsheetInspector interface {
		// Inspect returns the spreadsheet title and its sheet tab names.
		Inspect(ctx context.Context, spreadsheetID string) (title string, sheetNames []string, err error)
	}
)
