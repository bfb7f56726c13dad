package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "scontrino/internal/sheets"
)

const (
	appendAttempts = 3
	appendBackoff  = time.Second
)

type Client struct {
	svc *gsheet.Service
}

// Ensure interface conformance
var (
	_ ports.RowAppender          = (*Client)(nil)
	_ ports.SpreadsheetInspector = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment credentials.
// Service accounts win (GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS); a
// user OAuth client plus token (GOOGLE_OAUTH_CLIENT_JSON/FILE and
// GOOGLE_OAUTH_TOKEN_JSON/FILE, see the oauth-init command) works too.
func NewFromEnv(ctx context.Context) (*Client, error) {
	opt, err := credentialOptionFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, opt,
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return &Client{svc: svc}, nil
}

func credentialOptionFromEnv(ctx context.Context) (goption.ClientOption, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return goption.WithCredentialsJSON([]byte(serviceAccountJSON)), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return goption.WithCredentialsJSON(credentialsJSON), nil
	}

	if ts, err := oauthTokenSourceFromEnv(ctx); err != nil {
		return nil, err
	} else if ts != nil {
		slog.InfoContext(ctx, "Using OAuth user token credentials")
		return goption.WithTokenSource(ts), nil
	}

	return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or an OAuth client and token)")
}

// oauthTokenSourceFromEnv builds a refreshing token source from the
// OAuth client and token produced by the oauth-init command. Returns
// (nil, nil) when no OAuth variables are set.
func oauthTokenSourceFromEnv(ctx context.Context) (oauth2.TokenSource, error) {
	clientJSON, err := readEnvJSON("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := readEnvJSON("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil || tokenJSON == nil {
		return nil, nil
	}

	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}

func readEnvJSON(jsonVar, fileVar string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonVar)); v != "" {
		return []byte(v), nil
	}
	if path := strings.TrimSpace(os.Getenv(fileVar)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileVar, err)
		}
		return b, nil
	}
	return nil, nil
}

// Append appends the row after the last row of the sheet and returns the
// row number it landed on. Rate-limited calls are retried a few times.
func (c *Client) Append(ctx context.Context, spreadsheetID, sheetName string, row []string) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(row) == 0 {
		return 0, errors.New("empty row")
	}

	rng := fmt.Sprintf("%s!A:A", sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row)}}

	var resp *gsheet.AppendValuesResponse
	var err error
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		resp, err = c.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err == nil {
			break
		}
		if !isRateLimited(err) || attempt == appendAttempts {
			return 0, fmt.Errorf("append to sheet %s: %w", sheetName, err)
		}
		slog.WarnContext(ctx, "Sheets API rate limited, retrying",
			"sheet", sheetName, "attempt", attempt)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(appendBackoff * time.Duration(attempt)):
		}
	}

	rowNumber := 0
	if resp.Updates != nil {
		rowNumber = rowNumberFromRange(resp.Updates.UpdatedRange)
	}

	slog.InfoContext(ctx, "Row appended",
		"sheet", sheetName, "row", rowNumber, "cells", len(row))
	return rowNumber, nil
}

// Inspect returns the spreadsheet title and its sheet tab names.
func (c *Client) Inspect(ctx context.Context, spreadsheetID string) (string, []string, error) {
	if c.svc == nil {
		return "", nil, errors.New("sheets service not initialized")
	}
	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields("properties.title", "sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("get spreadsheet: %w", err)
	}

	title := ""
	if ss.Properties != nil {
		title = ss.Properties.Title
	}
	names := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			names = append(names, sh.Properties.Title)
		}
	}
	return title, names, nil
}

func rowValues(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// rowNumberFromRange extracts the starting row from an A1 range like
// "Receipts!A5:F5". Returns 0 when the range cannot be parsed.
func rowNumberFromRange(a1 string) int {
	if i := strings.IndexByte(a1, '!'); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.IndexByte(a1, ':'); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeftFunc(a1, func(r rune) bool {
		return r >= 'A' && r <= 'Z'
	})
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 429
}
