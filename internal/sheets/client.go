// Package sheets reads and writes the transactions table in Google Sheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dvloznov/sheetsync/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// TabularStore is the passive row surface the syncer reads and rewrites.
type TabularStore interface {
	ReadRows(ctx context.Context) ([][]string, error)
	WriteRows(ctx context.Context, rows [][]string) error
	ApplyFormatting(ctx context.Context, header []string) error
}

// Config selects the spreadsheet, the tab and how to authenticate.
type Config struct {
	SpreadsheetID string
	SheetName     string
	SheetID       int64
	// CredentialsFile is a service account or authorized user JSON file.
	// Application Default Credentials are used when empty.
	CredentialsFile string
	// APIEndpoint overrides the Sheets endpoint and disables authentication.
	APIEndpoint string
	HTTPClient  *http.Client
}

// Client implements TabularStore over the Sheets v4 API.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	sheetID       int64
}

// NewClient builds a Sheets client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("NewClient: spreadsheet id is required")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}

	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewClient: unable to create Sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		sheetID:       cfg.SheetID,
	}, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	if cfg.APIEndpoint != "" {
		hc := cfg.HTTPClient
		if hc == nil {
			hc = &http.Client{}
		}
		return []option.ClientOption{
			option.WithEndpoint(cfg.APIEndpoint),
			option.WithHTTPClient(hc),
		}, nil
	}

	if cfg.CredentialsFile == "" {
		creds, err := google.FindDefaultCredentials(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("finding default credentials: %w", err)
		}
		return []option.ClientOption{option.WithTokenSource(creds.TokenSource)}, nil
	}

	credBytes, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, credBytes, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return []option.ClientOption{
		option.WithTokenSource(oauth2.ReuseTokenSource(nil, creds.TokenSource)),
	}, nil
}

// quotedSheet renders the sheet name for A1 notation.
func (c *Client) quotedSheet() string {
	return "'" + strings.ReplaceAll(c.sheetName, "'", "''") + "'"
}

// WriteRange is the A1 range covering rows of the table width.
func WriteRange(sheetName string, numRows, numCols int) string {
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	return fmt.Sprintf("%s!A1:%s%d", quoted, domain.ColumnLetter(numCols), numRows)
}

// ReadRows returns every row of the sheet. A missing sheet or empty range
// yields no rows.
func (c *Client) ReadRows(ctx context.Context) ([][]string, error) {
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, c.quotedSheet()).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		if isMissingRange(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ReadRows: reading %s: %w", c.sheetName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// WriteRows overwrites the top-left block of the sheet in one call.
func (c *Client) WriteRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	width := 0
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		if len(row) > width {
			width = len(row)
		}
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}

	rng := WriteRange(c.sheetName, len(rows), width)
	_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, rng, &sheets.ValueRange{
		Range:  rng,
		Values: values,
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("WriteRows: updating %s: %w", rng, err)
	}
	return nil
}

// ApplyFormatting sends the datetime format, bold header and frozen row in
// one batch update.
func (c *Client) ApplyFormatting(ctx context.Context, header []string) error {
	requests, err := FormattingRequests(c.sheetID, header)
	if err != nil {
		return fmt.Errorf("ApplyFormatting: %w", err)
	}
	_, err = c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("ApplyFormatting: batch update: %w", err)
	}
	return nil
}

// SpreadsheetURL returns the browser URL of the spreadsheet.
func (c *Client) SpreadsheetURL(ctx context.Context) (string, error) {
	resp, err := c.service.Spreadsheets.Get(c.spreadsheetID).
		Fields("spreadsheetUrl").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("SpreadsheetURL: %w", err)
	}
	return resp.SpreadsheetUrl, nil
}

func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}
