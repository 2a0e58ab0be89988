package export

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/pkg/logger"
)

// SheetsConfig holds Google Sheets export configuration
type SheetsConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// SheetsWriter exports contents to a Google Sheets tab
type SheetsWriter struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *logger.Logger
}

// NewSheetsWriter creates a Sheets export backend. Returns (nil, nil) when
// the backend is disabled in config.
func NewSheetsWriter(ctx context.Context, cfg SheetsConfig, log *logger.Logger) (*SheetsWriter, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var srv *sheets.Service
	var err error

	// Service account JSON first (env var injection), file path second
	if cfg.ServiceAccountJSON != "" {
		srv, err = sheets.NewService(ctx, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	} else if cfg.CredentialsFile != "" {
		srv, err = sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		return nil, fmt.Errorf("no Google credentials provided: set credentials_file or service_account_json")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = "Contents"
	}

	return &SheetsWriter{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		log:           log.WithComponent("sheets-export"),
	}, nil
}

// Format returns the backend's export format
func (w *SheetsWriter) Format() models.ExportFormat {
	return models.ExportFormatSheets
}

// Write replaces the sheet's contents with the given rows. Destination may
// name a sheet tab; empty uses the configured default. Returns the sheet
// name actually written.
func (w *SheetsWriter) Write(ctx context.Context, destination string, rows [][]string) (string, error) {
	sheetName := w.sheetName
	if destination != "" {
		sheetName = destination
	}

	if err := w.ensureSheetExists(ctx, sheetName); err != nil {
		return "", err
	}

	// Clear previous export so reruns don't accumulate stale rows
	clearRange := fmt.Sprintf("%s!A:Z", sheetName)
	if _, err := w.service.Spreadsheets.Values.Clear(w.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to clear sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		values = append(values, cells)
	}

	writeRange := fmt.Sprintf("%s!A1", sheetName)
	valueRange := &sheets.ValueRange{Values: values}
	_, err := w.service.Spreadsheets.Values.Update(w.spreadsheetID, writeRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to write rows: %w", err)
	}

	w.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(rows)).
		Msg("Sheet export written")
	return sheetName, nil
}

// ensureSheetExists creates the sheet tab if it doesn't exist
func (w *SheetsWriter) ensureSheetExists(ctx context.Context, sheetName string) error {
	spreadsheet, err := w.service.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return nil
		}
	}

	w.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
					},
				},
			},
		},
	}
	if _, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return nil
}
