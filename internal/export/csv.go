package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/content-aggregator/internal/models"
)

// CSVWriter exports contents to a local CSV file
type CSVWriter struct {
	// DefaultDir is used when a task has no destination
	DefaultDir string
}

// NewCSVWriter creates a CSV export backend
func NewCSVWriter(defaultDir string) *CSVWriter {
	if defaultDir == "" {
		defaultDir = "."
	}
	return &CSVWriter{DefaultDir: defaultDir}
}

// Format returns the backend's export format
func (w *CSVWriter) Format() models.ExportFormat {
	return models.ExportFormatCSV
}

// Write writes all rows to the destination file, creating directories as
// needed. Empty destination gets a timestamped file in the default directory.
func (w *CSVWriter) Write(ctx context.Context, destination string, rows [][]string) (string, error) {
	if destination == "" {
		destination = filepath.Join(w.DefaultDir, fmt.Sprintf("contents-%s.csv", time.Now().Format("20060102-150405")))
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(destination)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export file: %w", err)
	}
	return destination, nil
}
