package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/i474232898/weather-etl/internal/tabular"
	"github.com/i474232898/weather-etl/internal/weather"
)

// NDJSONWriter writes report tables as newline-delimited JSON under BaseDir.
type NDJSONWriter struct {
	BaseDir string
}

var _ weather.ReportWriter = (*NDJSONWriter)(nil)

// NewNDJSONWriter returns a writer rooted at baseDir ("data" when empty).
func NewNDJSONWriter(baseDir string) *NDJSONWriter {
	if baseDir == "" {
		baseDir = "data"
	}
	return &NDJSONWriter{BaseDir: baseDir}
}

// ReportPath returns <base>/<feed>/<YYYY-MM-DD>/<YYYYMMDD_HHMMSS>.json.
func ReportPath(baseDir, feed string, extractedAt time.Time) string {
	return filepath.Join(
		baseDir,
		feed,
		extractedAt.Format("2006-01-02"),
		extractedAt.Format("20060102_150405")+".json",
	)
}

// Write encodes every row with the union of the table's columns, one object
// per line, and returns the file path.
func (w *NDJSONWriter) Write(feed string, table *tabular.Table, extractedAt time.Time) (string, error) {
	path := ReportPath(w.BaseDir, feed, extractedAt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	columns := table.Columns()
	for i, row := range table.Rows() {
		line, err := row.Encode(columns)
		if err != nil {
			return "", fmt.Errorf("encode row %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := buf.Flush(); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report file: %w", err)
	}
	return path, nil
}
