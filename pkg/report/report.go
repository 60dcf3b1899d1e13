// Package report renders an aligned report as CSV, JSON or a SQLite database.
//
// Formatters never reorder headers or rows and treat cell text as opaque.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modoterra/tailsync/pkg/align"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// Stdout is the output path that writes the report to standard output.
const Stdout = "-"

// Options tune rendering.
type Options struct {
	// IncludeTime prefixes each CSV row with the virtual clock instant. JSON
	// and SQLite output always carry it.
	IncludeTime bool
	// RunID labels the report in formats that carry metadata.
	RunID string
}

// ParseFormat validates a format name. The empty string selects CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatSQLite:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (available: csv, json, sqlite)", s)
	}
}

// FormatFromPath guesses a format from the output file extension, falling
// back to CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Export writes r to path in the given format.
func Export(ctx context.Context, path string, format Format, r *align.Report, opts Options) error {
	if format == FormatSQLite {
		if path == Stdout {
			return fmt.Errorf("sqlite output needs a file path")
		}
		return WriteSQLite(ctx, path, r, opts)
	}

	write := WriteCSV
	if format == FormatJSON {
		write = WriteJSON
	}

	if path == Stdout {
		return write(os.Stdout, r, opts)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, r, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
