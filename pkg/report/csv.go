package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/modoterra/tailsync/pkg/align"
)

// WriteCSV writes one header line of source identifiers followed by one line
// per row holding each cell's text. Fields are quoted only when they contain
// a comma, quote or line break.
func WriteCSV(w io.Writer, r *align.Report, opts Options) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(r.Headers)+1)
	if opts.IncludeTime {
		header = append(header, "time")
	}
	header = append(header, r.Headers...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, 0, len(header))
	for i, row := range r.Rows {
		record = record[:0]
		if opts.IncludeTime {
			record = append(record, formatTime(row.At))
		}
		for _, cell := range row.Cells {
			record = append(record, cell.Line)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
