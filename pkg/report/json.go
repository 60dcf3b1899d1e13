package report

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/modoterra/tailsync/pkg/align"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonDocument struct {
	RunID       string     `json:"run_id,omitempty"`
	PrecisionMS int64      `json:"precision_ms"`
	Window      jsonWindow `json:"window"`
	Headers     []string   `json:"headers"`
	Rows        []jsonRow  `json:"rows"`
}

type jsonWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type jsonRow struct {
	At    string   `json:"at"`
	Cells []string `json:"cells"`
}

// WriteJSON writes the report as a single indented JSON document.
func WriteJSON(w io.Writer, r *align.Report, opts Options) error {
	doc := jsonDocument{
		RunID:       opts.RunID,
		PrecisionMS: r.Precision.Milliseconds(),
		Window: jsonWindow{
			Start: formatTime(r.Window.Start),
			End:   formatTime(r.Window.End),
		},
		Headers: r.Headers,
		Rows:    make([]jsonRow, len(r.Rows)),
	}
	if doc.Headers == nil {
		doc.Headers = []string{}
	}
	for i, row := range r.Rows {
		doc.Rows[i] = jsonRow{At: formatTime(row.At), Cells: row.Texts()}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
