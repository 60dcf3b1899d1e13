// Package align turns independently captured per-source line buffers into a
// single time-aligned table.
//
// Generate walks a virtual clock from the first instant at which every source
// has produced a line to the last instant at which every source still has
// one, in fixed steps. Each row holds, per source, the newest line captured at
// or before the row's instant; a source with nothing new repeats its previous
// cell. Buffers are drained as the clock advances, so every captured line
// lands in at most one row, and lines captured after the window are dropped.
package align

import (
	"fmt"
	"time"

	"github.com/modoterra/tailsync/pkg/core"
	"github.com/modoterra/tailsync/pkg/registry"
)

// Window is the closed interval over which every source has data.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether the sources never overlapped.
func (w Window) Empty() bool { return w.Start.After(w.End) }

// Row is one step of the virtual clock. Cells are positionally aligned with
// Report.Headers.
type Row struct {
	At    time.Time      `json:"at"`
	Cells []core.LogLine `json:"cells"`
}

// Texts returns the raw line text of every cell.
func (r Row) Texts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Line
	}
	return out
}

// Report is the aligned table.
type Report struct {
	Headers   []string
	Rows      []Row
	Window    Window
	Precision time.Duration
}

// ValidatePrecision rejects non-positive step sizes.
func ValidatePrecision(precision time.Duration) error {
	if precision <= 0 {
		return fmt.Errorf("%w: %s (must be positive)", core.ErrInvalidPrecision, precision)
	}
	return nil
}

// Generate drains the buffers into a Report with one row per precision step.
// Buffers must be given in registration order; they are consumed and must
// not be reused.
func Generate(buffers []*registry.Buffer, precision time.Duration) (*Report, error) {
	if err := ValidatePrecision(precision); err != nil {
		return nil, err
	}
	if len(buffers) == 0 {
		return nil, core.ErrNoSources
	}

	window, err := overlap(buffers)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Headers:   make([]string, len(buffers)),
		Window:    window,
		Precision: precision,
	}
	for i, b := range buffers {
		report.Headers[i] = b.ID()
	}
	if window.Empty() {
		return report, nil
	}

	steps := window.End.Sub(window.Start)/precision + 1
	report.Rows = make([]Row, 0, steps)

	for t := window.Start; !t.After(window.End); t = t.Add(precision) {
		cells := make([]core.LogLine, len(buffers))
		for i, b := range buffers {
			if line, ok := b.PopThrough(t); ok {
				cells[i] = line
				continue
			}
			if len(report.Rows) == 0 {
				// Unreachable while Start is the max of every first capture.
				return nil, fmt.Errorf("%w: %s has no line at or before %s", core.ErrNoDataForSource, b.ID(), t)
			}
			cells[i] = report.Rows[len(report.Rows)-1].Cells[i]
		}
		report.Rows = append(report.Rows, Row{At: t, Cells: cells})
	}
	return report, nil
}

func overlap(buffers []*registry.Buffer) (Window, error) {
	var w Window
	for i, b := range buffers {
		first, ok := b.First()
		if !ok {
			return Window{}, fmt.Errorf("%w: %s", core.ErrNoDataForSource, b.ID())
		}
		last, _ := b.Last()
		if i == 0 || first.CapturedAt.After(w.Start) {
			w.Start = first.CapturedAt
		}
		if i == 0 || last.CapturedAt.Before(w.End) {
			w.End = last.CapturedAt
		}
	}
	return w, nil
}
