// Package stats keeps running per-source capture counters that can be read
// while capture is in progress.
package stats

import (
	"sync"
	"time"

	"github.com/modoterra/tailsync/pkg/core"
)

// SourceStats summarizes what has been captured from one source.
type SourceStats struct {
	Source   string    `json:"source"`
	Lines    uint64    `json:"lines"`
	Bytes    uint64    `json:"bytes"`
	FirstAt  time.Time `json:"first_at"`
	LastAt   time.Time `json:"last_at"`
	LastLine string    `json:"last_line,omitempty"`
}

// HasData reports whether anything was captured from the source.
func (s SourceStats) HasData() bool { return s.Lines > 0 }

// Tracker coordinates concurrent reads of the counters maintained by the
// ingestion loop.
type Tracker struct {
	mu       sync.RWMutex
	order    []string
	bySource map[string]*SourceStats
}

// NewTracker creates a tracker for the given sources, in registration order.
func NewTracker(sources []string) *Tracker {
	t := &Tracker{bySource: make(map[string]*SourceStats, len(sources))}
	for _, src := range sources {
		if _, ok := t.bySource[src]; ok {
			continue
		}
		t.order = append(t.order, src)
		t.bySource[src] = &SourceStats{Source: src}
	}
	return t
}

// Observe records a captured line. Lines from unknown sources are ignored.
func (t *Tracker) Observe(line core.LogLine) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.bySource[line.Source]
	if !ok {
		return
	}
	if s.Lines == 0 {
		s.FirstAt = line.CapturedAt
	}
	s.Lines++
	s.Bytes += uint64(len(line.Line))
	s.LastAt = line.CapturedAt
	s.LastLine = line.Line
}

// Snapshot returns a copy of every source's counters in registration order.
func (t *Tracker) Snapshot() []SourceStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]SourceStats, len(t.order))
	for i, src := range t.order {
		out[i] = *t.bySource[src]
	}
	return out
}

// Totals sums lines and bytes over a snapshot.
func Totals(snap []SourceStats) (lines, bytes uint64) {
	for _, s := range snap {
		lines += s.Lines
		bytes += s.Bytes
	}
	return lines, bytes
}

// Idle returns the sources that have not captured anything yet.
func Idle(snap []SourceStats) []string {
	var out []string
	for _, s := range snap {
		if !s.HasData() {
			out = append(out, s.Source)
		}
	}
	return out
}
