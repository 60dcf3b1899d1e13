package registry

import (
	"time"

	"github.com/modoterra/tailsync/pkg/core"
)

// Buffer is the ordered sequence of lines captured from one source.
// CapturedAt is non-decreasing from front to back.
type Buffer struct {
	id    string
	lines []core.LogLine
}

// NewBuffer builds a detached buffer from already captured lines.
func NewBuffer(id string, lines ...core.LogLine) *Buffer {
	b := &Buffer{id: id, lines: make([]core.LogLine, len(lines))}
	copy(b.lines, lines)
	return b
}

// ID returns the source identifier.
func (b *Buffer) ID() string { return b.id }

// Len returns the number of lines still buffered.
func (b *Buffer) Len() int { return len(b.lines) }

// First returns the oldest buffered line.
func (b *Buffer) First() (core.LogLine, bool) {
	if len(b.lines) == 0 {
		return core.LogLine{}, false
	}
	return b.lines[0], true
}

// Last returns the newest buffered line.
func (b *Buffer) Last() (core.LogLine, bool) {
	if len(b.lines) == 0 {
		return core.LogLine{}, false
	}
	return b.lines[len(b.lines)-1], true
}

// PopThrough removes every line captured at or before t and returns the last
// one removed. It reports false when no line qualified.
func (b *Buffer) PopThrough(t time.Time) (core.LogLine, bool) {
	n := 0
	for n < len(b.lines) && !b.lines[n].CapturedAt.After(t) {
		n++
	}
	if n == 0 {
		return core.LogLine{}, false
	}
	last := b.lines[n-1]
	clear(b.lines[:n])
	b.lines = b.lines[n:]
	return last, true
}
