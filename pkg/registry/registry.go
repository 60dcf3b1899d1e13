// Package registry holds the per-source line buffers filled during capture.
//
// A Registry is owned by a single ingestion goroutine while capture runs and
// is handed to the alignment pass with Detach once capture has stopped. It
// does no locking of its own.
package registry

import (
	"fmt"
	"time"

	"github.com/modoterra/tailsync/pkg/core"
)

// Registry maps source identifiers to their captured lines, remembering the
// order in which sources were registered.
type Registry struct {
	order   []string
	buffers map[string]*Buffer
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{buffers: make(map[string]*Buffer)}
}

// Register creates an empty buffer for sourceID.
func (r *Registry) Register(sourceID string) error {
	if _, ok := r.buffers[sourceID]; ok {
		return fmt.Errorf("%w: %s", core.ErrDuplicateSource, sourceID)
	}
	r.buffers[sourceID] = &Buffer{id: sourceID}
	r.order = append(r.order, sourceID)
	return nil
}

// Append records a line for sourceID captured at the given instant.
func (r *Registry) Append(sourceID, text string, at time.Time) error {
	buf, ok := r.buffers[sourceID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownSource, sourceID)
	}
	buf.lines = append(buf.lines, core.LogLine{
		Source:     sourceID,
		Line:       text,
		CapturedAt: at,
	})
	return nil
}

// Sources returns the registered source identifiers in registration order.
func (r *Registry) Sources() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of lines buffered for sourceID, or zero when the
// source is unknown.
func (r *Registry) Len(sourceID string) int {
	if buf, ok := r.buffers[sourceID]; ok {
		return buf.Len()
	}
	return 0
}

// Detach hands every buffer to the caller in registration order and leaves
// the registry empty. Appends after Detach fail with core.ErrUnknownSource.
func (r *Registry) Detach() []*Buffer {
	out := make([]*Buffer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.buffers[id])
	}
	r.order = nil
	r.buffers = make(map[string]*Buffer)
	return out
}
