package capture

import (
	"context"

	"github.com/modoterra/tailsync/pkg/transport/uds"
)

func (c *Capture) registerHandlers(srv *uds.Server) {
	srv.Handle(uds.MethodPing, c.handlePing)
	srv.Handle(uds.MethodStats, c.handleStats)
	srv.Handle(uds.MethodSources, c.handleSources)
}

func (c *Capture) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true, RunID: c.runID}, nil
}

func (c *Capture) handleStats(_ context.Context, _ uds.Message) (any, error) {
	return uds.StatsResponse{
		RunID:     c.runID,
		StartedAt: c.started,
		Precision: c.opts.Precision,
		Output:    c.opts.Output,
		Sources:   c.tracker.Snapshot(),
	}, nil
}

// handleSources answers from the configured list; the registry belongs to
// the ingestion loop while capture runs.
func (c *Capture) handleSources(_ context.Context, _ uds.Message) (any, error) {
	sources := make([]string, len(c.opts.Sources))
	copy(sources, c.opts.Sources)
	return uds.SourcesResponse{Sources: sources}, nil
}
