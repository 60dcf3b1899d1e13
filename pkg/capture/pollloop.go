package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/modoterra/tailsync/pkg/stats"
	"github.com/modoterra/tailsync/pkg/transport/uds"
)

// PollLoop snapshots the tracker every interval, broadcasts what changed to
// socket clients and refreshes the service manager status line.
type PollLoop struct {
	tracker  *stats.Tracker
	server   *uds.Server
	interval time.Duration
	last     []stats.SourceStats
	logger   *slog.Logger
}

// NewPollLoop creates a poll loop. server may be nil.
func NewPollLoop(tracker *stats.Tracker, server *uds.Server, interval time.Duration, logger *slog.Logger) *PollLoop {
	return &PollLoop{tracker: tracker, server: server, interval: interval, logger: logger}
}

// Run starts the poll loop. Blocks until ctx is cancelled.
func (pl *PollLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(pl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pl.tick()
		}
	}
}

func (pl *PollLoop) tick() {
	snap := pl.tracker.Snapshot()
	delta := stats.ComputeDelta(pl.last, snap)
	pl.last = snap
	if !delta.HasChanges() {
		return
	}

	lines, _ := stats.Totals(snap)
	status := fmt.Sprintf("captured %s lines", humanize.Comma(int64(lines)))
	if idle := stats.Idle(snap); len(idle) > 0 {
		status += fmt.Sprintf(", %d sources waiting", len(idle))
	}
	notify(pl.logger, sdStatus(status))

	if pl.server == nil {
		return
	}
	evt, err := uds.NewEvent(uds.EventStatsDelta, delta)
	if err != nil {
		pl.logger.Error("stats delta", "err", err)
		return
	}
	pl.server.Broadcast(evt)
}
