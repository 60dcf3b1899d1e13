// Package capture runs one tail-and-align session: it follows the configured
// files until cancelled, then aligns what was captured and writes the report.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/modoterra/tailsync/pkg/align"
	"github.com/modoterra/tailsync/pkg/core"
	"github.com/modoterra/tailsync/pkg/ingest"
	"github.com/modoterra/tailsync/pkg/metrics"
	"github.com/modoterra/tailsync/pkg/registry"
	"github.com/modoterra/tailsync/pkg/report"
	"github.com/modoterra/tailsync/pkg/stats"
	"github.com/modoterra/tailsync/pkg/tail"
	"github.com/modoterra/tailsync/pkg/transport/uds"
	"github.com/modoterra/tailsync/pkg/tui"
)

// DefaultStatsInterval is how often stats deltas are broadcast.
const DefaultStatsInterval = time.Second

// Options describe a capture session.
type Options struct {
	Sources     []string
	Output      string
	Format      report.Format
	Precision   time.Duration
	Verbose     bool
	IncludeTime bool

	// Live shows the terminal view; quitting it ends capture.
	Live bool
	// SocketPath enables the control socket when set.
	SocketPath string
	// MetricsAddr enables the Prometheus endpoint when set.
	MetricsAddr string

	StatsInterval time.Duration
}

// Result is what a finished session produced.
type Result struct {
	RunID  string
	Report *align.Report
	Stats  []stats.SourceStats
	Output string
	Format report.Format
}

// Capture is a single session. It is not reusable.
type Capture struct {
	opts     Options
	runID    string
	tailer   core.Tailer
	registry *registry.Registry
	tracker  *stats.Tracker
	now      func() time.Time
	started  time.Time
	live     func(ctx context.Context, snapshot tui.SnapshotFunc, opts tui.Options) error
	logger   *slog.Logger
}

// Option configures a Capture.
type Option func(*Capture)

// WithTailer replaces the filesystem multiplexer.
func WithTailer(t core.Tailer) Option {
	return func(c *Capture) { c.tailer = t }
}

// WithClock replaces time.Now as the capture clock.
func WithClock(now func() time.Time) Option {
	return func(c *Capture) { c.now = now }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(c *Capture) { c.runID = id }
}

// New creates a capture session.
func New(opts Options, logger *slog.Logger, options ...Option) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	if opts.Output == "" {
		opts.Output = report.Stdout
	}
	if opts.Format == "" {
		opts.Format = report.FormatFromPath(opts.Output)
	}
	c := &Capture{
		opts:     opts,
		runID:    uuid.NewString(),
		registry: registry.New(),
		tracker:  stats.NewTracker(opts.Sources),
		now:      time.Now,
		live:     tui.Run,
		logger:   logger,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// RunID identifies the session in logs, socket replies and reports.
func (c *Capture) RunID() string { return c.runID }

// Run captures until ctx is cancelled or the line stream ends, then writes
// the report. Nothing is written when alignment fails.
func (c *Capture) Run(ctx context.Context) (*Result, error) {
	if err := align.ValidatePrecision(c.opts.Precision); err != nil {
		return nil, err
	}
	if len(c.opts.Sources) == 0 {
		return nil, core.ErrNoSources
	}

	if c.tailer == nil {
		mux, err := tail.New(c.logger)
		if err != nil {
			return nil, err
		}
		defer mux.Close()
		c.tailer = mux
	}

	for _, src := range c.opts.Sources {
		if err := c.registry.Register(src); err != nil {
			return nil, err
		}
		if err := c.tailer.Add(src); err != nil {
			return nil, fmt.Errorf("add source: %w", err)
		}
	}

	if err := c.listen(ctx); err != nil {
		return nil, err
	}

	snap := c.tracker.Snapshot()
	lines, bytes := stats.Totals(snap)
	c.logger.Info("capture summary",
		"run_id", c.runID,
		"lines", humanize.Comma(int64(lines)),
		"bytes", humanize.Bytes(bytes),
		"took", time.Since(c.started).Truncate(time.Millisecond),
	)

	c.logger.Info("generating report", "precision_ms", c.opts.Precision.Milliseconds())
	start := time.Now()
	rep, err := align.Generate(c.registry.Detach(), c.opts.Precision)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	metrics.ObserveReport(len(rep.Rows), time.Since(start))

	// Cancellation is how capture normally ends; the export must still run.
	ropts := report.Options{IncludeTime: c.opts.IncludeTime, RunID: c.runID}
	if err := report.Export(context.WithoutCancel(ctx), c.opts.Output, c.opts.Format, rep, ropts); err != nil {
		return nil, fmt.Errorf("export report: %w", err)
	}
	c.logger.Info("report exported",
		"output", c.opts.Output,
		"format", c.opts.Format,
		"rows", humanize.Comma(int64(len(rep.Rows))),
		"sources", len(rep.Headers),
	)

	return &Result{
		RunID:  c.runID,
		Report: rep,
		Stats:  snap,
		Output: c.opts.Output,
		Format: c.opts.Format,
	}, nil
}

// listen runs the capture phase. The ingestion loop ending, for whatever
// reason, stops every side task.
func (c *Capture) listen(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.started = time.Now()
	g, gctx := errgroup.WithContext(ctx)

	loop := ingest.NewLoop(c.registry, c.tailer.Lines(), c.logger,
		ingest.WithClock(c.now),
		ingest.WithVerbose(c.opts.Verbose),
		ingest.WithObserver(c.tracker),
		ingest.WithObserver(metrics.Recorder{}),
	)

	g.Go(func() error {
		if err := c.tailer.Run(gctx); err != nil {
			return fmt.Errorf("tail: %w", err)
		}
		return nil
	})
	loopDone := make(chan struct{})
	g.Go(func() error {
		defer close(loopDone)
		defer cancel()
		return loop.Run(gctx)
	})

	var srv *uds.Server
	if c.opts.SocketPath != "" {
		srv = uds.NewServer(c.opts.SocketPath, c.logger)
		c.registerHandlers(srv)
		g.Go(func() error {
			defer srv.Shutdown()
			if err := srv.Start(gctx); err != nil {
				return err
			}
			<-loopDone
			srv.Finish(uds.StoppedEvent{RunID: c.runID, Sources: c.tracker.Snapshot()})
			return nil
		})
	}

	poll := NewPollLoop(c.tracker, srv, c.opts.StatsInterval, c.logger)
	g.Go(func() error {
		poll.Run(gctx)
		return nil
	})

	if c.opts.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, c.opts.MetricsAddr, c.logger)
		})
	}

	if c.opts.Live {
		g.Go(func() error {
			defer cancel()
			return c.live(gctx, c.snapshot, tui.Options{
				Title:   "tailsync " + shortID(c.runID),
				Started: c.started,
			})
		})
	}

	notify(c.logger, sdReady)
	notify(c.logger, sdStatus(fmt.Sprintf("tailing %d files", len(c.opts.Sources))))

	err := g.Wait()
	notify(c.logger, sdStopping)
	return err
}

func (c *Capture) snapshot(context.Context) ([]stats.SourceStats, error) {
	return c.tracker.Snapshot(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
