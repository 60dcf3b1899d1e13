package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modoterra/tailsync/pkg/core"
	"github.com/modoterra/tailsync/pkg/registry"
)

// Observer is notified of every captured line, after it has been buffered.
type Observer interface {
	Observe(line core.LogLine)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(core.LogLine)

// Observe calls f(line).
func (f ObserverFunc) Observe(line core.LogLine) { f(line) }

// Loop stamps multiplexed lines and appends them to a registry. It is the
// only writer of the registry while it runs.
type Loop struct {
	registry  *registry.Registry
	lines     <-chan core.Event
	now       func() time.Time
	verbose   bool
	observers []Observer
	logger    *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces time.Now as the capture clock.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithVerbose logs every captured line.
func WithVerbose(verbose bool) Option {
	return func(l *Loop) { l.verbose = verbose }
}

// WithObserver adds an observer for captured lines.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// NewLoop creates an ingestion loop reading from lines.
func NewLoop(reg *registry.Registry, lines <-chan core.Event, logger *slog.Logger, opts ...Option) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		registry: reg,
		lines:    lines,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run consumes lines until ctx is cancelled or the line stream is closed.
// A line that has been received is always buffered before Run returns. An
// event for an unregistered source stops the loop with an error wrapping
// core.ErrUnknownSource.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("beginning listen", "sources", len(l.registry.Sources()))

	var captured int
	defer func() {
		l.logger.Info("finished listen", "lines", captured)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-l.lines:
			if !ok {
				return nil
			}
			if err := l.capture(evt); err != nil {
				return err
			}
			captured++
		}
	}
}

func (l *Loop) capture(evt core.Event) error {
	at := l.now()
	if err := l.registry.Append(evt.Source, evt.Line, at); err != nil {
		return fmt.Errorf("capture line: %w", err)
	}
	if l.verbose {
		l.logger.Info("line", "source", evt.Source, "line", evt.Line)
	}
	line := core.LogLine{Source: evt.Source, Line: evt.Line, CapturedAt: at}
	for _, o := range l.observers {
		o.Observe(line)
	}
	return nil
}
