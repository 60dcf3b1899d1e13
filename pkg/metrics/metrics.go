// Package metrics exposes capture and alignment instrumentation to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modoterra/tailsync/pkg/core"
)

var (
	linesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tailsync",
		Name:      "lines_captured_total",
		Help:      "Lines captured per source.",
	}, []string{"source"})

	bytesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tailsync",
		Name:      "bytes_captured_total",
		Help:      "Bytes of line text captured per source, excluding line terminators.",
	}, []string{"source"})

	reportRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tailsync",
		Name:      "report_rows",
		Help:      "Rows in the most recently generated report.",
	})

	alignmentSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tailsync",
		Name:      "alignment_seconds",
		Help:      "Time spent aligning captured lines into a report.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)

// Recorder counts captured lines. It satisfies ingest.Observer.
type Recorder struct{}

// Observe increments the per-source counters.
func (Recorder) Observe(line core.LogLine) {
	linesCaptured.WithLabelValues(line.Source).Inc()
	bytesCaptured.WithLabelValues(line.Source).Add(float64(len(line.Line)))
}

// ObserveReport records the outcome of an alignment pass.
func ObserveReport(rows int, took time.Duration) {
	reportRows.Set(float64(rows))
	alignmentSeconds.Observe(took.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", "err", err)
		}
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
