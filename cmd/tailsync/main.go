package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modoterra/tailsync/internal/buildinfo"
	"github.com/modoterra/tailsync/pkg/align"
	"github.com/modoterra/tailsync/pkg/capture"
	"github.com/modoterra/tailsync/pkg/core"
	"github.com/modoterra/tailsync/pkg/manifest"
	"github.com/modoterra/tailsync/pkg/report"
)

const (
	defaultSocket      = "/tmp/tailsync.sock"
	defaultPrecisionMS = 1000
)

var socketPath string

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tailsync",
	Short: "Tail log files together and align them on a shared clock",
	Long: "tailsync follows several log files at once until interrupted, then writes a report with\n" +
		"one column per file and one row per precision step, each cell holding the newest line\n" +
		"that file had produced at that instant.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runCapture,
}

var (
	logFiles    []string
	outputFile  string
	precisionMS int
	verbosity   int
	configPath  string
	formatName  string
	includeTime bool
	live        bool
	metricsAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocket, "control socket path")

	f := rootCmd.Flags()
	f.StringSliceVarP(&logFiles, "log-files", "l", nil, "comma separated log files to tail")
	f.StringVarP(&outputFile, "output-file", "o", "", "report destination (- for stdout)")
	f.IntVarP(&precisionMS, "precision", "p", defaultPrecisionMS, "sampling step in milliseconds")
	f.CountVarP(&verbosity, "verbose", "v", "log captured lines (-vv for debug logs)")
	f.StringVarP(&configPath, "config", "c", "", "capture manifest (yaml or toml)")
	f.StringVarP(&formatName, "format", "f", "", "report format: csv, json or sqlite (default from output extension)")
	f.BoolVar(&includeTime, "include-time", false, "prefix each csv row with its instant")
	f.BoolVar(&live, "live", false, "show a live view; press q to stop and write the report")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(configCmd)
}

// --- Root: capture ---

func runCapture(cmd *cobra.Command, _ []string) error {
	m, err := resolveManifest(cmd)
	if err != nil {
		return err
	}

	opts := capture.Options{
		Sources:     m.Sources,
		Output:      m.Output,
		Precision:   time.Duration(m.PrecisionMS) * time.Millisecond,
		Verbose:     m.Verbose,
		IncludeTime: m.IncludeTime,
		Live:        live,
		SocketPath:  m.Socket,
		MetricsAddr: m.MetricsAddr,
	}
	if m.Format != "" {
		if opts.Format, err = report.ParseFormat(m.Format); err != nil {
			return err
		}
	}

	logger := newLogger(cmd.ErrOrStderr(), verbosity, live)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := capture.New(opts, logger)
	logger.Info("starting tailsync", "version", buildinfo.Version, "run_id", c.RunID())
	_, err = c.Run(ctx)
	return err
}

// resolveManifest merges the manifest given with --config, if any, with the
// command line. Flags that were set explicitly win.
func resolveManifest(cmd *cobra.Command) (*manifest.Manifest, error) {
	m := &manifest.Manifest{Version: 1}
	if configPath != "" {
		loaded, err := manifest.Load(configPath)
		if err != nil {
			return nil, err
		}
		m = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-files") {
		m.Sources = logFiles
	}
	if flags.Changed("output-file") {
		m.Output = outputFile
	}
	if flags.Changed("precision") || m.PrecisionMS == 0 {
		m.PrecisionMS = precisionMS
	}
	if flags.Changed("format") {
		m.Format = formatName
	}
	if flags.Changed("include-time") {
		m.IncludeTime = includeTime
	}
	if flags.Changed("socket") {
		m.Socket = socketPath
	}
	if flags.Changed("metrics-addr") {
		m.MetricsAddr = metricsAddr
	}
	if verbosity > 0 {
		m.Verbose = true
	}
	if m.Output == "" {
		m.Output = report.Stdout
	}

	if int64(m.PrecisionMS) > manifest.MaxPrecisionMS {
		return nil, fmt.Errorf("%w: %dms overflows a duration", core.ErrInvalidPrecision, m.PrecisionMS)
	}
	if err := align.ValidatePrecision(time.Duration(m.PrecisionMS) * time.Millisecond); err != nil {
		return nil, err
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("no log files given (use --log-files or a manifest)")
	}
	if errs := manifest.Validate(m); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  %s", joinErrors(errs))
	}
	return m, nil
}

func newLogger(w io.Writer, verbosity int, live bool) *slog.Logger {
	level := slog.LevelInfo
	if verbosity > 1 {
		level = slog.LevelDebug
	}
	// The live view owns the terminal.
	if live {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n  ")
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tailsync %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}
