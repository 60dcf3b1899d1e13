package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/modoterra/tailsync/pkg/stats"
	"github.com/modoterra/tailsync/pkg/transport/uds"
	"github.com/modoterra/tailsync/pkg/tui"
)

func dialCapture() (*uds.Client, error) {
	client, err := uds.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to capture at %s: %w", socketPath, err)
	}
	return client, nil
}

func fetchStats(ctx context.Context, client *uds.Client) (uds.StatsResponse, error) {
	var st uds.StatsResponse
	resp, err := client.Request(ctx, uds.MethodStats, nil)
	if err != nil {
		return st, err
	}
	err = resp.UnmarshalData(&st)
	return st, err
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if a capture is running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialCapture()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodPing, nil)
		if err != nil {
			return err
		}

		var pong uds.PingResponse
		if err := resp.UnmarshalData(&pong); err != nil {
			return err
		}
		if pong.Pong {
			fmt.Fprintf(cmd.OutOrStdout(), "pong (run %s)\n", pong.RunID)
		}
		return nil
	},
}

// --- Status ---

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-source capture counters of a running capture",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialCapture()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()

		st, err := fetchStats(ctx, client)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		lines, bytes := stats.Totals(st.Sources)
		fmt.Fprintf(out, "run %s, started %s, %s lines (%s) -> %s\n",
			st.RunID, humanize.Time(st.StartedAt), humanize.Comma(int64(lines)), humanize.Bytes(bytes), st.Output)
		fmt.Fprintf(out, "%-40s %10s %10s %s\n", "SOURCE", "LINES", "BYTES", "LAST CAPTURE")
		for _, s := range st.Sources {
			last := "waiting"
			if s.HasData() {
				last = humanize.Time(s.LastAt)
			}
			fmt.Fprintf(out, "%-40s %10s %10s %s\n", s.Source, humanize.Comma(int64(s.Lines)), humanize.Bytes(s.Bytes), last)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

// --- Follow ---

var followPlain bool

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Watch a running capture",
	Long:  "Opens the live view of a capture started with --socket. With --plain, prints each stats update instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialCapture()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if followPlain {
			return followDeltas(ctx, cmd, client)
		}

		reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		st, err := fetchStats(reqCtx, client)
		cancel()
		if err != nil {
			return err
		}

		snapshot := func(ctx context.Context) ([]stats.SourceStats, error) {
			st, err := fetchStats(ctx, client)
			return st.Sources, err
		}
		return tui.Run(ctx, snapshot, tui.Options{
			Title:   "tailsync follow " + st.RunID,
			Started: st.StartedAt,
		})
	},
}

func init() {
	followCmd.Flags().BoolVar(&followPlain, "plain", false, "print stats updates as text")
}

func followDeltas(ctx context.Context, cmd *cobra.Command, client *uds.Client) error {
	out := cmd.OutOrStdout()
	client.OnEvent(func(msg uds.Message) {
		switch msg.Method {
		case uds.EventStatsDelta:
			var d stats.Delta
			if err := msg.UnmarshalData(&d); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "bad event: %v\n", err)
				return
			}
			for _, s := range d.Updated {
				fmt.Fprintf(out, "%s %s: %s lines, last %q\n",
					s.LastAt.Format(time.TimeOnly), s.Source, humanize.Comma(int64(s.Lines)), s.LastLine)
			}
		case uds.EventCaptureStopped:
			var ev uds.StoppedEvent
			if err := msg.UnmarshalData(&ev); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "bad event: %v\n", err)
				return
			}
			lines, bytes := stats.Totals(ev.Sources)
			fmt.Fprintf(out, "capture %s stopped: %s lines, %s from %d sources\n",
				ev.RunID, humanize.Comma(int64(lines)), humanize.Bytes(bytes), len(ev.Sources))
		}
	})

	select {
	case <-ctx.Done():
		return nil
	case <-client.Done():
		fmt.Fprintln(out, "capture finished")
		return nil
	}
}
