// Package tui is the live capture view: one table row per source showing
// what has been captured so far.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/tailsync/pkg/stats"
)

// SnapshotFunc fetches the current per-source counters.
type SnapshotFunc func(ctx context.Context) ([]stats.SourceStats, error)

// Options configure the view.
type Options struct {
	Title    string
	Started  time.Time
	Interval time.Duration
	Now      func() time.Time
}

const defaultInterval = 500 * time.Millisecond

// App is the root Bubble Tea model.
type App struct {
	snapshot SnapshotFunc
	opts     Options

	sources []stats.SourceStats
	paused  bool
	err     error

	table table.Model
	help  help.Model
	keys  keyMap
	width int
}

type keyMap struct {
	Quit  key.Binding
	Pause key.Binding
	Up    key.Binding
	Down  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Pause, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeys() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "stop and write report"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause view"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

// New creates the live view model.
func New(snapshot SnapshotFunc, opts Options) App {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Started.IsZero() {
		opts.Started = opts.Now()
	}
	if opts.Title == "" {
		opts.Title = "tailsync"
	}

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return App{
		snapshot: snapshot,
		opts:     opts,
		table:    t,
		help:     help.New(),
		keys:     defaultKeys(),
	}
}

// Init fetches the first snapshot.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		fetchCmd(a.snapshot),
		tea.SetWindowTitle(a.opts.Title),
	)
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// snapshotMsg carries fresh counters.
type snapshotMsg struct {
	sources []stats.SourceStats
	err     error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(snapshot SnapshotFunc) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		sources, err := snapshot(ctx)
		return snapshotMsg{sources: sources, err: err}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.help.Width = msg.Width
		a.table.SetColumns(columns(msg.Width))
		a.table.SetWidth(msg.Width)
		a.table.SetHeight(max(msg.Height-6, 3))
		return a, nil

	case tickMsg:
		if a.paused {
			return a, tickCmd(a.opts.Interval)
		}
		return a, fetchCmd(a.snapshot)

	case snapshotMsg:
		a.err = msg.err
		if msg.err == nil {
			a.sources = msg.sources
			a.table.SetRows(a.rows())
		}
		return a, tickCmd(a.opts.Interval)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Pause):
			a.paused = !a.paused
			return a, nil
		}
		var cmd tea.Cmd
		a.table, cmd = a.table.Update(msg)
		return a, cmd
	}

	return a, nil
}

// Run shows the view until the user quits or ctx is cancelled.
func Run(ctx context.Context, snapshot SnapshotFunc, opts Options) error {
	p := tea.NewProgram(New(snapshot, opts), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("live view: %w", err)
	}
	return nil
}
