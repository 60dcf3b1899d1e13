package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/modoterra/tailsync/pkg/stats"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

const (
	colLines = 10
	colBytes = 10
	colLast  = 12
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = selectedStyle
	return s
}

// columns splits the remaining width between the source path and the last
// captured line.
func columns(width int) []table.Column {
	rest := max(width-colLines-colBytes-colLast-10, 20)
	src := rest / 3
	return []table.Column{
		{Title: "Source", Width: src},
		{Title: "Lines", Width: colLines},
		{Title: "Bytes", Width: colBytes},
		{Title: "Last", Width: colLast},
		{Title: "Last line", Width: rest - src},
	}
}

func (a App) rows() []table.Row {
	now := a.opts.Now()
	rows := make([]table.Row, len(a.sources))
	for i, s := range a.sources {
		last := "waiting"
		if s.HasData() {
			last = ago(now.Sub(s.LastAt))
		}
		rows[i] = table.Row{
			s.Source,
			humanize.Comma(int64(s.Lines)),
			humanize.Bytes(s.Bytes),
			last,
			strings.ReplaceAll(s.LastLine, "\t", " "),
		}
	}
	return rows
}

func ago(d time.Duration) string {
	if d < time.Second {
		return "now"
	}
	return d.Truncate(time.Second).String() + " ago"
}

// View renders the TUI.
func (a App) View() string {
	var b strings.Builder

	lines, bytes := stats.Totals(a.sources)
	elapsed := a.opts.Now().Sub(a.opts.Started).Truncate(time.Second)
	header := fmt.Sprintf("%s  %s  %s lines  %s",
		titleStyle.Render(a.opts.Title),
		dimStyle.Render(elapsed.String()),
		humanize.Comma(int64(lines)),
		humanize.Bytes(bytes),
	)
	if a.paused {
		header += "  " + waitingStyle.Render("[paused]")
	}
	b.WriteString(header + "\n\n")

	b.WriteString(a.table.View() + "\n")

	switch idle := stats.Idle(a.sources); {
	case a.err != nil:
		b.WriteString(errorStyle.Render("error: "+a.err.Error()) + "\n")
	case len(idle) > 0:
		b.WriteString(waitingStyle.Render("waiting for: "+strings.Join(idle, ", ")) + "\n")
	default:
		b.WriteString(dimStyle.Render("all sources reporting") + "\n")
	}

	b.WriteString(a.help.View(a.keys))
	return b.String()
}
