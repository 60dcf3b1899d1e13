package report

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/tailsync/pkg/align"
	"github.com/modoterra/tailsync/pkg/core"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func line(src, text string, ms int) core.LogLine {
	return core.LogLine{Source: src, Line: text, CapturedAt: base.Add(time.Duration(ms) * time.Millisecond)}
}

func sampleReport() *align.Report {
	return &align.Report{
		Headers: []string{"A", "B"},
		Rows: []align.Row{
			{At: base.Add(500 * time.Millisecond), Cells: []core.LogLine{line("A", "a1", 0), line("B", "b1", 500)}},
			{At: base.Add(1500 * time.Millisecond), Cells: []core.LogLine{line("A", "a2", 1500), line("B", "b1", 500)}},
		},
		Window:    align.Window{Start: base.Add(500 * time.Millisecond), End: base.Add(1500 * time.Millisecond)},
		Precision: time.Second,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport(), Options{}))
	assert.Equal(t, "A,B\na1,b1\na2,b1\n", buf.String())
}

func TestWriteCSVQuoting(t *testing.T) {
	r := &align.Report{
		Headers: []string{"/var/log/a,b.log", "B"},
		Rows: []align.Row{
			{At: base, Cells: []core.LogLine{line("A", `say "hi", then`, 0), line("B", "plain", 0)}},
		},
		Precision: time.Second,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r, Options{}))
	assert.Equal(t, "\"/var/log/a,b.log\",B\n\"say \"\"hi\"\", then\",plain\n", buf.String())
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	r := &align.Report{Headers: []string{"A", "B"}, Precision: time.Second}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r, Options{}))
	assert.Equal(t, "A,B\n", buf.String())
}

func TestWriteCSVIncludeTime(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport(), Options{IncludeTime: true}))
	assert.Equal(t,
		"time,A,B\n"+
			"2024-03-01T12:00:00.5Z,a1,b1\n"+
			"2024-03-01T12:00:01.5Z,a2,b1\n",
		buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport(), Options{RunID: "run-1"}))

	var doc jsonDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, int64(1000), doc.PrecisionMS)
	assert.Equal(t, "2024-03-01T12:00:00.5Z", doc.Window.Start)
	assert.Equal(t, []string{"A", "B"}, doc.Headers)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, []string{"a2", "b1"}, doc.Rows[1].Cells)
	assert.Equal(t, "2024-03-01T12:00:01.5Z", doc.Rows[1].At)
}

func TestWriteJSONEmptyRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &align.Report{Headers: []string{"A"}, Precision: time.Second}, Options{}))
	assert.Contains(t, buf.String(), `"rows": []`)
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.db")
	ctx := context.Background()

	require.NoError(t, WriteSQLite(ctx, path, sampleReport(), Options{RunID: "first"}))
	require.NoError(t, WriteSQLite(ctx, path, sampleReport(), Options{RunID: "second"}))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var runs int
	require.NoError(t, db.QueryRow(`select count(*) from runs`).Scan(&runs))
	assert.Equal(t, 2, runs)

	var cells int
	require.NoError(t, db.QueryRow(`select count(*) from cells where run_id = ?`, "first").Scan(&cells))
	assert.Equal(t, 4, cells)

	var text string
	require.NoError(t, db.QueryRow(
		`select line from cells where run_id = ? and row_index = 1 and position = 0`, "first",
	).Scan(&text))
	assert.Equal(t, "a2", text)

	var path0 string
	require.NoError(t, db.QueryRow(`select path from sources where run_id = ? and position = 1`, "second").Scan(&path0))
	assert.Equal(t, "B", path0)
}

func TestExportSQLiteNeedsFile(t *testing.T) {
	err := Export(context.Background(), Stdout, FormatSQLite, sampleReport(), Options{})
	assert.Error(t, err)
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, Export(context.Background(), path, FormatCSV, sampleReport(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A,B\na1,b1\na2,b1\n", string(data))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{" JSON ", FormatJSON, false},
		{"sqlite", FormatSQLite, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromPath("out.csv"))
	assert.Equal(t, FormatCSV, FormatFromPath("out"))
	assert.Equal(t, FormatJSON, FormatFromPath("out.JSON"))
	assert.Equal(t, FormatSQLite, FormatFromPath("runs.db"))
	assert.Equal(t, FormatSQLite, FormatFromPath("runs.sqlite3"))
}
