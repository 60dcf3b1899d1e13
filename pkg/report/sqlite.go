package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/modoterra/tailsync/pkg/align"

	_ "modernc.org/sqlite"
)

const schema = `
create table if not exists runs (
	id           text primary key,
	created_at   text not null,
	precision_ms integer not null,
	window_start text not null,
	window_end   text not null,
	row_count    integer not null
);
create table if not exists sources (
	run_id   text not null references runs(id),
	position integer not null,
	path     text not null,
	primary key (run_id, position)
);
create table if not exists cells (
	run_id      text not null references runs(id),
	row_index   integer not null,
	at          text not null,
	position    integer not null,
	line        text not null,
	captured_at text not null,
	primary key (run_id, row_index, position)
);`

// WriteSQLite appends the report to the SQLite database at path, creating
// the schema on first use. Each report is stored under its own run id, so one
// database can hold many captures.
func WriteSQLite(ctx context.Context, path string, r *align.Report, opts Options) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`insert into runs(id, created_at, precision_ms, window_start, window_end, row_count) values(?,?,?,?,?,?)`,
		runID, formatTime(time.Now()), r.Precision.Milliseconds(),
		formatTime(r.Window.Start), formatTime(r.Window.End), len(r.Rows),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, src := range r.Headers {
		if _, err := tx.ExecContext(ctx,
			`insert into sources(run_id, position, path) values(?,?,?)`, runID, i, src,
		); err != nil {
			return fmt.Errorf("insert source %s: %w", src, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`insert into cells(run_id, row_index, at, position, line, captured_at) values(?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare cells: %w", err)
	}
	defer stmt.Close()

	for i, row := range r.Rows {
		at := formatTime(row.At)
		for pos, cell := range row.Cells {
			if _, err := stmt.ExecContext(ctx, runID, i, at, pos, cell.Line, formatTime(cell.CapturedAt)); err != nil {
				return fmt.Errorf("insert cell %d/%d: %w", i, pos, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}
