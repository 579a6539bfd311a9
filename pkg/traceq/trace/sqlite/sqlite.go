// Package sqlite archives stack traces in a SQLite database so captured
// crashes can be reloaded and investigated later. The query engine itself
// never touches this package; it is host-side tooling.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/probelab/traceq/pkg/traceq/internalerr"
	"github.com/probelab/traceq/pkg/traceq/trace"
)

// Archive is a trace store backed by one SQLite file.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) an archive with WAL mode enabled.
func Open(ctx context.Context, path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Archive{db: db}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	scenario TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS frames (
	trace_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	frame_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	caller_id INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL,
	allocated INTEGER NOT NULL,
	status TEXT NOT NULL,
	PRIMARY KEY (trace_id, seq),
	FOREIGN KEY (trace_id) REFERENCES traces(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS frame_params (
	trace_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	int_value INTEGER,
	text_value TEXT,
	PRIMARY KEY (trace_id, seq, name),
	FOREIGN KEY (trace_id, seq) REFERENCES frames(trace_id, seq) ON DELETE CASCADE
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Save stores a named trace, replacing any previous trace with that name.
func (a *Archive) Save(ctx context.Context, name, scenario string, frames []trace.Frame) error {
	if name == "" {
		return fmt.Errorf("%w: trace name is empty", internalerr.ErrInvalidInput)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM traces WHERE name = ?`, name); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO traces (name, scenario) VALUES (?, ?)`, name, scenario)
	if err != nil {
		return err
	}
	traceID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for seq, f := range frames {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO frames (trace_id, seq, frame_id, name, caller_id, timestamp, allocated, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			traceID, seq, f.ID, f.Name, f.CallerID, f.Timestamp, f.Allocated, f.Status); err != nil {
			return err
		}
		for pname, pval := range f.Params {
			kind, intVal, textVal := encodeParam(pval)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO frame_params (trace_id, seq, name, kind, int_value, text_value)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				traceID, seq, pname, kind, intVal, textVal); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Load reads a named trace back in its original frame order.
func (a *Archive) Load(ctx context.Context, name string) ([]trace.Frame, error) {
	var traceID int64
	err := a.db.QueryRowContext(ctx,
		`SELECT id FROM traces WHERE name = ?`, name).Scan(&traceID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trace %q: %w", name, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT seq, frame_id, name, caller_id, timestamp, allocated, status
		 FROM frames WHERE trace_id = ? ORDER BY seq`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []trace.Frame
	var seqs []int64
	for rows.Next() {
		var seq int64
		var f trace.Frame
		if err := rows.Scan(&seq, &f.ID, &f.Name, &f.CallerID, &f.Timestamp, &f.Allocated, &f.Status); err != nil {
			return nil, err
		}
		f.Params = make(map[string]any)
		frames = append(frames, f)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, seq := range seqs {
		if err := a.loadParams(ctx, traceID, seq, frames[i].Params); err != nil {
			return nil, err
		}
	}
	return frames, nil
}

// Names lists the stored trace names in insertion order.
func (a *Archive) Names(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT name FROM traces ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *Archive) loadParams(ctx context.Context, traceID, seq int64, into map[string]any) error {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, kind, int_value, text_value
		 FROM frame_params WHERE trace_id = ? AND seq = ? ORDER BY name`, traceID, seq)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, kind string
			intVal     sql.NullInt64
			textVal    sql.NullString
		)
		if err := rows.Scan(&name, &kind, &intVal, &textVal); err != nil {
			return err
		}
		switch kind {
		case "int":
			into[name] = intVal.Int64
		case "text":
			into[name] = textVal.String
		default:
			into[name] = nil
		}
	}
	return rows.Err()
}

func encodeParam(v any) (kind string, intVal sql.NullInt64, textVal sql.NullString) {
	switch val := v.(type) {
	case nil:
		return "null", sql.NullInt64{}, sql.NullString{}
	case int:
		return "int", sql.NullInt64{Int64: int64(val), Valid: true}, sql.NullString{}
	case int64:
		return "int", sql.NullInt64{Int64: val, Valid: true}, sql.NullString{}
	case string:
		return "text", sql.NullInt64{}, sql.NullString{String: val, Valid: true}
	default:
		return "text", sql.NullInt64{}, sql.NullString{String: fmt.Sprint(val), Valid: true}
	}
}
