// Package store keeps converted runs in a SQLite database so earlier
// conversions can be listed, shown again and pruned.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akr81/CounterExample2Sequence/internal/digest"
	"github.com/akr81/CounterExample2Sequence/internal/table"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

//go:embed schema.sql
var schema string

// Run is one stored conversion
type Run struct {
	ID        string
	CreatedAt time.Time
	Source    string // Trace file path, or "sample"
	Dialect   string
	Digest    string
	Table     table.Table
}

// RunSummary is a lightweight view for listing runs
type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Source    string    `json:"source"`
	Dialect   string    `json:"dialect"`
	Digest    string    `json:"digest"`
	Snapshots int       `json:"snapshots"`
}

// Store manages run persistence
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores a converted table under a new run id
func (s *Store) Save(ctx context.Context, source, dialect string, t table.Table) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
		Source:    source,
		Dialect:   dialect,
		Digest:    digest.Compute(t),
		Table:     t,
	}

	columns, err := json.Marshal(t.Columns)
	if err != nil {
		return Run{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, source, dialect, digest, columns, snapshot_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, toMillis(run.CreatedAt), run.Source, run.Dialect, run.Digest, string(columns), len(t.Rows),
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	for idx, row := range t.Rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (run_id, idx, row) VALUES (?, ?, ?)`,
			run.ID, idx, string(table.MarshalRow(t.Columns, row)),
		); err != nil {
			return Run{}, fmt.Errorf("insert snapshot %d: %w", idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit save: %w", err)
	}
	return run, nil
}

// Load retrieves a run with all its snapshot rows
func (s *Store) Load(ctx context.Context, id string) (Run, error) {
	var (
		run       Run
		createdAt int64
		columns   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, dialect, digest, columns FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &createdAt, &run.Source, &run.Dialect, &run.Digest, &columns)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("load run: %w", err)
	}
	run.CreatedAt = fromMillis(createdAt)

	cols, err := decodeColumns(columns)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", id, err)
	}
	run.Table.Columns = cols

	rows, err := s.db.QueryContext(ctx, `SELECT row FROM snapshots WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return Run{}, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Run{}, err
		}
		row, err := decodeRow(cols, raw)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: %w", id, err)
		}
		run.Table.Rows = append(run.Table.Rows, row)
	}
	return run, rows.Err()
}

// List returns all runs, newest first
func (s *Store) List(ctx context.Context) ([]RunSummary, error) {
	return s.query(ctx,
		`SELECT id, created_at, source, dialect, digest, snapshot_count FROM runs ORDER BY created_at DESC, id`)
}

// FindByDigest returns the runs whose table hashes to d, newest first
func (s *Store) FindByDigest(ctx context.Context, d string) ([]RunSummary, error) {
	return s.query(ctx,
		`SELECT id, created_at, source, dialect, digest, snapshot_count FROM runs WHERE digest = ? ORDER BY created_at DESC, id`, d)
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}
	for rows.Next() {
		var (
			sum       RunSummary
			createdAt int64
		)
		if err := rows.Scan(&sum.ID, &createdAt, &sum.Source, &sum.Dialect, &sum.Digest, &sum.Snapshots); err != nil {
			return nil, err
		}
		sum.CreatedAt = fromMillis(createdAt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete removes a run and its snapshots
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

// Prune removes runs older than the given duration.
// Returns the number of runs deleted.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := toMillis(s.now().Add(-olderThan))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, cutoff,
	); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}
