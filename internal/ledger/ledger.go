// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists a local record of submitted jobs so that
// past extractions can be listed and reopened without the job link.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bulknews/pkg/types"
)

const dbFile = "jobs.db"

// ErrNotRecorded reports that a job id has no ledger entry.
var ErrNotRecorded = errors.New("job not recorded in ledger")

// Entry is one recorded job.
type Entry struct {
	ID          string
	ShortID     string
	Kind        types.JobKind
	State       types.JobState
	Where       string
	SubmittedAt time.Time
	CompletedAt time.Time
	FileCount   int
}

// Ledger manages the local jobs SQLite database.
type Ledger struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the ledger database at dir/jobs.db, creating
// the schema if it does not exist.
func Open(cfg types.LedgerConfig) (*Ledger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	l := &Ledger{db: db, maxResults: maxResults}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			short_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			state TEXT NOT NULL,
			where_clause TEXT,
			submitted_at TEXT NOT NULL,
			completed_at TEXT,
			file_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_kind ON jobs(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_submitted_at ON jobs(submitted_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record upserts a job. Recording the same id again refreshes its
// state, completion time, and file count.
func (l *Ledger) Record(ctx context.Context, job types.Job, whereClause string, fileCount int) error {
	completedAt := ""
	if !job.CompletedAt.IsZero() {
		completedAt = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	submittedAt := job.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO jobs (id, short_id, kind, state, where_clause, submitted_at, completed_at, file_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state=excluded.state, completed_at=excluded.completed_at,
			file_count=excluded.file_count`,
		job.ID, job.ShortID, string(job.Kind), string(job.State), whereClause,
		submittedAt.UTC().Format(time.RFC3339), completedAt, fileCount,
	)
	if err != nil {
		return fmt.Errorf("recording job %s: %w", job.ID, err)
	}
	return nil
}

// List returns the most recently submitted jobs, newest first. A kind
// narrows the listing; an empty kind lists all jobs.
func (l *Ledger) List(ctx context.Context, kind types.JobKind) ([]Entry, error) {
	query := `SELECT id, short_id, kind, state, where_clause, submitted_at, completed_at, file_count
		 FROM jobs`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY submitted_at DESC LIMIT ?`
	args = append(args, l.maxResults)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns the ledger entry for a job id or short id.
func (l *Ledger) Get(ctx context.Context, id string) (Entry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, short_id, kind, state, where_clause, submitted_at, completed_at, file_count
		 FROM jobs WHERE id = ? OR short_id = ?`, id, id)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotRecorded, id)
	}
	return entry, err
}

func scanEntry(scan func(...any) error) (Entry, error) {
	var entry Entry
	var kind, state, submittedAt, completedAt string
	if err := scan(&entry.ID, &entry.ShortID, &kind, &state, &entry.Where,
		&submittedAt, &completedAt, &entry.FileCount); err != nil {
		return Entry{}, err
	}
	entry.Kind = types.JobKind(kind)
	entry.State = types.JobState(state)
	if t, err := time.Parse(time.RFC3339, submittedAt); err == nil {
		entry.SubmittedAt = t
	}
	if completedAt != "" {
		if t, err := time.Parse(time.RFC3339, completedAt); err == nil {
			entry.CompletedAt = t
		}
	}
	return entry, nil
}
