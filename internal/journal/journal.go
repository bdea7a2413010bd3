package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/offmirror/internal/model"
)

// FileName is the database file created inside the journal directory.
const FileName = "offmirror.db"

// Journal is the SQLite run journal. It is safe for concurrent use.
type Journal struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the mirror command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open opens or creates the journal in dir.
func Open(dir string, opts Options) (*Journal, error) {
	dbPath := filepath.Join(dir, FileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check journal path: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, dbPath: dbPath}

	// history may read while a mirror run is writing.
	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := j.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.dbPath
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		origin TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		queued INTEGER DEFAULT 0,
		fetched INTEGER DEFAULT 0,
		saved INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		mapped_path TEXT NOT NULL,
		saved_path TEXT,
		depth INTEGER NOT NULL,
		external_depth INTEGER NOT NULL,
		kind TEXT,
		status_code INTEGER,
		bytes INTEGER DEFAULT 0,
		sha256 TEXT,
		outcome TEXT NOT NULL,
		error TEXT,
		timestamp TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_outcome ON pages(run_id, outcome);
	`

	_, err := j.db.ExecContext(context.Background(), schema)
	return err
}

// StartRun inserts the run row. Only ID, Origin, OutputDir and StartedAt
// are read from s.
func (j *Journal) StartRun(ctx context.Context, s model.RunSummary) error {
	query := `
	INSERT INTO runs (id, origin, output_dir, started_at)
	VALUES (?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query,
		s.ID,
		s.Origin,
		s.OutputDir,
		formatTimestamp(s.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters, finish time and error of a run.
func (j *Journal) FinishRun(ctx context.Context, s model.RunSummary) error {
	query := `
	UPDATE runs SET
		finished_at = ?,
		queued = ?,
		fetched = ?,
		saved = ?,
		failed = ?,
		skipped = ?,
		error = ?
	WHERE id = ?
	`

	result, err := j.db.ExecContext(ctx, query,
		formatTimestamp(s.FinishedAt),
		s.Queued,
		s.Fetched,
		s.Saved,
		s.Failed,
		s.Skipped,
		s.Error,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, s.ID)
	}
	return nil
}

// RecordPage inserts or replaces the page row for (rec.RunID, rec.URL).
func (j *Journal) RecordPage(ctx context.Context, rec model.PageRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	query := `
	INSERT INTO pages (run_id, url, mapped_path, saved_path, depth, external_depth,
		kind, status_code, bytes, sha256, outcome, error, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		mapped_path = excluded.mapped_path,
		saved_path = excluded.saved_path,
		depth = excluded.depth,
		external_depth = excluded.external_depth,
		kind = excluded.kind,
		status_code = excluded.status_code,
		bytes = excluded.bytes,
		sha256 = excluded.sha256,
		outcome = excluded.outcome,
		error = excluded.error,
		timestamp = excluded.timestamp
	`

	_, err := j.db.ExecContext(ctx, query,
		rec.RunID,
		rec.URL,
		rec.MappedPath,
		rec.SavedPath,
		rec.Depth,
		rec.ExternalDepth,
		rec.Kind,
		rec.StatusCode,
		rec.Bytes,
		rec.SHA256,
		string(rec.Outcome),
		rec.Error,
		formatTimestamp(rec.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to record page %s: %w", rec.URL, err)
	}
	return nil
}

const runColumns = `id, origin, output_dir, started_at, finished_at,
	queued, fetched, saved, failed, skipped, error`

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose ID equals id or, failing that, the single
// run whose ID starts with id.
func (j *Journal) GetRun(ctx context.Context, id string) (*model.RunSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}

	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var matches []model.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}
}

// PageFilter narrows ListPages.
type PageFilter struct {
	// Outcome keeps only pages with this outcome. Empty keeps all.
	Outcome model.Outcome
}

// ListPages returns the page rows of a run in processing order.
func (j *Journal) ListPages(ctx context.Context, runID string, filter PageFilter) ([]model.PageRecord, error) {
	query := `
	SELECT run_id, url, mapped_path, saved_path, depth, external_depth,
		kind, status_code, bytes, sha256, outcome, error, timestamp
	FROM pages
	WHERE run_id = ?
	`
	args := []any{runID}
	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, string(filter.Outcome))
	}
	query += " ORDER BY id"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []model.PageRecord
	for rows.Next() {
		var (
			rec                  model.PageRecord
			savedPath, kind, msg sql.NullString
			digest               sql.NullString
			statusCode           sql.NullInt64
			outcome, timestamp   string
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.URL,
			&rec.MappedPath,
			&savedPath,
			&rec.Depth,
			&rec.ExternalDepth,
			&kind,
			&statusCode,
			&rec.Bytes,
			&digest,
			&outcome,
			&msg,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		rec.SavedPath = savedPath.String
		rec.Kind = kind.String
		rec.SHA256 = digest.String
		rec.StatusCode = int(statusCode.Int64)
		rec.Outcome = model.Outcome(outcome)
		rec.Error = msg.String
		rec.Timestamp = parseTimestamp(timestamp)
		pages = append(pages, rec)
	}
	return pages, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.RunSummary, error) {
	var (
		run        model.RunSummary
		startedAt  string
		finishedAt sql.NullString
		runErr     sql.NullString
	)
	err := s.Scan(
		&run.ID,
		&run.Origin,
		&run.OutputDir,
		&startedAt,
		&finishedAt,
		&run.Queued,
		&run.Fetched,
		&run.Saved,
		&run.Failed,
		&run.Skipped,
		&runErr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid && finishedAt.String != "" {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	run.Error = runErr.String
	return run, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// timestampLayout is RFC 3339 with a fixed-width fraction, so text ordering
// in SQL matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp stores t in UTC. The zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
