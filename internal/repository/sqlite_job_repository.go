package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/toolkit/internal/domain"
)

const jobSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	source_url TEXT NOT NULL,
	format_selector TEXT NOT NULL,
	status TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL DEFAULT '',
	size_bytes INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// SQLiteJobRepository implements JobRepository on a SQLite file so the
// download history survives restarts.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository opens (creating if needed) the database at path.
// Jobs left unfinished by a previous process are marked failed.
func NewSQLiteJobRepository(ctx context.Context, path string) (*SQLiteJobRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; the history is low-volume.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, jobSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE status NOT IN (?, ?)`,
		domain.JobStatusFailed, "interrupted by restart", time.Now().UnixNano(),
		domain.JobStatusCompleted, domain.JobStatusFailed,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mark interrupted jobs: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

// Close closes the database.
func (r *SQLiteJobRepository) Close() error {
	return r.db.Close()
}

// Create stores a new job.
func (r *SQLiteJobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, source_url, format_selector, status, title, filename, size_bytes, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourceURL, job.FormatSelector, job.Status, job.Title, job.Filename,
		job.SizeBytes, job.Error, job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update modifies job state.
func (r *SQLiteJobRepository) Update(ctx context.Context, job *domain.Job) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, title = ?, filename = ?, size_bytes = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		job.Status, job.Title, job.Filename, job.SizeBytes, job.Error, job.UpdatedAt.UnixNano(), job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

const jobColumns = `id, source_url, format_selector, status, title, filename, size_bytes, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var created, updated int64
	if err := row.Scan(&job.ID, &job.SourceURL, &job.FormatSelector, &job.Status, &job.Title,
		&job.Filename, &job.SizeBytes, &job.Error, &created, &updated); err != nil {
		return nil, err
	}
	job.CreatedAt = time.Unix(0, created)
	job.UpdatedAt = time.Unix(0, updated)
	return &job, nil
}

// Get retrieves a job by ID.
func (r *SQLiteJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Recent returns up to limit jobs, newest first.
func (r *SQLiteJobRepository) Recent(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns job statistics.
func (r *SQLiteJobRepository) Stats(ctx context.Context) (*JobStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &JobStats{}
	for rows.Next() {
		var status domain.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.add(status, n)
	}
	return stats, rows.Err()
}
