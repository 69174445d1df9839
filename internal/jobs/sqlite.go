package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// Compile-time interface compliance check.
var _ Store = (*SQLiteStore)(nil)

// schema creates the jobs table. UpdatedAt ordering is not indexed; the
// table holds one row per submitted file, not per chunk.
const schema = `
create table if not exists jobs (
	id           text primary key,
	source_path  text not null,
	source_hash  text not null,
	status       text not null,
	chunks_done  integer not null default 0,
	chunks_total integer not null default 0,
	transcript   text not null default '',
	error        text not null default '',
	created_at   timestamp not null,
	updated_at   timestamp not null
);
create index if not exists jobs_source_hash on jobs (source_hash);
`

// SQLiteStore persists jobs in a sqlite database so a restarted service
// still knows about finished and failed runs.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) a sqlite job store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, job Job) error {
	_, err := s.db.ExecContext(ctx, `
		insert into jobs (id, source_path, source_hash, status, chunks_done, chunks_total, transcript, error, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (id) do update set
			status = excluded.status,
			chunks_done = excluded.chunks_done,
			chunks_total = excluded.chunks_total,
			transcript = excluded.transcript,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		job.ID, job.SourcePath, job.SourceHash, job.Status,
		job.ChunksDone, job.ChunksTotal, job.Transcript, job.Error,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Job, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select id, source_path, source_hash, status, chunks_done, chunks_total, transcript, error, created_at, updated_at
		from jobs where id = ?`, id))
}

func (s *SQLiteStore) GetByHash(ctx context.Context, hash string) (Job, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select id, source_path, source_hash, status, chunks_done, chunks_total, transcript, error, created_at, updated_at
		from jobs where source_hash = ? order by created_at desc limit 1`, hash))
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `delete from jobs where id = ?`, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, source_path, source_hash, status, chunks_done, chunks_total, transcript, error, created_at, updated_at
		from jobs order by created_at desc`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.SourcePath, &job.SourceHash, &job.Status,
			&job.ChunksDone, &job.ChunksTotal, &job.Transcript, &job.Error,
			&job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// scanOne scans a single job row, mapping sql.ErrNoRows to ErrNotFound.
func (s *SQLiteStore) scanOne(row *sql.Row) (Job, error) {
	var job Job
	err := row.Scan(&job.ID, &job.SourcePath, &job.SourceHash, &job.Status,
		&job.ChunksDone, &job.ChunksTotal, &job.Transcript, &job.Error,
		&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}
