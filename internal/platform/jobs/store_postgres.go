package jobs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps job records in the jobs table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: pool}
}

func (s *PostgresStore) CreateJob(ctx context.Context, job Job) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO jobs (id, kind, state, details_json, fail_reason, created_at, started_at, finished_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, job.ID, job.Kind, job.State, nullIfEmptyJSON(job.Details), job.FailReason, job.CreatedAt, job.StartedAt, job.FinishedAt)
	return err
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job Job) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE jobs
    SET state = $1, details_json = $2, fail_reason = $3, started_at = $4, finished_at = $5
    WHERE id = $6
  `, job.State, nullIfEmptyJSON(job.Details), job.FailReason, job.StartedAt, job.FinishedAt, job.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) JobByID(ctx context.Context, id string) (Job, error) {
	var job Job
	err := s.DB.QueryRow(ctx, `
    SELECT id, kind, state, COALESCE(details_json, '{}'), COALESCE(fail_reason,''), created_at, started_at, finished_at
    FROM jobs
    WHERE id = $1
  `, id).Scan(&job.ID, &job.Kind, &job.State, &job.Details, &job.FailReason, &job.CreatedAt, &job.StartedAt, &job.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return job, err
}

func (s *PostgresStore) ListJobs(ctx context.Context, kind string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id, kind, state, COALESCE(details_json, '{}'), COALESCE(fail_reason,''), created_at, started_at, finished_at
    FROM jobs
    WHERE ($1 = '' OR kind = $1)
    ORDER BY created_at DESC
    LIMIT $2
  `, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Kind, &job.State, &job.Details, &job.FailReason,
			&job.CreatedAt, &job.StartedAt, &job.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func nullIfEmptyJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
