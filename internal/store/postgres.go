package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1026465274/coze-workflow-app/internal/domain"
)

// PostgresJobStore stores each job as one jsonb value keyed by id:
//
//	CREATE TABLE IF NOT EXISTS jobs (
//	    id     text PRIMARY KEY,
//	    record jsonb NOT NULL
//	);
//
// The single-value layout keeps the whole-record overwrite contract identical
// across backends.
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJobStore(ctx context.Context, databaseURL string) (*PostgresJobStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}

	store := &PostgresJobStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresJobStore) Close() {
	s.pool.Close()
}

func (s *PostgresJobStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id     text PRIMARY KEY,
			record jsonb NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure jobs table: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Set(ctx context.Context, job *domain.Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, record)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record
	`, jobKey(job.ID), encoded)
	if err != nil {
		return fmt.Errorf("write job record: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT record FROM jobs WHERE id = $1
	`, jobKey(jobID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read job record: %w", err)
	}

	job := &domain.Job{}
	if err := json.Unmarshal(raw, job); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	return job, nil
}
