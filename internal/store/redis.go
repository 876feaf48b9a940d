package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/1026465274/coze-workflow-app/internal/domain"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisJobStore keeps each job as one JSON value under job:<id>.
type RedisJobStore struct {
	client *redis.Client
}

func NewRedisJobStore(ctx context.Context, cfg RedisConfig) (*RedisJobStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisJobStore{client: client}, nil
}

func (s *RedisJobStore) Close() error {
	return s.client.Close()
}

func (s *RedisJobStore) Set(ctx context.Context, job *domain.Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("write job record: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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
