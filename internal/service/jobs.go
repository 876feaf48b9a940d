package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/1026465274/coze-workflow-app/internal/domain"
	"github.com/1026465274/coze-workflow-app/internal/queue"
	"github.com/1026465274/coze-workflow-app/internal/store"
)

var ErrEmptyInput = errors.New("input text is required")

// JobService owns the job lifecycle: validated creation plus the forward-only
// status transitions written by the worker. Transitions overwrite the whole
// record; concurrent writers are last-write-wins.
type JobService struct {
	store    store.JobStore
	producer queue.Producer
	logger   *log.Logger
}

func NewJobService(jobStore store.JobStore, producer queue.Producer, logger *log.Logger) *JobService {
	return &JobService{
		store:    jobStore,
		producer: producer,
		logger:   logger,
	}
}

// Create validates the input, persists the pending record and schedules the
// task. It returns before any external work starts; workflow calls can take
// close to a minute.
func (s *JobService) Create(ctx context.Context, input string) (*domain.Job, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:          domain.NewJobID(),
		Status:      domain.JobStatusPending,
		Progress:    0,
		Message:     "task created, waiting for processing",
		Input:       trimmed,
		CreatedTime: now,
	}

	if err := s.store.Set(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	message := domain.TaskMessage{
		JobID:       job.ID,
		Input:       trimmed,
		Attempt:     0,
		RequestedAt: now,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		s.Fail(ctx, job, fmt.Sprintf("failed to schedule task: %v", err))
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	return job, nil
}

func (s *JobService) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.store.Get(ctx, jobID)
}

// Advance moves a job to processing with updated progress. Best-effort: a
// failed status write is logged and swallowed because a stale status is
// preferable to an abandoned workflow.
func (s *JobService) Advance(ctx context.Context, job *domain.Job, progress int, message string) {
	if job.Status.Terminal() {
		return
	}
	job.Status = domain.JobStatusProcessing
	job.Progress = progress
	job.Message = message

	if err := s.store.Set(ctx, job); err != nil && s.logger != nil {
		s.logger.Printf("status write failed job_id=%s progress=%d err=%v", job.ID, progress, err)
	}
}

// Complete records the terminal success state.
func (s *JobService) Complete(ctx context.Context, job *domain.Job, result *domain.Result) {
	if job.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Message = "task completed"
	job.Result = result
	job.Error = ""
	job.CompletedTime = &now

	if err := s.store.Set(ctx, job); err != nil && s.logger != nil {
		s.logger.Printf("terminal write failed job_id=%s status=completed err=%v", job.ID, err)
	}
}

// Fail records the terminal failure state. Best-effort: there is no durable
// fallback left at this point, so a failed write is logged only.
func (s *JobService) Fail(ctx context.Context, job *domain.Job, errorMessage string) {
	if job.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.Progress = 0
	job.Message = "processing failed: " + errorMessage
	job.Error = errorMessage
	job.FailedTime = &now

	if err := s.store.Set(ctx, job); err != nil && s.logger != nil {
		s.logger.Printf("terminal write failed job_id=%s status=failed err=%v", job.ID, err)
	}
}
