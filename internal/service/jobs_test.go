package service

import (
	"context"
	"errors"
	"io"
	"log"
	"regexp"
	"sync"
	"testing"

	"github.com/1026465274/coze-workflow-app/internal/domain"
	"github.com/1026465274/coze-workflow-app/internal/store"
)

type capturingProducer struct {
	mu       sync.Mutex
	messages []domain.TaskMessage
	err      error
}

func (p *capturingProducer) Enqueue(_ context.Context, message domain.TaskMessage) error {
	p.mu.Lock()
	p.messages = append(p.messages, message)
	p.mu.Unlock()
	return p.err
}

func newTestService(producer *capturingProducer) (*JobService, *store.MemoryJobStore) {
	jobStore := store.NewMemoryJobStore()
	logger := log.New(io.Discard, "", 0)
	return NewJobService(jobStore, producer, logger), jobStore
}

var jobIDPattern = regexp.MustCompile(`^job_\d+_[0-9a-z]{13}$`)

func TestCreateRejectsEmptyInput(t *testing.T) {
	producer := &capturingProducer{}
	jobs, _ := newTestService(producer)

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := jobs.Create(context.Background(), input)
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("input %q: expected ErrEmptyInput, got %v", input, err)
		}
	}
	if len(producer.messages) != 0 {
		t.Fatalf("no task should be scheduled for rejected input")
	}
}

func TestCreateRecordsPendingJobAndSchedulesTask(t *testing.T) {
	producer := &capturingProducer{}
	jobs, jobStore := newTestService(producer)

	job, err := jobs.Create(context.Background(), "  analyze this text  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !jobIDPattern.MatchString(job.ID) {
		t.Fatalf("unexpected job id format: %s", job.ID)
	}
	if job.Status != domain.JobStatusPending || job.Progress != 0 {
		t.Fatalf("expected pending job at progress 0, got %+v", job)
	}
	if job.Input != "analyze this text" {
		t.Fatalf("expected trimmed input, got %q", job.Input)
	}

	stored, err := jobStore.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.Status != domain.JobStatusPending {
		t.Fatalf("stored record not pending: %+v", stored)
	}

	if len(producer.messages) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(producer.messages))
	}
	message := producer.messages[0]
	if message.JobID != job.ID || message.Input != "analyze this text" || message.Attempt != 0 {
		t.Fatalf("unexpected task message: %+v", message)
	}
}

func TestCreateEnqueueFailureFailsJob(t *testing.T) {
	producer := &capturingProducer{err: errors.New("queue unavailable")}
	jobs, jobStore := newTestService(producer)

	job, err := jobs.Create(context.Background(), "analyze this")
	if err == nil {
		t.Fatalf("expected error when scheduling fails")
	}
	if job != nil {
		t.Fatalf("no job should be returned on scheduling failure")
	}

	if len(producer.messages) != 1 {
		t.Fatalf("expected a single enqueue attempt, got %d", len(producer.messages))
	}

	// The pending record still exists and must be marked failed so polling
	// clients are not stuck on a job that will never run.
	failed, err := jobStore.Get(context.Background(), producer.messages[0].JobID)
	if err != nil {
		t.Fatalf("expected a stored record for the failed creation: %v", err)
	}
	if failed.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed record, got %+v", failed)
	}
	if failed.Error == "" || failed.FailedTime == nil {
		t.Fatalf("failed record missing error details: %+v", failed)
	}
}

func TestTransitionsAreForwardOnly(t *testing.T) {
	producer := &capturingProducer{}
	jobs, jobStore := newTestService(producer)

	job, err := jobs.Create(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	jobs.Advance(context.Background(), job, 10, "calling workflow")
	if job.Status != domain.JobStatusProcessing || job.Progress != 10 {
		t.Fatalf("expected processing at 10, got %+v", job)
	}

	jobs.Complete(context.Background(), job, &domain.Result{Success: true, OutData: "done"})
	if job.Status != domain.JobStatusCompleted || job.Progress != 100 {
		t.Fatalf("expected completed at 100, got %+v", job)
	}
	if job.CompletedTime == nil {
		t.Fatalf("completed job must record its completion time")
	}

	// Terminal records must not move again.
	jobs.Advance(context.Background(), job, 50, "late update")
	jobs.Fail(context.Background(), job, "late failure")

	stored, err := jobStore.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.JobStatusCompleted || stored.Progress != 100 {
		t.Fatalf("terminal record was overwritten: %+v", stored)
	}
	if stored.Error != "" {
		t.Fatalf("completed record should carry no error, got %q", stored.Error)
	}
}

func TestFailRecordsTerminalFailure(t *testing.T) {
	producer := &capturingProducer{}
	jobs, jobStore := newTestService(producer)

	job, err := jobs.Create(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	jobs.Fail(context.Background(), job, "workflow api status 500: upstream broke")

	stored, err := jobStore.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.JobStatusFailed || stored.Progress != 0 {
		t.Fatalf("expected failed record at progress 0, got %+v", stored)
	}
	if stored.Error != "workflow api status 500: upstream broke" {
		t.Fatalf("unexpected error text: %q", stored.Error)
	}
	if stored.Message != "processing failed: workflow api status 500: upstream broke" {
		t.Fatalf("unexpected message: %q", stored.Message)
	}
	if stored.FailedTime == nil {
		t.Fatalf("failed job must record its failure time")
	}
}
