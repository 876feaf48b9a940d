package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/1026465274/coze-workflow-app/internal/domain"
)

func sampleJob(id string) *domain.Job {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Job{
		ID:          id,
		Status:      domain.JobStatusPending,
		Progress:    0,
		Message:     "task created, waiting for processing",
		Input:       "summarize this",
		CreatedTime: created,
	}
}

func TestMemoryJobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	jobStore := NewMemoryJobStore()

	job := sampleJob("job-1")
	if err := jobStore.Set(ctx, job); err != nil {
		t.Fatalf("set: %v", err)
	}

	loaded, err := jobStore.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(job, loaded) {
		t.Fatalf("loaded job differs:\nwant %+v\ngot  %+v", job, loaded)
	}
}

func TestMemoryJobStoreGetMissing(t *testing.T) {
	jobStore := NewMemoryJobStore()

	_, err := jobStore.Get(context.Background(), "job-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryJobStoreOverwriteReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	jobStore := NewMemoryJobStore()

	job := sampleJob("job-2")
	if err := jobStore.Set(ctx, job); err != nil {
		t.Fatalf("set pending: %v", err)
	}

	completed := time.Date(2025, 6, 1, 12, 0, 45, 0, time.UTC)
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Message = "task completed"
	job.CompletedTime = &completed
	job.Result = &domain.Result{
		Success: true,
		OutData: "done",
		Info: &domain.WorkflowInfo{
			Timestamp:   completed,
			WorkflowID:  "wf-1",
			InputLength: 14,
			APIMethod:   "stream",
			Extracted:   json.RawMessage(`{"title":"report"}`),
		},
	}
	if err := jobStore.Set(ctx, job); err != nil {
		t.Fatalf("set completed: %v", err)
	}

	loaded, err := jobStore.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != domain.JobStatusCompleted || loaded.Progress != 100 {
		t.Fatalf("expected completed record, got %+v", loaded)
	}
	if loaded.Result == nil || loaded.Result.Info == nil {
		t.Fatalf("expected result payload to survive, got %+v", loaded.Result)
	}
	if string(loaded.Result.Info.Extracted) != `{"title":"report"}` {
		t.Fatalf("unexpected extracted payload: %s", loaded.Result.Info.Extracted)
	}
	if loaded.Result.Document != nil {
		t.Fatalf("document result should stay nil when no artifact was produced")
	}
}

func TestMemoryJobStoreIsolatesStoredCopies(t *testing.T) {
	ctx := context.Background()
	jobStore := NewMemoryJobStore()

	job := sampleJob("job-3")
	if err := jobStore.Set(ctx, job); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Mutating the caller's struct must not leak into the stored record.
	job.Status = domain.JobStatusFailed
	job.Message = "mutated after set"

	loaded, err := jobStore.Get(ctx, "job-3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != domain.JobStatusPending {
		t.Fatalf("stored record mutated through caller reference: %+v", loaded)
	}

	// Mutating a loaded copy must not change the next read either.
	loaded.Progress = 99
	reloaded, err := jobStore.Get(ctx, "job-3")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Progress != 0 {
		t.Fatalf("stored record mutated through loaded reference: %+v", reloaded)
	}
}

func TestJobKeyFormat(t *testing.T) {
	if got := jobKey("job_123_abc"); got != "job:job_123_abc" {
		t.Fatalf("unexpected key: %s", got)
	}
}
