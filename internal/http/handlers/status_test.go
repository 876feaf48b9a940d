package handlers

import (
	"testing"
	"time"

	"github.com/1026465274/coze-workflow-app/internal/domain"
)

func TestStatusResponsePendingFields(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := &domain.Job{
		ID:          "job-1",
		Status:      domain.JobStatusPending,
		Message:     "task created, waiting for processing",
		CreatedTime: created,
	}

	response := statusResponse(job, created.Add(5*time.Second))
	if response["runningTime"] != 5 {
		t.Fatalf("unexpected runningTime: %v", response["runningTime"])
	}
	if response["estimatedTime"] != "30-60 seconds" {
		t.Fatalf("pending status must include estimatedTime, got %v", response["estimatedTime"])
	}
	if _, present := response["result"]; present {
		t.Fatalf("pending status must not expose a result")
	}
}

func TestStatusResponseProcessingFields(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := &domain.Job{
		ID:          "job-2",
		Status:      domain.JobStatusProcessing,
		Progress:    35,
		Message:     "processing workflow response (Message)",
		CreatedTime: created,
	}

	response := statusResponse(job, created.Add(20*time.Second))
	if response["currentStep"] != job.Message {
		t.Fatalf("unexpected currentStep: %v", response["currentStep"])
	}
	if response["estimatedRemaining"] != "40 seconds" {
		t.Fatalf("unexpected estimatedRemaining: %v", response["estimatedRemaining"])
	}

	// Past the estimate the remaining time clamps to zero instead of going
	// negative.
	late := statusResponse(job, created.Add(90*time.Second))
	if late["estimatedRemaining"] != "0 seconds" {
		t.Fatalf("unexpected clamped estimatedRemaining: %v", late["estimatedRemaining"])
	}
}

func TestStatusResponseCompletedFields(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(42 * time.Second)
	job := &domain.Job{
		ID:            "job-3",
		Status:        domain.JobStatusCompleted,
		Progress:      100,
		Message:       "task completed",
		CreatedTime:   created,
		CompletedTime: &completed,
		Result: &domain.Result{
			Success: true,
			OutData: "done",
			Document: &domain.DocumentResult{
				DocID:       "doc-1",
				DownloadURL: "/files/workflow_result_1.docx",
				FileName:    "workflow_result_1.docx",
				FileSize:    256,
			},
		},
	}

	response := statusResponse(job, completed.Add(time.Minute))
	if response["totalTime"] != 42 {
		t.Fatalf("unexpected totalTime: %v", response["totalTime"])
	}
	if response["downloadUrl"] != "/files/workflow_result_1.docx" {
		t.Fatalf("unexpected downloadUrl: %v", response["downloadUrl"])
	}
	if response["fileName"] != "workflow_result_1.docx" {
		t.Fatalf("unexpected fileName: %v", response["fileName"])
	}
	if response["result"] != job.Result {
		t.Fatalf("completed status must embed the result")
	}
}

func TestStatusResponseFailedFields(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	failed := created.Add(3 * time.Second)
	job := &domain.Job{
		ID:          "job-4",
		Status:      domain.JobStatusFailed,
		Message:     "processing failed: workflow api status 500",
		Error:       "workflow api status 500",
		CreatedTime: created,
		FailedTime:  &failed,
	}

	response := statusResponse(job, failed)
	if response["error"] != "workflow api status 500" {
		t.Fatalf("unexpected error field: %v", response["error"])
	}
	if response["failedTime"] != job.FailedTime {
		t.Fatalf("failed status must expose failedTime")
	}
	if _, present := response["downloadUrl"]; present {
		t.Fatalf("failed status must not expose a download url")
	}
}

func TestStatusResponseClampsNegativeRunningTime(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := &domain.Job{ID: "job-5", Status: domain.JobStatusPending, CreatedTime: created}

	response := statusResponse(job, created.Add(-10*time.Second))
	if response["runningTime"] != 0 {
		t.Fatalf("runningTime must clamp at zero, got %v", response["runningTime"])
	}
}
