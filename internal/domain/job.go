package domain

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the tracked state of one submitted workflow request. Every transition
// rewrites the whole record; the store never sees partial updates.
type Job struct {
	ID            string     `json:"jobId"`
	Status        JobStatus  `json:"status"`
	Progress      int        `json:"progress"`
	Message       string     `json:"message"`
	Input         string     `json:"input"`
	CreatedTime   time.Time  `json:"createdTime"`
	CompletedTime *time.Time `json:"completedTime,omitempty"`
	FailedTime    *time.Time `json:"failedTime,omitempty"`
	Result        *Result    `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Result is the terminal-success payload of a job.
type Result struct {
	Success bool          `json:"success"`
	OutData string        `json:"outData"`
	Info    *WorkflowInfo `json:"infoJson,omitempty"`
	// Document stays null when the artifact stage was skipped or failed.
	Document *DocumentResult `json:"documentResult"`
}

// WorkflowInfo describes the provider call that produced the result.
type WorkflowInfo struct {
	Timestamp    time.Time       `json:"timestamp"`
	WorkflowID   string          `json:"workflow_id"`
	InputLength  int             `json:"input_length"`
	ResponseData json.RawMessage `json:"response_data,omitempty"`
	APIMethod    string          `json:"api_method"`
	Extracted    json.RawMessage `json:"extracted_infojson,omitempty"`
}

// DocumentResult is the downloadable artifact produced by the document stage.
type DocumentResult struct {
	DocID       string `json:"docId"`
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
}

// TaskMessage is the transport format handed to queue backends.
type TaskMessage struct {
	JobID       string    `json:"job_id"`
	Input       string    `json:"input"`
	Attempt     int       `json:"attempt"`
	RequestedAt time.Time `json:"requested_at"`
}

const jobIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewJobID returns an id of the form job_<unix-millis>_<13 base36 chars>.
func NewJobID() string {
	var suffix strings.Builder
	for i := 0; i < 13; i++ {
		suffix.WriteByte(jobIDAlphabet[rand.Intn(len(jobIDAlphabet))])
	}
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), suffix.String())
}
