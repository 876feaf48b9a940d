package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/1026465274/coze-workflow-app/internal/domain"
	"github.com/1026465274/coze-workflow-app/internal/store"
)

// CheckStatus returns the current job record plus derived timing fields.
// Read-only; polling clients call this repeatedly.
func (api *API) CheckStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	jobID := strings.TrimSpace(r.URL.Query().Get("jobId"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "Invalid jobId", "please provide a valid job id")
		return
	}

	job, err := api.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":   "Job not found",
				"message": "no job exists for this id",
				"jobId":   jobID,
			})
			return
		}
		if api.logger != nil {
			api.logger.Printf("check status failed job_id=%s err=%v", jobID, err)
		}
		writeError(w, http.StatusInternalServerError, "Internal server error", "failed to query status, please retry later")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse(job, time.Now().UTC()))
}

func statusResponse(job *domain.Job, now time.Time) map[string]any {
	runningTime := int(now.Sub(job.CreatedTime).Seconds())
	if runningTime < 0 {
		runningTime = 0
	}

	response := map[string]any{
		"success":     true,
		"jobId":       job.ID,
		"status":      job.Status,
		"progress":    job.Progress,
		"message":     job.Message,
		"runningTime": runningTime,
		"createdTime": job.CreatedTime,
	}

	switch job.Status {
	case domain.JobStatusPending:
		response["estimatedTime"] = "30-60 seconds"

	case domain.JobStatusProcessing:
		response["currentStep"] = job.Message
		response["estimatedRemaining"] = fmt.Sprintf("%d seconds", max(0, 60-runningTime))

	case domain.JobStatusCompleted:
		response["result"] = job.Result
		response["completedTime"] = job.CompletedTime
		if job.CompletedTime != nil {
			response["totalTime"] = int(job.CompletedTime.Sub(job.CreatedTime).Seconds())
		}
		if job.Result != nil && job.Result.Document != nil {
			response["downloadUrl"] = job.Result.Document.DownloadURL
			response["fileName"] = job.Result.Document.FileName
		}

	case domain.JobStatusFailed:
		response["error"] = job.Error
		response["failedTime"] = job.FailedTime
	}

	return response
}
