package handlers

import (
	"errors"
	"net/http"

	"github.com/1026465274/coze-workflow-app/internal/service"
)

type startTaskRequest struct {
	Input string `json:"input"`
}

// StartTask accepts the user text, creates a pending job and schedules its
// processing. The response returns before the workflow call starts.
func (api *API) StartTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var request startTaskRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input", "request body must be JSON with an input field")
		return
	}

	job, err := api.jobs.Create(r.Context(), request.Input)
	if err != nil {
		if errors.Is(err, service.ErrEmptyInput) {
			writeError(w, http.StatusBadRequest, "Invalid input", "please provide non-empty input text")
			return
		}
		if api.logger != nil {
			api.logger.Printf("start task failed: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "Internal server error", "failed to start task, please retry later")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":        true,
		"jobId":          job.ID,
		"status":         job.Status,
		"message":        "task accepted, poll checkStatusUrl for progress",
		"checkStatusUrl": "/api/check-status?jobId=" + job.ID,
	})
}
