package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/1026465274/coze-workflow-app/internal/workflow"
)

// RunWorkflow proxies a single blocking workflow call, without job tracking.
// Useful for short inputs where the caller can afford to wait.
func (api *API) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	if api.runner == nil || !api.runner.Available() {
		writeError(w, http.StatusInternalServerError, "Server configuration error", "workflow provider credentials are not configured")
		return
	}

	var request startTaskRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input", "request body must be JSON with an input field")
		return
	}
	input := strings.TrimSpace(request.Input)
	if input == "" {
		writeError(w, http.StatusBadRequest, "Invalid input", "please provide non-empty input text")
		return
	}

	result, err := api.runner.Run(r.Context(), input)
	if err != nil {
		var httpErr *workflow.HTTPError
		if errors.As(err, &httpErr) {
			writeJSON(w, httpErr.StatusCode, map[string]any{
				"error":   "Workflow API error",
				"message": "workflow provider returned an error",
				"details": httpErr.Message,
			})
			return
		}
		if api.logger != nil {
			api.logger.Printf("run workflow failed: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "Internal server error", "workflow call failed, please retry later")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"outData":  result.OutData,
		"infoJson": api.runner.Describe(input, result),
	})
}
