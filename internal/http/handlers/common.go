package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/1026465274/coze-workflow-app/internal/document"
	"github.com/1026465274/coze-workflow-app/internal/service"
	"github.com/1026465274/coze-workflow-app/internal/workflow"
)

type API struct {
	jobs      *service.JobService
	runner    *workflow.Client
	publisher *document.Publisher
	logger    *log.Logger
}

func NewAPI(
	jobs *service.JobService,
	runner *workflow.Client,
	publisher *document.Publisher,
	logger *log.Logger,
) *API {
	return &API{
		jobs:      jobs,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSON(w, statusCode, map[string]any{
		"error":   errorCode,
		"message": message,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "only "+allowed+" requests are supported")
}

func decodeJSON(r *http.Request, value any) error {
	return json.NewDecoder(r.Body).Decode(value)
}
