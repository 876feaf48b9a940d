package httpserver

import (
	"log"
	"net/http"

	"github.com/1026465274/coze-workflow-app/internal/http/handlers"
	"github.com/1026465274/coze-workflow-app/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	// FilesDir, when set, is served under /files/ so local blob artifacts
	// stay downloadable without object storage.
	FilesDir string
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/api/start-task", deps.API.StartTask)
	mux.HandleFunc("/api/check-status", deps.API.CheckStatus)
	mux.HandleFunc("/api/run-workflow", deps.API.RunWorkflow)
	mux.HandleFunc("/api/generate-document", deps.API.GenerateDocument)
	mux.HandleFunc("/api/download", deps.API.Download)
	if deps.FilesDir != "" {
		mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(deps.FilesDir))))
	}

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(deps.CORSOrigins)(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
