package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedMethods = "GET, POST, OPTIONS"
	corsAllowedHeaders = "Content-Type, Authorization"
)

// CORS echoes permissive cross-origin headers on every response and answers
// pre-flight OPTIONS requests with an empty 200. The API is called from
// browser frontends on arbitrary origins; an allow-list narrows that when
// configured.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := normalizeStringList(allowedOrigins)
	allowAnyOrigin := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAnyOrigin = true
			break
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			switch {
			case allowAnyOrigin:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && containsFold(origins, origin):
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func normalizeStringList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		result = append(result, value)
	}
	return result
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}
