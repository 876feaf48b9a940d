package middleware

import (
	"net/http"
	"strings"
)

// Auth optionally guards /api/ routes with a static bearer token. Disabled
// when no token is configured; the public deployment runs open.
func Auth(requiredToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredToken == "" || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			authorization := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authorization, prefix) {
				writeUnauthorized(w)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
			if token == "" || token != requiredToken {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"authentication required"}`))
}
