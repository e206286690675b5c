package middleware

import (
	"net/http"
)

// RequireSession answers 401 until a principal has been started. active is
// polled on every request.
func RequireSession(active func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !active() {
				http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
