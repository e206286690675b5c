package middleware

import (
	"net/http"
	"strconv"

	"github.com/fakenews/notifier/internal/shared/infrastructure/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Metrics counts requests by the mux pattern that served them, so ids in
// paths do not become labels.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ControlRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
