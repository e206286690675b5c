package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_api_requests_total",
		Help: "Total number of REST requests issued to the backend.",
	}, []string{"method", "path", "status"})

	apiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notifier_api_request_duration_seconds",
		Help:    "Duration of REST requests to the backend in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_socket_connect_attempts_total",
		Help: "Push channel handshakes by result.",
	}, []string{"result"})

	PushesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_pushes_received_total",
		Help: "Notifications delivered over the push channel.",
	})

	PopupsShown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_popups_shown_total",
		Help: "Transient alerts displayed.",
	})

	ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_action_failures_total",
		Help: "Failed mark-read, mark-all-read and delete calls.",
	}, []string{"action"})

	ControlRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_control_requests_total",
		Help: "Requests served by the local control API.",
	}, []string{"method", "route", "status"})
)

// Transport wraps an http.RoundTripper and records per-request metrics.
// pathLabel collapses ids out of the path so label cardinality stays bounded.
type Transport struct {
	Base      http.RoundTripper
	PathLabel func(*http.Request) string
}

func NewTransport(base http.RoundTripper, pathLabel func(*http.Request) string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, PathLabel: pathLabel}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	path := req.URL.Path
	if t.PathLabel != nil {
		path = t.PathLabel(req)
	}

	resp, err := t.Base.RoundTrip(req)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	apiRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
	apiDuration.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())
	return resp, err
}
