package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts HTTP requests by route template and status.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// GateRejections counts mutations refused because the owning tour ended.
	GateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_readonly_rejections_total",
			Help: "Mutations rejected because the tour has ended",
		},
		[]string{"kind"},
	)

	// SurveySubmissions counts persisted survey submissions by path
	// (submit, save_progress, anonymous).
	SurveySubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_submissions_total",
			Help: "Survey responses written, by submission path",
		},
		[]string{"path"},
	)

	// DuplicateRecoveries counts authenticated submissions that lost the
	// insert race and were retried as an update.
	DuplicateRecoveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "survey_duplicate_recoveries_total",
			Help: "Authenticated submissions retried after a unique violation",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		GateRejections,
		SurveySubmissions,
		DuplicateRecoveries,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled with the mux route
// template, so /surveys/1/stats and /surveys/2/stats share a series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
