package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec
	authAttemptsTotal   *prometheus.CounterVec
	formInputsSaved     *prometheus.CounterVec
	activityEventsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formdesk_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		authAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_auth_attempts_total",
			Help: "Sign-in attempts grouped by method and outcome.",
		}, []string{"method", "outcome"})

		formInputsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_form_inputs_saved_total",
			Help: "Form documents saved per project.",
		}, []string{"project"})

		activityEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_activity_events_total",
			Help: "Audit events grouped by what happened to them.",
		}, []string{"outcome"})

		prometheus.MustRegister(apiRequestsTotal, apiLatencySeconds, apiErrorsTotal, authAttemptsTotal, formInputsSaved, activityEventsTotal)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// AuthAttempts counts sign-in attempts by method (local, google, guest, register) and outcome.
func AuthAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return authAttemptsTotal
}

// FormInputsSaved counts saved form documents by project.
func FormInputsSaved() *prometheus.CounterVec {
	RegisterMetrics()
	return formInputsSaved
}

// ActivityEvents counts audit events as persisted, dropped or failed.
func ActivityEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return activityEventsTotal
}
