package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query metrics
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_queries_total",
			Help: "Total number of visitor queries submitted",
		},
		[]string{"variant"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiosk_query_duration_seconds",
			Help:    "Backend answer latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"variant"},
	)

	// Streaming metrics
	streamTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_stream_tokens_total",
			Help: "Total number of answer tokens streamed",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_stream_errors_total",
			Help: "Total number of failed answer streams",
		},
		[]string{"code"},
	)

	// Visit metrics
	feedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_feedback_total",
			Help: "Total number of feedback ratings submitted",
		},
		[]string{"rating"},
	)

	resetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_resets_total",
			Help: "Total number of kiosk resets",
		},
		[]string{"reason"},
	)

	flowState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiosk_flow_state",
			Help: "Current flow state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			queriesTotal,
			queryDuration,
			streamTokensTotal,
			streamErrorsTotal,
			feedbackTotal,
			resetsTotal,
			flowState,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordQuery records a submitted visitor query
func RecordQuery(variant string) {
	queriesTotal.WithLabelValues(variant).Inc()
}

// RecordQueryDuration records backend answer latency
func RecordQueryDuration(variant string, duration time.Duration) {
	queryDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

// RecordStreamToken records one streamed answer token
func RecordStreamToken() {
	streamTokensTotal.Inc()
}

// RecordStreamError records a failed answer stream
func RecordStreamError(code string) {
	streamErrorsTotal.WithLabelValues(code).Inc()
}

// RecordFeedback records a submitted feedback rating
func RecordFeedback(rating int) {
	feedbackTotal.WithLabelValues(ratingLabel(rating)).Inc()
}

// RecordReset records a kiosk reset
func RecordReset(reason string) {
	resetsTotal.WithLabelValues(reason).Inc()
}

var (
	flowStateMu   sync.Mutex
	flowStateLast string
)

// SetFlowState sets the flow state gauge, clearing the previous state
func SetFlowState(state string) {
	flowStateMu.Lock()
	defer flowStateMu.Unlock()
	if flowStateLast != "" && flowStateLast != state {
		flowState.WithLabelValues(flowStateLast).Set(0)
	}
	flowState.WithLabelValues(state).Set(1)
	flowStateLast = state
}

func ratingLabel(rating int) string {
	switch rating {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	case 4:
		return "4"
	case 5:
		return "5"
	}
	return "invalid"
}
