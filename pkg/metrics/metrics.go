package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every huddle collector; it is separate from the global
// default registry so embedding applications are not polluted.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// API client metrics
	APIRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_api_requests_total",
			Help: "Total API requests by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	APIRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huddle_api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// Event channel metrics
	EventsReceived = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_events_received_total",
			Help: "Push events received by name",
		},
		[]string{"event"},
	)

	CommandsSent = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huddle_commands_sent_total",
			Help: "Commands written to the push channel by name",
		},
		[]string{"command"},
	)

	ChannelReconnects = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_channel_reconnects_total",
			Help: "Successful reconnects after the first connection",
		},
	)

	MalformedFrames = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "huddle_malformed_frames_total",
			Help: "Push frames that could not be decoded",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

// Handler serves the huddle registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
