// Package metrics exposes daibug's Prometheus gauges/counters (SPEC_FULL.md
// domain stack), grounded on the promauto.With(registry) factory idiom used
// by the retrieval pack's vango-go-vango middleware metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and gauges daibug's hub updates on its
// ingestion path.
type Metrics struct {
	EventsIngested   *prometheus.CounterVec
	RingOccupancy    prometheus.Gauge
	ConnectedClients prometheus.Gauge
	WatchMatches     prometheus.Counter
	ChildRestarts    prometheus.Counter
}

// New registers daibug's metrics on a dedicated registry (never the
// global default — §4.12 runs its own loopback listener, independent of
// the HTTP endpoint's port).
func New() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daibug",
			Name:      "events_ingested_total",
			Help:      "Events accepted onto the ingestion path, by source.",
		}, []string{"source"}),
		RingOccupancy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "daibug",
			Name:      "event_ring_occupancy",
			Help:      "Current number of events held in the event ring.",
		}),
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "daibug",
			Name:      "websocket_connected_clients",
			Help:      "Currently connected WebSocket clients.",
		}),
		WatchMatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "daibug",
			Name:      "watch_matches_total",
			Help:      "Events that matched at least one watch rule.",
		}),
		ChildRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "daibug",
			Name:      "child_exits_total",
			Help:      "Non-zero exits of the supervised dev-server child.",
		}),
	}, registry
}

// Handler returns the /metrics HTTP handler for registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
