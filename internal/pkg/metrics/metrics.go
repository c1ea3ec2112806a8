/*
Package metrics collects and exposes Prometheus metrics of the reference backend.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the backend metrics.
type Collector struct {
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	activeWSClients prometheus.Gauge
	activeRooms     prometheus.Gauge
	relayedFrames   prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchup_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchup_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activeWSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchup_ws_clients",
			Help: "Connected websocket clients.",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchup_ws_rooms",
			Help: "Running chat rooms.",
		}),
		relayedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchup_ws_relayed_frames_total",
			Help: "Frames relayed between chat clients.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.activeWSClients,
		c.activeRooms,
		c.relayedFrames,
	)

	return c
}

// Middleware records one request sample per completed request, labelled with the chi
// route pattern so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ClientConnected records a new websocket client.
func (c *Collector) ClientConnected() { c.activeWSClients.Inc() }

// ClientDisconnected records a closed websocket client.
func (c *Collector) ClientDisconnected() { c.activeWSClients.Dec() }

// RoomStarted records a new chat room.
func (c *Collector) RoomStarted() { c.activeRooms.Inc() }

// RoomStopped records a stopped chat room.
func (c *Collector) RoomStopped() { c.activeRooms.Dec() }

// FrameRelayed records one relayed frame.
func (c *Collector) FrameRelayed() { c.relayedFrames.Inc() }

// Handler returns the /metrics handler for reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
