package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsTotal *prometheus.CounterVec

	// Domain event metrics
	EventsHandledTotal   *prometheus.CounterVec
	EventHandlerDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhookDeliveriesTotal *prometheus.CounterVec

	// Realtime metrics
	WebsocketClients prometheus.Gauge
}

// New registers every collector under prefix, e.g. prefix "crm" yields
// "crm_http_requests_total".
func New(prefix string) *Metrics {
	if prefix == "" {
		prefix = "crm"
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_auth_attempts_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		EventsHandledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_events_handled_total",
				Help: "Total number of domain events delivered to subscribers",
			},
			[]string{"type"},
		),
		EventHandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_event_handler_duration_seconds",
				Help:    "Duration of domain event handlers in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_webhook_deliveries_total",
				Help: "Total number of webhook deliveries by result",
			},
			[]string{"result"},
		),
		WebsocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthAttemptsTotal,
		m.EventsHandledTotal,
		m.EventHandlerDuration,
		m.WebhookDeliveriesTotal,
		m.WebsocketClients,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency. The path label is the mux
// route template so ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   routeTemplate(r),
			"status": strconv.Itoa(rec.status),
		}
		m.HTTPRequestsTotal.With(labels).Inc()
		m.HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// RecordLogin counts a login attempt; result is "success" or a failure reason.
func (m *Metrics) RecordLogin(result string) {
	m.AuthAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveEvent records one handled domain event.
func (m *Metrics) ObserveEvent(eventType string, duration time.Duration) {
	m.EventsHandledTotal.WithLabelValues(eventType).Inc()
	m.EventHandlerDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordWebhookDelivery counts a webhook delivery.
func (m *Metrics) RecordWebhookDelivery(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
