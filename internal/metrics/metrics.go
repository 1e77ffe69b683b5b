// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector. Construct it once per registry.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	Emails        *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	ImportRows    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edms",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "edms",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edms",
			Name:      "emails_total",
			Help:      "Notification emails by outcome (sent, failed, dropped).",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edms",
			Name:      "notifications_total",
			Help:      "In-app notifications by type and outcome.",
		}, []string{"type", "result"}),
		ImportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edms",
			Name:      "import_rows_total",
			Help:      "Imported rows by entity and outcome.",
		}, []string{"entity", "result"}),
	}

	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.Emails, m.Notifications, m.ImportRows)
	return m
}

// NewNop returns collectors registered on a throwaway registry
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
