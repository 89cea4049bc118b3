// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DashboardCounter mirrors the last published value of each dashboard counter.
	DashboardCounter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_dashboard_counter",
			Help: "Current value of a fleet dashboard counter",
		},
		[]string{"counter"},
	)

	// DashboardFetchFailures counts failed aggregation fetches per source.
	DashboardFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_dashboard_fetch_failures_total",
			Help: "Failed dashboard aggregation fetches",
		},
		[]string{"source"},
	)

	// DashboardRefreshDuration observes how long a refresh takes to settle.
	DashboardRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_dashboard_refresh_seconds",
			Help:    "Duration of dashboard refresh cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MalformedRecords counts documents skipped because they failed to parse.
	MalformedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_malformed_records_total",
			Help: "Documents skipped because of missing or mistyped fields",
		},
		[]string{"collection"},
	)

	// BillDecisions counts bill decisions that resulted in a write.
	BillDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_bill_decisions_total",
			Help: "Bill decisions written to the store",
		},
		[]string{"outcome"},
	)

	// BookingTransitions counts booking status changes.
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_booking_transitions_total",
			Help: "Booking status transitions written to the store",
		},
		[]string{"to"},
	)

	// OffRouteAlerts counts raised off-route alerts.
	OffRouteAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_off_route_alerts_total",
			Help: "Off-route alerts raised from live positions",
		},
	)

	// RequestsTotal counts HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
