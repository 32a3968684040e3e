// Package metrics exposes the Prometheus collectors of modelhub.
package metrics

import (
	"time"

	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistryOperationsTotal counts registry operations by outcome kind
	RegistryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelhub_registry_operations_total",
			Help: "Total number of registry operations",
		},
		[]string{"op", "result"},
	)

	RegistryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelhub_registry_operation_duration_seconds",
			Help:    "Duration of registry operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// StoreBreakerState is 0 closed, 1 half-open, 2 open
	StoreBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modelhub_store_breaker_state",
			Help: "Circuit breaker state of a store adapter (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

// ObserveRegistry records one registry operation. result is "ok" or the
// error kind of err.
func ObserveRegistry(op string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(model.KindOf(err))
	}
	RegistryOperationsTotal.WithLabelValues(op, result).Inc()
	RegistryOperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
