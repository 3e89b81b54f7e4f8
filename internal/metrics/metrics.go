// Package metrics exposes Prometheus instrumentation for the service order workflow.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/trailer-shop/internal/apperr"
)

const (
	OperationCreate      = "create"
	OperationUpdate      = "update"
	OperationDelete      = "delete"
	OperationReleaseTool = "release_tool"
)

// Prometheus metrics
var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_order_operations_total",
			Help: "The total number of service order workflow invocations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "service_order_operation_duration_seconds",
			Help:    "Duration of service order workflow invocations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	publishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "service_order_event_publish_failures_total",
			Help: "Domain events that could not be published after commit",
		},
	)
)

// Outcome labels an operation result by error class.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// ObserveOperation records one workflow invocation that began at start.
func ObserveOperation(operation string, start time.Time, err error) {
	operationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func IncPublishFailures() {
	publishFailures.Inc()
}
