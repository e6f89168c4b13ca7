package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the payment gateway.
type Metrics struct {
	// Payment initiation metrics
	InitiationsTotal    *prometheus.CounterVec
	InitiationDuration  *prometheus.HistogramVec
	PersistenceWarnings prometheus.Counter

	// Reconciliation metrics
	ReconciliationsTotal   *prometheus.CounterVec
	StatusTransitionsTotal *prometheus.CounterVec

	// Processor call metrics
	ProcessorCallsTotal   *prometheus.CounterVec
	ProcessorCallDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhooksTotal   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Event publishing metrics
	EventsPublishedTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		InitiationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_initiations_total",
				Help: "Total number of payment initiation attempts",
			},
			[]string{"currency", "outcome"},
		),
		InitiationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paygate_initiation_duration_seconds",
				Help:    "Time taken to initiate a payment including the processor call",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"currency"},
		),
		PersistenceWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "paygate_persistence_warnings_total",
				Help: "Checkout successes the store failed to record",
			},
		),

		ReconciliationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_reconciliations_total",
				Help: "Total number of reconciliation attempts by source and result",
			},
			[]string{"source", "result"},
		),
		StatusTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_status_transitions_total",
				Help: "Transaction status transitions applied during reconciliation",
			},
			[]string{"from", "to"},
		),

		ProcessorCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_processor_calls_total",
				Help: "Total number of calls to the payment processor",
			},
			[]string{"operation", "status"},
		),
		ProcessorCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paygate_processor_call_duration_seconds",
				Help:    "Duration of payment processor calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation"},
		),

		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_webhooks_total",
				Help: "Total number of webhook notifications received",
			},
			[]string{"status"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paygate_webhook_duration_seconds",
				Help:    "Time taken to decrypt and reconcile a webhook",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"status"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_rate_limit_hits_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"limit_type"},
		),

		EventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_events_published_total",
				Help: "Status change events published to the broker",
			},
			[]string{"status", "result"},
		),
	}
}

// ObserveInitiation records a payment initiation attempt.
func (m *Metrics) ObserveInitiation(currency string, success bool, duration time.Duration) {
	outcome := "failed"
	if success {
		outcome = "successful"
	}
	m.InitiationsTotal.WithLabelValues(currency, outcome).Inc()
	m.InitiationDuration.WithLabelValues(currency).Observe(duration.Seconds())
}

// ObservePersistenceWarning records a checkout that succeeded at the processor
// but could not be written to the store.
func (m *Metrics) ObservePersistenceWarning() {
	m.PersistenceWarnings.Inc()
}

// ObserveReconciliation records a reconciliation attempt. Source is "verify"
// or "webhook"; result is "updated", "unchanged", or "skipped".
func (m *Metrics) ObserveReconciliation(source, result string) {
	m.ReconciliationsTotal.WithLabelValues(source, result).Inc()
}

// ObserveStatusTransition records an applied status transition.
func (m *Metrics) ObserveStatusTransition(from, to string) {
	m.StatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveProcessorCall records a processor call and its duration.
func (m *Metrics) ObserveProcessorCall(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProcessorCallsTotal.WithLabelValues(operation, status).Inc()
	m.ProcessorCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveWebhook records a webhook delivery and its processing time.
func (m *Metrics) ObserveWebhook(status string, duration time.Duration) {
	m.WebhooksTotal.WithLabelValues(status).Inc()
	m.WebhookDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRateLimit records a rate limit rejection.
func (m *Metrics) ObserveRateLimit(limitType string) {
	m.RateLimitHitsTotal.WithLabelValues(limitType).Inc()
}

// ObserveEventPublished records a status change event publish attempt.
func (m *Metrics) ObserveEventPublished(status string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.EventsPublishedTotal.WithLabelValues(status, result).Inc()
}
