/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// Admission results used as values of the "result" label.
const (
	ResultAllowed      = "allowed"
	ResultDenied       = "denied"
	ResultUnrestricted = "unrestricted"
	ResultError        = "error"
)

// MetricsCollector represents a collector of metrics to analyze how the counter store is used.
type MetricsCollector interface {
	// AddAmount changes the total number of counters in the store by the delta.
	AddAmount(delta int)

	// IncCreated increments the total number of created counters.
	IncCreated()

	// AddExpired increments the total number of removed expired counters.
	AddExpired(n int)

	// IncStoreFull increments the total number of counters that could not be created because the store is full.
	IncStoreFull()
}

// AdmissionMetricsCollector represents a collector of admission decisions.
type AdmissionMetricsCollector interface {
	// IncDecisions increments the number of decisions for the notification type with the given result.
	IncDecisions(notificationType, result string)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the counter store and the admission controller.
// It implements both MetricsCollector and AdmissionMetricsCollector interfaces.
type PrometheusMetrics struct {
	CountersAmount prometheus.Gauge
	CreatedTotal   prometheus.Counter
	ExpiredTotal   prometheus.Counter
	StoreFullTotal prometheus.Counter
	DecisionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	countersAmount := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   opts.Namespace,
		Name:        "ratelimit_counters_amount",
		Help:        "Total number of counters in the rate limit store.",
		ConstLabels: opts.ConstLabels,
	})

	createdTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   opts.Namespace,
		Name:        "ratelimit_counters_created_total",
		Help:        "Number of created counters.",
		ConstLabels: opts.ConstLabels,
	})

	expiredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   opts.Namespace,
		Name:        "ratelimit_counters_expired_total",
		Help:        "Number of removed expired counters.",
		ConstLabels: opts.ConstLabels,
	})

	storeFullTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   opts.Namespace,
		Name:        "ratelimit_store_full_total",
		Help:        "Number of counters that were not created because the store is full.",
		ConstLabels: opts.ConstLabels,
	})

	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_decisions_total",
			Help:        "Number of admission decisions.",
			ConstLabels: opts.ConstLabels,
		},
		[]string{"type", "result"},
	)

	return &PrometheusMetrics{
		CountersAmount: countersAmount,
		CreatedTotal:   createdTotal,
		ExpiredTotal:   expiredTotal,
		StoreFullTotal: storeFullTotal,
		DecisionsTotal: decisionsTotal,
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	pm.MustRegisterWith(prometheus.DefaultRegisterer)
}

// MustRegisterWith does registration of metrics collector in the given registerer and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegisterWith(registerer prometheus.Registerer) {
	registerer.MustRegister(
		pm.CountersAmount,
		pm.CreatedTotal,
		pm.ExpiredTotal,
		pm.StoreFullTotal,
		pm.DecisionsTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	pm.UnregisterFrom(prometheus.DefaultRegisterer)
}

// UnregisterFrom cancels registration of metrics collector in the given registerer.
func (pm *PrometheusMetrics) UnregisterFrom(registerer prometheus.Registerer) {
	registerer.Unregister(pm.CountersAmount)
	registerer.Unregister(pm.CreatedTotal)
	registerer.Unregister(pm.ExpiredTotal)
	registerer.Unregister(pm.StoreFullTotal)
	registerer.Unregister(pm.DecisionsTotal)
}

// AddAmount changes the total number of counters in the store by the delta.
func (pm *PrometheusMetrics) AddAmount(delta int) {
	pm.CountersAmount.Add(float64(delta))
}

// IncCreated increments the total number of created counters.
func (pm *PrometheusMetrics) IncCreated() {
	pm.CreatedTotal.Inc()
}

// AddExpired increments the total number of removed expired counters.
func (pm *PrometheusMetrics) AddExpired(n int) {
	pm.ExpiredTotal.Add(float64(n))
}

// IncStoreFull increments the total number of counters that could not be created because the store is full.
func (pm *PrometheusMetrics) IncStoreFull() {
	pm.StoreFullTotal.Inc()
}

// IncDecisions increments the number of decisions for the notification type with the given result.
func (pm *PrometheusMetrics) IncDecisions(notificationType, result string) {
	pm.DecisionsTotal.WithLabelValues(notificationType, result).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) AddAmount(int)               {}
func (disabledMetrics) IncCreated()                 {}
func (disabledMetrics) AddExpired(int)              {}
func (disabledMetrics) IncStoreFull()               {}
func (disabledMetrics) IncDecisions(string, string) {}
