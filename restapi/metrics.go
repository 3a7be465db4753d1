/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import "github.com/prometheus/client_golang/prometheus"

var metricsResponseErrors *prometheus.CounterVec

const (
	metricsSubsystem = "restapi"

	metricsLabelResponseErrorDomain = "domain"
	metricsLabelResponseErrorCode   = "code"
)

// MustInitAndRegisterMetrics initializes restapi global metrics and registers them in the default Prometheus registry.
// Panic will be raised in case of error.
func MustInitAndRegisterMetrics(namespace string) {
	MustInitAndRegisterMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// MustInitAndRegisterMetricsWith initializes restapi global metrics and registers them in the passed registerer.
func MustInitAndRegisterMetricsWith(registerer prometheus.Registerer, namespace string) {
	metrics := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystem,
		Name:      "response_errors_total",
		Help:      "The total number of REST API errors that were respond.",
	}, []string{metricsLabelResponseErrorDomain, metricsLabelResponseErrorCode})
	registerer.MustRegister(metrics)
	metricsResponseErrors = metrics
}

// UnregisterMetrics unregisters restapi global metrics from the default Prometheus registry.
func UnregisterMetrics() {
	UnregisterMetricsFrom(prometheus.DefaultRegisterer)
}

// UnregisterMetricsFrom unregisters restapi global metrics from the passed registerer.
func UnregisterMetricsFrom(registerer prometheus.Registerer) {
	if metricsResponseErrors != nil {
		registerer.Unregister(metricsResponseErrors)
		metricsResponseErrors = nil
	}
}
