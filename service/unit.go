/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import "github.com/prometheus/client_golang/prometheus"

// Unit represents a service unit that can be started and stopped.
// Each Unit is a distinct component within a service, with its own lifecycle.
type Unit interface {
	// Start begins the unit's operation.
	//
	// An implementation may perform necessary initialization and return immediately,
	// or block the calling goroutine for the duration of the unit's lifetime.
	// If Start fails, it writes the error to fatalErr. The channel must not be used after Start has returned.
	Start(fatalErr chan<- error)

	// Stop halts the unit.
	// It may be called even if Start has failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is an interface for units that can register their own Prometheus metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics(registerer prometheus.Registerer)
	UnregisterMetrics(registerer prometheus.Registerer)
}
