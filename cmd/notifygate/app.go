/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-notifygate/debugserver"
	"github.com/acronis/go-notifygate/httpserver"
	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/notification"
	"github.com/acronis/go-notifygate/ratelimit"
	"github.com/acronis/go-notifygate/restapi"
	"github.com/acronis/go-notifygate/service"
)

const metricsNamespace = "notifygate"

const healthCheckComponentStore = "ratelimitStore"

// appOpts represents options for the application unit. They are used mostly in tests.
type appOpts struct {
	Sender   notification.Sender
	Listener net.Listener
}

// app is a service.Unit that serves the notification API and cleans up expired rate limit counters.
type app struct {
	*service.CompositeUnit
	HTTPServer *httpserver.HTTPServer

	rlMetrics *ratelimit.PrometheusMetrics
}

var _ service.MetricsRegisterer = (*app)(nil)

func newApp(cfg *AppConfig, logger log.FieldLogger, gatherer prometheus.Gatherer, opts appOpts) (*app, error) {
	policies, err := cfg.RateLimiting.NewPolicyTable()
	if err != nil {
		return nil, fmt.Errorf("create rate limit policy table: %w", err)
	}
	for _, notificationType := range policies.Types() {
		policy, _ := policies.Lookup(notificationType)
		logger.Info("rate limit policy", log.String("notification_type", notificationType),
			log.Int("limit", policy.Limit), log.Duration("period", policy.Period))
	}

	rlMetrics := ratelimit.NewPrometheusMetricsWithOpts(ratelimit.PrometheusMetricsOpts{Namespace: metricsNamespace})

	storeOpts := cfg.RateLimiting.StoreOpts()
	storeOpts.MetricsCollector = rlMetrics
	store, err := ratelimit.NewCounterStoreWithOpts(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("create rate limit counter store: %w", err)
	}

	admissionController := ratelimit.NewAdmissionControllerWithOpts(policies, store,
		ratelimit.AdmissionControllerOpts{MetricsCollector: rlMetrics, Logger: logger})

	sender := opts.Sender
	if sender == nil {
		sender = notification.NewLogSender(logger)
	}
	notificationService := notification.NewServiceWithOpts(admissionController, sender, notification.ServiceOpts{
		ExcludedRecipients: cfg.RateLimiting.ExcludedRecipients,
		Logger:             logger,
	})

	httpServer, err := httpserver.New(cfg.Server, logger, httpserver.Opts{
		NotificationService: notificationService,
		HealthCheck:         makeHealthCheck(store),
		MetricsHandler:      promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		HTTPRequestMetrics:  httpserver.HTTPRequestMetricsOpts{Namespace: metricsNamespace},
		Listener:            opts.Listener,
	})
	if err != nil {
		return nil, fmt.Errorf("create HTTP server: %w", err)
	}

	units := []service.Unit{httpServer}
	if cleanupInterval := time.Duration(cfg.RateLimiting.Store.CleanupInterval); cleanupInterval > 0 {
		units = append(units, service.NewWorkerUnit(service.NewPeriodicWorker(
			makeStoreCleanupWorker(store, logger), cleanupInterval, logger.With(log.String("worker", "ratelimit_store_cleanup")))))
	}

	if cfg.DebugServer.Enabled {
		units = append(units, debugserver.New(cfg.DebugServer, logger.With(log.String("server", "debug")),
			debugserver.Opts{Policies: policies, Store: store}))
	}

	return &app{
		CompositeUnit: service.NewCompositeUnit(units...),
		HTTPServer:    httpServer,
		rlMetrics:     rlMetrics,
	}, nil
}

// MustRegisterMetrics registers metrics of all application components in the given registerer.
func (a *app) MustRegisterMetrics(registerer prometheus.Registerer) {
	a.rlMetrics.MustRegisterWith(registerer)
	restapi.MustInitAndRegisterMetricsWith(registerer, metricsNamespace)
	a.CompositeUnit.MustRegisterMetrics(registerer)
}

// UnregisterMetrics unregisters metrics of all application components from the given registerer.
func (a *app) UnregisterMetrics(registerer prometheus.Registerer) {
	a.CompositeUnit.UnregisterMetrics(registerer)
	restapi.UnregisterMetricsFrom(registerer)
	a.rlMetrics.UnregisterFrom(registerer)
}

func makeStoreCleanupWorker(store *ratelimit.CounterStore, logger log.FieldLogger) service.Worker {
	return service.WorkerFunc(func(ctx context.Context) error {
		if removed := store.Sweep(); removed > 0 {
			logger.Debug("expired rate limit counters removed", log.Int("removed", removed), log.Int("left", store.Len()))
		}
		return nil
	})
}

// makeHealthCheck returns a health check that fails when the counter store is saturated
// and cannot admit new recipients until expired counters are swept.
func makeHealthCheck(store *ratelimit.CounterStore) httpserver.HealthCheckContext {
	return func(ctx context.Context) (httpserver.HealthCheckResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status := httpserver.HealthCheckStatusOK
		if capacity := store.Capacity(); capacity > 0 && store.Len() >= capacity {
			status = httpserver.HealthCheckStatusFail
		}
		return httpserver.HealthCheckResult{healthCheckComponentStore: status}, nil
	}
}
