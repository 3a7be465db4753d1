/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Notifygate is an HTTP gateway that sends notifications to recipients
// and limits the number of notifications of each type per recipient.
package main

import (
	"flag"
	"fmt"
	golog "log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/service"
)

func main() {
	if err := runApp(); err != nil {
		golog.Fatal(err)
	}
}

func runApp() error {
	cfgPath := flag.String("c", "config.yml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := loadAppConfigFromFile(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	application, err := newApp(cfg, logger, registry, appOpts{})
	if err != nil {
		return err
	}

	return service.NewWithOpts(logger, application, service.Opts{MetricsRegisterer: registry}).Start()
}
