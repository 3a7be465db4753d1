/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"io"

	"github.com/acronis/go-notifygate/config"
	"github.com/acronis/go-notifygate/debugserver"
	"github.com/acronis/go-notifygate/httpserver"
	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/ratelimit"
)

// envVarsPrefix is a prefix of environment variables that override values from the configuration file
// (e.g. NOTIFYGATE_SERVER_ADDRESS).
const envVarsPrefix = "NOTIFYGATE"

// AppConfig contains all configuration sections of the notification gateway.
type AppConfig struct {
	Server       *httpserver.Config
	Log          *log.Config
	RateLimiting *ratelimit.Config
	DebugServer  *debugserver.Config
}

// NewAppConfig creates a new AppConfig with the default key prefixes of sections.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Server:       httpserver.NewConfig(),
		Log:          log.NewConfig(),
		RateLimiting: ratelimit.NewConfig(),
		DebugServer:  debugserver.NewConfig(),
	}
}

func loadAppConfigFromFile(path string) (*AppConfig, error) {
	cfg := NewAppConfig()
	err := config.NewDefaultLoader(envVarsPrefix).LoadFromFile(path, config.DataTypeYAML, cfg.Server, cfg.Log, cfg.RateLimiting, cfg.DebugServer)
	return cfg, err
}

func loadAppConfigFromReader(loader *config.Loader, reader io.Reader, dataType config.DataType) (*AppConfig, error) {
	cfg := NewAppConfig()
	err := loader.LoadFromReader(reader, dataType, cfg.Server, cfg.Log, cfg.RateLimiting, cfg.DebugServer)
	return cfg, err
}
