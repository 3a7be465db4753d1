/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
		expectedCfg func() *Config
	}{
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData: `
rateLimiting:
  limits:
    status:
      limit: 2
      period: 1m
    news:
      limit: 1
      period: 24h
    blocked:
      limit: 0
      period: 60000000000
  excludedRecipients:
    - "*@ops.example.com"
  store:
    shards: 16
    maxKeys: 100000
    cleanupInterval: 30s
`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Limits = map[string]PolicyConfig{
					"status":  {Limit: 2, Period: config.TimeDuration(time.Minute)},
					"news":    {Limit: 1, Period: config.TimeDuration(24 * time.Hour)},
					"blocked": {Limit: 0, Period: config.TimeDuration(time.Minute)},
				}
				cfg.ExcludedRecipients = []string{"*@ops.example.com"}
				cfg.Store = StoreConfig{Shards: 16, MaxKeys: 100000, CleanupInterval: config.TimeDuration(30 * time.Second)}
				return cfg
			},
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData: `{
  "rateLimiting": {
    "limits": {"status": {"limit": 3, "period": "90s"}},
    "store": {"cleanupInterval": "0s"}
  }
}`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Limits = map[string]PolicyConfig{
					"status": {Limit: 3, Period: config.TimeDuration(90 * time.Second)},
				}
				cfg.Store.CleanupInterval = 0
				return cfg
			},
		},
		{
			name:        "defaults",
			cfgDataType: config.DataTypeYAML,
			cfgData:     `rateLimiting: {}`,
			expectedCfg: func() *Config {
				return NewDefaultConfig()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(tt.cfgData), tt.cfgDataType, cfg)
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg(), cfg)
		})
	}
}

func TestConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name           string
		yamlData       string
		expectedErrMsg string
	}{
		{
			name: "negative limit",
			yamlData: `
rateLimiting:
  limits:
    status: {limit: -1, period: 1m}
`,
			expectedErrMsg: "limits.status: limit must not be negative",
		},
		{
			name: "zero period",
			yamlData: `
rateLimiting:
  limits:
    status: {limit: 1, period: 0s}
`,
			expectedErrMsg: "limits.status: period must be positive",
		},
		{
			name: "invalid period",
			yamlData: `
rateLimiting:
  limits:
    status: {limit: 1, period: soon}
`,
			expectedErrMsg: "limits",
		},
		{
			name: "shards is not a power of two",
			yamlData: `
rateLimiting:
  store:
    shards: 10
`,
			expectedErrMsg: "store.shards: must be a power of two",
		},
		{
			name: "negative max keys",
			yamlData: `
rateLimiting:
  store:
    maxKeys: -5
`,
			expectedErrMsg: "store.maxKeys: must not be negative",
		},
		{
			name: "negative cleanup interval",
			yamlData: `
rateLimiting:
  store:
    cleanupInterval: -1m
`,
			expectedErrMsg: "store.cleanupInterval: must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(tt.yamlData), config.DataTypeYAML, cfg)
			require.ErrorContains(t, err, tt.expectedErrMsg)
		})
	}
}

func TestConfig_NewPolicyTable(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Limits = map[string]PolicyConfig{
		"status": {Limit: 2, Period: config.TimeDuration(time.Minute)},
		"news":   {Limit: 1, Period: config.TimeDuration(24 * time.Hour)},
	}
	table, err := cfg.NewPolicyTable()
	require.NoError(t, err)
	require.Equal(t, []string{"news", "status"}, table.Types())
	policy, ok := table.Lookup("status")
	require.True(t, ok)
	require.Equal(t, Policy{Limit: 2, Period: time.Minute}, policy)

	cfg.Limits["broken"] = PolicyConfig{Limit: 1}
	_, err = cfg.NewPolicyTable()
	require.ErrorContains(t, err, `policy for "broken" notification type: period must be positive`)
}
