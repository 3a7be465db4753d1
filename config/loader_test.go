/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testServerConfig struct {
	Address string
}

func (c *testServerConfig) KeyPrefix() string {
	return "server"
}

func (c *testServerConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("address", ":8080")
}

func (c *testServerConfig) Set(dp DataProvider) error {
	var err error
	c.Address, err = dp.GetString("address")
	return err
}

type testLimitsConfig struct {
	Limits map[string]struct {
		Limit  int          `mapstructure:"limit"`
		Period TimeDuration `mapstructure:"period"`
	}
}

func (c *testLimitsConfig) SetProviderDefaults(_ DataProvider) {}

func (c *testLimitsConfig) Set(dp DataProvider) error {
	return dp.UnmarshalKey("rateLimiting.limits", &c.Limits, WithTextUnmarshalerHook())
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("use defaults", func(t *testing.T) {
		serverCfg := &testServerConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, serverCfg)
		require.NoError(t, err)
		require.Equal(t, ":8080", serverCfg.Address)
	})

	t.Run("several sections", func(t *testing.T) {
		serverCfg := &testServerConfig{}
		limitsCfg := &testLimitsConfig{}
		cfgData := `
server:
  address: ":9090"
rateLimiting:
  limits:
    status: {limit: 2, period: 1m}
`
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgData), DataTypeYAML, serverCfg, limitsCfg)
		require.NoError(t, err)
		require.Equal(t, ":9090", serverCfg.Address)
		require.Equal(t, 2, limitsCfg.Limits["status"].Limit)
		require.Equal(t, "1m0s", limitsCfg.Limits["status"].Period.String())
	})

	t.Run("invalid data", func(t *testing.T) {
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{`), DataTypeJSON, &testServerConfig{})
		require.Error(t, err)
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  address: \":7070\"\n"), 0o600))

	serverCfg := &testServerConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(cfgPath, DataTypeYAML, serverCfg))
	require.Equal(t, ":7070", serverCfg.Address)

	err := NewLoader(NewViperAdapter()).LoadFromFile(filepath.Join(t.TempDir(), "missing.yml"), DataTypeYAML, serverCfg)
	require.Error(t, err)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("NOTIFYGATE_SERVER_ADDRESS", ":6060")

	serverCfg := &testServerConfig{}
	require.NoError(t, NewDefaultLoader("NOTIFYGATE").Load(serverCfg))
	require.Equal(t, ":6060", serverCfg.Address)
}
