/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testGatewayConfigYAML = `
server:
  address: ":8080"
  limits:
    maxBodySize: 64K
    maxBodySizeInt: 1024
    maxBodySizeK8s: 1Mi
    maxBodySizeNegative: -1
    maxBodySizeInvalid: lots
log:
  level: DEBUG
  addCaller: true
rateLimiting:
  excludedRecipients:
    - "*@ops.example.com"
    - "robot@example.com"
  store:
    shards: 32
    cleanupInterval: 90s
`

func newTestViperAdapter(t *testing.T) *ViperAdapter {
	t.Helper()
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(testGatewayConfigYAML), DataTypeYAML))
	return va
}

func TestViperAdapter_Getters(t *testing.T) {
	va := newTestViperAdapter(t)

	addr, err := va.GetString("server.address")
	require.NoError(t, err)
	require.Equal(t, ":8080", addr)

	shards, err := va.GetInt("rateLimiting.store.shards")
	require.NoError(t, err)
	require.Equal(t, 32, shards)

	addCaller, err := va.GetBool("log.addCaller")
	require.NoError(t, err)
	require.True(t, addCaller)

	interval, err := va.GetDuration("rateLimiting.store.cleanupInterval")
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, interval)

	missingInterval, err := va.GetDuration("rateLimiting.store.missing")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), missingInterval)

	recipients, err := va.GetStringSlice("rateLimiting.excludedRecipients")
	require.NoError(t, err)
	require.Equal(t, []string{"*@ops.example.com", "robot@example.com"}, recipients)

	_, err = va.GetInt("server.address")
	require.ErrorContains(t, err, "server.address")
}

func TestViperAdapter_GetStringFromSet(t *testing.T) {
	va := newTestViperAdapter(t)

	level, err := va.GetStringFromSet("log.level", []string{"error", "warn", "info", "debug"}, true)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", level)

	_, err = va.GetStringFromSet("log.level", []string{"error", "warn", "info", "debug"}, false)
	require.EqualError(t, err, `log.level: unknown value "DEBUG", should be one of [error warn info debug]`)
}

func TestViperAdapter_GetByteSize(t *testing.T) {
	va := newTestViperAdapter(t)

	tests := []struct {
		key     string
		want    ByteSize
		wantErr string
	}{
		{key: "server.limits.maxBodySize", want: 64 * 1024},
		{key: "server.limits.maxBodySizeInt", want: 1024},
		{key: "server.limits.maxBodySizeK8s", want: 1024 * 1024},
		{key: "server.limits.missing", want: 0},
		{key: "server.limits.maxBodySizeNegative", wantErr: "negative value is not allowed"},
		{key: "server.limits.maxBodySizeInvalid", wantErr: "invalid byte size format"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := va.GetByteSize(tt.key)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestViperAdapter_UseEnvVars(t *testing.T) {
	t.Setenv("NOTIFYGATE_RATELIMITING_EXCLUDEDRECIPIENTS", "*@a.example.com,*@b.example.com")
	t.Setenv("NOTIFYGATE_RATELIMITING_STORE_SHARDS", "8")

	va := newTestViperAdapter(t)
	va.UseEnvVars("NOTIFYGATE")

	shards, err := va.GetInt("rateLimiting.store.shards")
	require.NoError(t, err)
	require.Equal(t, 8, shards)

	recipients, err := va.GetStringSlice("rateLimiting.excludedRecipients")
	require.NoError(t, err)
	require.Equal(t, []string{"*@a.example.com", "*@b.example.com"}, recipients)
}
