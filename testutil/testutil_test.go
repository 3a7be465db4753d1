/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type mockT struct {
	failed bool
}

func (t *mockT) FailNow() {
	t.failed = true
}

func (t *mockT) Errorf(string, ...interface{}) {}

func TestRequireErrorInRecorder(t *testing.T) {
	tests := []struct {
		name            string
		respCode        int
		respContentType string
		respBody        string
		wantFailed      bool
	}{
		{
			name:            "ok",
			respCode:        503,
			respContentType: contentTypeAppJSON,
			respBody:        `{"error":{"domain":"NotifyGate","code":"rateLimiterUnavailable"}}`,
		},
		{
			name:            "unexpected status code",
			respCode:        500,
			respContentType: contentTypeAppJSON,
			respBody:        `{"error":{"domain":"NotifyGate","code":"rateLimiterUnavailable"}}`,
			wantFailed:      true,
		},
		{
			name:            "unexpected content type",
			respCode:        503,
			respContentType: "text/plain",
			respBody:        `{"error":{"domain":"NotifyGate","code":"rateLimiterUnavailable"}}`,
			wantFailed:      true,
		},
		{
			name:            "unexpected domain",
			respCode:        503,
			respContentType: contentTypeAppJSON,
			respBody:        `{"error":{"domain":"Other","code":"rateLimiterUnavailable"}}`,
			wantFailed:      true,
		},
		{
			name:            "not wrapped error",
			respCode:        503,
			respContentType: contentTypeAppJSON,
			respBody:        `{"domain":"NotifyGate","code":"rateLimiterUnavailable"}`,
			wantFailed:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.Header().Set("Content-Type", tt.respContentType)
			rec.WriteHeader(tt.respCode)
			_, _ = rec.Write([]byte(tt.respBody))
			mt := &mockT{}
			RequireErrorInRecorder(mt, rec, 503, "NotifyGate", "rateLimiterUnavailable")
			require.Equal(t, tt.wantFailed, mt.failed)
		})
	}
}

func TestRequireJSONInRecorder(t *testing.T) {
	type resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", contentTypeAppJSON)
	_, _ = rec.Write([]byte(`{"success":true,"message":"sent"}`))
	RequireJSONInRecorder(t, rec, &resp{true, "sent"}, &resp{})
}

func TestRequireNoErrorInChannel(t *testing.T) {
	mt := &mockT{}
	ch := make(chan error, 1)

	RequireNoErrorInChannel(mt, ch)
	require.False(t, mt.failed)

	ch <- errors.New("listen tcp: address already in use")
	RequireNoErrorInChannel(mt, ch)
	require.True(t, mt.failed)
}

func TestRequireErrorInChannelWithin(t *testing.T) {
	ch := make(chan error, 1)
	wantErr := errors.New("unit failed")
	go func() { ch <- wantErr }()
	require.Equal(t, wantErr, RequireErrorInChannelWithin(t, ch, time.Second))

	mt := &mockT{}
	RequireErrorInChannelWithin(mt, make(chan error), 10*time.Millisecond)
	require.True(t, mt.failed)
}

func TestRequireSamplesCountInHistogram(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_duration_seconds", Help: "Test."})
	hist.Observe(0.1)
	hist.Observe(0.2)
	RequireSamplesCountInHistogram(t, hist, 2)
}

func TestAssertMetricFamiliesRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "Test."})
	registry.MustRegister(counter)
	counter.Inc()
	require.True(t, AssertMetricFamiliesRegistered(t, registry, "test_total"))
}

func TestWaitPortAndListeningServer(t *testing.T) {
	var port atomic.Int32
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()
	go func() {
		time.Sleep(20 * time.Millisecond)
		port.Store(int32(listener.Addr().(*net.TCPAddr).Port))
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	gotPort, err := WaitPortAndListeningServer("127.0.0.1", func() int { return int(port.Load()) }, time.Second)
	require.NoError(t, err)
	require.Equal(t, listener.Addr().(*net.TCPAddr).Port, gotPort)

	require.Error(t, WaitListeningServer(GetLocalAddrWithFreeTCPPort(), 50*time.Millisecond))
}
