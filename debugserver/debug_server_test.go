/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package debugserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/log/logtest"
	"github.com/acronis/go-notifygate/ratelimit"
	"github.com/acronis/go-notifygate/restapi"
	"github.com/acronis/go-notifygate/testutil"
)

func TestDebugServer_Start(t *testing.T) {
	addr := testutil.GetLocalAddrWithFreeTCPPort()

	debugServer := New(&Config{Enabled: true, Address: addr}, logtest.NewRecorder(), Opts{})
	fatalErr := make(chan error, 1)
	go debugServer.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(addr, time.Second*3))
	defer func() {
		require.NoError(t, debugServer.Stop(false))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()

	resp, err := http.Get(debugServer.URL + "/debug/pprof/")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, respBody)

	// Rate limit endpoints are not registered without store.
	resp2, err := http.Get(debugServer.URL + "/ratelimit")
	require.NoError(t, err)
	require.NoError(t, resp2.Body.Close())
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestRateLimitEndpoints(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	policies, err := ratelimit.NewPolicyTable(map[string]ratelimit.Policy{
		"status": {Limit: 2, Period: time.Minute},
		"news":   {Limit: 1, Period: 24 * time.Hour},
	})
	require.NoError(t, err)
	store, err := ratelimit.NewCounterStoreWithOpts(ratelimit.StoreOpts{Shards: 2, MaxKeys: 10, Now: func() time.Time { return now }})
	require.NoError(t, err)
	controller := ratelimit.NewAdmissionController(policies, store)
	for i := 0; i < 2; i++ {
		_, err = controller.IsAllowed("status", "alice")
		require.NoError(t, err)
	}

	debugServer := New(NewDefaultConfig(), logtest.NewRecorder(), Opts{
		Policies: policies,
		Store:    store,
		Now:      func() time.Time { return now.Add(time.Second * 10) },
	})
	handler := debugServer.HTTPServer.Handler

	t.Run("info", func(t *testing.T) {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ratelimit", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		testutil.RequireJSONInRecorder(t, resp, &RateLimitInfo{
			Policies: map[string]PolicyInfo{
				"news":   {Limit: 1, PeriodMs: (24 * time.Hour).Milliseconds()},
				"status": {Limit: 2, PeriodMs: time.Minute.Milliseconds()},
			},
			Counters: 1,
			Capacity: 10,
		}, &RateLimitInfo{})
	})

	t.Run("counter", func(t *testing.T) {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ratelimit/counter?type=status&recipient=alice", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		testutil.RequireJSONInRecorder(t, resp, &CounterInfo{
			Type: "status", Recipient: "alice", Count: 2, ResetAfterMs: (time.Second * 50).Milliseconds(),
		}, &CounterInfo{})
	})

	t.Run("counter not found", func(t *testing.T) {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ratelimit/counter?type=status&recipient=bob", nil))
		testutil.RequireErrorInRecorder(t, resp, http.StatusNotFound, errDomain, restapi.ErrCodeNotFound)
	})

	t.Run("counter without recipient", func(t *testing.T) {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ratelimit/counter?type=status", nil))
		testutil.RequireErrorInRecorder(t, resp, http.StatusBadRequest, errDomain, "badRequest")
	})
}
