/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-notifygate/log/logtest"
	"github.com/acronis/go-notifygate/testutil"
)

const testErrDomain = "NotifyGate"

func TestInFlightLimit_InvalidParams(t *testing.T) {
	_, err := InFlightLimit(0, testErrDomain)
	require.EqualError(t, err, "limit should be positive, got 0")
	_, err = InFlightLimitWithOpts(1, testErrDomain, InFlightLimitOpts{BacklogTimeout: -time.Second})
	require.EqualError(t, err, "backlog timeout should not be negative, got -1s")
}

func TestInFlightLimitHandler_ServeHTTP(t *testing.T) {
	const limit = 3
	const reqsNum = 10

	t.Run("requests over the limit are rejected", func(t *testing.T) {
		release := make(chan struct{})
		var started sync.WaitGroup
		started.Add(limit)
		var served atomic.Int32
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			served.Inc()
			started.Done()
			<-release
		})
		mw, err := InFlightLimitWithOpts(limit, testErrDomain, InFlightLimitOpts{
			GetRetryAfter: func(r *http.Request) time.Duration { return 1500 * time.Millisecond },
		})
		require.NoError(t, err)
		h := mw(next)

		var wg sync.WaitGroup
		for i := 0; i < limit; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/notification", nil))
			}()
		}
		started.Wait()

		for i := 0; i < reqsNum-limit; i++ {
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/notification", nil))
			testutil.RequireErrorInRecorder(t, resp, http.StatusServiceUnavailable, testErrDomain, InFlightLimitErrCode)
			require.Equal(t, "2", resp.Header().Get("Retry-After"))
		}

		close(release)
		wg.Wait()
		require.Equal(t, int32(limit), served.Load())

		// Slots are released after serving.
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/notification", nil))
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("request waits in backlog for a free slot", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		var calls atomic.Int32
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if calls.Inc() == 1 {
				close(started)
				<-release
			}
		})
		mw, err := InFlightLimitWithOpts(1, testErrDomain, InFlightLimitOpts{BacklogTimeout: 5 * time.Second})
		require.NoError(t, err)
		h := mw(next)

		go h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/notification", nil))
		<-started
		time.AfterFunc(50*time.Millisecond, func() { close(release) })

		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/notification", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("dry run", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		var calls atomic.Int32
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if calls.Inc() == 1 {
				close(started)
				<-release
			}
		})
		mw, err := InFlightLimitWithOpts(1, testErrDomain, InFlightLimitOpts{DryRun: true})
		require.NoError(t, err)
		h := mw(next)

		done := make(chan struct{})
		go func() {
			defer close(done)
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/notification", nil))
		}()
		<-started

		logger := logtest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/notification", nil)
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		close(release)
		<-done

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, int32(2), calls.Load())
		_, found := logger.FindEntry("too many in-flight requests, serving will be continued because of dry run mode")
		require.True(t, found)
	})
}
