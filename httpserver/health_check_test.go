/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/httpserver/middleware"
	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/restapi"
	"github.com/acronis/go-notifygate/testutil"
)

func TestHealthCheckHandler_ServeHTTP(t *testing.T) {
	makeRequest := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		return req.WithContext(middleware.NewContextWithLogger(req.Context(), log.NewDisabledLogger()))
	}

	t.Run("health-check returns error", func(t *testing.T) {
		h := NewHealthCheckHandler(func(_ context.Context) (HealthCheckResult, error) {
			return nil, fmt.Errorf("internal error")
		})
		resp := httptest.NewRecorder()

		h.ServeHTTP(resp, makeRequest())

		require.Equal(t, http.StatusInternalServerError, resp.Code)
	})

	t.Run("health-check with empty components", func(t *testing.T) {
		h := NewHealthCheckHandler(func(_ context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{}, nil
		})
		resp := httptest.NewRecorder()

		h.ServeHTTP(resp, makeRequest())

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, restapi.ContentTypeAppJSON, resp.Header().Get("Content-Type"))
	})

	t.Run("health-check returns unhealthy components", func(t *testing.T) {
		h := NewHealthCheckHandler(func(_ context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{"ratelimit": HealthCheckStatusFail, "sender": HealthCheckStatusOK}, nil
		})
		resp := httptest.NewRecorder()

		h.ServeHTTP(resp, makeRequest())

		require.Equal(t, http.StatusServiceUnavailable, resp.Code)
		testutil.RequireJSONInRecorder(t, resp,
			&healthCheckResponseData{Components: map[string]bool{"ratelimit": false, "sender": true}},
			&healthCheckResponseData{})
	})

	t.Run("health-check returns healthy components", func(t *testing.T) {
		h := NewHealthCheckHandler(func(_ context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{"ratelimit": HealthCheckStatusOK}, nil
		})
		resp := httptest.NewRecorder()

		h.ServeHTTP(resp, makeRequest())

		require.Equal(t, http.StatusOK, resp.Code)
		testutil.RequireJSONInRecorder(t, resp,
			&healthCheckResponseData{Components: map[string]bool{"ratelimit": true}},
			&healthCheckResponseData{})
	})

	t.Run("default health-check responds 499 on client cancel", func(t *testing.T) {
		h := NewHealthCheckHandler(nil)
		resp := httptest.NewRecorder()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ctx = middleware.NewContextWithLogger(ctx, log.NewDisabledLogger())
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(ctx)

		h.ServeHTTP(resp, req)

		require.Equal(t, StatusClientClosedRequest, resp.Code)
	})
}
