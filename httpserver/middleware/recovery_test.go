/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/log/logtest"
	"github.com/acronis/go-notifygate/restapi"
	"github.com/acronis/go-notifygate/testutil"
)

type mockRecoveryNextHandler struct {
	called     int
	panicValue interface{}
}

func (h *mockRecoveryNextHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.called++
	if h.panicValue != nil {
		panic(h.panicValue)
	}
	panic("test")
}

func TestRecoveryHandler_ServeHTTP(t *testing.T) {
	const errDomain = "NotifyGate"

	t.Run("recovery w/o logging", func(t *testing.T) {
		next := &mockRecoveryNextHandler{}
		req := httptest.NewRequest(http.MethodPost, "/notification", nil)
		resp := httptest.NewRecorder()

		require.NotPanics(t, func() { Recovery(errDomain)(next).ServeHTTP(resp, req) })

		require.Equal(t, 1, next.called)
		testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, errDomain, restapi.ErrCodeInternal)
	})

	t.Run("recovery with logging", func(t *testing.T) {
		const stackSize = 10
		next := &mockRecoveryNextHandler{}
		logger := logtest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/notification", nil)
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))
		resp := httptest.NewRecorder()

		handler := RecoveryWithOpts(errDomain, RecoveryOpts{StackSize: stackSize})(next)
		require.NotPanics(t, func() { handler.ServeHTTP(resp, req) })

		require.Equal(t, 1, next.called)
		testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, errDomain, restapi.ErrCodeInternal)
		entry, found := logger.FindEntry("Panic: test")
		require.True(t, found)
		require.Equal(t, log.LevelError, entry.Level)
		stack, found := entry.StringField("stack")
		require.True(t, found)
		require.Len(t, stack, stackSize)
	})

	t.Run("http.ErrAbortHandler is propagated", func(t *testing.T) {
		next := &mockRecoveryNextHandler{panicValue: http.ErrAbortHandler}
		logger := logtest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/notification", nil)
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))

		require.Panics(t, func() { Recovery(errDomain)(next).ServeHTTP(httptest.NewRecorder(), req) })

		require.Equal(t, 1, next.called)
		_, found := logger.FindEntry("Panic: " + http.ErrAbortHandler.Error())
		require.False(t, found)
		entry, found := logger.FindEntry("request has been aborted")
		require.True(t, found)
		require.Equal(t, log.LevelWarn, entry.Level)
	})
}
