/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/log"
)

func TestGetLoggerFromContext(t *testing.T) {
	t.Run("empty logger", func(t *testing.T) {
		require.Nil(t, GetLoggerFromContext(context.Background()))
	})
	t.Run("non empty logger", func(t *testing.T) {
		logger := log.NewDisabledLogger()
		ctx := NewContextWithLogger(context.Background(), logger)
		require.Equal(t, logger, GetLoggerFromContext(ctx))
	})
}

func TestGetRequestIDFromContext(t *testing.T) {
	require.Equal(t, "", GetRequestIDFromContext(context.Background()))
	ctx := NewContextWithRequestID(context.Background(), "external-request-id")
	require.Equal(t, "external-request-id", GetRequestIDFromContext(ctx))
}

func TestGetInternalRequestIDFromContext(t *testing.T) {
	require.Equal(t, "", GetInternalRequestIDFromContext(context.Background()))
	ctx := NewContextWithInternalRequestID(context.Background(), "internal-request-id")
	require.Equal(t, "internal-request-id", GetInternalRequestIDFromContext(ctx))
}

func TestGetLoggingParamsFromContext(t *testing.T) {
	require.Nil(t, GetLoggingParamsFromContext(context.Background()))
	lp := &LoggingParams{}
	require.Same(t, lp, GetLoggingParamsFromContext(NewContextWithLoggingParams(context.Background(), lp)))
}

func TestGetRequestStartTimeFromContext(t *testing.T) {
	require.True(t, GetRequestStartTimeFromContext(context.Background()).IsZero())
	startTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := NewContextWithRequestStartTime(context.Background(), startTime)
	require.Equal(t, startTime, GetRequestStartTimeFromContext(ctx))
}
