/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/log"
)

func TestRecorder(t *testing.T) {
	logRecorder := NewRecorder()
	logRecorder.Warn("rate limit exceeded", log.Int("limit", 2), log.String("notification_type", "status"))
	logRecorder.With(log.String("request_id", "abc")).Info("notification sent")

	require.Len(t, logRecorder.Entries(), 2)

	_, found := logRecorder.FindEntry("unknown")
	require.False(t, found)

	logEntry, found := logRecorder.FindEntry("rate limit exceeded")
	require.True(t, found)
	require.Equal(t, log.LevelWarn, logEntry.Level)

	limitField, found := logEntry.FindField("limit")
	require.True(t, found)
	require.Equal(t, 2, int(limitField.Int))

	typeField, found := logEntry.FindField("notification_type")
	require.True(t, found)
	require.Equal(t, "status", string(typeField.Bytes))

	infoEntries := logRecorder.EntriesAtLevel(log.LevelInfo)
	require.Len(t, infoEntries, 1)
	requestID, found := infoEntries[0].StringField("request_id")
	require.True(t, found)
	require.Equal(t, "abc", requestID)
	_, found = logEntry.StringField("limit")
	require.False(t, found)

	logRecorder.Reset()
	require.Empty(t, logRecorder.Entries())
}
