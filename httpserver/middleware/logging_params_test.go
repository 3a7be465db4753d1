/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"testing"
	"time"

	"github.com/ssgreg/logf"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-notifygate/log"
)

func TestLoggingParams_ExtendFields(t *testing.T) {
	lp := LoggingParams{}
	lp.ExtendFields(log.String("notification_type", "status"))
	lp.ExtendFields(log.String("admission", "denied"), log.Int("limit", 2))

	require.Equal(t, []log.Field{
		log.String("notification_type", "status"),
		log.String("admission", "denied"),
		log.Int("limit", 2),
	}, lp.getFields(true))
}

func TestLoggingParams_AddTimeSlotDurationInMs(t *testing.T) {
	lp := LoggingParams{}
	lp.AddTimeSlotDurationInMs("admission_ms", time.Second)
	lp.AddTimeSlotDurationInMs("admission_ms", 500*time.Millisecond)
	lp.AddTimeSlotDurationInMs("sending_ms", 2*time.Second)

	require.Empty(t, lp.getFields(false))
	require.Equal(t, []log.Field{{
		Key:  "time_slots",
		Type: logf.FieldTypeObject,
		Any:  loggableIntMap{"admission_ms": 1500, "sending_ms": 2000},
	}}, lp.getFields(true))
}
