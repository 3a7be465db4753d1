/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-notifygate/httpserver/middleware"
	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/notification"
	"github.com/acronis/go-notifygate/restapi"
)

// Error codes that are used in the notification endpoint responses.
const (
	ErrCodeInvalidNotification    = "invalidNotification"
	ErrCodeRateLimiterUnavailable = "rateLimiterUnavailable"
)

// ErrMessageRateLimiterUnavailable is the error message returned when admission of a notification cannot be checked.
const ErrMessageRateLimiterUnavailable = "Rate limiter is unavailable, the notification was not sent."

// NotificationService sends notifications that pass the rate limit.
// *notification.Service implements it.
type NotificationService interface {
	Send(ctx context.Context, req notification.Request) (notification.Response, error)
}

// NotificationHandler implements http.Handler and serves "POST /notification" requests.
type NotificationHandler struct {
	service     NotificationService
	errorDomain string

	// Every failed admission check makes a 503 response, but its cause is logged not more often than once a second.
	unavailableLogSometimes rate.Sometimes
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service NotificationService, errDomain string) *NotificationHandler {
	return &NotificationHandler{
		service:                 service,
		errorDomain:             errDomain,
		unavailableLogSometimes: rate.Sometimes{First: 1, Interval: time.Second},
	}
}

// ServeHTTP serves notification sending HTTP request.
func (h *NotificationHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())
	if logger == nil {
		logger = log.NewDisabledLogger()
	}

	var req notification.Request
	if err := restapi.DecodeRequestJSON(r, &req); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, h.errorDomain, err, logger)
		return
	}

	lp := middleware.GetLoggingParamsFromContext(r.Context())
	if lp != nil {
		lp.ExtendFields(log.String("notification_type", req.Type))
	}

	startTime := time.Now()
	resp, err := h.service.Send(r.Context(), req)
	if lp != nil {
		lp.AddTimeSlotDurationInMs("notification_ms", time.Since(startTime))
	}
	if err != nil {
		h.respondSendError(rw, err, logger)
		return
	}

	if !resp.Success {
		if lp != nil {
			lp.ExtendFields(log.Bool("rate_limited", true))
		}
		if resp.RetryAfter > 0 {
			rw.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(resp.RetryAfter)))
		}
		restapi.RespondCodeAndJSON(rw, http.StatusTooManyRequests, resp, logger)
		return
	}

	restapi.RespondJSON(rw, resp, logger)
}

func (h *NotificationHandler) respondSendError(rw http.ResponseWriter, err error, logger log.FieldLogger) {
	if errors.Is(err, notification.ErrInvalidRequest) {
		apiErr := restapi.NewError(h.errorDomain, ErrCodeInvalidNotification, capitalize(err.Error())+".")
		restapi.RespondError(rw, http.StatusBadRequest, apiErr, logger)
		return
	}

	h.unavailableLogSometimes.Do(func() {
		logger.Error("failed to check rate limit for notification", log.Error(err))
	})
	apiErr := restapi.NewError(h.errorDomain, ErrCodeRateLimiterUnavailable, ErrMessageRateLimiterUnavailable)
	restapi.RespondError(rw, http.StatusServiceUnavailable, apiErr, logger)
}

// retryAfterSeconds converts duration to the whole number of seconds (rounded up) for Retry-After header.
func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
