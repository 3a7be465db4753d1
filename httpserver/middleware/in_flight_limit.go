/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/restapi"
)

// InFlightLimitErrCode is the error code that is used in a response body
// if the request is rejected by the middleware that limits in-flight HTTP requests.
const InFlightLimitErrCode = "tooManyInFlightRequests"

// InFlightLimitErrMessage is the error message that is used in a response body.
const InFlightLimitErrMessage = "Too many in-flight requests."

// InFlightLimitGetRetryAfterFunc is a function that is called to get a value for Retry-After response HTTP header
// when the in-flight limit is exceeded.
type InFlightLimitGetRetryAfterFunc func(r *http.Request) time.Duration

// InFlightLimitOpts represents an options for the middleware to limit in-flight HTTP requests.
type InFlightLimitOpts struct {
	// BacklogTimeout is the time the request may wait for a free slot before rejection. Zero means no waiting.
	BacklogTimeout time.Duration

	GetRetryAfter InFlightLimitGetRetryAfterFunc

	// DryRun makes the middleware only log requests which would be rejected.
	DryRun bool
}

type inFlightLimitHandler struct {
	next        http.Handler
	slots       chan struct{}
	errorDomain string
	opts        InFlightLimitOpts
}

// InFlightLimit is a middleware that limits the total number of currently served (in-flight) HTTP requests.
// Requests over the limit are rejected with 503 status code.
func InFlightLimit(limit int, errDomain string) (func(next http.Handler) http.Handler, error) {
	return InFlightLimitWithOpts(limit, errDomain, InFlightLimitOpts{})
}

// InFlightLimitWithOpts is a more configurable version of InFlightLimit middleware.
func InFlightLimitWithOpts(limit int, errDomain string, opts InFlightLimitOpts) (func(next http.Handler) http.Handler, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit should be positive, got %d", limit)
	}
	if opts.BacklogTimeout < 0 {
		return nil, fmt.Errorf("backlog timeout should not be negative, got %s", opts.BacklogTimeout)
	}
	slots := make(chan struct{}, limit)
	return func(next http.Handler) http.Handler {
		return &inFlightLimitHandler{next: next, slots: slots, errorDomain: errDomain, opts: opts}
	}, nil
}

func (h *inFlightLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if h.acquire(r) {
		defer func() { <-h.slots }()
		h.next.ServeHTTP(rw, r)
		return
	}

	logger := GetLoggerFromContext(r.Context())
	if h.opts.DryRun {
		if logger != nil {
			logger.Warn("too many in-flight requests, serving will be continued because of dry run mode",
				log.Int("in_flight_limit", cap(h.slots)))
		}
		h.next.ServeHTTP(rw, r)
		return
	}

	if h.opts.GetRetryAfter != nil {
		rw.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(h.opts.GetRetryAfter(r).Seconds()))))
	}
	apiErr := restapi.NewError(h.errorDomain, InFlightLimitErrCode, InFlightLimitErrMessage)
	restapi.RespondError(rw, http.StatusServiceUnavailable, apiErr, logger)
}

func (h *inFlightLimitHandler) acquire(r *http.Request) bool {
	select {
	case h.slots <- struct{}{}:
		return true
	default:
	}
	if h.opts.BacklogTimeout == 0 {
		return false
	}
	timer := time.NewTimer(h.opts.BacklogTimeout)
	defer timer.Stop()
	select {
	case h.slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-r.Context().Done():
		return false
	}
}
