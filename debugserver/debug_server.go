/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package debugserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-notifygate/httpserver/middleware"
	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/ratelimit"
	"github.com/acronis/go-notifygate/restapi"
	"github.com/acronis/go-notifygate/service"
)

const errDomain = "NotifyGateDebug"

// Opts represents options for the debug server.
type Opts struct {
	// Policies and Store are exposed via /ratelimit endpoints. The endpoints are not registered if Store is nil.
	Policies *ratelimit.PolicyTable
	Store    *ratelimit.CounterStore

	// Now returns the current time. time.Now is used if nil.
	Now func() time.Time
}

// PolicyInfo describes the rate limit policy of a single notification type.
type PolicyInfo struct {
	Limit    int   `json:"limit"`
	PeriodMs int64 `json:"periodMs"`
}

// RateLimitInfo is a response of the "GET /ratelimit" endpoint.
type RateLimitInfo struct {
	Policies map[string]PolicyInfo `json:"policies"`
	Counters int                   `json:"counters"`
	Capacity int                   `json:"capacity"`
}

// CounterInfo is a response of the "GET /ratelimit/counter" endpoint.
type CounterInfo struct {
	Type         string `json:"type"`
	Recipient    string `json:"recipient"`
	Count        int    `json:"count"`
	ResetAfterMs int64  `json:"resetAfterMs"`
}

// DebugServer represents HTTP server for debugging: pprof profiles and read-only inspection of rate limiting state.
// It implements service.Unit interface.
type DebugServer struct {
	URL            string
	HTTPServer     *http.Server
	httpServerDone chan struct{}
	Logger         log.FieldLogger
}

var _ service.Unit = (*DebugServer)(nil)

// New creates a new debug HTTP server.
func New(cfg *Config, logger log.FieldLogger, opts Opts) *DebugServer {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.LoggingWithOpts(logger, middleware.LoggingOpts{RequestStart: true}),
	)
	router.Mount("/debug", chimw.Profiler())
	if opts.Store != nil {
		if opts.Now == nil {
			opts.Now = time.Now
		}
		h := &rateLimitHandler{policies: opts.Policies, store: opts.Store, now: opts.Now}
		router.Get("/ratelimit", h.getInfo)
		router.Get("/ratelimit/counter", h.getCounter)
	}

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: time.Second * 5,
	}

	return &DebugServer{
		URL:            "http://" + httpServer.Addr,
		HTTPServer:     httpServer,
		httpServerDone: make(chan struct{}),
		Logger:         logger,
	}
}

// Start starts debug HTTP server in a blocking way. Supposed this methods will be called in a separate goroutine.
// If a fatal error occurs, it's sent into passed fatalError channel and should be processed outside.
func (s *DebugServer) Start(fatalError chan<- error) {
	defer close(s.httpServerDone)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))

	logger.Info("starting debug HTTP server...")
	if err := s.HTTPServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("debug HTTP server closed")
			return
		}
		logger.Error("debug HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops debug HTTP server (always in no gracefully way).
func (s *DebugServer) Stop(gracefully bool) error {
	s.Logger.Info("closing debug HTTP server...")
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("debug HTTP server closing error", log.Error(err))
		return err
	}
	<-s.httpServerDone // Wait closing of listener.
	return nil
}

type rateLimitHandler struct {
	policies *ratelimit.PolicyTable
	store    *ratelimit.CounterStore
	now      func() time.Time
}

func (h *rateLimitHandler) getInfo(rw http.ResponseWriter, r *http.Request) {
	info := RateLimitInfo{
		Policies: make(map[string]PolicyInfo, h.policies.Len()),
		Counters: h.store.Len(),
		Capacity: h.store.Capacity(),
	}
	for _, notificationType := range h.policies.Types() {
		policy, _ := h.policies.Lookup(notificationType)
		info.Policies[notificationType] = PolicyInfo{Limit: policy.Limit, PeriodMs: policy.Period.Milliseconds()}
	}
	restapi.RespondJSON(rw, info, middleware.GetLoggerFromContext(r.Context()))
}

func (h *rateLimitHandler) getCounter(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())
	notificationType, recipient := r.URL.Query().Get("type"), r.URL.Query().Get("recipient")
	if notificationType == "" || recipient == "" {
		apiErr := restapi.NewError(errDomain, "badRequest", "Both type and recipient query parameters are required.")
		restapi.RespondError(rw, http.StatusBadRequest, apiErr, logger)
		return
	}
	state, ok := h.store.Get(ratelimit.MakeKey(notificationType, recipient))
	if !ok {
		apiErr := restapi.NewError(errDomain, restapi.ErrCodeNotFound, "No live counter for the notification type and recipient.")
		restapi.RespondError(rw, http.StatusNotFound, apiErr, logger)
		return
	}
	resetAfter := state.ExpiresAt.Sub(h.now())
	if resetAfter < 0 {
		resetAfter = 0
	}
	restapi.RespondJSON(rw, CounterInfo{
		Type:         notificationType,
		Recipient:    recipient,
		Count:        state.Count,
		ResetAfterMs: resetAfter.Milliseconds(),
	}, logger)
}
