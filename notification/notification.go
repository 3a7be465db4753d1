/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-notifygate/log"
)

// Request is a request to send a notification.
type Request struct {
	// Type is a notification type (e.g. "status", "news", "marketing").
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// ErrInvalidRequest is returned (wrapped) by Request.Validate.
var ErrInvalidRequest = errors.New("invalid notification request")

// Validate checks that the request has both type and recipient.
func (r Request) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("%w: type must not be empty", ErrInvalidRequest)
	}
	if r.Recipient == "" {
		return fmt.Errorf("%w: recipient must not be empty", ErrInvalidRequest)
	}
	return nil
}

// Response describes the result of sending a notification.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// RetryAfter is the time after which the same notification may be admitted again.
	// It is set only for denied notifications.
	RetryAfter time.Duration `json:"-"`
}

// Sender delivers a notification.
// Delivery is a side effect that cannot fail from the gateway's point of view.
type Sender interface {
	Send(ctx context.Context, req Request)
}

// SenderFunc is an adapter to allow the use of ordinary functions as Sender.
type SenderFunc func(ctx context.Context, req Request)

// Send implements Sender interface.
func (f SenderFunc) Send(ctx context.Context, req Request) {
	f(ctx, req)
}

// LogSender is a Sender that writes notifications to the log.
type LogSender struct {
	Logger log.FieldLogger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger log.FieldLogger) *LogSender {
	return &LogSender{Logger: logger}
}

// Send implements Sender interface.
func (s *LogSender) Send(_ context.Context, req Request) {
	s.Logger.Info("sending notification",
		log.String("notification_type", req.Type),
		log.String("recipient", req.Recipient),
		log.String("message", req.Message),
	)
}
