/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package notification

import (
	"context"
	"fmt"

	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-notifygate/log"
	"github.com/acronis/go-notifygate/ratelimit"
)

// Admitter decides whether a notification of the given type may be sent to the recipient.
// *ratelimit.AdmissionController implements it.
type Admitter interface {
	Decide(notificationType, recipient string) (ratelimit.Decision, error)
}

// ServiceOpts represents options for Service.
type ServiceOpts struct {
	// ExcludedRecipients is a list of glob patterns (e.g. "*@ops.example.com").
	// Notifications to matching recipients are sent without admission check.
	ExcludedRecipients []string
	Logger             log.FieldLogger
}

// Service sends notifications that are admitted by Admitter.
type Service struct {
	admitter           Admitter
	sender             Sender
	excludedRecipients []func(s string) bool
	logger             log.FieldLogger
}

// NewService creates a new Service.
func NewService(admitter Admitter, sender Sender) *Service {
	return NewServiceWithOpts(admitter, sender, ServiceOpts{})
}

// NewServiceWithOpts creates a new Service with the specified options.
func NewServiceWithOpts(admitter Admitter, sender Sender, opts ServiceOpts) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	excluded := make([]func(s string) bool, 0, len(opts.ExcludedRecipients))
	for _, pattern := range opts.ExcludedRecipients {
		excluded = append(excluded, glob.Compile(pattern))
	}
	return &Service{admitter: admitter, sender: sender, excludedRecipients: excluded, logger: logger}
}

// Send checks the rate limit for the notification and sends it only if it's admitted.
// Rate limit exceeding is not an error, it's reported as an unsuccessful Response.
// An error is returned when the rate limit cannot be checked, the notification is not sent in this case.
func (s *Service) Send(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	logger := s.logger.With(log.String("notification_type", req.Type), log.String("recipient", req.Recipient))

	if s.isExcluded(req.Recipient) {
		logger.Debug("recipient is excluded from rate limiting")
	} else {
		decision, err := s.admitter.Decide(req.Type, req.Recipient)
		if err != nil {
			return Response{}, fmt.Errorf("check rate limit for notification: %w", err)
		}
		if !decision.Allowed {
			msg := fmt.Sprintf("Rate limit exceeded for '%s' notification to %s", req.Type, req.Recipient)
			logger.Info(msg, log.Int("limit", decision.Limit), log.Int64("retry_after_ms", decision.ResetAfter.Milliseconds()))
			return Response{Success: false, Message: msg, RetryAfter: decision.ResetAfter}, nil
		}
	}

	s.sender.Send(ctx, req)
	return Response{Success: true, Message: fmt.Sprintf("Notification '%s' sent to %s", req.Type, req.Recipient)}, nil
}

func (s *Service) isExcluded(recipient string) bool {
	for _, match := range s.excludedRecipients {
		if match(recipient) {
			return true
		}
	}
	return false
}
