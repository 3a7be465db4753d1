/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"

	"github.com/acronis/go-notifygate/log"
)

// otherTypesLabel is used as the "type" label value for notification types without a policy,
// so arbitrary client input cannot blow up the metric cardinality.
const otherTypesLabel = "other"

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed is true if the notification may be sent.
	Allowed bool

	// Restricted is false if the notification type has no policy.
	// Limit, Remaining and ResetAfter are meaningful only for restricted types.
	Restricted bool

	Limit int

	// Remaining is the number of notifications that may still be sent within the current period.
	Remaining int

	// ResetAfter is the time until the current period of the counter elapses.
	ResetAfter time.Duration
}

// AdmissionControllerOpts represents options for the AdmissionController.
type AdmissionControllerOpts struct {
	// MetricsCollector collects admission decisions. Metrics are disabled if nil.
	MetricsCollector AdmissionMetricsCollector

	// Logger is used for debug logging of unrestricted notification types. Logging is disabled if nil.
	Logger log.FieldLogger
}

// AdmissionController decides whether a notification of a given type may be sent to a given recipient.
type AdmissionController struct {
	policies         *PolicyTable
	store            *CounterStore
	metricsCollector AdmissionMetricsCollector
	logger           log.FieldLogger
	now              func() time.Time
}

// NewAdmissionController creates a new AdmissionController with default options.
func NewAdmissionController(policies *PolicyTable, store *CounterStore) *AdmissionController {
	return NewAdmissionControllerWithOpts(policies, store, AdmissionControllerOpts{})
}

// NewAdmissionControllerWithOpts creates a new AdmissionController with the provided options.
func NewAdmissionControllerWithOpts(
	policies *PolicyTable, store *CounterStore, opts AdmissionControllerOpts,
) *AdmissionController {
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &AdmissionController{
		policies:         policies,
		store:            store,
		metricsCollector: opts.MetricsCollector,
		logger:           opts.Logger,
		now:              store.now,
	}
}

// Policies returns the policy table the controller works with.
func (c *AdmissionController) Policies() *PolicyTable {
	return c.policies
}

// IsAllowed reports whether a notification of the type may be sent to the recipient.
// If it's allowed, the request is counted against the recipient's limit.
// A non-nil error means the decision could not be made, and the notification must not be sent.
func (c *AdmissionController) IsAllowed(notificationType, recipient string) (bool, error) {
	decision, err := c.Decide(notificationType, recipient)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// Decide works like IsAllowed but returns the full outcome of the admission check.
func (c *AdmissionController) Decide(notificationType, recipient string) (Decision, error) {
	policy, ok := c.policies.Lookup(notificationType)
	if !ok {
		c.metricsCollector.IncDecisions(otherTypesLabel, ResultUnrestricted)
		c.logger.Debug("no rate limit policy for notification type, sending is unrestricted",
			log.String("notification_type", notificationType))
		return Decision{Allowed: true}, nil
	}

	state, allowed, err := c.store.TryIncrement(MakeKey(notificationType, recipient), policy.Period, policy.Limit)
	if err != nil {
		c.metricsCollector.IncDecisions(notificationType, ResultError)
		return Decision{}, fmt.Errorf("check rate limit for %q notification type: %w", notificationType, err)
	}

	result := ResultDenied
	if allowed {
		result = ResultAllowed
	}
	c.metricsCollector.IncDecisions(notificationType, result)

	resetAfter := state.ExpiresAt.Sub(c.now())
	if resetAfter < 0 {
		resetAfter = 0
	}
	remaining := policy.Limit - state.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    allowed,
		Restricted: true,
		Limit:      policy.Limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}, nil
}

// MakeKey returns the counter key for the notification type and recipient.
func MakeKey(notificationType, recipient string) string {
	return notificationType + ":" + recipient
}
