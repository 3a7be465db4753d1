/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"sort"
	"time"
)

// Policy limits the number of notifications of one type sent to a single recipient.
// At most Limit notifications are allowed within Period starting with the first one.
type Policy struct {
	Limit  int
	Period time.Duration
}

// Validate checks that the policy is well-formed.
func (p Policy) Validate() error {
	if p.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", p.Limit)
	}
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", p.Period)
	}
	return nil
}

// PolicyTable is an immutable mapping from notification type to its Policy.
// Types not present in the table are unrestricted.
type PolicyTable struct {
	policies map[string]Policy
}

// NewPolicyTable creates a new PolicyTable from a copy of the provided policies.
func NewPolicyTable(policies map[string]Policy) (*PolicyTable, error) {
	copied := make(map[string]Policy, len(policies))
	for notificationType, policy := range policies {
		if notificationType == "" {
			return nil, fmt.Errorf("notification type must not be empty")
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("policy for %q notification type: %w", notificationType, err)
		}
		copied[notificationType] = policy
	}
	return &PolicyTable{policies: copied}, nil
}

// Lookup returns the policy for the notification type.
func (t *PolicyTable) Lookup(notificationType string) (Policy, bool) {
	if t == nil {
		return Policy{}, false
	}
	p, ok := t.policies[notificationType]
	return p, ok
}

// Len returns the number of policies in the table.
func (t *PolicyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.policies)
}

// Types returns the sorted list of notification types that have a policy.
func (t *PolicyTable) Types() []string {
	if t == nil {
		return nil
	}
	types := make([]string, 0, len(t.policies))
	for notificationType := range t.policies {
		types = append(types, notificationType)
	}
	sort.Strings(types)
	return types
}
