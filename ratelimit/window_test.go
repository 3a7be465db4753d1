/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// FixedWindowTestSuite checks how counters behave across period boundaries.
type FixedWindowTestSuite struct {
	suite.Suite
	Shards int

	clock      *fakeClock
	store      *CounterStore
	controller *AdmissionController
}

func TestFixedWindowSingleShard(t *testing.T) {
	suite.Run(t, &FixedWindowTestSuite{Shards: 1})
}

func TestFixedWindowDefaultShards(t *testing.T) {
	suite.Run(t, &FixedWindowTestSuite{Shards: DefaultStoreShards})
}

func (s *FixedWindowTestSuite) SetupTest() {
	s.clock = newFakeClock()
	var err error
	s.store, err = NewCounterStoreWithOpts(StoreOpts{Shards: s.Shards, Now: s.clock.Now})
	s.Require().NoError(err)
	table, err := NewPolicyTable(map[string]Policy{
		"status": {Limit: 2, Period: time.Minute},
		"news":   {Limit: 1, Period: 24 * time.Hour},
	})
	s.Require().NoError(err)
	s.controller = NewAdmissionController(table, s.store)
}

func (s *FixedWindowTestSuite) decide(notificationType, recipient string) Decision {
	decision, err := s.controller.Decide(notificationType, recipient)
	s.Require().NoError(err)
	return decision
}

func (s *FixedWindowTestSuite) TestWindowIsAnchoredAtFirstRequest() {
	s.Require().True(s.decide("status", "user").Allowed)
	s.clock.Advance(50 * time.Second)
	s.Require().True(s.decide("status", "user").Allowed)

	// Still within the first minute, the second request did not move the window.
	s.clock.Advance(9 * time.Second)
	decision := s.decide("status", "user")
	s.Require().False(decision.Allowed)
	s.Require().Equal(time.Second, decision.ResetAfter)

	s.clock.Advance(time.Second)
	decision = s.decide("status", "user")
	s.Require().True(decision.Allowed)
	s.Require().Equal(1, decision.Remaining)
	s.Require().Equal(time.Minute, decision.ResetAfter)
}

func (s *FixedWindowTestSuite) TestDeniedRequestsDoNotExtendWindow() {
	s.Require().True(s.decide("news", "user").Allowed)
	for i := 0; i < 24; i++ {
		s.clock.Advance(time.Hour - time.Minute)
		s.Require().False(s.decide("news", "user").Allowed)
	}
	s.clock.Advance(24 * time.Minute)
	s.Require().True(s.decide("news", "user").Allowed)
}

func (s *FixedWindowTestSuite) TestCountersAreIndependent() {
	s.Require().True(s.decide("news", "user").Allowed)
	s.Require().False(s.decide("news", "user").Allowed)

	s.Require().True(s.decide("news", "another").Allowed)
	s.Require().True(s.decide("status", "user").Allowed)

	state, ok := s.store.Get(MakeKey("news", "user"))
	s.Require().True(ok)
	s.Require().Equal(1, state.Count)
}

func (s *FixedWindowTestSuite) TestExpiredCountersAreSwept() {
	s.decide("status", "user")
	s.decide("news", "user")
	s.Require().Equal(2, s.store.Len())

	s.clock.Advance(time.Minute)
	s.Require().Equal(1, s.store.Sweep())
	s.Require().Equal(1, s.store.Len())

	s.clock.Advance(24 * time.Hour)
	s.Require().Equal(1, s.store.Sweep())
	s.Require().Equal(0, s.store.Len())
}
