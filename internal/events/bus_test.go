package events_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/gamemaster-api/internal/events"
)

type BusTestSuite struct {
	suite.Suite
	bus *events.Bus
	ctx context.Context
}

func (s *BusTestSuite) SetupTest() {
	s.bus = events.NewBus()
	s.ctx = context.Background()
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusTestSuite))
}

func (s *BusTestSuite) publishHPChange(correlationID string) {
	err := s.bus.Publish(s.ctx, &events.CombatantHPChanged{
		Meta:        events.Meta{EventID: "evt_1", CorrelationID: correlationID, SessionID: "sess_1"},
		CombatantID: "goblin_1",
		Name:        "Goblin",
		OldHP:       7,
		NewHP:       2,
		MaxHP:       7,
	})
	s.Require().NoError(err)
}

func (s *BusTestSuite) TestSubscribeAndPublish() {
	var received []events.Event
	s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 0, func(_ context.Context, e events.Event) error {
		received = append(received, e)
		return nil
	})

	s.publishHPChange("corr_1")

	s.Require().Len(received, 1)
	hp, ok := received[0].(*events.CombatantHPChanged)
	s.Require().True(ok)
	s.Assert().Equal(int32(2), hp.NewHP)
	s.Assert().Equal("corr_1", hp.EventMeta().CorrelationID)
}

func (s *BusTestSuite) TestTypeFiltering() {
	var count int
	s.bus.SubscribeFunc(events.TypeCombatEnded, 0, func(_ context.Context, _ events.Event) error {
		count++
		return nil
	})

	s.publishHPChange("corr_1")

	s.Assert().Zero(count)
}

func (s *BusTestSuite) TestWildcardSubscriber() {
	var seen []events.Type
	s.bus.SubscribeFunc(events.TypeAny, 0, func(_ context.Context, e events.Event) error {
		seen = append(seen, e.EventType())
		return nil
	})

	s.publishHPChange("corr_1")
	err := s.bus.Publish(s.ctx, &events.CombatEnded{
		Meta:   events.Meta{EventID: "evt_2", CorrelationID: "corr_1", SessionID: "sess_1"},
		Reason: "victory",
	})
	s.Require().NoError(err)

	s.Assert().Equal([]events.Type{events.TypeCombatantHPChanged, events.TypeCombatEnded}, seen)
}

func (s *BusTestSuite) TestPriorityOrdering() {
	var order []string
	s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 10, func(_ context.Context, _ events.Event) error {
		order = append(order, "late")
		return nil
	})
	s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 0, func(_ context.Context, _ events.Event) error {
		order = append(order, "early")
		return nil
	})
	s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 0, func(_ context.Context, _ events.Event) error {
		order = append(order, "early-second")
		return nil
	})

	s.publishHPChange("corr_1")

	s.Assert().Equal([]string{"early", "early-second", "late"}, order)
}

func (s *BusTestSuite) TestHandlerErrorDoesNotStopDelivery() {
	var delivered bool
	s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 0, func(_ context.Context, _ events.Event) error {
		return fmt.Errorf("sink unavailable")
	})
	s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 1, func(_ context.Context, _ events.Event) error {
		delivered = true
		return nil
	})

	s.publishHPChange("corr_1")

	s.Assert().True(delivered)
}

func (s *BusTestSuite) TestUnsubscribe() {
	var count int
	id := s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 0, func(_ context.Context, _ events.Event) error {
		count++
		return nil
	})

	s.publishHPChange("corr_1")
	s.Require().NoError(s.bus.Unsubscribe(id))
	s.publishHPChange("corr_2")

	s.Assert().Equal(1, count)
}

func (s *BusTestSuite) TestUnsubscribeUnknown() {
	err := s.bus.Unsubscribe("sub_999")
	s.Assert().Error(err)
}

func (s *BusTestSuite) TestClear() {
	var hpCount, endCount int
	s.bus.SubscribeFunc(events.TypeCombatantHPChanged, 0, func(_ context.Context, _ events.Event) error {
		hpCount++
		return nil
	})
	s.bus.SubscribeFunc(events.TypeCombatEnded, 0, func(_ context.Context, _ events.Event) error {
		endCount++
		return nil
	})

	s.bus.Clear(events.TypeCombatantHPChanged)

	s.publishHPChange("corr_1")
	err := s.bus.Publish(s.ctx, &events.CombatEnded{
		Meta: events.Meta{EventID: "evt_2", SessionID: "sess_1"},
	})
	s.Require().NoError(err)

	s.Assert().Zero(hpCount)
	s.Assert().Equal(1, endCount)
}

func (s *BusTestSuite) TestClearAll() {
	var count int
	s.bus.SubscribeFunc(events.TypeAny, 0, func(_ context.Context, _ events.Event) error {
		count++
		return nil
	})

	s.bus.ClearAll()
	s.publishHPChange("corr_1")

	s.Assert().Zero(count)
}

func (s *BusTestSuite) TestPublishNil() {
	err := s.bus.Publish(s.ctx, nil)
	s.Assert().Error(err)
}
