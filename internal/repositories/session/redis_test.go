package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	redisclient "github.com/KirkDiggler/gamemaster-api/internal/redis"
	"github.com/KirkDiggler/gamemaster-api/internal/repositories/session"
	"github.com/KirkDiggler/gamemaster-api/internal/testutils"
	"github.com/KirkDiggler/gamemaster-api/internal/testutils/builders"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

type RedisRepositoryTestSuite struct {
	suite.Suite
	ctx     context.Context
	client  redisclient.Client
	cleanup func()
	clock   *testClock
	repo    session.Repository
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.client, s.cleanup = testutils.CreateTestRedisClient(s.T())
	s.clock = &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	repo, err := session.NewRedisRepository(&session.Config{
		Client: s.client,
		Clock:  s.clock,
	})
	s.Require().NoError(err)
	s.repo = repo
}

func (s *RedisRepositoryTestSuite) TearDownTest() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func TestRedisRepositorySuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}

func (s *RedisRepositoryTestSuite) buildSession() *entities.GameSession {
	return builders.NewSessionBuilder().
		WithID("sess_1").
		WithPartyMember(builders.NewPartyMemberBuilder().WithID("char_1").WithName("Brynja").Build()).
		WithLocation("The Rusty Flagon", "A smoky tavern").
		WithCombat(builders.NewCombatBuilder().
			WithCombatants(
				builders.NewCombatantBuilder().WithID("goblin_1").WithInitiative(15).Build(),
				builders.NewCombatantBuilder().WithID("char_1").WithName("Brynja").AsPlayer().WithInitiative(12).Build(),
			).
			Build()).
		Build()
}

func (s *RedisRepositoryTestSuite) TestSaveAndGet() {
	saved, err := s.repo.Save(s.ctx, &session.SaveInput{Session: s.buildSession()})
	s.Require().NoError(err)
	s.Assert().Equal(s.clock.now, saved.SavedAt)

	out, err := s.repo.Get(s.ctx, &session.GetInput{SessionID: "sess_1"})
	s.Require().NoError(err)

	got := out.Session
	s.Assert().Equal("sess_1", got.ID)
	s.Require().NotNil(got.PartyMember("char_1"))
	s.Assert().Equal("Brynja", got.PartyMember("char_1").Name)
	s.Require().NotNil(got.Combat)
	s.Assert().True(got.Combat.IsActive)
	s.Require().Len(got.Combat.Combatants, 2)
	s.Assert().Equal(entities.CombatantNonPlayer, got.Combat.Combatants[0].Kind)
	s.Assert().Equal("The Rusty Flagon", got.CurrentLocation.Name)
	s.Assert().Equal(s.clock.now, got.LastActivity)
}

func (s *RedisRepositoryTestSuite) TestSaveUpdatesLastActiveIndex() {
	_, err := s.repo.Save(s.ctx, &session.SaveInput{Session: s.buildSession()})
	s.Require().NoError(err)

	score, err := s.client.ZScore(s.ctx, "game_sessions:last_active", "sess_1").Result()
	s.Require().NoError(err)
	s.Assert().Equal(float64(s.clock.now.Unix()), score)
}

func (s *RedisRepositoryTestSuite) TestSaveOverwrites() {
	sess := s.buildSession()
	_, err := s.repo.Save(s.ctx, &session.SaveInput{Session: sess})
	s.Require().NoError(err)

	sess.PartyMember("char_1").CurrentHP = 5
	s.clock.now = s.clock.now.Add(time.Minute)
	_, err = s.repo.Save(s.ctx, &session.SaveInput{Session: sess})
	s.Require().NoError(err)

	out, err := s.repo.Get(s.ctx, &session.GetInput{SessionID: "sess_1"})
	s.Require().NoError(err)
	s.Assert().Equal(int32(5), out.Session.PartyMember("char_1").CurrentHP)
	s.Assert().Equal(s.clock.now, out.Session.LastActivity)
}

func (s *RedisRepositoryTestSuite) TestGetNotFound() {
	_, err := s.repo.Get(s.ctx, &session.GetInput{SessionID: "sess_missing"})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
}

func (s *RedisRepositoryTestSuite) TestDelete() {
	_, err := s.repo.Save(s.ctx, &session.SaveInput{Session: s.buildSession()})
	s.Require().NoError(err)

	out, err := s.repo.Delete(s.ctx, &session.DeleteInput{SessionID: "sess_1"})
	s.Require().NoError(err)
	s.Assert().True(out.Deleted)

	_, err = s.repo.Get(s.ctx, &session.GetInput{SessionID: "sess_1"})
	s.Assert().True(errors.IsNotFound(err))

	again, err := s.repo.Delete(s.ctx, &session.DeleteInput{SessionID: "sess_1"})
	s.Require().NoError(err)
	s.Assert().False(again.Deleted)
}

func (s *RedisRepositoryTestSuite) TestValidation() {
	_, err := s.repo.Save(s.ctx, &session.SaveInput{})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.repo.Save(s.ctx, &session.SaveInput{Session: &entities.GameSession{}})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.repo.Get(s.ctx, &session.GetInput{})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.repo.Delete(s.ctx, &session.DeleteInput{})
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *RedisRepositoryTestSuite) TestConfigValidation() {
	_, err := session.NewRedisRepository(&session.Config{})
	s.Require().Error(err)

	_, err = session.NewRedisRepository(&session.Config{Client: s.client})
	s.Require().Error(err)
}
