package game_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/gamemaster-api/internal/clients/ai"
	aimock "github.com/KirkDiggler/gamemaster-api/internal/clients/ai/mock"
	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
	"github.com/KirkDiggler/gamemaster-api/internal/handlers/game"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/session"
	sessionmock "github.com/KirkDiggler/gamemaster-api/internal/orchestrators/session/mock"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/idgen"
	"github.com/KirkDiggler/gamemaster-api/internal/repositories/airequest"
	airequestmock "github.com/KirkDiggler/gamemaster-api/internal/repositories/airequest/mock"
	sessionrepo "github.com/KirkDiggler/gamemaster-api/internal/repositories/session"
	sessionrepomock "github.com/KirkDiggler/gamemaster-api/internal/repositories/session/mock"
	"github.com/KirkDiggler/gamemaster-api/internal/services/character"
	charactermock "github.com/KirkDiggler/gamemaster-api/internal/services/character/mock"
	"github.com/KirkDiggler/gamemaster-api/internal/testutils/builders"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type GameHandlerTestSuite struct {
	suite.Suite
	ctx context.Context

	ctrl         *gomock.Controller
	mockAI       *aimock.MockClient
	mockSessions *sessionmock.MockService
	mockRepo     *sessionrepomock.MockRepository
	mockRequests *airequestmock.MockRepository
	mockChars    *charactermock.MockService

	bus      *events.Bus
	recorded []events.Event

	handler *game.Handler
}

func TestGameHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(GameHandlerTestSuite))
}

func (s *GameHandlerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.mockAI = aimock.NewMockClient(s.ctrl)
	s.mockSessions = sessionmock.NewMockService(s.ctrl)
	s.mockRepo = sessionrepomock.NewMockRepository(s.ctrl)
	s.mockRequests = airequestmock.NewMockRepository(s.ctrl)
	s.mockChars = charactermock.NewMockService(s.ctrl)

	s.bus = events.NewBus()
	s.recorded = nil
	s.bus.SubscribeFunc(events.TypeAny, 0, func(_ context.Context, e events.Event) error {
		s.recorded = append(s.recorded, e)
		return nil
	})

	handler, err := game.NewHandler(s.config())
	s.Require().NoError(err)
	s.handler = handler
}

func (s *GameHandlerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *GameHandlerTestSuite) config() *game.Config {
	return &game.Config{
		AIClient:          s.mockAI,
		SessionService:    s.mockSessions,
		SessionRepository: s.mockRepo,
		RequestRepository: s.mockRequests,
		CharacterService:  s.mockChars,
		EventBus:          s.bus,
		IDGenerator:       idgen.NewSequential("req"),
		Clock:             &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func (s *GameHandlerTestSuite) newSession() *entities.GameSession {
	return builders.NewSessionBuilder().
		WithID("sess_1").
		WithPartyMember(builders.NewPartyMemberBuilder().
			WithID("char_brynja").
			WithName("Brynja").
			Build()).
		Build()
}

func (s *GameHandlerTestSuite) expectLoad(sess *entities.GameSession) {
	s.mockRepo.EXPECT().
		Get(s.ctx, &sessionrepo.GetInput{SessionID: sess.ID}).
		Return(&sessionrepo.GetOutput{Session: sess}, nil)
}

func (s *GameHandlerTestSuite) gameErrors() []*events.GameError {
	var errs []*events.GameError
	for _, e := range s.recorded {
		if ge, ok := e.(*events.GameError); ok {
			errs = append(errs, ge)
		}
	}
	return errs
}

func (s *GameHandlerTestSuite) TestNewHandlerRequiresDependencies() {
	handler, err := game.NewHandler(&game.Config{})

	s.Require().Error(err)
	s.Nil(handler)
	s.True(errors.IsInvalidArgument(err))
	s.Contains(err.Error(), "AIClient")
	s.Contains(err.Error(), "EventBus")
}

func (s *GameHandlerTestSuite) TestHandleEventValidation() {
	testCases := []struct {
		name   string
		event  *game.GameEvent
		errMsg string
	}{
		{
			name:   "nil event",
			event:  nil,
			errMsg: "event is required",
		},
		{
			name:   "missing session ID",
			event:  &game.GameEvent{Type: game.EventPlayerAction},
			errMsg: "session ID is required",
		},
		{
			name:   "unknown event type",
			event:  &game.GameEvent{Type: "teleport", SessionID: "sess_1"},
			errMsg: `unknown event type "teleport"`,
		},
		{
			name:   "action without payload",
			event:  &game.GameEvent{Type: game.EventPlayerAction, SessionID: "sess_1"},
			errMsg: "action text is required",
		},
		{
			name: "action with empty text",
			event: &game.GameEvent{
				Type:      game.EventPlayerAction,
				SessionID: "sess_1",
				Action:    &game.PlayerAction{CharacterID: "char_brynja"},
			},
			errMsg: "action text is required",
		},
		{
			name:   "submission without payload",
			event:  &game.GameEvent{Type: game.EventPlayerDiceSubmission, SessionID: "sess_1"},
			errMsg: "request ID is required",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			resp, err := s.handler.HandleEvent(s.ctx, tc.event)

			s.Require().Error(err)
			s.Nil(resp)
			s.True(errors.IsInvalidArgument(err))
			s.Contains(err.Error(), tc.errMsg)
		})
	}
}

func (s *GameHandlerTestSuite) TestPlayerActionCompleted() {
	sess := s.newSession()
	s.expectLoad(sess)

	var stored *airequest.CreateInput
	s.mockRequests.EXPECT().
		Create(s.ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, input *airequest.CreateInput) (*airequest.CreateOutput, error) {
			stored = input
			return &airequest.CreateOutput{Request: input.Request}, nil
		})

	aiResp := &entities.AIResponse{Narrative: "The goblin snarls and backs away."}
	s.mockAI.EXPECT().
		GenerateResponse(s.ctx, &ai.GenerateResponseInput{
			SessionID: "sess_1",
			Messages:  []ai.Message{{Role: ai.RoleUser, Content: "Brynja: I attack the goblin"}},
		}).
		Return(&ai.GenerateResponseOutput{Response: aiResp}, nil)

	s.mockRequests.EXPECT().
		Delete(s.ctx, &airequest.DeleteInput{SessionID: "sess_1"}).
		Return(&airequest.DeleteOutput{Deleted: true}, nil)

	s.mockSessions.EXPECT().
		ProcessAIResponse(s.ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, input *session.ProcessAIResponseInput) (*session.ProcessAIResponseOutput, error) {
			s.Same(sess, input.Session)
			s.Same(aiResp, input.Response)
			s.NotEmpty(input.CorrelationID)
			return &session.ProcessAIResponseOutput{
				Narrative:    aiResp.Narrative,
				CombatActive: true,
			}, nil
		})

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_1",
		PlayerID:  "player_1",
		Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I attack the goblin"},
	})

	s.Require().NoError(err)
	s.Equal(game.StatusCompleted, resp.Status)
	s.Equal("The goblin snarls and backs away.", resp.Narrative)
	s.True(resp.CombatActive)
	s.Empty(resp.PendingRequests)

	s.Require().NotNil(stored)
	s.Equal("sess_1", stored.Request.SessionID)
	s.Equal("player_1", stored.Request.PlayerID)
	s.Equal(game.EventPlayerAction, stored.Request.EventType)
	s.Require().Len(stored.Request.Messages, 1)
	s.Equal("Brynja: I attack the goblin", stored.Request.Messages[0].Content)

	s.Require().Len(sess.Transcript, 1)
	s.Equal(entities.RolePlayer, sess.Transcript[0].Role)
	s.Equal("Brynja: I attack the goblin", sess.Transcript[0].Content)
	s.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), sess.Transcript[0].Timestamp)
}

func (s *GameHandlerTestSuite) TestPlayerActionAwaitingRolls() {
	sess := s.newSession()
	s.expectLoad(sess)
	s.mockRequests.EXPECT().Create(s.ctx, gomock.Any()).Return(&airequest.CreateOutput{}, nil)
	s.mockAI.EXPECT().
		GenerateResponse(s.ctx, gomock.Any()).
		Return(&ai.GenerateResponseOutput{Response: &entities.AIResponse{Narrative: "Roll to hit."}}, nil)
	s.mockRequests.EXPECT().Delete(s.ctx, gomock.Any()).Return(&airequest.DeleteOutput{}, nil)

	pending := []*entities.DiceRequest{{
		ID:           "roll_1",
		CharacterIDs: []string{"char_brynja"},
		Type:         entities.RollTypeAttack,
		DiceFormula:  "1d20+5",
	}}
	s.mockSessions.EXPECT().
		ProcessAIResponse(s.ctx, gomock.Any()).
		Return(&session.ProcessAIResponseOutput{
			Narrative:             "Roll to hit.",
			PendingPlayerRequests: pending,
			NewPlayerRequests:     pending,
			CombatActive:          true,
		}, nil)

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_1",
		Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I swing my axe"},
	})

	s.Require().NoError(err)
	s.Equal(game.StatusAwaitingPlayerRolls, resp.Status)
	s.Require().Len(resp.PendingRequests, 1)
	s.Equal("roll_1", resp.PendingRequests[0].ID)
}

func (s *GameHandlerTestSuite) TestPlayerActionRerunNarratesBufferedRolls() {
	sess := s.newSession()
	s.expectLoad(sess)
	s.mockRequests.EXPECT().Create(s.ctx, gomock.Any()).Return(&airequest.CreateOutput{}, nil)
	s.mockRequests.EXPECT().Delete(s.ctx, gomock.Any()).Return(&airequest.DeleteOutput{}, nil)

	firstResp := &entities.AIResponse{Narrative: "The goblin lunges."}
	secondResp := &entities.AIResponse{Narrative: "Its blade bites deep."}
	gomock.InOrder(
		s.mockAI.EXPECT().
			GenerateResponse(s.ctx, gomock.Any()).
			Return(&ai.GenerateResponseOutput{Response: firstResp}, nil),
		s.mockAI.EXPECT().
			GenerateResponse(s.ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, input *ai.GenerateResponseInput) (*ai.GenerateResponseOutput, error) {
				s.Require().Len(input.Messages, 3)
				s.Equal(ai.RoleUser, input.Messages[0].Role)
				s.Equal(ai.RoleAssistant, input.Messages[1].Role)
				s.Equal("The goblin lunges.", input.Messages[1].Content)
				s.Equal(ai.RoleUser, input.Messages[2].Role)
				s.Contains(input.Messages[2].Content, "Goblin rolls attack: 1d20+4: [11] +4 = 15")
				s.Contains(input.Messages[2].Content, "continue the turn")
				return &ai.GenerateResponseOutput{Response: secondResp}, nil
			}),
	)

	var correlations []string
	gomock.InOrder(
		s.mockSessions.EXPECT().
			ProcessAIResponse(s.ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, input *session.ProcessAIResponseInput) (*session.ProcessAIResponseOutput, error) {
				correlations = append(correlations, input.CorrelationID)
				sess.NPCRollBuffer = []*entities.RollOutcome{{
					CharacterID:   "goblin_1",
					CharacterName: "Goblin",
					Type:          entities.RollTypeAttack,
					Formula:       "1d20+4",
					Total:         15,
					ResultString:  "1d20+4: [11] +4 = 15",
				}}
				return &session.ProcessAIResponseOutput{
					Narrative:    "The goblin lunges.",
					NeedsAIRerun: true,
					CombatActive: true,
				}, nil
			}),
		s.mockSessions.EXPECT().
			ProcessAIResponse(s.ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, input *session.ProcessAIResponseInput) (*session.ProcessAIResponseOutput, error) {
				correlations = append(correlations, input.CorrelationID)
				return &session.ProcessAIResponseOutput{
					Narrative:    "Its blade bites deep.",
					CombatActive: true,
				}, nil
			}),
	)

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_1",
		Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I brace for the attack"},
	})

	s.Require().NoError(err)
	s.Equal(game.StatusCompleted, resp.Status)
	s.Equal("The goblin lunges.\n\nIts blade bites deep.", resp.Narrative)

	s.Require().Len(correlations, 2)
	s.NotEmpty(correlations[0])
	s.Equal(correlations[0], correlations[1])
}

func (s *GameHandlerTestSuite) TestPlayerActionRerunLimit() {
	cfg := s.config()
	cfg.MaxAIReruns = 1
	handler, err := game.NewHandler(cfg)
	s.Require().NoError(err)

	sess := s.newSession()
	s.expectLoad(sess)
	s.mockRequests.EXPECT().Create(s.ctx, gomock.Any()).Return(&airequest.CreateOutput{}, nil)
	s.mockRequests.EXPECT().Delete(s.ctx, gomock.Any()).Return(&airequest.DeleteOutput{}, nil)

	s.mockAI.EXPECT().
		GenerateResponse(s.ctx, gomock.Any()).
		Times(2).
		Return(&ai.GenerateResponseOutput{Response: &entities.AIResponse{Narrative: "Still fighting."}}, nil)

	s.mockSessions.EXPECT().
		ProcessAIResponse(s.ctx, gomock.Any()).
		Times(2).
		Return(&session.ProcessAIResponseOutput{
			Narrative:    "Still fighting.",
			NeedsAIRerun: true,
			CombatActive: true,
		}, nil)

	resp, err := handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_1",
		Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I hold the line"},
	})

	s.Require().NoError(err)
	s.Equal(game.StatusCompleted, resp.Status)
	s.Equal("rerun limit of 1 reached", resp.StatusDetail)
	s.Equal("Still fighting.\n\nStill fighting.", resp.Narrative)

	gameErrs := s.gameErrors()
	s.Require().Len(gameErrs, 1)
	s.Equal("rerun_limit", gameErrs[0].Code)
	s.Equal("sess_1", gameErrs[0].SessionID)
}

func (s *GameHandlerTestSuite) TestPlayerActionFirstAIFailureIsRetryable() {
	sess := s.newSession()
	s.expectLoad(sess)

	s.mockRequests.EXPECT().Create(s.ctx, gomock.Any()).Return(&airequest.CreateOutput{}, nil)
	s.mockAI.EXPECT().
		GenerateResponse(s.ctx, gomock.Any()).
		Return(nil, fmt.Errorf("model timed out"))

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_1",
		Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I open the door"},
	})

	s.Require().Error(err)
	s.Nil(resp)
	s.True(errors.IsUnavailable(err))
	s.Contains(err.Error(), "AI request failed")
}

func (s *GameHandlerTestSuite) TestPlayerActionRerunFailureReportsFailed() {
	sess := s.newSession()
	s.expectLoad(sess)
	s.mockRequests.EXPECT().Create(s.ctx, gomock.Any()).Return(&airequest.CreateOutput{}, nil)
	s.mockRequests.EXPECT().Delete(s.ctx, gomock.Any()).Return(&airequest.DeleteOutput{}, nil)

	gomock.InOrder(
		s.mockAI.EXPECT().
			GenerateResponse(s.ctx, gomock.Any()).
			Return(&ai.GenerateResponseOutput{Response: &entities.AIResponse{Narrative: "The wolf circles."}}, nil),
		s.mockAI.EXPECT().
			GenerateResponse(s.ctx, gomock.Any()).
			Return(nil, fmt.Errorf("model timed out")),
	)

	s.mockSessions.EXPECT().
		ProcessAIResponse(s.ctx, gomock.Any()).
		Return(&session.ProcessAIResponseOutput{
			Narrative:    "The wolf circles.",
			NeedsAIRerun: true,
			CombatActive: true,
		}, nil)

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_1",
		Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I watch the treeline"},
	})

	s.Require().NoError(err)
	s.Equal(game.StatusFailed, resp.Status)
	s.Contains(resp.StatusDetail, "AI rerun failed")
	s.Equal("The wolf circles.", resp.Narrative)
	s.True(resp.CombatActive)
}

func (s *GameHandlerTestSuite) TestPlayerActionSessionMissing() {
	s.mockRepo.EXPECT().
		Get(s.ctx, &sessionrepo.GetInput{SessionID: "sess_9"}).
		Return(nil, errors.NotFoundf("session %s not found", "sess_9"))

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_9",
		Action:    &game.PlayerAction{Text: "hello?"},
	})

	s.Require().Error(err)
	s.Nil(resp)
	s.True(errors.IsNotFound(err))
}

func (s *GameHandlerTestSuite) TestPlayerActionActorName() {
	testCases := []struct {
		name       string
		event      *game.GameEvent
		expectChar func()
		want       string
	}{
		{
			name: "party member resolves from the session",
			event: &game.GameEvent{
				Type:      game.EventPlayerAction,
				SessionID: "sess_1",
				Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I listen at the door"},
			},
			want: "Brynja: I listen at the door",
		},
		{
			name: "unknown character falls back to the character service",
			event: &game.GameEvent{
				Type:      game.EventPlayerAction,
				SessionID: "sess_1",
				Action:    &game.PlayerAction{CharacterID: "char_aldric", Text: "I listen at the door"},
			},
			expectChar: func() {
				s.mockChars.EXPECT().
					GetCharacterName(s.ctx, &character.GetCharacterNameInput{CharacterID: "char_aldric"}).
					Return(&character.GetCharacterNameOutput{Name: "Sir Aldric"}, nil)
			},
			want: "Sir Aldric: I listen at the door",
		},
		{
			name: "lookup failure falls back to the character ID",
			event: &game.GameEvent{
				Type:      game.EventPlayerAction,
				SessionID: "sess_1",
				Action:    &game.PlayerAction{CharacterID: "char_ghost", Text: "I listen at the door"},
			},
			expectChar: func() {
				s.mockChars.EXPECT().
					GetCharacterName(s.ctx, gomock.Any()).
					Return(nil, errors.NotFoundf("character %s not found", "char_ghost"))
			},
			want: "char_ghost: I listen at the door",
		},
		{
			name: "no character uses the player ID",
			event: &game.GameEvent{
				Type:      game.EventPlayerAction,
				SessionID: "sess_1",
				PlayerID:  "player_7",
				Action:    &game.PlayerAction{Text: "I listen at the door"},
			},
			want: "player_7: I listen at the door",
		},
		{
			name: "anonymous action",
			event: &game.GameEvent{
				Type:      game.EventPlayerAction,
				SessionID: "sess_1",
				Action:    &game.PlayerAction{Text: "I listen at the door"},
			},
			want: "Player: I listen at the door",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			sess := s.newSession()
			s.expectLoad(sess)
			s.mockRequests.EXPECT().Create(s.ctx, gomock.Any()).Return(&airequest.CreateOutput{}, nil)
			s.mockRequests.EXPECT().Delete(s.ctx, gomock.Any()).Return(&airequest.DeleteOutput{}, nil)
			if tc.expectChar != nil {
				tc.expectChar()
			}

			var prompt string
			s.mockAI.EXPECT().
				GenerateResponse(s.ctx, gomock.Any()).
				DoAndReturn(func(_ context.Context, input *ai.GenerateResponseInput) (*ai.GenerateResponseOutput, error) {
					prompt = input.Messages[0].Content
					return &ai.GenerateResponseOutput{Response: &entities.AIResponse{Narrative: "Noted."}}, nil
				})
			s.mockSessions.EXPECT().
				ProcessAIResponse(s.ctx, gomock.Any()).
				Return(&session.ProcessAIResponseOutput{Narrative: "Noted."}, nil)

			_, err := s.handler.HandleEvent(s.ctx, tc.event)

			s.Require().NoError(err)
			s.Equal(tc.want, prompt)
			s.Require().Len(sess.Transcript, 1)
			s.Equal(tc.want, sess.Transcript[0].Content)
		})
	}
}

func (s *GameHandlerTestSuite) TestDiceSubmissionNarratesOutcome() {
	sess := s.newSession()
	s.expectLoad(sess)

	rollOut := &session.ResolvePlayerRollOutput{
		Request: &entities.DiceRequest{
			ID:           "roll_1",
			CharacterIDs: []string{"char_brynja"},
			Type:         entities.RollTypeAttack,
			DiceFormula:  "1d20+5",
		},
		Outcomes: []*entities.RollOutcome{{
			RequestID:     "roll_1",
			CharacterID:   "char_brynja",
			CharacterName: "Brynja",
			Type:          entities.RollTypeAttack,
			Formula:       "1d20+5",
			Total:         17,
			ResultString:  "1d20+5: [12] +5 = 17",
		}},
	}
	s.mockSessions.EXPECT().
		ResolvePlayerRoll(s.ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, input *session.ResolvePlayerRollInput) (*session.ResolvePlayerRollOutput, error) {
			s.Same(sess, input.Session)
			s.Equal("roll_1", input.RequestID)
			return rollOut, nil
		})

	var stored *airequest.CreateInput
	s.mockRequests.EXPECT().
		Create(s.ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, input *airequest.CreateInput) (*airequest.CreateOutput, error) {
			stored = input
			return &airequest.CreateOutput{Request: input.Request}, nil
		})

	var prompt string
	s.mockAI.EXPECT().
		GenerateResponse(s.ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, input *ai.GenerateResponseInput) (*ai.GenerateResponseOutput, error) {
			prompt = input.Messages[0].Content
			return &ai.GenerateResponseOutput{Response: &entities.AIResponse{Narrative: "The axe lands true."}}, nil
		})
	s.mockRequests.EXPECT().Delete(s.ctx, gomock.Any()).Return(&airequest.DeleteOutput{}, nil)
	s.mockSessions.EXPECT().
		ProcessAIResponse(s.ctx, gomock.Any()).
		Return(&session.ProcessAIResponseOutput{Narrative: "The axe lands true.", CombatActive: true}, nil)

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:           game.EventPlayerDiceSubmission,
		SessionID:      "sess_1",
		PlayerID:       "player_1",
		DiceSubmission: &game.DiceSubmission{RequestID: "roll_1"},
	})

	s.Require().NoError(err)
	s.Equal(game.StatusCompleted, resp.Status)
	s.Equal("The axe lands true.", resp.Narrative)

	s.Contains(prompt, "Brynja rolls attack: 1d20+5: [12] +5 = 17")
	s.Contains(prompt, "Narrate the outcome and continue.")

	s.Require().NotNil(stored)
	s.Equal(game.EventPlayerDiceSubmission, stored.Request.EventType)
}

func (s *GameHandlerTestSuite) TestDiceSubmissionUnknownRequest() {
	sess := s.newSession()
	s.expectLoad(sess)

	s.mockSessions.EXPECT().
		ResolvePlayerRoll(s.ctx, gomock.Any()).
		Return(nil, errors.NotFoundf("dice request %s not found", "roll_9"))

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:           game.EventPlayerDiceSubmission,
		SessionID:      "sess_1",
		DiceSubmission: &game.DiceSubmission{RequestID: "roll_9"},
	})

	s.Require().Error(err)
	s.Nil(resp)
	s.True(errors.IsNotFound(err))
}

func (s *GameHandlerTestSuite) TestRetryResendsStoredPrompt() {
	sess := s.newSession()

	storedMessages := []ai.Message{{Role: ai.RoleUser, Content: "Brynja: I attack the goblin"}}
	s.mockRequests.EXPECT().
		Get(s.ctx, &airequest.GetInput{SessionID: "sess_1"}).
		Return(&airequest.GetOutput{Request: &airequest.StoredRequest{
			SessionID: "sess_1",
			RequestID: "req_9",
			PlayerID:  "player_1",
			EventType: game.EventPlayerAction,
			Messages:  storedMessages,
		}}, nil)
	s.expectLoad(sess)

	s.mockAI.EXPECT().
		GenerateResponse(s.ctx, &ai.GenerateResponseInput{SessionID: "sess_1", Messages: storedMessages}).
		Return(&ai.GenerateResponseOutput{Response: &entities.AIResponse{Narrative: "The blow lands."}}, nil)
	s.mockRequests.EXPECT().
		Delete(s.ctx, &airequest.DeleteInput{SessionID: "sess_1"}).
		Return(&airequest.DeleteOutput{Deleted: true}, nil)
	s.mockSessions.EXPECT().
		ProcessAIResponse(s.ctx, gomock.Any()).
		Return(&session.ProcessAIResponseOutput{Narrative: "The blow lands.", CombatActive: true}, nil)

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventRetryRequest,
		SessionID: "sess_1",
	})

	s.Require().NoError(err)
	s.Equal(game.StatusCompleted, resp.Status)
	s.Equal("The blow lands.", resp.Narrative)

	// The retry replays the stored prompt; it does not re-record the action
	s.Empty(sess.Transcript)
}

func (s *GameHandlerTestSuite) TestRetryWindowClosed() {
	s.mockRequests.EXPECT().
		Get(s.ctx, &airequest.GetInput{SessionID: "sess_1"}).
		Return(nil, errors.NotFoundf("no stored request for session %s", "sess_1"))

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventRetryRequest,
		SessionID: "sess_1",
	})

	s.Require().Error(err)
	s.Nil(resp)
	s.True(errors.IsFailedPrecondition(err))
	s.Contains(err.Error(), "no retryable request")
}

func (s *GameHandlerTestSuite) TestStoreFailureDoesNotBlockTheAction() {
	sess := s.newSession()
	s.expectLoad(sess)

	s.mockRequests.EXPECT().
		Create(s.ctx, gomock.Any()).
		Return(nil, errors.Unavailable("redis connection refused"))
	s.mockAI.EXPECT().
		GenerateResponse(s.ctx, gomock.Any()).
		Return(&ai.GenerateResponseOutput{Response: &entities.AIResponse{Narrative: "The door creaks open."}}, nil)
	s.mockRequests.EXPECT().Delete(s.ctx, gomock.Any()).Return(&airequest.DeleteOutput{}, nil)
	s.mockSessions.EXPECT().
		ProcessAIResponse(s.ctx, gomock.Any()).
		Return(&session.ProcessAIResponseOutput{Narrative: "The door creaks open."}, nil)

	resp, err := s.handler.HandleEvent(s.ctx, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: "sess_1",
		Action:    &game.PlayerAction{CharacterID: "char_brynja", Text: "I push the door"},
	})

	s.Require().NoError(err)
	s.Equal(game.StatusCompleted, resp.Status)
	s.Equal("The door creaks open.", resp.Narrative)
}
