// Package game hosts the inbound event surface: it turns one player
// event into AI invocations and orchestrated session passes, looping
// while the orchestrator asks for another pass.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/gamemaster-api/internal/clients/ai"
	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/session"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/idgen"
	"github.com/KirkDiggler/gamemaster-api/internal/repositories/airequest"
	sessionrepo "github.com/KirkDiggler/gamemaster-api/internal/repositories/session"
	"github.com/KirkDiggler/gamemaster-api/internal/services/character"
)

// DefaultMaxAIReruns bounds the automatic rerun loop per inbound event
const DefaultMaxAIReruns = 3

// Config holds the dependencies for the game event handler
type Config struct {
	AIClient          ai.Client
	SessionService    session.Service
	SessionRepository sessionrepo.Repository
	RequestRepository airequest.Repository
	CharacterService  character.Service
	EventBus          *events.Bus
	IDGenerator       idgen.Generator
	Clock             clock.Clock

	// Zero means DefaultMaxAIReruns
	MaxAIReruns int
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.AIClient == nil {
		vb.RequiredField("AIClient")
	}
	if c.SessionService == nil {
		vb.RequiredField("SessionService")
	}
	if c.SessionRepository == nil {
		vb.RequiredField("SessionRepository")
	}
	if c.RequestRepository == nil {
		vb.RequiredField("RequestRepository")
	}
	if c.CharacterService == nil {
		vb.RequiredField("CharacterService")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}

	return vb.Build()
}

// Handler processes inbound game events
type Handler struct {
	ai          ai.Client
	sessions    session.Service
	sessionRepo sessionrepo.Repository
	requestRepo airequest.Repository
	characters  character.Service
	bus         *events.Bus
	idGen       idgen.Generator
	clock       clock.Clock
	maxReruns   int
}

// NewHandler creates a new game event handler with the provided dependencies
func NewHandler(cfg *Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	maxReruns := cfg.MaxAIReruns
	if maxReruns <= 0 {
		maxReruns = DefaultMaxAIReruns
	}

	return &Handler{
		ai:          cfg.AIClient,
		sessions:    cfg.SessionService,
		sessionRepo: cfg.SessionRepository,
		requestRepo: cfg.RequestRepository,
		characters:  cfg.CharacterService,
		bus:         cfg.EventBus,
		idGen:       cfg.IDGenerator,
		clock:       cfg.Clock,
		maxReruns:   maxReruns,
	}, nil
}

// HandleEvent routes one inbound event to its flow
func (h *Handler) HandleEvent(ctx context.Context, event *GameEvent) (*GameEventResponse, error) {
	if event == nil {
		return nil, errors.InvalidArgument("event is required")
	}
	if event.SessionID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}

	switch event.Type {
	case EventPlayerAction:
		return h.handlePlayerAction(ctx, event)
	case EventPlayerDiceSubmission:
		return h.handleDiceSubmission(ctx, event)
	case EventRetryRequest:
		return h.handleRetry(ctx, event)
	}
	return nil, errors.InvalidArgumentf("unknown event type %q", event.Type)
}

// handlePlayerAction records the action in the transcript, stores the
// prompt for the retry window, and runs the AI passes.
func (h *Handler) handlePlayerAction(ctx context.Context, event *GameEvent) (*GameEventResponse, error) {
	if event.Action == nil || event.Action.Text == "" {
		return nil, errors.InvalidArgument("action text is required")
	}

	sess, err := h.loadSession(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("%s: %s", h.actorName(ctx, event, sess), event.Action.Text)
	sess.Transcript = append(sess.Transcript, entities.TranscriptEntry{
		Role:      entities.RolePlayer,
		Content:   content,
		Timestamp: h.clock.Now(),
	})

	messages := []ai.Message{{Role: ai.RoleUser, Content: content}}
	h.storeRequest(ctx, event.SessionID, event.PlayerID, EventPlayerAction, messages)

	return h.invokeAndApply(ctx, sess, messages)
}

// handleDiceSubmission resolves the pending request, then asks the AI
// to interpret the results.
func (h *Handler) handleDiceSubmission(ctx context.Context, event *GameEvent) (*GameEventResponse, error) {
	if event.DiceSubmission == nil || event.DiceSubmission.RequestID == "" {
		return nil, errors.InvalidArgument("dice submission request ID is required")
	}

	sess, err := h.loadSession(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}

	rollOut, err := h.sessions.ResolvePlayerRoll(ctx, &session.ResolvePlayerRollInput{
		Session:   sess,
		RequestID: event.DiceSubmission.RequestID,
	})
	if err != nil {
		return nil, err
	}

	messages := []ai.Message{{Role: ai.RoleUser, Content: submissionReport(rollOut)}}
	h.storeRequest(ctx, event.SessionID, event.PlayerID, EventPlayerDiceSubmission, messages)

	return h.invokeAndApply(ctx, sess, messages)
}

// handleRetry re-sends the stored prompt. A missing or expired record
// means the window has closed; retries fail closed.
func (h *Handler) handleRetry(ctx context.Context, event *GameEvent) (*GameEventResponse, error) {
	stored, err := h.requestRepo.Get(ctx, &airequest.GetInput{SessionID: event.SessionID})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.FailedPrecondition("no retryable request for this session")
		}
		return nil, errors.Wrap(err, "failed to load stored request")
	}

	sess, err := h.loadSession(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}

	slog.Info("retrying stored AI request",
		"session_id", event.SessionID,
		"request_id", stored.Request.RequestID,
		"origin", stored.Request.EventType,
	)

	return h.invokeAndApply(ctx, sess, stored.Request.Messages)
}

// invokeAndApply sends the prompt, applies the response, and keeps
// re-invoking while the orchestrator asks for another pass. The first
// AI failure is returned as an error with nothing applied; a rerun
// failure reports failed in-band, since the session already moved.
func (h *Handler) invokeAndApply(
	ctx context.Context, sess *entities.GameSession, messages []ai.Message,
) (*GameEventResponse, error) {
	correlationID := h.idGen.Generate()

	aiOut, err := h.ai.GenerateResponse(ctx, &ai.GenerateResponseInput{
		SessionID: sess.ID,
		Messages:  messages,
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "AI request failed")
	}
	// The request was accepted; it is no longer retryable
	h.clearStoredRequest(ctx, sess.ID)

	out, err := h.sessions.ProcessAIResponse(ctx, &session.ProcessAIResponseInput{
		Session:       sess,
		Response:      aiOut.Response,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	narratives := appendNarrative(nil, out.Narrative)

	reruns := 0
	for out.NeedsAIRerun {
		if reruns >= h.maxReruns {
			slog.Warn("AI rerun limit reached",
				"session_id", sess.ID,
				"limit", h.maxReruns,
			)
			h.publishGameError(ctx, sess.ID, correlationID, "rerun_limit",
				fmt.Sprintf("AI rerun limit of %d reached mid-turn", h.maxReruns))
			return &GameEventResponse{
				Status:          StatusCompleted,
				StatusDetail:    fmt.Sprintf("rerun limit of %d reached", h.maxReruns),
				Narrative:       strings.Join(narratives, "\n\n"),
				PendingRequests: out.PendingPlayerRequests,
				CombatActive:    out.CombatActive,
			}, nil
		}
		reruns++

		messages = continueMessages(messages, out.Narrative, sess.NPCRollBuffer)
		aiOut, err = h.ai.GenerateResponse(ctx, &ai.GenerateResponseInput{
			SessionID: sess.ID,
			Messages:  messages,
		})
		if err != nil {
			slog.Error("AI rerun failed",
				"session_id", sess.ID,
				"rerun", reruns,
				"error", err,
			)
			return &GameEventResponse{
				Status:          StatusFailed,
				StatusDetail:    "AI rerun failed: " + err.Error(),
				Narrative:       strings.Join(narratives, "\n\n"),
				PendingRequests: out.PendingPlayerRequests,
				CombatActive:    out.CombatActive,
			}, nil
		}

		out, err = h.sessions.ProcessAIResponse(ctx, &session.ProcessAIResponseInput{
			Session:       sess,
			Response:      aiOut.Response,
			CorrelationID: correlationID,
		})
		if err != nil {
			return nil, err
		}
		narratives = appendNarrative(narratives, out.Narrative)
	}

	status := StatusCompleted
	if len(out.PendingPlayerRequests) > 0 {
		status = StatusAwaitingPlayerRolls
	}
	return &GameEventResponse{
		Status:          status,
		Narrative:       strings.Join(narratives, "\n\n"),
		PendingRequests: out.PendingPlayerRequests,
		CombatActive:    out.CombatActive,
	}, nil
}

func (h *Handler) loadSession(ctx context.Context, sessionID string) (*entities.GameSession, error) {
	out, err := h.sessionRepo.Get(ctx, &sessionrepo.GetInput{SessionID: sessionID})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load session %s", sessionID)
	}
	return out.Session, nil
}

// actorName prefers the live party roster, falling back to the
// character service for characters the session does not track.
func (h *Handler) actorName(ctx context.Context, event *GameEvent, sess *entities.GameSession) string {
	characterID := event.Action.CharacterID
	if characterID == "" {
		if event.PlayerID != "" {
			return event.PlayerID
		}
		return "Player"
	}

	if inst := sess.PartyMember(characterID); inst != nil {
		return inst.Name
	}

	out, err := h.characters.GetCharacterName(ctx, &character.GetCharacterNameInput{
		CharacterID: characterID,
	})
	if err != nil {
		slog.Debug("character name lookup failed",
			"character_id", characterID,
			"error", err,
		)
		return characterID
	}
	return out.Name
}

// storeRequest saves the prompt for the retry window, best-effort
func (h *Handler) storeRequest(ctx context.Context, sessionID, playerID, eventType string, messages []ai.Message) {
	_, err := h.requestRepo.Create(ctx, &airequest.CreateInput{
		Request: &airequest.StoredRequest{
			SessionID: sessionID,
			RequestID: h.idGen.Generate(),
			PlayerID:  playerID,
			EventType: eventType,
			Messages:  messages,
		},
	})
	if err != nil {
		slog.Warn("failed to store request context, retry will not be possible",
			"session_id", sessionID,
			"error", err,
		)
	}
}

func (h *Handler) clearStoredRequest(ctx context.Context, sessionID string) {
	if _, err := h.requestRepo.Delete(ctx, &airequest.DeleteInput{SessionID: sessionID}); err != nil {
		slog.Debug("failed to clear stored request",
			"session_id", sessionID,
			"error", err,
		)
	}
}

func (h *Handler) publishGameError(ctx context.Context, sessionID, correlationID, code, message string) {
	err := h.bus.Publish(ctx, &events.GameError{
		Meta: events.Meta{
			EventID:       h.idGen.Generate(),
			CorrelationID: correlationID,
			SessionID:     sessionID,
			OccurredAt:    h.clock.Now(),
		},
		Code:    code,
		Message: message,
	})
	if err != nil {
		slog.Warn("failed to publish game error",
			"session_id", sessionID,
			"error", err,
		)
	}
}

// continueMessages extends the prompt with what the AI said and what
// the dice did, asking it to keep going.
func continueMessages(messages []ai.Message, narrative string, outcomes []*entities.RollOutcome) []ai.Message {
	if narrative != "" {
		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: narrative})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: rollReport(outcomes)})
	return messages
}

func rollReport(outcomes []*entities.RollOutcome) string {
	if len(outcomes) == 0 {
		return "Continue narrating the current turn."
	}
	lines := make([]string, 0, len(outcomes)+1)
	for _, outcome := range outcomes {
		lines = append(lines, fmt.Sprintf("%s rolls %s: %s",
			outcome.CharacterName, outcome.Type, outcome.ResultString))
	}
	lines = append(lines, "Narrate these results and continue the turn.")
	return strings.Join(lines, "\n")
}

func submissionReport(out *session.ResolvePlayerRollOutput) string {
	lines := make([]string, 0, len(out.Outcomes)+1)
	for _, outcome := range out.Outcomes {
		lines = append(lines, fmt.Sprintf("%s rolls %s: %s",
			outcome.CharacterName, outcome.Type, outcome.ResultString))
	}
	if len(lines) == 0 {
		lines = append(lines, fmt.Sprintf("No rolls could be made for request %s.", out.Request.ID))
	}
	lines = append(lines, "Narrate the outcome and continue.")
	return strings.Join(lines, "\n")
}

func appendNarrative(narratives []string, narrative string) []string {
	if narrative == "" {
		return narratives
	}
	return append(narratives, narrative)
}
