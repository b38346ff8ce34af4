// Package session implements the response orchestrator: it applies one
// structured AI game-master response to a live game session as an
// ordered sequence of mutations, and decides whether the AI must be
// invoked again before players act.
package session

//go:generate mockgen -destination=mock/mock_service.go -package=sessionmock github.com/KirkDiggler/gamemaster-api/internal/orchestrators/session Service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/KirkDiggler/gamemaster-api/internal/clients/content"
	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/roll"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/idgen"
	sessionrepo "github.com/KirkDiggler/gamemaster-api/internal/repositories/session"
	"github.com/KirkDiggler/gamemaster-api/internal/services/rag"
)

// contextRefreshTimeout bounds the fire-and-forget retrieval refresh
const contextRefreshTimeout = 30 * time.Second

// Service defines the interface for session orchestration
type Service interface {
	// ProcessAIResponse applies one AI response to the session
	ProcessAIResponse(ctx context.Context, input *ProcessAIResponseInput) (*ProcessAIResponseOutput, error)

	// ResolvePlayerRoll rolls a pending player dice request and
	// removes it from the session
	ResolvePlayerRoll(ctx context.Context, input *ResolvePlayerRollInput) (*ResolvePlayerRollOutput, error)
}

// Config holds the dependencies for the session orchestrator
type Config struct {
	EventBus          *events.Bus
	RollService       roll.Service
	SessionRepository sessionrepo.Repository
	RAGService        rag.Service

	// Optional; nil disables content tagging of new combatants
	ContentClient content.Client

	IDGenerator idgen.Generator
	Clock       clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	if c.RollService == nil {
		vb.RequiredField("RollService")
	}
	if c.SessionRepository == nil {
		vb.RequiredField("SessionRepository")
	}
	if c.RAGService == nil {
		vb.RequiredField("RAGService")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}

	return vb.Build()
}

type orchestrator struct {
	bus     *events.Bus
	roll    roll.Service
	repo    sessionrepo.Repository
	rag     rag.Service
	content content.Client
	idGen   idgen.Generator
	clock   clock.Clock

	// Single-flight guard: one response per session at a time
	mu         sync.Mutex
	processing map[string]bool
}

// NewOrchestrator creates a new session orchestrator with the provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &orchestrator{
		bus:        cfg.EventBus,
		roll:       cfg.RollService,
		repo:       cfg.SessionRepository,
		rag:        cfg.RAGService,
		content:    cfg.ContentClient,
		idGen:      cfg.IDGenerator,
		clock:      cfg.Clock,
		processing: make(map[string]bool),
	}, nil
}

// ProcessAIResponse runs one processing pass:
//
//  1. Pre-calculate the next combatant before anything mutates.
//  2. Append the narrative and apply the location change.
//  3. Apply the state update lists in dependency order.
//  4. Capture the one-shot combat-started signal.
//  5. Handle dice requests, forcing initiative when combat just began.
//  6. Decide whether the AI must run again.
//  7. Advance the turn if nothing holds it.
//  8. Persist new player requests on the session.
//  9. Kick off the retrieval refresh and snapshot the session.
//
// The orchestrator owns the session exclusively for the duration; a
// concurrent call for the same session is rejected with Aborted.
func (o *orchestrator) ProcessAIResponse(
	ctx context.Context, input *ProcessAIResponseInput,
) (*ProcessAIResponseOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.Session == nil {
		return nil, errors.InvalidArgument("session is required")
	}
	if input.Session.ID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}
	if input.Response == nil {
		return nil, errors.InvalidArgument("response is required")
	}

	if err := o.acquireSession(input.Session.ID); err != nil {
		return nil, err
	}
	defer o.releaseSession(input.Session.ID)

	correlationID := input.CorrelationID
	if correlationID == "" {
		correlationID = o.idGen.Generate()
	}
	p := &pass{session: input.Session, correlationID: correlationID}
	resp := input.Response

	slog.Info("processing AI response",
		"session_id", p.session.ID,
		"correlation_id", correlationID,
		"combat_active", p.session.CombatActive(),
	)

	plan := planNextTurn(p.session, resp.CombatantRemovals)

	o.applyNarrative(ctx, p, resp)

	combatStarted := o.applyStateUpdates(ctx, p, resp)

	playerRequests, npcOutcomes, diceRerun := o.handleDiceRequests(ctx, p, resp.RollRequests, combatStarted)

	// Turn continuation keeps the AI narrating mid-turn: it held the
	// turn open, no player input is awaited, and NPC rolls from the
	// previous pass still need narrating.
	turnHeld := resp.EndTurn != nil && !*resp.EndTurn
	turnContinuation := p.session.CombatActive() &&
		turnHeld &&
		len(playerRequests) == 0 &&
		len(p.session.NPCRollBuffer) > 0
	needsRerun := turnContinuation || diceRerun
	p.session.NPCRollBuffer = npcOutcomes

	endTurn := resp.EndTurn != nil && *resp.EndTurn
	pendingPlayer := len(p.session.PendingDiceRequests) > 0 || len(playerRequests) > 0
	o.advanceTurn(ctx, p, plan, endTurn, pendingPlayer, needsRerun)

	// Append-only here; requests leave the list through
	// ResolvePlayerRoll.
	p.session.PendingDiceRequests = append(p.session.PendingDiceRequests, playerRequests...)

	o.refreshContext(p.session.ID, resp.Narrative)
	o.saveSnapshot(ctx, p.session)

	slog.Info("AI response processed",
		"session_id", p.session.ID,
		"correlation_id", correlationID,
		"new_player_requests", len(playerRequests),
		"npc_rolls", len(npcOutcomes),
		"needs_rerun", needsRerun,
	)

	return &ProcessAIResponseOutput{
		PendingPlayerRequests: append([]*entities.DiceRequest(nil), p.session.PendingDiceRequests...),
		NewPlayerRequests:     playerRequests,
		NeedsAIRerun:          needsRerun,
		CombatActive:          p.session.CombatActive(),
		Narrative:             resp.Narrative,
	}, nil
}

// ResolvePlayerRoll performs the rolls a pending request asked of its
// players, applies initiative results, and removes the request from
// the session.
func (o *orchestrator) ResolvePlayerRoll(
	ctx context.Context, input *ResolvePlayerRollInput,
) (*ResolvePlayerRollOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.Session == nil {
		return nil, errors.InvalidArgument("session is required")
	}
	if input.Session.ID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}
	if input.RequestID == "" {
		return nil, errors.InvalidArgument("request ID is required")
	}

	if err := o.acquireSession(input.Session.ID); err != nil {
		return nil, err
	}
	defer o.releaseSession(input.Session.ID)

	correlationID := input.CorrelationID
	if correlationID == "" {
		correlationID = o.idGen.Generate()
	}
	p := &pass{session: input.Session, correlationID: correlationID}

	reqIdx := -1
	for i, r := range p.session.PendingDiceRequests {
		if r.ID == input.RequestID {
			reqIdx = i
			break
		}
	}
	if reqIdx < 0 {
		return nil, errors.NotFoundf("no pending dice request with ID %s", input.RequestID)
	}
	request := p.session.PendingDiceRequests[reqIdx]

	outcomes := make([]*entities.RollOutcome, 0, len(request.CharacterIDs))
	for _, id := range request.CharacterIDs {
		name, initiativeModifier := characterRollProfile(p.session, id)
		formula := request.DiceFormula
		if request.Type == entities.RollTypeInitiative {
			formula = initiativeFormula(formula, initiativeModifier)
		}

		out, err := o.roll.PerformRoll(ctx, &roll.PerformRollInput{
			RequestID:     request.ID,
			CharacterID:   id,
			CharacterName: name,
			RollType:      request.Type,
			DiceFormula:   formula,
		})
		if err != nil {
			slog.Warn("player roll failed",
				"session_id", p.session.ID,
				"character_id", id,
				"formula", formula,
				"error", err,
			)
			continue
		}
		outcome := out.Outcome

		if request.Type == entities.RollTypeInitiative && p.session.CombatActive() {
			if c := p.session.Combat.CombatantByID(id); c != nil {
				c.Initiative = outcome.Total
				o.publish(ctx, &events.InitiativeSet{
					Meta:        o.meta(p),
					CombatantID: c.ID,
					Name:        c.Name,
					Initiative:  outcome.Total,
				})
			}
		}

		outcomes = append(outcomes, outcome)
	}

	if len(outcomes) > 0 {
		lines := make([]string, 0, len(outcomes))
		for _, outcome := range outcomes {
			lines = append(lines, fmt.Sprintf("%s rolls %s: %s",
				outcome.CharacterName, outcome.Type, outcome.ResultString))
		}
		o.appendTranscript(ctx, p, entities.RolePlayer, strings.Join(lines, "\n"))
	}

	p.session.PendingDiceRequests = append(
		p.session.PendingDiceRequests[:reqIdx],
		p.session.PendingDiceRequests[reqIdx+1:]...,
	)

	slog.Info("player dice request resolved",
		"session_id", p.session.ID,
		"request_id", request.ID,
		"rolls", len(outcomes),
	)

	o.saveSnapshot(ctx, p.session)

	return &ResolvePlayerRollOutput{
		Request:  request,
		Outcomes: outcomes,
	}, nil
}

// characterRollProfile returns the display name and initiative
// modifier for whoever is rolling, preferring the combat tracker's
// view when one exists.
func characterRollProfile(session *entities.GameSession, id string) (string, int32) {
	if session.CombatActive() {
		if c := session.Combat.CombatantByID(id); c != nil {
			return c.Name, c.InitiativeModifier
		}
	}
	if inst := session.PartyMember(id); inst != nil {
		return inst.Name, inst.InitiativeModifier
	}
	return id, 0
}

// applyNarrative appends the GM's narration to the transcript and
// moves the party when the response carries a location.
func (o *orchestrator) applyNarrative(ctx context.Context, p *pass, resp *entities.AIResponse) {
	if resp.Narrative != "" {
		o.appendTranscript(ctx, p, entities.RoleGM, resp.Narrative)
	}

	if resp.Location != nil && resp.Location.Name != "" {
		p.session.CurrentLocation = &entities.Location{
			Name:        resp.Location.Name,
			Description: resp.Location.Description,
		}
		o.publish(ctx, &events.LocationChanged{
			Meta:        o.meta(p),
			Name:        resp.Location.Name,
			Description: resp.Location.Description,
		})
	}
}

func (o *orchestrator) appendTranscript(ctx context.Context, p *pass, role entities.TranscriptRole, content string) {
	p.session.Transcript = append(p.session.Transcript, entities.TranscriptEntry{
		Role:      role,
		Content:   content,
		Timestamp: o.clock.Now(),
	})
	o.publish(ctx, &events.MessageAppended{
		Meta:    o.meta(p),
		Role:    role,
		Content: content,
	})
}

// acquireSession enforces single-flight processing per session
func (o *orchestrator) acquireSession(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing[sessionID] {
		return errors.Aborted("session is already processing a response")
	}
	o.processing[sessionID] = true
	return nil
}

func (o *orchestrator) releaseSession(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.processing, sessionID)
}

// meta stamps an event with this pass's correlation ID
func (o *orchestrator) meta(p *pass) events.Meta {
	return events.Meta{
		EventID:       o.idGen.Generate(),
		CorrelationID: p.correlationID,
		SessionID:     p.session.ID,
		OccurredAt:    o.clock.Now(),
	}
}

func (o *orchestrator) publish(ctx context.Context, event events.Event) {
	if err := o.bus.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish event",
			"event_type", event.EventType(),
			"error", err,
		)
	}
}

// refreshContext triggers the retrieval-context refresh without
// blocking the response. The goroutine owns its own context; the
// request's context is done once the caller returns.
func (o *orchestrator) refreshContext(sessionID, narrative string) {
	if narrative == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("context refresh panicked",
					"session_id", sessionID,
					"panic", r,
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), contextRefreshTimeout)
		defer cancel()

		if err := o.rag.RefreshContext(ctx, &rag.RefreshContextInput{
			SessionID: sessionID,
			Narrative: narrative,
		}); err != nil {
			slog.Warn("context refresh failed",
				"session_id", sessionID,
				"error", err,
			)
		}
	}()
}

// saveSnapshot persists the session best-effort: the in-memory session
// stays authoritative, a failed save is logged and play continues.
func (o *orchestrator) saveSnapshot(ctx context.Context, session *entities.GameSession) {
	if _, err := o.repo.Save(ctx, &sessionrepo.SaveInput{Session: session}); err != nil {
		slog.Error("failed to persist session snapshot",
			"session_id", session.ID,
			"error", err,
		)
	}
}
