package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
	"github.com/KirkDiggler/gamemaster-api/internal/orchestrators/roll"
)

// forcedInitiativeFormula is the base die for initiative rolls the
// system synthesizes itself; each character's modifier is appended
// per roll.
const forcedInitiativeFormula = "1d20"

// handleDiceRequests splits the AI's roll requests into persisted
// player requests and immediately executed NPC rolls.
//
// When combat started this pass and the AI issued no initiative
// request of its own, a synthesized one covering every combatant with
// unset initiative runs first, so its results land at the front of
// both lists.
//
// needsRerun is true when NPC rolls were performed but no player input
// is awaited: the AI must be invoked again to narrate the results.
func (o *orchestrator) handleDiceRequests(
	ctx context.Context,
	p *pass,
	requests []entities.RollRequest,
	combatStarted bool,
) (playerRequests []*entities.DiceRequest, npcOutcomes []*entities.RollOutcome, needsRerun bool) {
	if combatStarted && !containsInitiativeRequest(requests) {
		if forced, ok := o.buildForcedInitiative(p); ok {
			requests = append([]entities.RollRequest{forced}, requests...)
		}
	}

	for i := range requests {
		playerReq, outcomes := o.processRollRequest(ctx, p, &requests[i])
		if playerReq != nil {
			playerRequests = append(playerRequests, playerReq)
		}
		npcOutcomes = append(npcOutcomes, outcomes...)
	}

	o.appendNPCRollTranscript(ctx, p, npcOutcomes)

	needsRerun = len(npcOutcomes) > 0 && len(playerRequests) == 0
	return playerRequests, npcOutcomes, needsRerun
}

func containsInitiativeRequest(requests []entities.RollRequest) bool {
	for _, req := range requests {
		if req.RollType == entities.RollTypeInitiative {
			return true
		}
	}
	return false
}

// buildForcedInitiative covers every combatant whose initiative is
// still unset. Returns false when no one needs to roll.
func (o *orchestrator) buildForcedInitiative(p *pass) (entities.RollRequest, bool) {
	if !p.session.CombatActive() {
		return entities.RollRequest{}, false
	}

	var ids []string
	for _, c := range p.session.Combat.Combatants {
		if c.Initiative == entities.InitiativeUnset {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return entities.RollRequest{}, false
	}

	slog.Info("synthesizing initiative request",
		"session_id", p.session.ID,
		"combatant_count", len(ids),
	)

	return entities.RollRequest{
		CharacterIDs: ids,
		RollType:     entities.RollTypeInitiative,
		DiceFormula:  forcedInitiativeFormula,
		Reason:       "Roll for initiative!",
	}, true
}

// processRollRequest resolves one request's targets and splits it:
// party members get a persisted DiceRequest, everyone else rolls now.
func (o *orchestrator) processRollRequest(
	ctx context.Context, p *pass, req *entities.RollRequest,
) (*entities.DiceRequest, []*entities.RollOutcome) {
	if req.RollType == "" || req.DiceFormula == "" {
		slog.Warn("skipping malformed roll request",
			"session_id", p.session.ID,
			"roll_type", req.RollType,
			"formula", req.DiceFormula,
		)
		return nil, nil
	}

	var playerIDs, npcIDs []string
	seen := make(map[string]bool)
	for _, identifier := range req.CharacterIDs {
		for _, id := range o.resolveTargets(ctx, p, identifier) {
			if seen[id] {
				continue
			}
			seen[id] = true
			if p.session.PartyMember(id) != nil {
				playerIDs = append(playerIDs, id)
			} else {
				npcIDs = append(npcIDs, id)
			}
		}
	}

	var playerReq *entities.DiceRequest
	if len(playerIDs) > 0 {
		playerReq = &entities.DiceRequest{
			ID:           o.idGen.Generate(),
			CharacterIDs: playerIDs,
			Type:         req.RollType,
			DiceFormula:  req.DiceFormula,
			Skill:        req.Skill,
			Ability:      req.Ability,
			DC:           req.DC,
			Reason:       req.Reason,
			CreatedAt:    o.clock.Now(),
		}
		for _, id := range playerIDs {
			o.publish(ctx, &events.DiceRequestAdded{
				Meta:          o.meta(p),
				RequestID:     playerReq.ID,
				CharacterID:   id,
				CharacterName: p.session.Party[id].Name,
				RollType:      req.RollType,
				Formula:       req.DiceFormula,
				DC:            req.DC,
				Reason:        req.Reason,
			})
		}
	}

	var outcomes []*entities.RollOutcome
	if len(npcIDs) > 0 {
		requestID := o.idGen.Generate()
		for _, id := range npcIDs {
			if outcome := o.performNPCRoll(ctx, p, requestID, id, req); outcome != nil {
				outcomes = append(outcomes, outcome)
			}
		}
	}

	return playerReq, outcomes
}

// performNPCRoll executes one roll for one non-player combatant.
// Returns nil when the roll was skipped.
func (o *orchestrator) performNPCRoll(
	ctx context.Context, p *pass, requestID, combatantID string, req *entities.RollRequest,
) *entities.RollOutcome {
	combatant := p.session.Combat.CombatantByID(combatantID)
	if combatant == nil {
		slog.Warn("roll target is not an active combatant",
			"session_id", p.session.ID,
			"combatant_id", combatantID,
		)
		return nil
	}
	if combatant.IsDefeated() {
		slog.Debug("skipping roll for defeated combatant",
			"session_id", p.session.ID,
			"combatant_id", combatantID,
		)
		return nil
	}

	formula := req.DiceFormula
	if req.RollType == entities.RollTypeInitiative {
		formula = initiativeFormula(formula, combatant.InitiativeModifier)
	}

	out, err := o.roll.PerformRoll(ctx, &roll.PerformRollInput{
		RequestID:     requestID,
		CharacterID:   combatantID,
		CharacterName: combatant.Name,
		RollType:      req.RollType,
		DiceFormula:   formula,
	})
	if err != nil {
		slog.Warn("NPC roll failed",
			"session_id", p.session.ID,
			"combatant_id", combatantID,
			"formula", formula,
			"error", err,
		)
		return nil
	}
	outcome := out.Outcome

	if req.RollType == entities.RollTypeInitiative {
		combatant.Initiative = outcome.Total
		o.publish(ctx, &events.InitiativeSet{
			Meta:        o.meta(p),
			CombatantID: combatant.ID,
			Name:        combatant.Name,
			Initiative:  outcome.Total,
		})
	}

	o.publish(ctx, &events.NPCRollProcessed{
		Meta:        o.meta(p),
		CombatantID: combatant.ID,
		Name:        combatant.Name,
		RollType:    outcome.Type,
		Total:       outcome.Total,
		Result:      outcome.ResultString,
	})

	return outcome
}

// initiativeFormula appends the character's modifier unless the formula
// already carries one.
func initiativeFormula(formula string, modifier int32) string {
	if modifier == 0 || strings.ContainsAny(formula, "+-") {
		return formula
	}
	if modifier > 0 {
		return fmt.Sprintf("%s+%d", formula, modifier)
	}
	return fmt.Sprintf("%s%d", formula, modifier)
}

// appendNPCRollTranscript writes one consolidated entry covering every
// NPC roll of the pass.
func (o *orchestrator) appendNPCRollTranscript(ctx context.Context, p *pass, outcomes []*entities.RollOutcome) {
	if len(outcomes) == 0 {
		return
	}
	lines := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		lines = append(lines, fmt.Sprintf("%s rolls %s: %s",
			outcome.CharacterName, outcome.Type, outcome.ResultString))
	}
	o.appendTranscript(ctx, p, entities.RoleSystem, strings.Join(lines, "\n"))
}
