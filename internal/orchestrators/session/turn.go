package session

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
)

// turnPlan is the advancement target, resolved before any mutation of
// the pass shifts the live combatant list.
type turnPlan struct {
	// False when there was no active combat to plan against
	valid bool

	// True when the simulated removals leave no one standing
	endCombat bool

	// First survivor walking forward from the current combatant
	nextID string

	// Index of nextID in the simulated post-removal list
	nextIndex int32

	// True when the walk passed the end of the list, completing a
	// round
	wrapped bool
}

// planNextTurn simulates this pass's removals against a copy of the
// turn order and records who acts next. Removals shift indices, so
// resolving the target afterwards would land on the wrong combatant.
func planNextTurn(session *entities.GameSession, removals []entities.CombatantRemoval) *turnPlan {
	if !session.CombatActive() || len(session.Combat.Combatants) == 0 {
		return &turnPlan{}
	}
	combatants := session.Combat.Combatants
	n := len(combatants)

	removed := make(map[string]bool)
	for i := range removals {
		for _, id := range expandTargets(session, removals[i].CharacterID) {
			removed[id] = true
		}
	}

	cur := int(session.Combat.CurrentTurnIndex)
	if cur < 0 || cur >= n {
		cur = 0
	}

	plan := &turnPlan{valid: true}
	survivorIdx := -1
	for step := 1; step <= n; step++ {
		idx := (cur + step) % n
		if removed[combatants[idx].ID] {
			continue
		}
		survivorIdx = idx
		break
	}
	if survivorIdx < 0 {
		plan.endCombat = true
		return plan
	}

	plan.nextID = combatants[survivorIdx].ID
	plan.wrapped = survivorIdx <= cur
	for i := 0; i < survivorIdx; i++ {
		if !removed[combatants[i].ID] {
			plan.nextIndex++
		}
	}
	return plan
}

// advanceTurn moves the turn to the pre-calculated combatant when the
// pass allows it. Holding conditions are checked one at a time so the
// logs show exactly which one suppressed the advance.
//
// Returns whether the turn moved.
func (o *orchestrator) advanceTurn(
	ctx context.Context, p *pass, plan *turnPlan, endTurn, pendingPlayer, needsRerun bool,
) bool {
	if !p.session.CombatActive() {
		return false
	}
	if !endTurn {
		slog.Debug("holding turn, AI did not end it", "session_id", p.session.ID)
		return false
	}
	if pendingPlayer {
		slog.Info("holding turn, player rolls pending", "session_id", p.session.ID)
		return false
	}
	if needsRerun {
		slog.Info("holding turn, AI rerun required", "session_id", p.session.ID)
		return false
	}

	combat := p.session.Combat
	if len(combat.Combatants) == 0 {
		slog.Warn("cannot advance, no combatants remain", "session_id", p.session.ID)
		o.publish(ctx, &events.GameError{
			Meta:    o.meta(p),
			Code:    "advance_empty_combat",
			Message: "turn cannot advance past an empty combatant list",
		})
		return false
	}

	if plan.endCombat {
		o.endCombat(ctx, p, "no combatants remain")
		return false
	}

	var next int
	var wrapped bool
	if plan.valid && int(plan.nextIndex) < len(combat.Combatants) &&
		combat.Combatants[plan.nextIndex].ID == plan.nextID {
		next = int(plan.nextIndex)
		wrapped = plan.wrapped
	} else {
		// The list no longer matches the plan; scan instead of
		// trusting a stale index.
		if plan.valid {
			slog.Warn("pre-calculated turn target is stale, scanning forward",
				"session_id", p.session.ID,
				"planned_id", plan.nextID,
				"planned_index", plan.nextIndex,
			)
		}
		next = (int(combat.CurrentTurnIndex) + 1) % len(combat.Combatants)
		wrapped = next <= int(combat.CurrentTurnIndex)
	}

	combat.CurrentTurnIndex = int32(next)
	if wrapped {
		combat.Round++
	}

	// Whatever was buffered has been overtaken by the turn moving on
	p.session.NPCRollBuffer = nil

	current := combat.Combatants[next]
	slog.Info("turn advanced",
		"session_id", p.session.ID,
		"combatant_id", current.ID,
		"name", current.Name,
		"round", combat.Round,
	)
	o.publish(ctx, &events.TurnAdvanced{
		Meta:        o.meta(p),
		CombatantID: current.ID,
		Name:        current.Name,
		Round:       combat.Round,
	})
	return true
}
