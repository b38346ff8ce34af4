package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
)

// Group keywords the AI may use in place of a character reference
const (
	keywordAll        = "all"
	keywordParty      = "party"
	keywordAllPlayers = "all_players"
	keywordAllPCs     = "all_pcs"
)

// isPartyKeyword matches the keywords that expand to player-controlled
// entries only
func isPartyKeyword(identifier string) bool {
	switch identifier {
	case keywordParty, keywordAllPlayers, keywordAllPCs:
		return true
	}
	return false
}

func isGroupKeyword(identifier string) bool {
	return identifier == keywordAll || isPartyKeyword(identifier)
}

// resolveTargets maps a free-form identifier to canonical character IDs.
// A single identifier that resolves to nothing is dropped with a
// diagnostic; the caller continues with whatever did resolve.
func (o *orchestrator) resolveTargets(ctx context.Context, p *pass, identifier string) []string {
	ids := expandTargets(p.session, identifier)
	if len(ids) == 0 && !isGroupKeyword(normalizeIdentifier(identifier)) {
		slog.Warn("unresolved target identifier",
			"session_id", p.session.ID,
			"identifier", identifier,
		)
		o.publish(ctx, &events.GameError{
			Meta:    o.meta(p),
			Code:    "unresolved_target",
			Message: fmt.Sprintf("no character or combatant matches %q", identifier),
		})
	}
	return ids
}

// expandTargets is the diagnostic-free form of resolution, used both by
// resolveTargets and by turn pre-calculation.
func expandTargets(session *entities.GameSession, identifier string) []string {
	normalized := normalizeIdentifier(identifier)

	switch {
	case normalized == keywordAll:
		return expandAll(session)
	case isPartyKeyword(normalized):
		return expandPartyKeyword(session)
	default:
		if id, ok := findTarget(session, identifier); ok {
			return []string{id}
		}
		return nil
	}
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// expandAll returns every non-defeated combatant during combat, and the
// entire party regardless of defeat outside of it.
func expandAll(session *entities.GameSession) []string {
	if session.CombatActive() {
		var ids []string
		for _, c := range session.Combat.Combatants {
			if c.IsDefeated() {
				continue
			}
			ids = append(ids, c.ID)
		}
		return ids
	}
	return sortedPartyIDs(session)
}

// expandPartyKeyword restricts the "all" logic to player-controlled
// entries.
func expandPartyKeyword(session *entities.GameSession) []string {
	if session.CombatActive() {
		var ids []string
		for _, c := range session.Combat.Combatants {
			if !c.IsPlayer() || c.IsDefeated() {
				continue
			}
			ids = append(ids, c.ID)
		}
		return ids
	}
	return sortedPartyIDs(session)
}

// findTarget resolves one identifier: exact ID first, then
// case-insensitive name, checking the party before active combatants.
func findTarget(session *entities.GameSession, identifier string) (string, bool) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return "", false
	}

	if session.PartyMember(trimmed) != nil {
		return trimmed, true
	}
	if session.CombatActive() && session.Combat.CombatantByID(trimmed) != nil {
		return trimmed, true
	}

	for _, id := range sortedPartyIDs(session) {
		if strings.EqualFold(session.Party[id].Name, trimmed) {
			return id, true
		}
	}
	if session.CombatActive() {
		for _, c := range session.Combat.Combatants {
			if strings.EqualFold(c.Name, trimmed) {
				return c.ID, true
			}
		}
	}

	return "", false
}

// sortedPartyIDs keeps party expansion and name lookup deterministic
// across map iteration order.
func sortedPartyIDs(session *entities.GameSession) []string {
	if len(session.Party) == 0 {
		return nil
	}
	ids := make([]string, 0, len(session.Party))
	for id := range session.Party {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
