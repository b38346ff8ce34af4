package entities

import (
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/core"
)

// ConditionDefeated marks a combatant that has been taken out of the fight
const ConditionDefeated = "defeated"

// InitiativeUnset is the initiative value of a combatant that has not rolled yet
const InitiativeUnset int32 = -1

// CombatantKind distinguishes player characters from GM-controlled combatants
type CombatantKind string

// Combatant kinds
const (
	CombatantPlayer    CombatantKind = "player"
	CombatantNonPlayer CombatantKind = "npc"
)

// CombatState tracks an active turn-based encounter
type CombatState struct {
	IsActive bool

	// Ordered list; order is established by initiative and preserved
	// across removals
	Combatants []*Combatant

	// Index into Combatants of whoever acts now
	CurrentTurnIndex int32

	Round int32
}

// CombatantByID returns the combatant with the given ID, or nil
func (c *CombatState) CombatantByID(id string) *Combatant {
	if c == nil {
		return nil
	}
	for _, cb := range c.Combatants {
		if cb.ID == id {
			return cb
		}
	}
	return nil
}

// Current returns the combatant whose turn it is, or nil
func (c *CombatState) Current() *Combatant {
	if c == nil || len(c.Combatants) == 0 {
		return nil
	}
	if c.CurrentTurnIndex < 0 || int(c.CurrentTurnIndex) >= len(c.Combatants) {
		return nil
	}
	return c.Combatants[c.CurrentTurnIndex]
}

// LivingNonPlayers returns the non-player combatants still standing
func (c *CombatState) LivingNonPlayers() []*Combatant {
	if c == nil {
		return nil
	}
	var out []*Combatant
	for _, cb := range c.Combatants {
		if cb.Kind == CombatantNonPlayer && !cb.IsDefeated() {
			out = append(out, cb)
		}
	}
	return out
}

// Combatant is one participant in an active combat
type Combatant struct {
	ID   string
	Name string

	// InitiativeUnset until an initiative roll lands
	Initiative         int32
	InitiativeModifier int32

	CurrentHP  int32
	MaxHP      int32
	ArmorClass int32

	Conditions []string

	Kind CombatantKind

	// SRD content key when the name resolved to known content,
	// empty otherwise
	ContentKey string
}

// Compile-time check that Combatant implements core.Entity
var _ core.Entity = (*Combatant)(nil)

// GetID returns the combatant's ID
func (c *Combatant) GetID() string {
	return c.ID
}

// GetType returns the entity type for rpg-toolkit
func (c *Combatant) GetType() string {
	if c.Kind == CombatantPlayer {
		return "character"
	}
	return "monster"
}

// IsPlayer reports whether this combatant is player-controlled
func (c *Combatant) IsPlayer() bool {
	return c.Kind == CombatantPlayer
}

// IsDefeated reports whether the combatant is out of the fight,
// either at zero HP or carrying the defeated condition
func (c *Combatant) IsDefeated() bool {
	return c.CurrentHP <= 0 || c.HasCondition(ConditionDefeated)
}

// HasCondition checks for a condition, case-insensitively
func (c *Combatant) HasCondition(condition string) bool {
	for _, existing := range c.Conditions {
		if strings.EqualFold(existing, condition) {
			return true
		}
	}
	return false
}

// AddCondition adds a condition if not already present.
// Returns whether the set changed.
func (c *Combatant) AddCondition(condition string) bool {
	if c.HasCondition(condition) {
		return false
	}
	c.Conditions = append(c.Conditions, condition)
	return true
}

// RemoveCondition removes a condition, case-insensitively.
// Returns whether the set changed.
func (c *Combatant) RemoveCondition(condition string) bool {
	for i, existing := range c.Conditions {
		if strings.EqualFold(existing, condition) {
			c.Conditions = append(c.Conditions[:i], c.Conditions[i+1:]...)
			return true
		}
	}
	return false
}
