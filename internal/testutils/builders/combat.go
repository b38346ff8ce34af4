package builders

import "github.com/KirkDiggler/gamemaster-api/internal/entities"

// CombatantBuilder provides a fluent interface for building test Combatant instances
type CombatantBuilder struct {
	combatant *entities.Combatant
}

// NewCombatantBuilder creates a builder with a standard goblin
func NewCombatantBuilder() *CombatantBuilder {
	return &CombatantBuilder{
		combatant: &entities.Combatant{
			ID:         "goblin-test-123",
			Name:       "Goblin",
			Initiative: entities.InitiativeUnset,
			CurrentHP:  7,
			MaxHP:      7,
			ArmorClass: 15,
			Kind:       entities.CombatantNonPlayer,
		},
	}
}

// WithID sets the combatant ID
func (b *CombatantBuilder) WithID(id string) *CombatantBuilder {
	b.combatant.ID = id
	return b
}

// WithName sets the combatant name
func (b *CombatantBuilder) WithName(name string) *CombatantBuilder {
	b.combatant.Name = name
	return b
}

// WithHP sets current and max HP
func (b *CombatantBuilder) WithHP(current, maxHP int32) *CombatantBuilder {
	b.combatant.CurrentHP = current
	b.combatant.MaxHP = maxHP
	return b
}

// WithInitiative sets a rolled initiative
func (b *CombatantBuilder) WithInitiative(initiative int32) *CombatantBuilder {
	b.combatant.Initiative = initiative
	return b
}

// WithInitiativeModifier sets the initiative modifier
func (b *CombatantBuilder) WithInitiativeModifier(mod int32) *CombatantBuilder {
	b.combatant.InitiativeModifier = mod
	return b
}

// AsPlayer marks the combatant as player-controlled
func (b *CombatantBuilder) AsPlayer() *CombatantBuilder {
	b.combatant.Kind = entities.CombatantPlayer
	return b
}

// WithConditions sets the condition list
func (b *CombatantBuilder) WithConditions(conditions ...string) *CombatantBuilder {
	b.combatant.Conditions = conditions
	return b
}

// Defeated zeroes HP and adds the defeated condition
func (b *CombatantBuilder) Defeated() *CombatantBuilder {
	b.combatant.CurrentHP = 0
	b.combatant.AddCondition(entities.ConditionDefeated)
	return b
}

// Build returns the combatant
func (b *CombatantBuilder) Build() *entities.Combatant {
	return b.combatant
}

// CombatBuilder provides a fluent interface for building test CombatState values
type CombatBuilder struct {
	combat *entities.CombatState
}

// NewCombatBuilder creates a builder for an active round 1 combat
func NewCombatBuilder() *CombatBuilder {
	return &CombatBuilder{
		combat: &entities.CombatState{
			IsActive: true,
			Round:    1,
		},
	}
}

// WithCombatants appends combatants in order
func (b *CombatBuilder) WithCombatants(combatants ...*entities.Combatant) *CombatBuilder {
	b.combat.Combatants = append(b.combat.Combatants, combatants...)
	return b
}

// WithTurnIndex sets whose turn it is
func (b *CombatBuilder) WithTurnIndex(index int32) *CombatBuilder {
	b.combat.CurrentTurnIndex = index
	return b
}

// WithRound sets the round number
func (b *CombatBuilder) WithRound(round int32) *CombatBuilder {
	b.combat.Round = round
	return b
}

// Inactive marks the combat as not running
func (b *CombatBuilder) Inactive() *CombatBuilder {
	b.combat.IsActive = false
	return b
}

// Build returns the combat state
func (b *CombatBuilder) Build() *entities.CombatState {
	return b.combat
}
