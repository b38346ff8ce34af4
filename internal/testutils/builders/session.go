// Package builders provides test data builders for creating test fixtures
package builders

import (
	"time"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
)

// SessionBuilder provides a fluent interface for building test GameSession instances
type SessionBuilder struct {
	session *entities.GameSession
}

// NewSessionBuilder creates a new builder with minimal defaults
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		session: &entities.GameSession{
			ID:           "sess-test-123",
			Party:        make(map[string]*entities.CharacterInstance),
			KnownNPCs:    make(map[string]*entities.KnownNPC),
			ActiveQuests: make(map[string]*entities.Quest),
			LastActivity: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

// WithID sets the session ID
func (b *SessionBuilder) WithID(id string) *SessionBuilder {
	b.session.ID = id
	return b
}

// WithPartyMember adds a party member
func (b *SessionBuilder) WithPartyMember(member *entities.CharacterInstance) *SessionBuilder {
	b.session.Party[member.ID] = member
	return b
}

// WithCombat sets the combat state
func (b *SessionBuilder) WithCombat(combat *entities.CombatState) *SessionBuilder {
	b.session.Combat = combat
	return b
}

// WithLocation sets the current location
func (b *SessionBuilder) WithLocation(name, description string) *SessionBuilder {
	b.session.CurrentLocation = &entities.Location{Name: name, Description: description}
	return b
}

// WithPendingRequest appends a pending dice request
func (b *SessionBuilder) WithPendingRequest(req *entities.DiceRequest) *SessionBuilder {
	b.session.PendingDiceRequests = append(b.session.PendingDiceRequests, req)
	return b
}

// WithBufferedNPCRoll appends an NPC roll outcome awaiting narration
func (b *SessionBuilder) WithBufferedNPCRoll(outcome *entities.RollOutcome) *SessionBuilder {
	b.session.NPCRollBuffer = append(b.session.NPCRollBuffer, outcome)
	return b
}

// WithQuest adds a quest
func (b *SessionBuilder) WithQuest(quest *entities.Quest) *SessionBuilder {
	b.session.ActiveQuests[quest.ID] = quest
	return b
}

// WithContentPacks sets the content pack priority list
func (b *SessionBuilder) WithContentPacks(packs ...string) *SessionBuilder {
	b.session.ContentPackPriority = packs
	return b
}

// Build returns the session
func (b *SessionBuilder) Build() *entities.GameSession {
	return b.session
}

// PartyMemberBuilder provides a fluent interface for building test CharacterInstance values
type PartyMemberBuilder struct {
	member *entities.CharacterInstance
}

// NewPartyMemberBuilder creates a builder with a healthy level 3 fighter
func NewPartyMemberBuilder() *PartyMemberBuilder {
	return &PartyMemberBuilder{
		member: &entities.CharacterInstance{
			ID:                 "char-test-123",
			TemplateID:         "tmpl-test-123",
			Name:               "Brynja",
			Level:              3,
			CurrentHP:          24,
			MaxHP:              24,
			ArmorClass:         16,
			InitiativeModifier: 2,
			Gold:               50,
		},
	}
}

// WithID sets the character ID
func (b *PartyMemberBuilder) WithID(id string) *PartyMemberBuilder {
	b.member.ID = id
	return b
}

// WithName sets the character name
func (b *PartyMemberBuilder) WithName(name string) *PartyMemberBuilder {
	b.member.Name = name
	return b
}

// WithHP sets current and max HP
func (b *PartyMemberBuilder) WithHP(current, maxHP int32) *PartyMemberBuilder {
	b.member.CurrentHP = current
	b.member.MaxHP = maxHP
	return b
}

// WithGold sets the gold amount
func (b *PartyMemberBuilder) WithGold(gold int32) *PartyMemberBuilder {
	b.member.Gold = gold
	return b
}

// WithInitiativeModifier sets the initiative modifier
func (b *PartyMemberBuilder) WithInitiativeModifier(mod int32) *PartyMemberBuilder {
	b.member.InitiativeModifier = mod
	return b
}

// WithItem adds an inventory item
func (b *PartyMemberBuilder) WithItem(name string, quantity int32) *PartyMemberBuilder {
	b.member.Inventory = append(b.member.Inventory, entities.InventoryItem{
		Name:     name,
		Quantity: quantity,
	})
	return b
}

// WithConditions sets the condition list
func (b *PartyMemberBuilder) WithConditions(conditions ...string) *PartyMemberBuilder {
	b.member.Conditions = conditions
	return b
}

// Build returns the party member
func (b *PartyMemberBuilder) Build() *entities.CharacterInstance {
	return b.member
}
