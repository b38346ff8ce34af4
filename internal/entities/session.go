// Package entities defines the domain model for game sessions
package entities

import (
	"strings"
	"time"
)

// GameSession is the authoritative state of one live game.
// Exactly one instance exists per session ID; the orchestrator
// holds exclusive access to it while processing a response.
type GameSession struct {
	ID string

	// Party members keyed by character ID
	Party map[string]*CharacterInstance

	// Combat is nil or inactive outside of combat
	Combat *CombatState

	// NPCs the party has encountered, keyed by NPC ID
	KnownNPCs map[string]*KnownNPC

	// Quests keyed by quest ID
	ActiveQuests map[string]*Quest

	// Conversation log between players and the game master
	Transcript []TranscriptEntry

	// Dice requests awaiting player rolls
	PendingDiceRequests []*DiceRequest

	// NPC roll results awaiting narrative interpretation by the AI
	NPCRollBuffer []*RollOutcome

	// Content pack IDs in priority order for content resolution
	ContentPackPriority []string

	CurrentLocation *Location

	LastActivity time.Time
}

// PartyMember returns the party member with the given ID, or nil
func (s *GameSession) PartyMember(id string) *CharacterInstance {
	if s.Party == nil {
		return nil
	}
	return s.Party[id]
}

// CombatActive reports whether the session has a running combat
func (s *GameSession) CombatActive() bool {
	return s.Combat != nil && s.Combat.IsActive
}

// CharacterInstance is the live, mutable state of a party member.
// Static sheet data lives on the CharacterTemplate.
type CharacterInstance struct {
	ID                 string
	TemplateID         string
	Name               string
	Level              int32
	CurrentHP          int32
	MaxHP              int32
	ArmorClass         int32
	InitiativeModifier int32
	Conditions         []string
	Gold               int32
	Inventory          []InventoryItem
}

// IsDefeated reports whether the character is down, either at zero HP
// or carrying the defeated condition
func (ci *CharacterInstance) IsDefeated() bool {
	return ci.CurrentHP <= 0 || ci.HasCondition(ConditionDefeated)
}

// HasCondition checks for a condition, case-insensitively
func (ci *CharacterInstance) HasCondition(condition string) bool {
	for _, existing := range ci.Conditions {
		if strings.EqualFold(existing, condition) {
			return true
		}
	}
	return false
}

// AddCondition adds a condition if not already present.
// Returns whether the set changed.
func (ci *CharacterInstance) AddCondition(condition string) bool {
	if ci.HasCondition(condition) {
		return false
	}
	ci.Conditions = append(ci.Conditions, condition)
	return true
}

// RemoveCondition removes a condition, case-insensitively.
// Returns whether the set changed.
func (ci *CharacterInstance) RemoveCondition(condition string) bool {
	for i, existing := range ci.Conditions {
		if strings.EqualFold(existing, condition) {
			ci.Conditions = append(ci.Conditions[:i], ci.Conditions[i+1:]...)
			return true
		}
	}
	return false
}

// CharacterTemplate is the static character sheet backing an instance
type CharacterTemplate struct {
	ID                 string
	Name               string
	Class              string
	Race               string
	Level              int32
	InitiativeModifier int32
}

// InventoryItem is a carried item stack
type InventoryItem struct {
	Name     string
	Quantity int32
}

// KnownNPC records a non-player character the party has met
type KnownNPC struct {
	ID          string
	Name        string
	Description string
	FirstSeenAt string // location name
}

// QuestStatus describes quest progression
type QuestStatus string

// Quest statuses
const (
	QuestStatusActive    QuestStatus = "active"
	QuestStatusCompleted QuestStatus = "completed"
	QuestStatusFailed    QuestStatus = "failed"
)

// Quest is a tracked objective
type Quest struct {
	ID          string
	Title       string
	Description string
	Status      QuestStatus
	UpdatedAt   time.Time
}

// TranscriptRole identifies the speaker of a transcript entry
type TranscriptRole string

// Transcript roles
const (
	RolePlayer TranscriptRole = "player"
	RoleGM     TranscriptRole = "gm"
	RoleSystem TranscriptRole = "system"
)

// TranscriptEntry is one message in the session transcript
type TranscriptEntry struct {
	Role      TranscriptRole
	Content   string
	Timestamp time.Time
	Metadata  map[string]string
}

// Location is the party's current place in the world
type Location struct {
	Name        string
	Description string
}
