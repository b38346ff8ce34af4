// Package events defines the session event stream: typed game events
// published synchronously as the orchestrator mutates session state.
// Subscribers see events in exactly the order the mutations happened,
// and every event from one processing pass carries that pass's
// correlation ID.
package events

import (
	"time"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
)

// Type identifies a kind of game event
type Type string

// Event types
const (
	TypeCombatStarted          Type = "combat_started"
	TypeCombatEnded            Type = "combat_ended"
	TypeCombatantHPChanged     Type = "combatant_hp_changed"
	TypeCombatantStatusChanged Type = "combatant_status_changed"
	TypeCombatantRemoved       Type = "combatant_removed"
	TypeInitiativeSet          Type = "initiative_set"
	TypeTurnAdvanced           Type = "turn_advanced"
	TypeDiceRequestAdded       Type = "dice_request_added"
	TypeNPCRollProcessed       Type = "npc_roll_processed"
	TypePartyMemberUpdated     Type = "party_member_updated"
	TypeItemAdded              Type = "item_added"
	TypeItemRemoved            Type = "item_removed"
	TypeQuestUpdated           Type = "quest_updated"
	TypeLocationChanged        Type = "location_changed"
	TypeMessageAppended        Type = "message_appended"
	TypeGameError              Type = "game_error"

	// TypeAny subscribes to every event
	TypeAny Type = "*"
)

// Event is one entry in the session event stream
type Event interface {
	EventType() Type
	EventMeta() Meta
}

// Meta carries the fields shared by every event
type Meta struct {
	EventID string

	// Shared by all events of one processing pass
	CorrelationID string

	SessionID  string
	OccurredAt time.Time
}

// EventMeta returns the shared event fields
func (m Meta) EventMeta() Meta { return m }

// CombatantSummary is a point-in-time snapshot of a combatant for
// event payloads
type CombatantSummary struct {
	ID         string
	Name       string
	Kind       entities.CombatantKind
	CurrentHP  int32
	MaxHP      int32
	Initiative int32
}

// CombatStarted fires when an encounter begins
type CombatStarted struct {
	Meta
	Combatants []CombatantSummary
}

// EventType returns the event type
func (*CombatStarted) EventType() Type { return TypeCombatStarted }

// CombatEnded fires when an encounter ends, explicitly or inferred
type CombatEnded struct {
	Meta
	Reason string
	Rounds int32
}

// EventType returns the event type
func (*CombatEnded) EventType() Type { return TypeCombatEnded }

// CombatantHPChanged fires for HP deltas on active combatants
type CombatantHPChanged struct {
	Meta
	CombatantID string
	Name        string
	OldHP       int32
	NewHP       int32
	MaxHP       int32

	// Built from attacker, weapon, damage type and critical flag,
	// falling back to free-text source
	Attribution string

	IsPlayer bool
	Defeated bool
}

// EventType returns the event type
func (*CombatantHPChanged) EventType() Type { return TypeCombatantHPChanged }

// CombatantStatusChanged fires when a condition is added or removed
type CombatantStatusChanged struct {
	Meta
	CombatantID string
	Name        string

	Condition string

	// True when the condition was added, false when removed
	Applied bool

	// Full condition set after the change
	Conditions []string

	Defeated bool
}

// EventType returns the event type
func (*CombatantStatusChanged) EventType() Type { return TypeCombatantStatusChanged }

// CombatantRemoved fires when a combatant leaves the turn order
type CombatantRemoved struct {
	Meta
	CombatantID string
	Name        string
	Reason      string
}

// EventType returns the event type
func (*CombatantRemoved) EventType() Type { return TypeCombatantRemoved }

// InitiativeSet fires when a combatant's initiative lands
type InitiativeSet struct {
	Meta
	CombatantID string
	Name        string
	Initiative  int32
}

// EventType returns the event type
func (*InitiativeSet) EventType() Type { return TypeInitiativeSet }

// TurnAdvanced fires when the turn passes to the next combatant
type TurnAdvanced struct {
	Meta
	CombatantID string
	Name        string
	Round       int32
}

// EventType returns the event type
func (*TurnAdvanced) EventType() Type { return TypeTurnAdvanced }

// DiceRequestAdded fires once per character on a pending player roll
type DiceRequestAdded struct {
	Meta
	RequestID     string
	CharacterID   string
	CharacterName string
	RollType      entities.RollType
	Formula       string
	DC            *int32
	Reason        string
}

// EventType returns the event type
func (*DiceRequestAdded) EventType() Type { return TypeDiceRequestAdded }

// NPCRollProcessed fires for each NPC roll performed by the system
type NPCRollProcessed struct {
	Meta
	CombatantID string
	Name        string
	RollType    entities.RollType
	Total       int32
	Result      string
}

// EventType returns the event type
func (*NPCRollProcessed) EventType() Type { return TypeNPCRollProcessed }

// PartyMemberUpdated fires for out-of-combat changes to a party member
type PartyMemberUpdated struct {
	Meta
	CharacterID string
	Name        string

	// What changed: "hp", "gold", "conditions"
	Field  string
	Detail string
}

// EventType returns the event type
func (*PartyMemberUpdated) EventType() Type { return TypePartyMemberUpdated }

// ItemAdded fires when a party member gains an item
type ItemAdded struct {
	Meta
	CharacterID string
	Name        string
	ItemName    string
	Quantity    int32
}

// EventType returns the event type
func (*ItemAdded) EventType() Type { return TypeItemAdded }

// ItemRemoved fires when a party member loses an item
type ItemRemoved struct {
	Meta
	CharacterID string
	Name        string
	ItemName    string
	Quantity    int32
}

// EventType returns the event type
func (*ItemRemoved) EventType() Type { return TypeItemRemoved }

// QuestUpdated fires when a quest is created or advanced
type QuestUpdated struct {
	Meta
	QuestID string
	Title   string
	Status  entities.QuestStatus
}

// EventType returns the event type
func (*QuestUpdated) EventType() Type { return TypeQuestUpdated }

// LocationChanged fires when the party moves
type LocationChanged struct {
	Meta
	Name        string
	Description string
}

// EventType returns the event type
func (*LocationChanged) EventType() Type { return TypeLocationChanged }

// MessageAppended fires when a transcript entry lands
type MessageAppended struct {
	Meta
	Role    entities.TranscriptRole
	Content string
}

// EventType returns the event type
func (*MessageAppended) EventType() Type { return TypeMessageAppended }

// GameError reports a skipped update or rejected transition without
// interrupting the pass
type GameError struct {
	Meta
	Code    string
	Message string
}

// EventType returns the event type
func (*GameError) EventType() Type { return TypeGameError }
