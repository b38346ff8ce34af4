package game

import (
	"github.com/KirkDiggler/gamemaster-api/internal/entities"
)

// Inbound event types
const (
	EventPlayerAction         = "player_action"
	EventPlayerDiceSubmission = "player_dice_submission"
	EventRetryRequest         = "retry_request"
)

// Response statuses
const (
	StatusCompleted           = "completed"
	StatusAwaitingPlayerRolls = "awaiting_player_rolls"
	StatusFailed              = "failed"
)

// GameEvent is one inbound player event. Exactly one payload field is
// set, matching Type.
type GameEvent struct {
	Type      string
	SessionID string
	PlayerID  string

	// Set for player_action
	Action *PlayerAction

	// Set for player_dice_submission
	DiceSubmission *DiceSubmission
}

// PlayerAction carries a free-text action taken by a character
type PlayerAction struct {
	// Optional; names the acting character in the transcript
	CharacterID string

	Text string
}

// DiceSubmission answers a pending dice request. The rolls themselves
// run server-side; the player only confirms the request.
type DiceSubmission struct {
	RequestID string
}

// GameEventResponse reports what one event did to the session
type GameEventResponse struct {
	Status string

	// Human-readable qualifier when handling was truncated or failed
	StatusDetail string

	// GM narration accumulated across every pass this event triggered
	Narrative string

	// Dice requests players still owe rolls for
	PendingRequests []*entities.DiceRequest

	CombatActive bool
}
