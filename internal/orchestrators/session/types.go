package session

import (
	"github.com/KirkDiggler/gamemaster-api/internal/entities"
)

// ProcessAIResponseInput carries one AI response to apply to a session
type ProcessAIResponseInput struct {
	Session  *entities.GameSession
	Response *entities.AIResponse

	// Shared by every event emitted while applying this response;
	// generated when empty
	CorrelationID string
}

// ProcessAIResponseOutput reports the outcome of one processing pass
type ProcessAIResponseOutput struct {
	// Everything still awaiting player rolls, including requests from
	// earlier passes
	PendingPlayerRequests []*entities.DiceRequest

	// Requests created by this pass only
	NewPlayerRequests []*entities.DiceRequest

	// True when the caller should invoke the AI again immediately
	// instead of waiting for player input
	NeedsAIRerun bool

	CombatActive bool

	Narrative string
}

// ResolvePlayerRollInput resolves one pending dice request by rolling
// for every character it names
type ResolvePlayerRollInput struct {
	Session   *entities.GameSession
	RequestID string

	// Generated when empty
	CorrelationID string
}

// ResolvePlayerRollOutput carries the resolved request and its rolls
type ResolvePlayerRollOutput struct {
	Request  *entities.DiceRequest
	Outcomes []*entities.RollOutcome
}

// pass carries the state shared by every component call of one
// processing pass
type pass struct {
	session       *entities.GameSession
	correlationID string
}
