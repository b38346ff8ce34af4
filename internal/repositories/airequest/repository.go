// Package airequest provides the repository for stored AI request
// context. Each session keeps at most one retryable request; the
// record's TTL is the retry window, so an expired entry simply stops
// existing and retries fail closed.
package airequest

import (
	"context"
	"time"

	"github.com/KirkDiggler/gamemaster-api/internal/clients/ai"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=airequestmock github.com/KirkDiggler/gamemaster-api/internal/repositories/airequest Repository

// DefaultTTL is the retry window for a stored request
const DefaultTTL = 5 * time.Minute

// StoredRequest is the context needed to re-run one AI request
type StoredRequest struct {
	// Session this request belongs to
	SessionID string

	// ID of the originating game event
	RequestID string

	PlayerID string

	// Originating event type ("player_action", "player_dice_submission")
	EventType string

	// Prompt messages exactly as sent to the AI
	Messages []ai.Message

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Repository stores retryable AI request context
type Repository interface {
	Create(ctx context.Context, input *CreateInput) (*CreateOutput, error)
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)
	Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error)
}

// CreateInput carries the request to store; a zero TTL means DefaultTTL
type CreateInput struct {
	Request *StoredRequest
	TTL     time.Duration
}

// CreateOutput carries the stored request with stamps applied
type CreateOutput struct {
	Request *StoredRequest
}

// GetInput identifies the session whose request to load
type GetInput struct {
	SessionID string
}

// GetOutput carries the stored request
type GetOutput struct {
	Request *StoredRequest
}

// DeleteInput identifies the session whose request to drop
type DeleteInput struct {
	SessionID string
}

// DeleteOutput confirms the removal
type DeleteOutput struct {
	Deleted bool
}
