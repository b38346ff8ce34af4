// Package session provides the repository for game session snapshots.
// The in-memory session a pass mutates stays authoritative; the
// repository holds best-effort snapshots for recovery and inspection.
package session

import (
	"context"
	"time"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=sessionmock github.com/KirkDiggler/gamemaster-api/internal/repositories/session Repository

// Repository stores and retrieves game session snapshots
type Repository interface {
	Save(ctx context.Context, input *SaveInput) (*SaveOutput, error)
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)
	Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error)
}

// SaveInput carries the session to snapshot
type SaveInput struct {
	Session *entities.GameSession
}

// SaveOutput reports the snapshot time
type SaveOutput struct {
	SavedAt time.Time
}

// GetInput identifies the session to load
type GetInput struct {
	SessionID string
}

// GetOutput carries the loaded session
type GetOutput struct {
	Session *entities.GameSession
}

// DeleteInput identifies the session to remove
type DeleteInput struct {
	SessionID string
}

// DeleteOutput confirms the removal
type DeleteOutput struct {
	Deleted bool
}
