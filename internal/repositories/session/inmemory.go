package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
)

// InMemoryRepository implements Repository using in-memory storage.
// Snapshots are serialized on the way in so stored state never aliases
// the live session.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store map[string][]byte
	clock clock.Clock
}

// NewInMemory creates a new in-memory repository
func NewInMemory(clk clock.Clock) *InMemoryRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &InMemoryRepository{
		store: make(map[string][]byte),
		clock: clk,
	}
}

// Ensure InMemoryRepository implements Repository
var _ Repository = (*InMemoryRepository)(nil)

// Save stores a session snapshot
func (r *InMemoryRepository) Save(ctx context.Context, input *SaveInput) (*SaveOutput, error) {
	if input == nil || input.Session == nil {
		return nil, errors.InvalidArgument("session is required")
	}
	if input.Session.ID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}

	now := r.clock.Now()
	input.Session.LastActivity = now

	sessionJSON, err := json.Marshal(input.Session)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[input.Session.ID] = sessionJSON

	return &SaveOutput{SavedAt: now}, nil
}

// Get retrieves a session snapshot by ID
func (r *InMemoryRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}

	r.mu.RLock()
	sessionJSON, exists := r.store[input.SessionID]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.NotFoundf("session %s not found", input.SessionID)
	}

	var session entities.GameSession
	if err := json.Unmarshal(sessionJSON, &session); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session")
	}

	return &GetOutput{Session: &session}, nil
}

// Delete removes a session snapshot
func (r *InMemoryRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.store[input.SessionID]
	delete(r.store, input.SessionID)

	return &DeleteOutput{Deleted: exists}, nil
}
