package airequest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
)

// InMemoryRepository implements Repository using in-memory storage.
// Expiry is enforced on read against the injected clock, matching the
// Redis TTL behavior.
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

// Create stores the request context, replacing any previous request
// for the session
func (r *InMemoryRepository) Create(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if input == nil || input.Request == nil {
		return nil, errors.InvalidArgument(errRequestNil)
	}
	if input.Request.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	now := r.clock.Now()
	ttl := input.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	stored := *input.Request
	stored.CreatedAt = now
	stored.ExpiresAt = now.Add(ttl)

	requestJSON, err := json.Marshal(&stored)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal request")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[stored.SessionID] = requestJSON

	return &CreateOutput{Request: &stored}, nil
}

// Get retrieves the stored request for a session. Expired entries are
// removed and reported as not found.
func (r *InMemoryRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	r.mu.RLock()
	requestJSON, exists := r.store[input.SessionID]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.NotFound("no stored AI request for session")
	}

	var stored StoredRequest
	if err := json.Unmarshal(requestJSON, &stored); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal request")
	}

	if r.clock.Now().After(stored.ExpiresAt) {
		r.mu.Lock()
		delete(r.store, input.SessionID)
		r.mu.Unlock()
		return nil, errors.NotFound("stored AI request has expired")
	}

	return &GetOutput{Request: &stored}, nil
}

// Delete removes the stored request for a session
func (r *InMemoryRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.store[input.SessionID]
	delete(r.store, input.SessionID)

	return &DeleteOutput{Deleted: exists}, nil
}
