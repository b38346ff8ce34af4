package airequest

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/gamemaster-api/internal/redis"
)

const (
	// Key pattern: ai_request:{session_id}
	requestKeyPrefix = "ai_request:"

	errSessionIDEmpty = "session ID cannot be empty"
	errRequestNil     = "request cannot be nil"
)

// Config holds the configuration for the Redis repository
type Config struct {
	Client redisclient.Client
	Clock  clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c.Client == nil {
		return errors.InvalidArgument("redis client is required")
	}
	if c.Clock == nil {
		return errors.InvalidArgument("clock is required")
	}
	return nil
}

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// NewRedisRepository creates a new Redis repository for AI request context
func NewRedisRepository(cfg *Config) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  cfg.Clock,
	}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

// Create stores the request context with the retry-window TTL,
// replacing any previous request for the session
func (r *redisRepository) Create(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
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

	key := buildKey(stored.SessionID)
	if err := r.client.Set(ctx, key, requestJSON, ttl).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to store request in Redis")
	}

	return &CreateOutput{Request: &stored}, nil
}

// Get retrieves the stored request for a session. Expired entries are
// removed and reported as not found.
func (r *redisRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	key := buildKey(input.SessionID)

	requestJSON, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFound("no stored AI request for session")
		}
		return nil, errors.Wrapf(err, "failed to get request from Redis")
	}

	var stored StoredRequest
	if err := json.Unmarshal([]byte(requestJSON), &stored); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal request")
	}

	// The TTL should handle expiry; double-check against the clock so a
	// stale entry can never reopen the retry window
	if r.clock.Now().After(stored.ExpiresAt) {
		_ = r.client.Del(ctx, key)
		return nil, errors.NotFound("stored AI request has expired")
	}

	return &GetOutput{Request: &stored}, nil
}

// Delete removes the stored request for a session
func (r *redisRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	result := r.client.Del(ctx, buildKey(input.SessionID))
	if result.Err() != nil {
		return nil, errors.Wrapf(result.Err(), "failed to delete request from Redis")
	}

	return &DeleteOutput{Deleted: result.Val() > 0}, nil
}

func buildKey(sessionID string) string {
	return fmt.Sprintf("%s%s", requestKeyPrefix, sessionID)
}
