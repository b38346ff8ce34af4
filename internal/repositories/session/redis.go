package session

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/gamemaster-api/internal/redis"
)

const (
	// Key pattern: game_session:{session_id}
	sessionKeyPrefix = "game_session:"

	// Sorted set of session IDs scored by last activity
	lastActiveKey = "game_sessions:last_active"
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

// NewRedisRepository creates a new Redis repository for game sessions
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

// Save upserts a session snapshot and refreshes the last-active index
func (r *redisRepository) Save(ctx context.Context, input *SaveInput) (*SaveOutput, error) {
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

	key := buildKey(input.Session.ID)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, sessionJSON, 0)
	pipe.ZAdd(ctx, lastActiveKey, redis.Z{
		Score:  float64(now.Unix()),
		Member: input.Session.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to store session in Redis")
	}

	return &SaveOutput{SavedAt: now}, nil
}

// Get loads a session snapshot
func (r *redisRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}

	sessionJSON, err := r.client.Get(ctx, buildKey(input.SessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("session %s not found", input.SessionID)
		}
		return nil, errors.Wrapf(err, "failed to get session from Redis")
	}

	var session entities.GameSession
	if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session")
	}

	return &GetOutput{Session: &session}, nil
}

// Delete removes a session snapshot and its index entry
func (r *redisRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument("session ID is required")
	}

	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, buildKey(input.SessionID))
	pipe.ZRem(ctx, lastActiveKey, input.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete session from Redis")
	}

	return &DeleteOutput{Deleted: del.Val() > 0}, nil
}

func buildKey(sessionID string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, sessionID)
}
