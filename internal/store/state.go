package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dago-libs/pkg/domain/state"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// stateKeyPrefix is shared with the orchestrator, which writes execution
// state under the same keys.
const stateKeyPrefix = "graph:state:"

// ErrStateNotFound is returned when no attributes are stored for an execution
var ErrStateNotFound = errors.New("state not found")

// StateStore persists the attribute map of an execution
type StateStore interface {
	Save(ctx context.Context, executionID string, st state.State) error
	Load(ctx context.Context, executionID string) (state.State, error)
}

// RedisStateStore implements StateStore using JSON values in Redis
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStateStore creates a new Redis state store. A positive ttl is
// applied on every Save.
func NewRedisStateStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStateStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func stateKey(executionID string) string {
	return stateKeyPrefix + executionID
}

// Save saves the attributes of an execution
func (s *RedisStateStore) Save(ctx context.Context, executionID string, st state.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, stateKey(executionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.Debug("saved state",
		zap.String("execution_id", executionID),
		zap.Int("attributes", len(st)),
	)
	return nil
}

// Load loads the attributes of an execution
func (s *RedisStateStore) Load(ctx context.Context, executionID string) (state.State, error) {
	data, err := s.client.Get(ctx, stateKey(executionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w for execution %s", ErrStateNotFound, executionID)
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	return decodeState(data)
}

// decodeState unmarshals a JSON object into a state.State. Numbers are kept
// as float64, matching what attributes carried inline in a job decode to.
func decodeState(data string) (state.State, error) {
	var st state.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if st == nil {
		st = state.State{}
	}
	return st, nil
}
