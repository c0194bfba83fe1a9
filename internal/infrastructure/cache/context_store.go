package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chronicae/chronicler/internal/domain/entities"
)

// ContextStore keeps each session's narrative context in Redis. It outlives
// the API process so a worker restart mid-session still resolves character
// names and locations.
type ContextStore struct {
	rdb *redis.Client
}

// NewContextStore creates a Redis-backed session context store
func NewContextStore(rdb *redis.Client) *ContextStore {
	return &ContextStore{rdb: rdb}
}

func contextKey(sessionID string) string {
	return fmt.Sprintf("session:%s:context", sessionID)
}

// Save stores the full context of a session, replacing any previous one
func (s *ContextStore) Save(ctx context.Context, sessionID string, sessCtx *entities.SessionContext) error {
	raw, err := json.Marshal(sessCtx)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}
	if err := s.rdb.Set(ctx, contextKey(sessionID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store session context: %w", err)
	}
	return nil
}

// Resolve loads the context of a session. Missing context is nil, nil.
func (s *ContextStore) Resolve(ctx context.Context, sessionID string) (*entities.SessionContext, error) {
	raw, err := s.rdb.Get(ctx, contextKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session context: %w", err)
	}

	var sessCtx entities.SessionContext
	if err := json.Unmarshal(raw, &sessCtx); err != nil {
		return nil, fmt.Errorf("failed to decode session context: %w", err)
	}
	return &sessCtx, nil
}

// Delete removes a session's context (reset flow)
func (s *ContextStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, contextKey(sessionID)).Err()
}
