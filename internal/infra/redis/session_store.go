package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"lead-gate-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore persists gated sessions in Redis, one JSON record per phone.
// Records carry no TTL: a saved session bypasses the gate until explicitly
// cleared. Malformed records are deleted on read, not repaired.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Load(ctx context.Context, phone string) (domain.GatedSession, bool, error) {
	raw, err := s.client.Get(ctx, s.key(phone)).Result()
	if err == redis.Nil {
		return domain.GatedSession{}, false, nil
	}
	if err != nil {
		return domain.GatedSession{}, false, fmt.Errorf("load session: %w", err)
	}

	var session domain.GatedSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		_ = s.client.Del(ctx, s.key(phone)).Err()
		return domain.GatedSession{}, false, nil
	}
	return session, true, nil
}

func (s *SessionStore) Save(ctx context.Context, session domain.GatedSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.Identity.Phone), data, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, phone string) error {
	return s.client.Del(ctx, s.key(phone)).Err()
}

func (s *SessionStore) key(phone string) string {
	return "gate:session:" + phone
}
