package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists session records and audit trails in Redis. Records are
// JSON values under session:{id}, audit trails are lists under audit:{id};
// both expire after the retention window so the store garbage-collects
// resolved sessions on its own.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore connects to Redis using a redis:// URL.
func NewRedisStore(url string, retention time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), retention), nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests.
func NewRedisStoreWithClient(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string { return "session:" + id }
func auditKey(id string) string   { return "audit:" + id }

// Load returns the record for a session id.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &rec, nil
}

// Save upserts a record with the retention TTL.
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.SessionID, err)
	}
	if err := s.client.Set(ctx, sessionKey(rec.SessionID), raw, s.retention).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	return nil
}

// AppendAudit pushes an event onto the session's audit list and refreshes its
// TTL.
func (s *RedisStore) AppendAudit(ctx context.Context, sessionID string, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, auditKey(sessionID), raw)
	pipe.Expire(ctx, auditKey(sessionID), s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit %s: %w", sessionID, err)
	}
	return nil
}

// Audit returns the decoded audit trail for a session.
func (s *RedisStore) Audit(ctx context.Context, sessionID string) ([]Event, error) {
	raw, err := s.client.LRange(ctx, auditKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit %s: %w", sessionID, err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
