package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so every instance behind the
// gateway sees the same conversation. Idle sessions expire via key TTL.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix for sessions
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a session store on an existing client
func NewRedisStore(client *backend.Client, ttl time.Duration, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "soko:ussd:session:",
		ttl:    ttl,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *RedisStore) key(sessionKey string) string {
	return s.prefix + sessionKey
}

func (s *RedisStore) GetOrCreate(ctx context.Context, key string) (*Session, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == nil {
		var sess Session
		if err := json.Unmarshal(val, &sess); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return &sess, nil
	}
	if !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	sess := New(key)
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	// SetNX so a concurrent creator for the same key does not clobber state
	created, err := s.client.SetNX(ctx, s.key(key), data, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session in redis: %w", err)
	}
	if !created {
		return s.GetOrCreate(ctx, key)
	}
	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	sess.LastActive = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sess.Key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// Count scans the session prefix. Meant for health reporting, not hot paths.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
