package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is a pending record: the submitted value plus the code that unlocks it
type Entry[T any] struct {
	Value     T         `json:"value"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (e Entry[T]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// PendingStore holds entries keyed by an identifier (an email address).
// Put overwrites any previous entry for the key: last write wins.
type PendingStore[T any] interface {
	Put(ctx context.Context, key string, e Entry[T]) error
	// Get returns expired entries too, so callers can tell "expired" from "absent".
	Get(ctx context.Context, key string) (Entry[T], bool, error)
	Delete(ctx context.Context, key string) error
	// Sweep evicts entries that expired before now and reports how many went.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore keeps entries in process memory; nothing survives a restart
type MemoryStore[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{entries: make(map[string]Entry[T])}
}

func (s *MemoryStore[T]) Put(_ context.Context, key string, e Entry[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *MemoryStore[T]) Get(_ context.Context, key string) (Entry[T], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore[T]) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of entries currently held
func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisStore keeps entries as JSON strings with a TTL. Keys outlive the code's
// expiry by Grace so an expired attempt is still recognised as such.
type RedisStore[T any] struct {
	Client redis.UniversalClient
	Prefix string
	Grace  time.Duration
}

func NewRedisStore[T any](client redis.UniversalClient, prefix string) *RedisStore[T] {
	return &RedisStore[T]{Client: client, Prefix: prefix, Grace: time.Hour}
}

func (s *RedisStore[T]) key(k string) string {
	return s.Prefix + k
}

func (s *RedisStore[T]) Put(ctx context.Context, key string, e Entry[T]) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("otp: marshal entry: %w", err)
	}
	ttl := time.Until(e.ExpiresAt) + s.Grace
	if ttl <= 0 {
		ttl = s.Grace
	}
	return s.Client.Set(ctx, s.key(key), raw, ttl).Err()
}

func (s *RedisStore[T]) Get(ctx context.Context, key string) (Entry[T], bool, error) {
	var e Entry[T]
	raw, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, false, fmt.Errorf("otp: decode entry: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.key(key)).Err()
}

// Sweep is a no-op: redis evicts keys on TTL.
func (s *RedisStore[T]) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
