package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// proofKeyPrefix namespaces proof keys so the gate can share a Redis
// database with other services
const proofKeyPrefix = "paygate:proof:"

// RedisStore keeps consumed proofs in Redis so replay protection survives
// restarts and is shared across gate replicas
type RedisStore struct {
	client *redis.Client
}

var _ ProofStore = (*RedisStore)(nil)

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(proofID string) string {
	return proofKeyPrefix + proofID
}

// IsConsumed reports whether the proof key exists.
func (s *RedisStore) IsConsumed(ctx context.Context, proofID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(proofID)).Result()
	if err != nil {
		return false, fmt.Errorf("proof store: exists: %w", err)
	}
	return n > 0, nil
}

// Consume inserts the proof with SETNX. Redis serializes the insert, so
// across all replicas exactly one caller sees true. Keys never expire;
// the value records when the proof was consumed.
func (s *RedisStore) Consume(ctx context.Context, proofID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(proofID), time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return false, fmt.Errorf("proof store: setnx: %w", err)
	}
	return ok, nil
}
