package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"learnhub/internal/auth/models"
	id "learnhub/pkg/domain"
	"learnhub/pkg/platform/sentinel"
)

var getDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "learnhub_session_get_duration_ms",
	Help:    "Latency of session cache reads in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 100, 500},
})

const sessionKeyPrefix = "session:"

// RedisStore keeps one JSON session snapshot per user under session:<userID>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces keys, for tests sharing one Redis.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: sessionKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(userID id.UserID) string {
	return s.prefix + userID.String()
}

// Put overwrites the snapshot with a fresh TTL. Last writer wins.
func (s *RedisStore) Put(ctx context.Context, userID id.UserID, sess *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Get returns sentinel.ErrNotFound when no live entry exists.
func (s *RedisStore) Get(ctx context.Context, userID id.UserID) (*models.Session, error) {
	start := time.Now()
	defer func() {
		getDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	payload, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Replace overwrites only a live entry and keeps its remaining TTL, so a
// revoked session is never brought back by a late snapshot refresh.
func (s *RedisStore) Replace(ctx context.Context, userID id.UserID, sess *models.Session) (bool, error) {
	payload, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("marshal session: %w", err)
	}
	err = s.client.SetArgs(ctx, s.key(userID), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("replace session: %w", err)
	}
	return true, nil
}

// Extend restarts the TTL of a live entry and returns the snapshot as stored,
// in one GETEX round trip. A missing entry is sentinel.ErrNotFound and stays
// missing.
func (s *RedisStore) Extend(ctx context.Context, userID id.UserID, ttl time.Duration) (*models.Session, error) {
	payload, err := s.client.GetEx(ctx, s.key(userID), ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete is idempotent.
func (s *RedisStore) Delete(ctx context.Context, userID id.UserID) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
