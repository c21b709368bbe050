package redisadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vihadmin:seq"

// CounterStore keeps (family, year) sequence counters in Redis. INCR is atomic
// on the server, so concurrent allocators never see the same value. Increments
// are not rolled back with the relational transaction; an aborted create leaves
// a gap in the sequence.
type CounterStore struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewCounterStore(client redis.UniversalClient, logger *slog.Logger) *CounterStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CounterStore{client: client, logger: logger}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr string, password string, db int) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func CounterKey(family string, year int) string {
	return fmt.Sprintf("%s:%s:%04d", keyPrefix, strings.ToUpper(strings.TrimSpace(family)), year)
}

func (s *CounterStore) IncrementSequence(ctx context.Context, family string, year int) (int64, error) {
	key := CounterKey(family, year)
	value, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Error("redis sequence increment failed",
			"event", "lifecycle_redis_increment_failed",
			"module", "document-workflow/lifecycle-service",
			"layer", "adapter",
			"key", key,
			"error", err.Error(),
		)
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return value, nil
}

// Current reads the counter without incrementing it. A missing key reads as zero.
func (s *CounterStore) Current(ctx context.Context, family string, year int) (int64, error) {
	value, err := s.client.Get(ctx, CounterKey(family, year)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return value, err
}
