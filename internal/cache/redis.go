// Package cache hands finished-match records to Redis, where the
// historian service picks them up and persists them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ndquoc/pairmatch/internal/models"
)

// DefaultQueueName is the Redis list (queue) name for match records.
const DefaultQueueName = "pairmatch_matches"

// Publisher pushes match records onto the historian queue. It
// satisfies session.MatchRecorder.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// Connect initializes the Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - HISTORIAN_QUEUE_NAME (default "pairmatch_matches")
func Connect() (*Publisher, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Publisher{
		rdb:   rdb,
		queue: getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
	}, nil
}

// NewPublisher wraps an existing client. Used by tests.
func NewPublisher(rdb *redis.Client, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// PublishMatchResult serializes the record to JSON and pushes it onto
// the queue. This does not block the calling logic beyond a quick
// network send.
func (p *Publisher) PublishMatchResult(ctx context.Context, rec models.MatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
