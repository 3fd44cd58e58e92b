package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vqiu25/inky/internal/models"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list the session action log is pushed to.
var DefaultQueueName = "inky_actions"

// SessionActionRecord is one entry of the session action log: an inbound
// player event or a lifecycle transition, in arrival order.
type SessionActionRecord struct {
	SessionID   uuid.UUID              `json:"session_id"`
	ActionIndex int                    `json:"action_index"`
	ActorID     uuid.UUID              `json:"actor_id"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"`
}

// SessionSummaryRecord is the finalized outcome pushed once per game.
type SessionSummaryRecord struct {
	SessionID uuid.UUID          `json:"session_id"`
	Deltas    []models.StatDelta `json:"deltas"`
	Timestamp int64              `json:"timestamp"`
}

// ConnectRedis initializes the global client from REDIS_ADDR (default
// "localhost:6379") and REDIS_DB (default 0).
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishSessionAction serializes the record and pushes it onto the action
// queue. Failures are the caller's to log; session state never depends on
// the push succeeding.
func PublishSessionAction(ctx context.Context, record SessionActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionActionRecord: %w", err)
	}
	queue := getEnv("ACTION_QUEUE_NAME", DefaultQueueName)
	if err := Rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", queue, err)
	}
	return nil
}

// PublishSessionSummary pushes the final stat deltas for downstream consumers.
func PublishSessionSummary(ctx context.Context, record SessionSummaryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionSummaryRecord: %w", err)
	}
	queue := getEnv("SUMMARY_QUEUE_NAME", DefaultQueueName+"_summaries")
	if err := Rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", queue, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

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
