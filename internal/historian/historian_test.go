package historian

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vqiu25/inky/internal/cache"
)

// Minimal integration check: push one action record and confirm it round-trips
// through the queue encoding. Requires a local Redis; skipped otherwise.
func TestActionRecordThroughQueue(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	queue := "inky_actions_test"
	record := cache.SessionActionRecord{
		SessionID:   uuid.New(),
		ActionIndex: 1,
		ActorID:     uuid.New(),
		ActionType:  "correct_guess",
		Payload:     map[string]interface{}{"seconds": 42},
		Timestamp:   time.Now().UnixMilli(),
	}
	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, rdb.RPush(ctx, queue, data).Err())

	res, err := rdb.BLPop(ctx, time.Second, queue).Result()
	require.NoError(t, err)
	require.Len(t, res, 2)

	var got cache.SessionActionRecord
	require.NoError(t, json.Unmarshal([]byte(res[1]), &got))
	require.Equal(t, record.SessionID, got.SessionID)
	require.Equal(t, record.ActionType, got.ActionType)
}
