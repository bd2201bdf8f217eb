package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndquoc/pairmatch/internal/models"
)

func newTestPublisher(t *testing.T, queue string) (*Publisher, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPublisher(client, queue), srv
}

func TestPublishMatchResult(t *testing.T) {
	pub, srv := newTestPublisher(t, "test_matches")

	rec := models.MatchRecord{
		RoomID:         "room-abc123",
		PlayerOne:      "Alice",
		PlayerTwo:      "Bob",
		PlayerOneScore: 30,
		PlayerTwoScore: 10,
		Winner:         "Alice",
		FinishedAt:     time.Now().UnixMilli(),
	}
	require.NoError(t, pub.PublishMatchResult(context.Background(), rec))

	payload, err := srv.Lpop("test_matches")
	require.NoError(t, err)

	var got models.MatchRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	assert.Equal(t, rec, got)
}

func TestPublishPreservesQueueOrder(t *testing.T) {
	pub, srv := newTestPublisher(t, "test_matches")

	for _, id := range []string{"room-1", "room-2", "room-3"} {
		rec := models.MatchRecord{RoomID: id, PlayerOne: "Alice", PlayerTwo: "Bob"}
		require.NoError(t, pub.PublishMatchResult(context.Background(), rec))
	}

	for _, want := range []string{"room-1", "room-2", "room-3"} {
		payload, err := srv.Lpop("test_matches")
		require.NoError(t, err)
		var got models.MatchRecord
		require.NoError(t, json.Unmarshal([]byte(payload), &got))
		assert.Equal(t, want, got.RoomID)
	}
}

func TestNewPublisherDefaultsQueueName(t *testing.T) {
	pub, srv := newTestPublisher(t, "")

	rec := models.MatchRecord{RoomID: "room-x", PlayerOne: "Alice", PlayerTwo: "Bob", IsDraw: true}
	require.NoError(t, pub.PublishMatchResult(context.Background(), rec))

	assert.True(t, srv.Exists(DefaultQueueName))
}
