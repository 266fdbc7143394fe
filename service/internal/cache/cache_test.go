package cache

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Connect(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestReserveIsExclusive(t *testing.T) {
	c := connectTestClient(t)
	ctx := context.Background()
	id := 100000 + rand.IntN(900000)
	t.Cleanup(func() { c.Release(ctx, id) })

	ok, err := c.Reserve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Reserve(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation of the same id")

	require.NoError(t, c.Release(ctx, id))
	ok, err = c.Reserve(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "reservation after release")
}

func TestPublishStudyAction(t *testing.T) {
	c := connectTestClient(t)
	ctx := context.Background()

	rec := StudyActionRecord{
		SessionID:     uuid.New(),
		ParticipantID: 123456,
		ActionIndex:   1,
		ActionType:    "study_step",
		ActionPayload: map[string]any{"humanMove": "Down"},
		Timestamp:     time.Now().UnixMilli(),
	}
	require.NoError(t, c.PublishStudyAction(ctx, rec))

	raw, err := c.rdb.RPop(ctx, ActionQueue).Result()
	require.NoError(t, err)
	var got StudyActionRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.Equal(t, "Down", got.ActionPayload["humanMove"])
}

func TestConnectUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := Connect(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
