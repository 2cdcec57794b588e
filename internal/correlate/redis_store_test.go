package correlate

import (
	"context"
	"os"
	"testing"
	"time"

	"emsp/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("EMSP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EMSP_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisStore(client, nil, time.Minute)
}

func TestRedisStore_Lifecycle(t *testing.T) {
	s := redisStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, s.Register(ctx, models.PendingCommand{CommandId: id, Type: models.CommandStartSession, RemoteParty: "DE-ABC_CPO"}))
	assert.ErrorIs(t, s.Register(ctx, models.PendingCommand{CommandId: id, Type: models.CommandStartSession}), ErrDuplicateCommand)

	pending, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, models.CommandStartSession, pending.Type)
	assert.Equal(t, "DE-ABC_CPO", pending.RemoteParty)
	assert.Nil(t, pending.Result)

	first := models.CommandResult{Result: models.ResultAccepted, Raw: []byte(`{"result":"ACCEPTED"}`), ReceivedAt: time.Now().UTC()}
	_, swapped, err := s.SetResult(ctx, id, first)
	require.NoError(t, err)
	assert.True(t, swapped)

	stored, swapped, err := s.SetResult(ctx, id, models.CommandResult{Result: models.ResultFailed, Raw: []byte(`{"result":"FAILED"}`)})
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Equal(t, models.ResultAccepted, stored.Result)
	assert.Equal(t, first.Raw, stored.Raw)

	_, _, err = s.SetResult(ctx, uuid.NewString(), first)
	assert.ErrorIs(t, err, ErrCommandNotFound)

	missing, err := s.Lookup(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisStore_WithCorrelator(t *testing.T) {
	s := redisStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, s.Register(ctx, models.PendingCommand{CommandId: id, Type: models.CommandStopSession}))

	c := New(s)
	o, err := c.Correlate(ctx, models.CommandStopSession, id, []byte(`{"result":"ACCEPTED"}`))
	require.NoError(t, err)
	assert.Equal(t, Accepted, o)

	o, err = c.Correlate(ctx, models.CommandStopSession, id, []byte(`{"result":"ACCEPTED"}`))
	require.NoError(t, err)
	assert.Equal(t, Accepted, o)

	o, _ = c.Correlate(ctx, models.CommandStopSession, id, []byte(`{"result":"TIMEOUT"}`))
	assert.Equal(t, Conflict, o)
}
