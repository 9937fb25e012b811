package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-ui/go-engine/pkg/messages"
)

// getRedis returns a client for REDIS_ADDR and skips the test when it is
// not set or the server does not answer.
func getRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStore(t *testing.T) {
	rdb := getRedis(t)
	store := NewRedisStore(rdb, WithKeyPrefix("agui-test:"+uuid.NewString()+":"))
	ctx := context.Background()

	_, err := store.Load(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	start := time.Now().UTC().Truncate(time.Millisecond)
	s := &Session{
		ThreadID:  "t1",
		Messages:  messages.List{messages.NewUserMessage("hi")},
		State:     map[string]any{"count": 1.0},
		LastRunID: "r1",
		Runs:      1,
		CreatedAt: start,
		UpdatedAt: start,
	}
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "r1", loaded.LastRunID)
	assert.Equal(t, map[string]any{"count": 1.0}, loaded.State)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, s.Messages[0].GetID(), loaded.Messages[0].GetID())

	fresh := &Session{ThreadID: "t2", UpdatedAt: start.Add(time.Hour)}
	require.NoError(t, store.Save(ctx, fresh))

	idle, err := store.Idle(ctx, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, idle)

	expired, err := store.Expire(ctx, "t2", start.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, expired, "fresh sessions are kept")
	expired, err = store.Expire(ctx, "t1", start.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, expired)
	_, err = store.Load(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "t2"))
	assert.ErrorIs(t, store.Delete(ctx, "t2"), ErrNotFound)
}

func TestRegistryOverRedis(t *testing.T) {
	rdb := getRedis(t)
	store := NewRedisStore(rdb, WithKeyPrefix("agui-test:"+uuid.NewString()+":"), WithTTL(time.Minute))
	r, err := NewRegistry(store)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Update(ctx, "t1", func(s *Session) error {
		s.Runs++
		return nil
	})
	require.NoError(t, err)

	s, created, err := r.GetOrCreate(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, s.Runs)
	require.NoError(t, r.Delete(ctx, "t1"))
}
