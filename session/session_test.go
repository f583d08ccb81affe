package session

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadb/deepresearch/core"
)

// -------------------- InMemoryStore Tests --------------------

func TestInMemoryStoreGetCreatesLazily(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Empty(t, sess.Events)
}

func TestInMemoryStoreAppendEvent(t *testing.T) {
	store := NewInMemoryStore()

	err := store.AppendEvent("sess-1", core.NewUserMessageEvent("run-1", "hello"))
	require.NoError(t, err)

	sess, err := store.Get("sess-1")
	require.NoError(t, err)
	require.Len(t, sess.Events, 1)
	assert.Equal(t, "hello", sess.Events[0].Content.Text())
}

func TestInMemoryStoreApplyDelta(t *testing.T) {
	store := NewInMemoryStore()

	err := store.ApplyDelta("sess-1", map[string]interface{}{"status": "active"})
	require.NoError(t, err)

	sess, err := store.Get("sess-1")
	require.NoError(t, err)
	v, ok := sess.GetState("status")
	require.True(t, ok)
	assert.Equal(t, "active", v)
}

func TestInMemoryStoreReturnsClones(t *testing.T) {
	store := NewInMemoryStore()

	first, err := store.Get("sess-1")
	require.NoError(t, err)
	first.SetState("mutated", true)

	second, err := store.Get("sess-1")
	require.NoError(t, err)
	_, ok := second.GetState("mutated")
	assert.False(t, ok, "mutations on returned sessions must not leak into the store")
}

// -------------------- RedisStore Tests --------------------

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreFromClient(client, time.Hour)
}

func TestRedisStoreCreateAndGet(t *testing.T) {
	store := newTestRedisStore(t)

	created, err := store.Create("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", created.ID)

	loaded, err := store.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", loaded.ID)
}

func TestRedisStoreGetCreatesMissingSession(t *testing.T) {
	store := newTestRedisStore(t)

	sess, err := store.Get("never-seen")
	require.NoError(t, err)
	assert.Equal(t, "never-seen", sess.ID)
	assert.Empty(t, sess.Events)
}

func TestRedisStoreAppendEventRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)

	ev := core.NewUserMessageEvent("run-1", "what trials exist for metformin?")
	ev.SetMeta(core.MetaActionType, core.ActionTypeObservation)
	require.NoError(t, store.AppendEvent("sess-1", ev))

	call := core.NewFunctionCallEvent("analyst", "fc-1", "web_search", `{"query":"metformin trials"}`)
	require.NoError(t, store.AppendEvent("sess-1", call))

	sess, err := store.Get("sess-1")
	require.NoError(t, err)
	require.Len(t, sess.Events, 2)

	assert.Equal(t, "what trials exist for metformin?", sess.Events[0].Content.Text())
	assert.Equal(t, core.ActionTypeObservation, sess.Events[0].Meta(core.MetaActionType))

	calls := sess.Events[1].GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "web_search", calls[0].Name)
	assert.JSONEq(t, `{"query":"metformin trials"}`, calls[0].Arguments)
}

func TestRedisStoreApplyDelta(t *testing.T) {
	store := newTestRedisStore(t)

	require.NoError(t, store.ApplyDelta("sess-1", map[string]interface{}{"turns": float64(3)}))

	sess, err := store.Get("sess-1")
	require.NoError(t, err)
	v, ok := sess.GetState("turns")
	require.True(t, ok)
	assert.Equal(t, float64(3), v)
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStoreFromClient(client, time.Minute)
	_, err := store.Create("sess-1")
	require.NoError(t, err)

	ttl := srv.TTL("session:sess-1")
	assert.Equal(t, time.Minute, ttl)
}
