package redis_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/redis"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunGraphStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Graph{ID: "short", Nodes: []domain.NodeDef{{ID: "a", Type: "text"}}}))
	assert.True(t, mr.Exists("test:graph:short"))

	mr.FastForward(2 * time.Second)

	_, err := store.Load(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
}

func TestRedisStore_CorruptPayload(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	require.NoError(t, mr.Set(redis.DefaultPrefix+"graph:bad", "{not json"))

	_, err := store.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrGraphNotFound)
}

func TestRedisLocker_TryLock(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()
	first := redis.NewLocker(client, "test:", nil)
	second := redis.NewLocker(client, "test:", nil)

	unlock, err := first.TryLock(ctx, "run:g1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:run:g1"), "Lock key should be set in Redis")

	_, err = second.TryLock(ctx, "run:g1", 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrLocked)

	_, err = second.TryLock(ctx, "run:g2", 5*time.Second)
	assert.NoError(t, err, "other keys are independent")

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx), "unlock is idempotent")
	assert.False(t, mr.Exists("test:lock:run:g1"), "Lock key should be removed after unlock")

	again, err := second.TryLock(ctx, "run:g1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker_StaleHolderCannotRelease(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()
	locker := redis.NewLocker(client, "test:", nil)

	stale, err := locker.TryLock(ctx, "run:g", 5*time.Second)
	require.NoError(t, err)

	// Holder crashes: the key expires and somebody else takes over.
	mr.FastForward(6 * time.Second)
	current, err := locker.TryLock(ctx, "run:g", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("test:lock:run:g"), "stale unlock must not remove the new holder's lock")
	require.NoError(t, current(ctx))
	assert.False(t, mr.Exists("test:lock:run:g"))
}

func TestRedisLocker_RefreshesWhileHeld(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()
	locker := redis.NewLocker(client, "test:", nil)

	unlock, err := locker.TryLock(ctx, "run:long", 300*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	mr.SetTTL("test:lock:run:long", time.Hour)
	assert.Eventually(t, func() bool {
		return mr.TTL("test:lock:run:long") == 300*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond)
}

type published struct {
	mu   sync.Mutex
	msgs []struct {
		topic   string
		payload any
	}
}

func (p *published) Publish(topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, struct {
		topic   string
		payload any
	}{topic, payload})
	return nil
}

func (p *published) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func TestBridgeForwardsMessages(t *testing.T) {
	mr, client := setup(t)
	target := &published{}
	bridge := redis.NewBridge(client, "test:", []string{"chat.message", "gift"}, target, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	select {
	case <-bridge.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never subscribed")
	}

	mr.Publish("test:chat.message", `{"text": "hello", "user": "viewer1"}`)
	mr.Publish("test:gift", "rose")
	mr.Publish("test:ignored", "nobody listens")

	assert.Eventually(t, func() bool { return target.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Equal(t, "chat.message", target.msgs[0].topic)
	assert.Equal(t, map[string]any{"text": "hello", "user": "viewer1"}, target.msgs[0].payload)
	assert.Equal(t, "gift", target.msgs[1].topic)
	assert.Equal(t, "rose", target.msgs[1].payload)
}

func TestEventPublisher(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()
	pub := redis.NewEventPublisher(client, "test:", nil)

	ps := client.Subscribe(ctx, pub.Channel("g1"))
	defer ps.Close()
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	pub.OnEvent(ctx, domain.Event{Type: domain.EventExecutionStopped, RunID: "r1", GraphID: "g1", Reason: "done"})

	msgCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := ps.ReceiveMessage(msgCtx)
	require.NoError(t, err)

	var ev domain.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, domain.EventExecutionStopped, ev.Type)
	assert.Equal(t, "done", ev.Reason)
}
