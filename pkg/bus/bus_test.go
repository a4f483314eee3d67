package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collector) handle(_ context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *collector) payloads() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Payload
	}
	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestPublishFansOutInOrder(t *testing.T) {
	b := New()
	defer b.Close(context.Background())

	var a, c collector
	_, err := b.Subscribe("chat", a.handle)
	require.NoError(t, err)
	_, err = b.Subscribe("chat", c.handle)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, b.Publish("chat", i))
	}

	assert.Eventually(t, func() bool { return a.len() == 50 && c.len() == 50 }, time.Second, 5*time.Millisecond)
	want := make([]any, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, a.payloads())
	assert.Equal(t, want, c.payloads())
}

func TestPublishDoesNotWaitForHandlers(t *testing.T) {
	b := New()
	defer b.Close(context.Background())

	release := make(chan struct{})
	_, err := b.Subscribe("slow", func(ctx context.Context, m Message) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish("slow", i))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	close(release)
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	b := New(WithErrorHook(func(_ *Subscription, _ Message, err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	defer b.Close(context.Background())

	var ok collector
	_, err := b.Subscribe("t", func(context.Context, Message) error { return errors.New("boom") })
	require.NoError(t, err)
	_, err = b.Subscribe("t", func(context.Context, Message) error { panic("kaboom") })
	require.NoError(t, err)
	_, err = b.Subscribe("t", ok.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish("t", "x"))
	require.NoError(t, b.Publish("t", "y"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 4 && ok.len() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close(context.Background())

	var c collector
	sub, err := b.Subscribe("t", c.handle)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "t", sub.Topic())

	require.NoError(t, b.Publish("t", 1))
	assert.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	require.NoError(t, b.Publish("t", 2))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.len())
}

func TestWildcardReceivesEveryTopic(t *testing.T) {
	b := New()
	defer b.Close(context.Background())

	var c collector
	_, err := b.Subscribe(Wildcard, c.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish("a", 1))
	require.NoError(t, b.Publish("b", 2))
	assert.Eventually(t, func() bool { return c.len() == 2 }, time.Second, 5*time.Millisecond)

	assert.Error(t, b.Publish(Wildcard, 3))
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	b := New()
	_, err := b.Subscribe("t", func(context.Context, Message) error { return nil })
	require.NoError(t, err)

	require.NoError(t, b.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))

	assert.ErrorIs(t, b.Publish("t", 1), ErrClosed)
	_, err = b.Subscribe("t", func(context.Context, Message) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSequencePerTopic(t *testing.T) {
	b := New()
	defer b.Close(context.Background())

	var c collector
	_, err := b.Subscribe("t", c.handle)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish("t", i))
	}
	assert.Eventually(t, func() bool { return c.len() == 3 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.msgs {
		assert.Equal(t, uint64(i+1), m.Seq)
	}
}
