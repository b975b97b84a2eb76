package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelA()
	defer cancelB()

	require.NoError(t, bus.Publish(context.Background(), Message{Kind: EventsReplaced, Version: 3}))

	for _, ch := range []<-chan Message{a, b} {
		m := <-ch
		assert.Equal(t, EventsReplaced, m.Kind)
		assert.Equal(t, uint64(3), m.Version)
		assert.False(t, m.At.IsZero())
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, Message{Kind: EventsReplaced, Version: 1}))
	require.NoError(t, bus.Publish(ctx, Message{Kind: EventsReplaced, Version: 2}))

	assert.Equal(t, uint64(1), bus.Dropped())
	assert.Equal(t, uint64(1), (<-ch).Version)
}

func TestBusCancel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	assert.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, bus.Subscribers())
	_, ok := <-ch
	assert.False(t, ok)
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe(1)
	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := bus.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
	assert.NoError(t, bus.Publish(context.Background(), Message{Kind: EventAdded}))
}

func TestBusPublishCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewBus().Publish(ctx, Message{Kind: EventAdded}), context.Canceled)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Message) error { return f.err }

func TestMulti(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	boom := errors.New("boom")
	err := Multi{failing{boom}, nil, bus}.Publish(context.Background(), Message{Kind: TimeframeMarked, ID: "tf-1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "tf-1", (<-ch).ID)
}

func TestDecodeMessage(t *testing.T) {
	m, err := decodeMessage(`{"kind":"events.replaced","version":7,"count":12,"at":"2025-03-01T14:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, EventsReplaced, m.Kind)
	assert.Equal(t, uint64(7), m.Version)
	assert.Equal(t, 12, m.Count)

	_, err = decodeMessage(`{"version":7}`)
	assert.Error(t, err)

	_, err = decodeMessage(`not json`)
	assert.Error(t, err)
}

func TestRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	bus := NewBus()
	defer bus.Close()
	relay := NewRedis(rdb, "", bus, nil)
	assert.Equal(t, DefaultChannel, relay.channel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, relay.Publish(ctx, Message{Kind: EventsReplaced, Version: 1}))
	assert.Error(t, relay.Run(ctx))
}
