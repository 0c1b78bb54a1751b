package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestMemoryBroker_DeliversToTopicSubscribers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	t.Cleanup(func() { _ = b.Close() })

	a, err := b.Subscribe(ctx, "t1")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "t2")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "t1", []byte("hello")))
	assert.Equal(t, []byte("hello"), receive(t, a))

	select {
	case msg := <-other.C():
		t.Fatalf("unexpected payload on other topic: %q", msg)
	default:
	}
}

func TestMemoryBroker_SubscriptionClose(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	sub, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.NoError(t, b.Publish(ctx, "t", []byte("x")))
}

func TestMemoryBroker_SlowReaderDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	sub, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)

	for i := 0; i < subscriptionBuffer+10; i++ {
		require.NoError(t, b.Publish(ctx, "t", []byte("x")))
	}
	assert.Len(t, sub.C(), subscriptionBuffer)
}

func TestMemoryBroker_Close(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	sub, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.NoError(t, sub.Close())

	assert.ErrorIs(t, b.Publish(ctx, "t", nil), ErrClosed)
	_, err = b.Subscribe(ctx, "t")
	assert.ErrorIs(t, err, ErrClosed)
}
