package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive[T any](t *testing.T, ch <-chan Result[T]) Result[T] {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result[T]{}
}

func TestPublishCoalesces(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("workouts")
	defer sub.Close()

	h.Publish("workouts")
	h.Publish("workouts")
	h.Publish("exercises")

	select {
	case <-sub.C:
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-sub.C:
		t.Fatal("notifications should coalesce")
	default:
	}
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("logs", "settings")
	assert.Equal(t, 1, h.Subscribers("logs"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Subscribers("logs"))
	assert.Equal(t, 0, h.Subscribers("settings"))

	_, ok := <-sub.C
	assert.False(t, ok)

	// Publishing after close must not panic.
	h.Publish("logs")
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("workouts")
	h.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	late := h.Subscribe("workouts")
	_, ok = <-late.C
	assert.False(t, ok)
	late.Close()
}

func TestWatchRerunsOnPublish(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	ch := Watch(ctx, h, func() (int32, error) {
		return calls.Add(1), nil
	}, "measurements")

	first := receive(t, ch)
	require.NoError(t, first.Err)
	assert.Equal(t, int32(1), first.Value)

	h.Publish("workouts")
	h.Publish("measurements")
	second := receive(t, ch)
	assert.Equal(t, int32(2), second.Value)

	cancel()
	for range ch {
	}
	assert.Equal(t, 0, h.Subscribers("measurements"))
}

func TestWatchReportsErrors(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	ch := Watch(ctx, h, func() (string, error) { return "", boom }, "logs")
	r := receive(t, ch)
	assert.ErrorIs(t, r.Err, boom)

	h.Close()
	for range ch {
	}
}

func TestWatchStopsWithoutReader(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := Watch(ctx, h, func() (int, error) { return 1, nil }, "settings")
	cancel()

	// The goroutine exits even though the initial value was never read.
	for range ch {
	}
}
