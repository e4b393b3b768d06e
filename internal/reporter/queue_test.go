package reporter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	for i := 1; i <= 3; i++ {
		dropped, err := q.Push(ctx, testCandidate(i))
		require.NoError(t, err)
		assert.Equal(t, 0, dropped)
	}
	assert.Equal(t, 3, q.Len(ctx))

	for i := 1; i <= 3; i++ {
		c, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, c.VehicleCount)
	}
	assert.Equal(t, 0, q.Len(ctx))
}

func TestMemoryQueue_DropsOldest(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(2)

	_, _ = q.Push(ctx, testCandidate(1))
	_, _ = q.Push(ctx, testCandidate(2))
	dropped, err := q.Push(ctx, testCandidate(3))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.VehicleCount)
	second, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, second.VehicleCount)
}

func TestMemoryQueue_PopBlocksUntilPush(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q := NewMemoryQueue(1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = q.Push(context.Background(), testCandidate(7))
	}()

	c, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, c.VehicleCount)
}

func TestMemoryQueue_PopRespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q := NewMemoryQueue(1)

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_Close(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(2)
	_, _ = q.Push(ctx, testCandidate(1))

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, err := q.Push(ctx, testCandidate(2))
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Оставшиеся элементы доступны после закрытия
	c, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.VehicleCount)

	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}
