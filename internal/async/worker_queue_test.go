package async

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Queue = (*WorkerQueue)(nil)

func TestWorkerQueueDrainsOnShutdown(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	q := NewWorkerQueue(func(_ context.Context, j Job) {
		mu.Lock()
		seen = append(seen, j.Path)
		mu.Unlock()
	}, nil, WithWorkers(3), WithQueueSize(2))

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: fmt.Sprintf("f%02d.xml", i)}))
	}
	q.Shutdown(context.Background())

	assert.Len(t, seen, 20)
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "late.xml"}), ErrQueueClosed)
}

func TestWorkerQueueSurvivesPanics(t *testing.T) {
	var done atomic.Int32
	q := NewWorkerQueue(func(_ context.Context, j Job) {
		if j.Path == "bad.xml" {
			panic("boom")
		}
		done.Add(1)
	}, nil, WithWorkers(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "bad.xml"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "good.xml"}))
	q.Shutdown(context.Background())
	assert.Equal(t, int32(1), done.Load())
}

func TestWorkerQueueHandlerDeadline(t *testing.T) {
	got := make(chan error, 1)
	q := NewWorkerQueue(func(ctx context.Context, _ Job) {
		<-ctx.Done()
		got <- ctx.Err()
	}, nil, WithWorkers(1), WithProcessTimeout(10*time.Millisecond))

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow.xml"}))
	q.Shutdown(context.Background())
	assert.ErrorIs(t, <-got, context.DeadlineExceeded)
}

func TestWorkerQueueEnqueueHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := NewWorkerQueue(func(context.Context, Job) { <-block }, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "a.xml"}))
	// The worker may or may not have taken a.xml yet; fill until blocked.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{Path: "b.xml"})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
