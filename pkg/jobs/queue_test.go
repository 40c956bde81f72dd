package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{Type: "noop"}))
	}
	q.Stop()

	assert.EqualValues(t, 5, atomic.LoadInt32(&processed))
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "job-1"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestQueueObserverSeesFinalFailure(t *testing.T) {
	var mu sync.Mutex
	var finals []Job
	q := NewQueue("fail", func(ctx context.Context, job Job) error {
		panic("kaboom")
	}, QueueConfig{MaxRetries: 0, Observer: func(job Job, err error, final bool) {
		if final {
			mu.Lock()
			finals = append(finals, job)
			mu.Unlock()
		}
	}})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "job-1"}))
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finals, 1)
	assert.Equal(t, "job-1", finals[0].ID)
	assert.Equal(t, 1, finals[0].Attempt)
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrQueueStopped)
}
