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

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
}

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})
	q.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "test"}))
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("retry", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("boom")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "r"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueueReportsResults(t *testing.T) {
	var failures, successes int32
	q := NewQueue("hook", func(_ context.Context, job Job) error {
		if job.Type == "bad" {
			return errors.New("bad job")
		}
		return nil
	}, QueueConfig{OnResult: func(_ Job, err error) {
		if err != nil {
			atomic.AddInt32(&failures, 1)
			return
		}
		atomic.AddInt32(&successes, 1)
	}})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "good"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Type: "bad"}))
	q.Stop()

	assert.EqualValues(t, 1, atomic.LoadInt32(&successes))
	assert.EqualValues(t, 1, atomic.LoadInt32(&failures))
}

func TestQueueDrainsAfterParentContextCancelled(t *testing.T) {
	var handled, cancelled int32
	q := NewQueue("shutdown", func(ctx context.Context, _ Job) error {
		time.Sleep(time.Millisecond)
		if ctx.Err() != nil {
			atomic.AddInt32(&cancelled, 1)
		}
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 16})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "test"}))
	}
	cancel()
	q.Stop()

	assert.EqualValues(t, 10, atomic.LoadInt32(&handled))
	assert.Zero(t, atomic.LoadInt32(&cancelled))
}

func TestEnqueueDoesNotBlockWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("full", func(context.Context, Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	var full int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			if err := q.Enqueue(Job{ID: "j"}); errors.Is(err, ErrQueueFull) {
				full++
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full buffer")
	}
	assert.GreaterOrEqual(t, full, 1)

	close(release)
	q.Stop()
}

func TestEnqueueRacingStopNeverLosesAcceptedJobs(t *testing.T) {
	for round := 0; round < 20; round++ {
		var handled, accepted int32
		q := NewQueue("race", func(context.Context, Job) error {
			atomic.AddInt32(&handled, 1)
			return nil
		}, QueueConfig{Workers: 2, BufferSize: 256})
		q.Start(context.Background())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if q.Enqueue(Job{ID: "r"}) == nil {
						atomic.AddInt32(&accepted, 1)
					}
				}
			}()
		}
		q.Stop()
		wg.Wait()

		assert.Equal(t, atomic.LoadInt32(&accepted), atomic.LoadInt32(&handled))
	}
}
