package bridge

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

func startScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func TestInvoke_ReturnsResult(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	f := Invoke(context.Background(), p, func(context.Context) (string, error) {
		return "ok", nil
	})
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestInvoke_PropagatesError(t *testing.T) {
	p := NewPool(1)
	defer p.Close()
	cause := errors.New("network down")

	_, err := Invoke(context.Background(), p, func(context.Context) (int, error) {
		return 0, cause
	}).Wait(context.Background())
	assert.ErrorIs(t, err, cause)
}

func TestInvoke_RecoversPanic(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	_, err := Invoke(context.Background(), p, func(context.Context) (int, error) {
		panic("boom")
	}).Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The slot must be released after a panic.
	v, err := Invoke(context.Background(), p, func(context.Context) (int, error) {
		return 7, nil
	}).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNewPool_ClampsSize(t *testing.T) {
	assert.Equal(t, 3, NewPool(3).Size())
	assert.Equal(t, 1, NewPool(0).Size())
	assert.Equal(t, 1, NewPool(-2).Size())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := NewPool(size)
	defer p.Close()

	var running, peak atomic.Int32
	release := make(chan struct{})
	futures := make([]*Future[int], 0, 10)
	for i := 0; i < 10; i++ {
		futures = append(futures, Invoke(context.Background(), p, func(context.Context) (int, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return 1, nil
		}))
	}

	require.Eventually(t, func() bool { return running.Load() == size }, time.Second, 5*time.Millisecond)
	close(release)
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(size))
}

func TestInvoke_ContextCancelledWhileQueued(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	first := Invoke(context.Background(), p, func(context.Context) (int, error) {
		close(started)
		<-block
		return 1, nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	second := Invoke(ctx, p, func(context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	cancel()

	_, err := second.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())

	close(block)
	_, err = first.Wait(context.Background())
	require.NoError(t, err)
}

func TestInvoke_ClosedPool(t *testing.T) {
	p := NewPool(1)
	p.Close()

	_, err := Invoke(context.Background(), p, func(context.Context) (int, error) {
		return 1, nil
	}).Wait(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestScheduler_RunsInOrder(t *testing.T) {
	s := startScheduler(t)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		i := i
		require.True(t, s.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 19 {
				close(done)
			}
		}))
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestAwait_DoesNotBlockScheduler(t *testing.T) {
	s := startScheduler(t)
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	order := make(chan string, 2)

	s.Post(func() {
		f := Invoke(context.Background(), p, func(context.Context) (string, error) {
			<-release
			return "slow", nil
		})
		Await(s, f, func(v string, err error) {
			order <- v
		})
	})
	s.Post(func() {
		order <- "other user"
		close(release)
	})

	assert.Equal(t, "other user", <-order)
	assert.Equal(t, "slow", <-order)
}

func TestScheduler_RefusesAfterStop(t *testing.T) {
	s := NewScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)

	assert.False(t, s.Post(func() {}))
}

func TestScheduler_SurvivesPanickingTask(t *testing.T) {
	s := startScheduler(t)

	s.Post(func() { panic("bad task") })
	done := make(chan struct{})
	s.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler stopped after a panicking task")
	}
}
