package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomfle18/aiostreams/core"
)

type memLock struct {
	payload []byte
	done    chan struct{}
}

type memBackend struct {
	mu    sync.Mutex
	locks map[string]*memLock
}

func newMemBackend() *memBackend {
	return &memBackend{locks: map[string]*memLock{}}
}

func (b *memBackend) acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, held := b.locks[key]; held {
		return false, nil
	}
	b.locks[key] = &memLock{done: make(chan struct{})}
	return true, nil
}

func (b *memBackend) publish(ctx context.Context, key, owner string, payload []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.locks[key]
	l.payload = payload
	close(l.done)
	return nil
}

func (b *memBackend) wait(ctx context.Context, key string, opts *Options) ([]byte, bool, error) {
	b.mu.Lock()
	l, held := b.locks[key]
	b.mu.Unlock()
	if !held {
		return nil, true, nil
	}
	select {
	case <-l.done:
		return l.payload, false, nil
	case <-time.After(opts.Timeout):
		return nil, false, ErrLockTimeout
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// emptyBackend never grants the lock and never delivers a payload.
type emptyBackend struct{}

func (emptyBackend) acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return false, nil
}

func (emptyBackend) publish(ctx context.Context, key, owner string, payload []byte, ttl time.Duration) error {
	return nil
}

func (emptyBackend) wait(ctx context.Context, key string, opts *Options) ([]byte, bool, error) {
	return nil, true, nil
}

func withBackend(t *testing.T, b backend) {
	orig := getBackend
	getBackend = func() backend { return b }
	t.Cleanup(func() { getBackend = orig })
}

func TestWithLock_SingleFlight(t *testing.T) {
	withBackend(t, newMemBackend())

	var calls atomic.Int32
	producer := func(ctx context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	}

	const waiters = 8
	results := make([]*Result[int], waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = WithLock(context.Background(), "single-flight", producer, nil)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	winners := 0
	for i, r := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, r.Value)
		if !r.Cached {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestWithLock_ProducerError(t *testing.T) {
	withBackend(t, newMemBackend())

	_, err := WithLock(context.Background(), "producer-error", func(ctx context.Context) (int, error) {
		return 0, errors.New("upstream exploded")
	}, nil)
	require.Error(t, err)
	assert.Equal(t, "upstream exploded", err.Error())
}

func TestWithLock_Timeout(t *testing.T) {
	withBackend(t, emptyBackend{})

	_, err := WithLock(context.Background(), "never-resolves", func(ctx context.Context) (int, error) {
		return 1, nil
	}, &Options{Timeout: 50 * time.Millisecond, RetryInterval: 5 * time.Millisecond})
	require.Error(t, err)
	assert.EqualValues(t, core.ErrorCodeLockTimeout, core.AsError(err).Code)
}
