package lock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/cache"
	"github.com/tomfle18/aiostreams/internal/logger"
)

var log = logger.Scoped("lock")

type Options struct {
	// TTL bounds how long a crashed producer can hold a key, and is the
	// window within which late callers observe the stored result.
	TTL time.Duration
	// Timeout bounds how long a waiter blocks for the winner's result.
	Timeout time.Duration
	// RetryInterval is the poll cadence for backends without push.
	RetryInterval time.Duration
}

func (o *Options) withDefaults() *Options {
	opts := Options{}
	if o != nil {
		opts = *o
	}
	if opts.TTL == 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 250 * time.Millisecond
	}
	return &opts
}

type Result[V any] struct {
	Value  V
	Cached bool
}

// envelope is the payload shared between the winner and its waiters.
// Waiters observe the winner's bytes verbatim.
type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

var ErrLockTimeout = core.NewError(core.ErrorCodeLockTimeout, "timed out waiting for lock result")

type backend interface {
	// acquire atomically claims key for owner with the given ttl.
	acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// publish stores the winner's payload for waiters and late callers.
	publish(ctx context.Context, key, owner string, payload []byte, ttl time.Duration) error
	// wait blocks for a payload. gone=true means the lock vanished
	// without a payload and the caller should retry acquisition.
	wait(ctx context.Context, key string, opts *Options) (payload []byte, gone bool, err error)
}

var getBackend = sync.OnceValue(func() backend {
	if client := cache.GetRedisClient(); client != nil {
		log.Debug("using broadcast backend")
		return &redisBackend{client: client}
	}
	log.Debug("using transactional backend")
	return &dbBackend{}
})

// WithLock runs producer under a deployment-wide single-flight for key.
// Exactly one caller executes producer and sees Cached=false; concurrent
// callers block for the winner's result (or error) and see Cached=true.
func WithLock[V any](ctx context.Context, key string, producer func(ctx context.Context) (V, error), opts *Options) (*Result[V], error) {
	opts = opts.withDefaults()
	b := getBackend()
	owner := xid.New().String()

	deadline := time.Now().Add(opts.Timeout)
	for {
		acquired, err := b.acquire(ctx, key, owner, opts.TTL)
		if err != nil {
			return nil, err
		}

		if acquired {
			value, perr := producer(ctx)
			env := envelope{}
			if perr != nil {
				env.Error = perr.Error()
			} else {
				env.OK = true
				if env.Result, err = json.Marshal(value); err != nil {
					env.OK = false
					env.Error = err.Error()
					perr = err
				}
			}
			payload, _ := json.Marshal(env)
			if err := b.publish(ctx, key, owner, payload, opts.TTL); err != nil {
				log.Warn("failed to publish lock result", "error", err, "key", key)
			}
			if perr != nil {
				return nil, perr
			}
			return &Result[V]{Value: value, Cached: false}, nil
		}

		payload, gone, err := b.wait(ctx, key, opts)
		if err != nil {
			return nil, err
		}
		if gone {
			// The chosen producer finished before we subscribed, or it
			// died without publishing. Retry until the timeout budget
			// runs out.
			if time.Now().After(deadline) {
				return nil, ErrLockTimeout
			}
			continue
		}

		env := envelope{}
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, err
		}
		if !env.OK {
			return nil, errors.New(env.Error)
		}
		var value V
		if err := json.Unmarshal(env.Result, &value); err != nil {
			return nil, err
		}
		return &Result[V]{Value: value, Cached: true}, nil
	}
}
