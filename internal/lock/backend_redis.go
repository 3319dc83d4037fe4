package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisBackend claims keys with SET NX and pushes results over pub/sub,
// so waiters never poll. The published payload is also stored under a
// result key so callers that subscribe after publication still observe
// it within the TTL.
type redisBackend struct {
	client *redis.Client
}

func (b *redisBackend) lockKey(key string) string {
	return "aiostreams:lock:" + key
}

func (b *redisBackend) resultKey(key string) string {
	return "aiostreams:lock-result:" + key
}

func (b *redisBackend) acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if payload, err := b.client.Get(ctx, b.resultKey(key)).Bytes(); err == nil && len(payload) > 0 {
		// A winner already published within the TTL.
		return false, nil
	}
	return b.client.SetNX(ctx, b.lockKey(key), owner, ttl).Result()
}

func (b *redisBackend) publish(ctx context.Context, key, owner string, payload []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.resultKey(key), payload, ttl).Err(); err != nil {
		return err
	}
	return b.client.Publish(ctx, b.lockKey(key), payload).Err()
}

func (b *redisBackend) wait(ctx context.Context, key string, opts *Options) ([]byte, bool, error) {
	// Subscribe before re-checking the lock, so a publish between the
	// check and the subscription cannot be missed.
	sub := b.client.Subscribe(ctx, b.lockKey(key))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return nil, false, err
	}

	if payload, err := b.client.Get(ctx, b.resultKey(key)).Bytes(); err == nil && len(payload) > 0 {
		return payload, false, nil
	}
	exists, err := b.client.Exists(ctx, b.lockKey(key)).Result()
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, true, nil
	}

	timeout := time.NewTimer(opts.Timeout)
	defer timeout.Stop()
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case msg := <-ch:
			return []byte(msg.Payload), false, nil
		case <-ticker.C:
			// The producer may have died; detect lock expiry without
			// waiting out the full timeout.
			exists, err := b.client.Exists(ctx, b.lockKey(key)).Result()
			if err != nil {
				return nil, false, err
			}
			if exists == 0 {
				if payload, err := b.client.Get(ctx, b.resultKey(key)).Bytes(); err == nil && len(payload) > 0 {
					return payload, false, nil
				}
				return nil, true, nil
			}
		case <-timeout.C:
			return nil, false, ErrLockTimeout
		}
	}
}
