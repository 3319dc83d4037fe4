package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/elastic/go-freelru"
	rcache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"

	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/logger"
)

var log = logger.Scoped("cache")

var getRedis = sync.OnceValue(func() *redis.Client {
	if config.RedisURI == "" {
		return nil
	}
	opts, err := redis.ParseURL(config.RedisURI)
	if err != nil {
		log.Error("invalid REDIS_URI", "error", err)
		return nil
	}
	return redis.NewClient(opts)
})

// GetRedisClient returns the shared redis client, or nil when no
// broadcast backend is configured.
func GetRedisClient() *redis.Client {
	return getRedis()
}

func hashStringU32(s string) uint32 {
	return uint32(xxh3.HashString(s))
}

type CacheConfig struct {
	Name          string
	Lifetime      time.Duration
	LocalCapacity int
}

type Cache[V any] interface {
	Get(key string, value *V) bool
	Add(key string, value V) error
	AddWithLifetime(key string, value V, lifetime time.Duration) error
	Remove(key string)
}

// NewCache picks the redis-backed cache when REDIS_URI is configured,
// otherwise an in-process LRU.
func NewCache[V any](conf *CacheConfig) Cache[V] {
	if conf.Name == "" {
		panic("cache name cannot be empty")
	}
	if conf.Lifetime == 0 {
		conf.Lifetime = 5 * time.Minute
	}
	if conf.LocalCapacity == 0 {
		conf.LocalCapacity = 1024
	}
	if client := getRedis(); client != nil {
		return &redisCache[V]{
			name:     conf.Name,
			lifetime: conf.Lifetime,
			cache: rcache.New(&rcache.Options{
				Redis:      client,
				LocalCache: rcache.NewTinyLFU(conf.LocalCapacity, conf.Lifetime),
			}),
		}
	}
	return NewLRUCache[V](conf)
}

type redisCache[V any] struct {
	name     string
	lifetime time.Duration
	cache    *rcache.Cache
}

func (c *redisCache[V]) key(key string) string {
	return "aiostreams:" + c.name + ":" + key
}

func (c *redisCache[V]) Get(key string, value *V) bool {
	err := c.cache.Get(context.Background(), c.key(key), value)
	return err == nil
}

func (c *redisCache[V]) Add(key string, value V) error {
	return c.AddWithLifetime(key, value, c.lifetime)
}

func (c *redisCache[V]) AddWithLifetime(key string, value V, lifetime time.Duration) error {
	return c.cache.Set(&rcache.Item{
		Ctx:   context.Background(),
		Key:   c.key(key),
		Value: value,
		TTL:   lifetime,
	})
}

func (c *redisCache[V]) Remove(key string) {
	_ = c.cache.Delete(context.Background(), c.key(key))
}

type lruCache[V any] struct {
	lifetime time.Duration
	lru      *freelru.SyncedLRU[string, []byte]
}

// NewLRUCache is always in-process, for values that must not leave the
// node or are too hot for the network.
func NewLRUCache[V any](conf *CacheConfig) Cache[V] {
	capacity := conf.LocalCapacity
	if capacity == 0 {
		capacity = 1024
	}
	lru, err := freelru.NewSynced[string, []byte](uint32(capacity), hashStringU32)
	if err != nil {
		panic(err)
	}
	lifetime := conf.Lifetime
	if lifetime == 0 {
		lifetime = 5 * time.Minute
	}
	lru.SetLifetime(lifetime)
	return &lruCache[V]{lifetime: lifetime, lru: lru}
}

func (c *lruCache[V]) Get(key string, value *V) bool {
	blob, ok := c.lru.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(blob, value) == nil
}

func (c *lruCache[V]) Add(key string, value V) error {
	return c.AddWithLifetime(key, value, c.lifetime)
}

func (c *lruCache[V]) AddWithLifetime(key string, value V, lifetime time.Duration) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.lru.AddWithLifetime(key, blob, lifetime)
	return nil
}

func (c *lruCache[V]) Remove(key string) {
	c.lru.Remove(key)
}
