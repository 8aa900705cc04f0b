package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kasuganosora/isoarpg/cache/local"
	cacheredis "github.com/kasuganosora/isoarpg/cache/redis"
)

// Z is a sorted-set member with its score.
type Z struct {
	Member string
	Score  float64
}

// Cache defines the KV / ZSet / List operations the server uses.
type Cache interface {
	// KV
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// ZSet
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error)

	// List
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	Close()
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub defines channel publish/subscribe operations.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

// CacheConfig holds configuration for both Redis and LocalCache.
type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// IsNotFound reports whether err means a missing key in either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, local.ErrNotFound) || errors.Is(err, cacheredis.ErrNotFound)
}

// NewCache returns a Cache backed by Redis if RedisAddr is set,
// otherwise returns an in-process LocalCache.
func NewCache(cfg CacheConfig) (Cache, error) {
	if cfg.RedisAddr != "" {
		rc, err := cacheredis.NewCache(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return redisCacheAdapter{rc}, nil
	}
	lc, err := local.NewCache(local.Config{GCInterval: cfg.LocalGCInterval})
	if err != nil {
		return nil, err
	}
	return localCacheAdapter{lc}, nil
}

// NewPubSub returns a PubSub backed by Redis if RedisAddr is set,
// otherwise returns an in-process one.
func NewPubSub(cfg CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		rps, err := cacheredis.NewPubSub(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return &redisPubSubAdapter{ps: rps}, nil
	}
	return &localPubSubAdapter{ps: local.NewPubSub(cfg.LocalPubSubBuf)}, nil
}

// ---- adapters to bridge sub-package types to this package's ----

type localCacheAdapter struct {
	*local.LocalCache
}

func (a localCacheAdapter) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	zs, err := a.LocalCache.ZRevRangeWithScores(ctx, key, start, stop)
	out := make([]Z, len(zs))
	for i, z := range zs {
		out[i] = Z{Member: z.Member, Score: z.Score}
	}
	return out, err
}

type redisCacheAdapter struct {
	*cacheredis.RedisCache
}

func (a redisCacheAdapter) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	zs, err := a.RedisCache.ZRevRangeWithScores(ctx, key, start, stop)
	out := make([]Z, len(zs))
	for i, z := range zs {
		out[i] = Z{Member: z.Member, Score: z.Score}
	}
	return out, err
}

type localPubSubAdapter struct {
	ps *local.PubSub
}

func (a *localPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *localPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	in, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return relay(in, func(m *local.Message) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}

type redisPubSubAdapter struct {
	ps *cacheredis.RedisPubSub
}

func (a *redisPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *redisPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	in, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return relay(in, func(m *cacheredis.Message) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}

func relay[T any](in <-chan T, conv func(T) *Message) <-chan *Message {
	out := make(chan *Message, cap(in))
	go func() {
		defer close(out)
		for m := range in {
			out <- conv(m)
		}
	}()
	return out
}
