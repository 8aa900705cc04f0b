package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Z is a sorted-set member with its score.
type Z struct {
	Member string
	Score  float64
}

func dial(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisCache is the Redis-backed cache.
type RedisCache struct {
	client *goredis.Client
}

// NewCache connects to Redis and verifies the connection.
func NewCache(cfg Config) (*RedisCache, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

// Close releases the connection pool.
func (r *RedisCache) Close() {
	_ = r.client.Close()
}

// ---- KV ----

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

// ---- ZSet ----

func (r *RedisCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (r *RedisCache) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	return r.client.ZIncrBy(ctx, key, incr, member).Result()
}

func (r *RedisCache) ZScore(ctx context.Context, key, member string) (float64, error) {
	v, err := r.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, ErrNotFound
	}
	return v, err
}

func (r *RedisCache) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r *RedisCache) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Z, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		out = append(out, Z{Member: m, Score: z.Score})
	}
	return out, nil
}

// ---- List ----

func (r *RedisCache) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return r.client.LPush(ctx, key, args...).Err()
}

func (r *RedisCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

func (r *RedisCache) LTrim(ctx context.Context, key string, start, stop int64) error {
	return r.client.LTrim(ctx, key, start, stop).Err()
}

// ---- PubSub ----

// Message is a message received from a Redis channel.
type Message struct {
	Channel string
	Payload string
}

// RedisPubSub wraps the Redis PubSub client.
type RedisPubSub struct {
	client *goredis.Client
}

// NewPubSub creates a Redis-backed PubSub.
func NewPubSub(cfg Config) (*RedisPubSub, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &RedisPubSub{client: client}, nil
}

func (r *RedisPubSub) Publish(ctx context.Context, channel, message string) error {
	return r.client.Publish(ctx, channel, message).Err()
}

// Subscribe streams messages of channels until cancel is called or ctx ends.
func (r *RedisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	ps := r.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	ch := make(chan *Message, 256)

	go func() {
		defer close(ch)
		for {
			select {
			case msg, ok := <-ps.Channel():
				if !ok {
					return
				}
				select {
				case ch <- &Message{Channel: msg.Channel, Payload: msg.Payload}:
				default:
				}
			case <-ctx.Done():
				_ = ps.Close()
				return
			}
		}
	}()

	cancel := func() {
		_ = ps.Close()
	}
	return ch, cancel, nil
}
