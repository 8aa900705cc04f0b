package local

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

// Z is a sorted-set member with its score.
type Z struct {
	Member string
	Score  float64
}

type entry struct {
	data     string
	expireAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

func newEntry(value string, ttl time.Duration) *entry {
	e := &entry{data: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	return e
}

// LocalCache is the in-process cache used when no Redis address is configured.
type LocalCache struct {
	kv         sync.Map // key → *entry
	zmu        sync.Mutex
	zsets      map[string]map[string]float64
	lmu        sync.Mutex
	lists      map[string][]string
	gcInterval time.Duration
	stopGC     chan struct{}
	closeOnce  sync.Once
}

// NewCache creates a LocalCache and starts the background GC goroutine.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{
		zsets:      make(map[string]map[string]float64),
		lists:      make(map[string][]string),
		gcInterval: interval,
		stopGC:     make(chan struct{}),
	}
	go c.runGC()
	return c, nil
}

// Close stops the background GC goroutine.
func (c *LocalCache) Close() {
	c.closeOnce.Do(func() { close(c.stopGC) })
}

func (c *LocalCache) runGC() {
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			c.kv.Range(func(k, v any) bool {
				if v.(*entry).expired(now) {
					c.kv.Delete(k)
				}
				return true
			})
		case <-c.stopGC:
			return
		}
	}
}

func (c *LocalCache) load(key string) (*entry, bool) {
	v, ok := c.kv.Load(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if e.expired(time.Now()) {
		c.kv.CompareAndDelete(key, v)
		return nil, false
	}
	return e, true
}

// ---- KV ----

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	e, ok := c.load(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.data, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.kv.Store(key, newEntry(value, ttl))
	return nil
}

// Del removes keys of any type.
func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.kv.Delete(k)
	}
	c.zmu.Lock()
	for _, k := range keys {
		delete(c.zsets, k)
	}
	c.zmu.Unlock()
	c.lmu.Lock()
	for _, k := range keys {
		delete(c.lists, k)
	}
	c.lmu.Unlock()
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.load(key)
	return ok, nil
}

// ---- ZSet ----

func (c *LocalCache) ZAdd(_ context.Context, key string, score float64, member string) error {
	c.zmu.Lock()
	defer c.zmu.Unlock()
	z, ok := c.zsets[key]
	if !ok {
		z = make(map[string]float64)
		c.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (c *LocalCache) ZIncrBy(_ context.Context, key string, incr float64, member string) (float64, error) {
	c.zmu.Lock()
	defer c.zmu.Unlock()
	z, ok := c.zsets[key]
	if !ok {
		z = make(map[string]float64)
		c.zsets[key] = z
	}
	z[member] += incr
	return z[member], nil
}

func (c *LocalCache) ZScore(_ context.Context, key, member string) (float64, error) {
	c.zmu.Lock()
	defer c.zmu.Unlock()
	s, ok := c.zsets[key][member]
	if !ok {
		return 0, ErrNotFound
	}
	return s, nil
}

func (c *LocalCache) ZCard(_ context.Context, key string) (int64, error) {
	c.zmu.Lock()
	defer c.zmu.Unlock()
	return int64(len(c.zsets[key])), nil
}

// ZRevRangeWithScores orders by score descending, then member descending, as Redis does.
func (c *LocalCache) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]Z, error) {
	c.zmu.Lock()
	all := make([]Z, 0, len(c.zsets[key]))
	for m, s := range c.zsets[key] {
		all = append(all, Z{Member: m, Score: s})
	}
	c.zmu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Member > all[j].Member
	})
	lo, hi, ok := span(int64(len(all)), start, stop)
	if !ok {
		return nil, nil
	}
	return all[lo : hi+1], nil
}

// ---- List ----

func (c *LocalCache) LPush(_ context.Context, key string, values ...string) error {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	l := c.lists[key]
	head := make([]string, 0, len(values)+len(l))
	for i := len(values) - 1; i >= 0; i-- {
		head = append(head, values[i])
	}
	c.lists[key] = append(head, l...)
	return nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	l := c.lists[key]
	lo, hi, ok := span(int64(len(l)), start, stop)
	if !ok {
		return nil, nil
	}
	return append([]string(nil), l[lo:hi+1]...), nil
}

func (c *LocalCache) LTrim(_ context.Context, key string, start, stop int64) error {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	l := c.lists[key]
	lo, hi, ok := span(int64(len(l)), start, stop)
	if !ok {
		delete(c.lists, key)
		return nil
	}
	c.lists[key] = append([]string(nil), l[lo:hi+1]...)
	return nil
}

// span resolves Redis-style inclusive indexes, where negatives count from the end.
func span(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	start = max(start, 0)
	stop = min(stop, n-1)
	if n == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
