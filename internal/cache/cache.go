// Package cache implements the bounded, in-memory store that fronts the
// disk-backed upload archive. It is a sharded LRU keyed by saved name, with
// per-entry lifetime expiration in addition to ordinary size-based eviction.
package cache

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"breeze/internal/metrics"
)

const numShards = 16

// Logger is designed to be satisfied by log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Config holds the tunables that govern admission and eviction.
type Config struct {
	// MemCapacity is the total number of payload bytes the cache will hold
	// before evicting least-recently-used entries.
	MemCapacity int64

	// MaxLength is the per-entry admission ceiling used by WillUse; the
	// cache itself never refuses an Add based on this value.
	MaxLength int64

	// UploadLifetime is the default lifetime given to entries added via Add.
	UploadLifetime time.Duration

	// ScanFreq is the interval between background expiry sweeps.
	ScanFreq time.Duration
}

type entry struct {
	payload    []byte
	lastUsed   atomic.Int64 // UnixNano, mutated only when updateUsed is true
	lifetime   time.Duration
	updateUsed bool
}

func (e *entry) expired(now time.Time) bool {
	last := time.Unix(0, e.lastUsed.Load())
	return now.Sub(last) >= e.lifetime
}

type shard struct {
	mu    sync.Mutex
	items map[string]*entry
}

func fnvShard(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % numShards
}

// Cache is a concurrent, size- and lifetime-bounded store of saved-name to
// payload mappings. All operations are safe for concurrent use.
type Cache struct {
	cfg    Config
	logger Logger

	shards [numShards]*shard
	length atomic.Int64
}

// New returns an empty Cache governed by cfg.
func New(cfg Config, logger Logger) *Cache {
	c := &Cache{cfg: cfg, logger: logger}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[string]*entry)}
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[fnvShard(key)]
}

// addLength adjusts the total byte count and republishes it to the
// breeze_cache_bytes_in_use gauge.
func (c *Cache) addLength(delta int64) int64 {
	cur := c.length.Add(delta)
	metrics.CacheBytesInUse.Set(float64(cur))
	return cur
}

// Length returns the current total number of payload bytes held by the cache.
func (c *Cache) Length() int64 {
	return c.length.Load()
}

// WillUse reports whether a payload of the given length is small enough to
// be admitted at all, per the configured per-entry ceiling. It does not
// consult current occupancy.
func (c *Cache) WillUse(length int64) bool {
	return length <= c.cfg.MaxLength
}

// Add admits payload under key with the cache's default lifetime, bumping
// last_used on every read. It reports whether key was not already present.
func (c *Cache) Add(key string, payload []byte) bool {
	return c.AddWithLifetime(key, payload, c.cfg.UploadLifetime, true)
}

// AddWithLifetime admits payload under key with an explicit lifetime and
// update-on-read policy, evicting least-recently-used entries if needed to
// stay within MemCapacity. It reports whether key was not already present.
func (c *Cache) AddWithLifetime(key string, payload []byte, lifetime time.Duration, updateUsed bool) bool {
	e := &entry{payload: payload, lifetime: lifetime, updateUsed: updateUsed}
	e.lastUsed.Store(time.Now().UnixNano())

	sh := c.shardFor(key)
	sh.mu.Lock()
	old, existed := sh.items[key]
	var oldLen int64
	if existed {
		oldLen = int64(len(old.payload))
	}
	sh.items[key] = e
	sh.mu.Unlock()

	delta := int64(len(payload)) - oldLen
	cur := c.addLength(delta)

	if cur > c.cfg.MemCapacity {
		c.evict(cur-c.cfg.MemCapacity, key)
	}

	return !existed
}

// snapshotEntry is a point-in-time view used only to decide eviction order;
// the authoritative state always lives behind the shard lock.
type snapshotEntry struct {
	key      string
	lastUsed int64
	size     int64
}

// evict removes least-recently-used entries, oldest first, until at least
// overflow bytes have been reclaimed (or there is nothing left to remove).
// protectedKey is exempted so eviction never removes the entry that just
// triggered it.
func (c *Cache) evict(overflow int64, protectedKey string) {
	var snap []snapshotEntry
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k, e := range sh.items {
			if k == protectedKey {
				continue
			}
			snap = append(snap, snapshotEntry{key: k, lastUsed: e.lastUsed.Load(), size: int64(len(e.payload))})
		}
		sh.mu.Unlock()
	}

	sort.Slice(snap, func(i, j int) bool { return snap[i].lastUsed < snap[j].lastUsed })

	var reclaimed int64
	for _, se := range snap {
		if reclaimed >= overflow {
			break
		}
		sh := c.shardFor(se.key)
		sh.mu.Lock()
		// Re-check under the shard lock: a concurrent writer may have
		// replaced or removed this entry since the snapshot was taken.
		cur, ok := sh.items[se.key]
		if ok && cur.lastUsed.Load() == se.lastUsed {
			delete(sh.items, se.key)
			sh.mu.Unlock()
			reclaimed += se.size
			c.addLength(-se.size)
		} else {
			sh.mu.Unlock()
		}
	}
}

// Get returns a handle to the payload stored under key. Expired entries are
// removed lazily and reported as absent. If the entry's updateUsed flag is
// set, last_used is bumped to now before returning.
func (c *Cache) Get(key string) ([]byte, bool) {
	sh := c.shardFor(key)
	now := time.Now()

	sh.mu.Lock()
	e, ok := sh.items[key]
	if !ok {
		sh.mu.Unlock()
		return nil, false
	}
	if e.expired(now) {
		delete(sh.items, key)
		sh.mu.Unlock()
		c.addLength(-int64(len(e.payload)))
		return nil, false
	}
	if e.updateUsed {
		e.lastUsed.Store(now.UnixNano())
	}
	payload := e.payload
	sh.mu.Unlock()

	return payload, true
}

// Has reports whether key is present and unexpired, with the same expiry and
// last_used semantics as Get.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Remove unconditionally deletes key, without consulting expiry. It reports
// whether the key had been present.
func (c *Cache) Remove(key string) bool {
	sh := c.shardFor(key)

	sh.mu.Lock()
	e, ok := sh.items[key]
	if ok {
		delete(sh.items, key)
	}
	sh.mu.Unlock()

	if ok {
		c.addLength(-int64(len(e.payload)))
	}
	return ok
}

// Scan removes every entry whose lifetime has elapsed as of now. It is meant
// to be invoked periodically by Scanner, but is exposed directly for tests.
func (c *Cache) Scan(now time.Time) int {
	removed := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k, e := range sh.items {
			if e.expired(now) {
				delete(sh.items, k)
				c.addLength(-int64(len(e.payload)))
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Scanner runs Scan every ScanFreq until ctx is cancelled. The first sweep
// happens after one interval has elapsed, not immediately on entry.
func (c *Cache) Scanner(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ScanFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := c.Scan(now)
			if removed > 0 && c.logger != nil {
				c.logger.Printf("cache scanner: removed %d expired entries", removed)
			}
		}
	}
}
