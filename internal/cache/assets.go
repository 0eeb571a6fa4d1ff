package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// AssetCache is a bounded in-memory cache of playable handles with strict
// LRU eviction. Concurrent preloads of the same key share a single fetch.
type AssetCache struct {
	cfg Config

	// LRU implementation: front is most recently used. Entries touched at
	// the same instant keep their list order, so ties fall to insertion order.
	items    map[string]*list.Element
	eviction *list.List
	bytes    int64

	// Synchronization
	mu      sync.Mutex
	flights singleflight.Group

	// Metrics
	hits      int64
	misses    int64
	evictions int64

	observer Observer
	logger   *log.Logger
}

// assetEntry represents an entry in the asset cache
type assetEntry struct {
	key            string
	handle         Handle
	size           int64
	priority       Priority
	lastAccessedAt time.Time
}

// NewAssetCache creates a new asset cache.
func NewAssetCache(cfg Config, logger *log.Logger) *AssetCache {
	def := DefaultConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}

	return &AssetCache{
		cfg:      cfg,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		logger:   logger,
	}
}

// SetObserver installs an observer for hit, miss and eviction events.
func (c *AssetCache) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// Get retrieves a handle from the cache, recording a hit or a miss.
func (c *AssetCache) Get(key string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		if c.observer != nil {
			c.observer.CacheMiss(key)
		}
		return nil, false
	}

	return c.touch(elem), true
}

// touch marks an entry as used and counts a hit (must be called with lock held).
func (c *AssetCache) touch(elem *list.Element) Handle {
	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*assetEntry)
	entry.lastAccessedAt = c.cfg.Now()
	c.hits++
	if c.observer != nil {
		c.observer.CacheHit(entry.key)
	}
	return entry.handle
}

// Preload returns the cached handle for key, fetching it when absent.
//
// A cached key returns immediately and counts as a hit. Otherwise fetch is
// called with a bounded timeout and the result is inserted, evicting least
// recently used entries if needed. Callers preloading a key that is already
// in flight wait for that fetch instead of starting another.
//
// A low-priority preload that would require evicting anything is skipped:
// Preload then returns a nil handle and a nil error.
func (c *AssetCache) Preload(ctx context.Context, key string, fetch Fetcher, priority Priority) (Handle, error) {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		h := c.touch(elem)
		c.mu.Unlock()
		return h, nil
	}
	if priority == PriorityLow && c.full(0) {
		c.mu.Unlock()
		c.logger.Debug("Skipping low priority preload, cache full", "key", key)
		return nil, nil
	}
	c.mu.Unlock()

	ch := c.flights.DoChan(key, func() (any, error) {
		return c.fetchAndInsert(ctx, key, fetch, priority)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		h, _ := res.Val.(Handle)
		return h, nil
	case <-ctx.Done():
		// The shared fetch keeps running for the other waiters and still
		// populates the cache.
		return nil, ctx.Err()
	}
}

type fetchResult struct {
	handle Handle
	err    error
}

// fetchAndInsert runs one bounded fetch and stores the result.
func (c *AssetCache) fetchAndInsert(parent context.Context, key string, fetch Fetcher, priority Priority) (Handle, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.cfg.FetchTimeout)
	defer cancel()

	start := c.cfg.Now()
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("fetch %q panicked: %v", key, r)}
			}
		}()
		h, err := fetch(ctx, key)
		done <- fetchResult{handle: h, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		// A fetcher that ignores its context must not leak its late result.
		go func() {
			if late := <-done; late.handle != nil {
				_ = late.handle.Release()
			}
		}()
		c.logger.Warn("Asset fetch timed out", "key", key, "timeout", c.cfg.FetchTimeout)
		return nil, fmt.Errorf("%w: %s after %v", ErrFetchTimeout, key, c.cfg.FetchTimeout)
	}

	if res.err != nil {
		if res.handle != nil {
			_ = res.handle.Release()
		}
		if errors.Is(res.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchTimeout, key, res.err)
		}
		return nil, fmt.Errorf("fetch %s: %w", key, res.err)
	}
	if res.handle == nil {
		return nil, fmt.Errorf("fetch %s: %w", key, ErrNilHandle)
	}

	c.logger.Debug("Asset fetched", "key", key, "bytes", res.handle.SizeEstimate(), "took", c.cfg.Now().Sub(start))
	return c.insert(key, res.handle, priority)
}

// insert stores a freshly fetched handle.
func (c *AssetCache) insert(key string, h Handle, priority Priority) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		// Keep one handle per key.
		_ = h.Release()
		entry := elem.Value.(*assetEntry)
		c.eviction.MoveToFront(elem)
		entry.lastAccessedAt = c.cfg.Now()
		return entry.handle, nil
	}

	size := h.SizeEstimate()
	if size > c.cfg.MaxBytes {
		_ = h.Release()
		return nil, ErrItemTooLarge
	}

	if priority == PriorityLow && c.full(size) {
		_ = h.Release()
		c.logger.Debug("Dropping low priority asset, cache full", "key", key)
		return nil, nil
	}

	for c.full(size) && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	entry := &assetEntry{
		key:            key,
		handle:         h,
		size:           size,
		priority:       priority,
		lastAccessedAt: c.cfg.Now(),
	}
	c.items[key] = c.eviction.PushFront(entry)
	c.bytes += size

	return h, nil
}

// full reports whether adding an entry of the given size would exceed a cap
// (must be called with lock held).
func (c *AssetCache) full(size int64) bool {
	return len(c.items)+1 > c.cfg.MaxEntries || c.bytes+size > c.cfg.MaxBytes
}

// EvictOne removes the least recently accessed entry. It returns false when
// the cache is empty.
func (c *AssetCache) EvictOne() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eviction.Len() == 0 {
		return false
	}
	c.evictOldest()
	return true
}

// evictOldest releases and removes the LRU entry (must be called with lock held).
func (c *AssetCache) evictOldest() {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	entry := c.removeElement(elem)
	c.evictions++
	if c.observer != nil {
		c.observer.CacheEviction(entry.key)
	}
	c.logger.Debug("Evicted asset", "key", entry.key, "bytes", entry.size)
}

// removeElement releases an entry and drops it from the cache (must be called
// with lock held).
func (c *AssetCache) removeElement(elem *list.Element) *assetEntry {
	entry := elem.Value.(*assetEntry)
	if err := entry.handle.Release(); err != nil {
		c.logger.Warn("Failed to release asset", "key", entry.key, "error", err)
	}
	c.eviction.Remove(elem)
	delete(c.items, entry.key)
	c.bytes -= entry.size
	return entry
}

// Clear releases every entry and resets all counters.
func (c *AssetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		c.removeElement(elem)
		elem = prev
	}
	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.bytes = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Stats returns cache statistics.
func (c *AssetCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:      len(c.items),
		MaxSize:   c.cfg.MaxEntries,
		Bytes:     c.bytes,
		MaxBytes:  c.cfg.MaxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Contains checks if a key exists in the cache without updating LRU.
func (c *AssetCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Len returns the number of cached entries.
func (c *AssetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Entries lists cached entries from least to most recently used.
func (c *AssetCache) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]EntryInfo, 0, len(c.items))
	for elem := c.eviction.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*assetEntry)
		out = append(out, EntryInfo{
			Key:            e.key,
			SizeEstimate:   e.size,
			Priority:       e.priority,
			LastAccessedAt: e.lastAccessedAt,
		})
	}
	return out
}
