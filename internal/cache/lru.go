package cache

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/keydrill/keydrill/pkg/errors"
	"github.com/keydrill/keydrill/pkg/types"
	"github.com/keydrill/keydrill/pkg/utils"
)

// Config bounds the content cache.
type Config struct {
	// MaxItems caps the number of cached entries.
	MaxItems int

	// SoftLimitBytes triggers asynchronous background eviction once
	// exceeded; inserts are not blocked on it.
	SoftLimitBytes int64

	// HardLimitBytes is never exceeded: inserts evict synchronously
	// until the new entry fits.
	HardLimitBytes int64
}

// DefaultConfig returns limits sized for a full 100-level session.
func DefaultConfig() *Config {
	return &Config{
		MaxItems:       128,
		SoftLimitBytes: 32 * 1024 * 1024,
		HardLimitBytes: 64 * 1024 * 1024,
	}
}

// genTimeWindow is the number of recent generation samples kept for the
// P95 estimate.
const genTimeWindow = 128

// emaAlpha weights the newest generation sample in the running average.
const emaAlpha = 0.2

// entry is one cached content record.
type entry struct {
	key       types.CacheKey
	content   *types.GeneratedContent
	size      int64
	preloaded bool
}

// LRU is a thread-safe, byte-bounded content cache with least-recently-used
// eviction and single-flight miss deduplication.
type LRU struct {
	mu        sync.Mutex
	items     map[types.CacheKey]*list.Element
	evictList *list.List // front = most recently used
	bytes     int64

	config *Config
	flight singleflight.Group
	sink   types.MetricsSink
	logger *utils.Logger

	evicting atomic.Bool

	// Counters. Guarded by mu; reset only by Clear.
	hits         uint64
	misses       uint64
	evictions    uint64
	preloadCount uint64
	preloadHits  uint64
	errorCount   uint64

	avgGenTime time.Duration
	genTimes   [genTimeWindow]time.Duration
	genIdx     int
	genCount   int
}

var _ types.ContentCache = (*LRU)(nil)

// New creates a cache. A nil config uses the defaults; a nil sink disables
// external metrics.
func New(config *Config, sink types.MetricsSink, logger *utils.Logger) *LRU {
	if config == nil {
		config = DefaultConfig()
	}
	return &LRU{
		items:     make(map[types.CacheKey]*list.Element),
		evictList: list.New(),
		config:    config,
		sink:      sink,
		logger:    logger.WithComponent("cache"),
	}
}

// Get returns the cached content for key, updating recency. It never
// generates.
func (c *LRU) Get(key types.CacheKey) (*types.GeneratedContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *LRU) getLocked(key types.CacheKey) (*types.GeneratedContent, bool) {
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		if c.sink != nil {
			c.sink.ObserveMiss()
		}
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	ent := elem.Value.(*entry)
	if ent.preloaded {
		ent.preloaded = false
		c.preloadHits++
	}
	c.hits++
	if c.sink != nil {
		c.sink.ObserveHit()
	}
	return ent.content, true
}

// GetOrGenerate returns cached content, or runs loader exactly once per
// missing key while concurrent callers for the same key wait for the
// result. The loaded content is inserted before being returned; if the
// insert fails the content is still served so cache trouble degrades to a
// slower hit path rather than an error.
func (c *LRU) GetOrGenerate(ctx context.Context, key types.CacheKey, loader types.LoaderFunc) (*types.GeneratedContent, error) {
	return c.getOrGenerate(ctx, key, loader, false)
}

// getOrGenerate is the shared miss path for foreground requests and the
// preloader. Both enter the same flight per key, so a user request racing a
// background warm never generates the same content twice.
func (c *LRU) getOrGenerate(ctx context.Context, key types.CacheKey, loader types.LoaderFunc, preloaded bool) (*types.GeneratedContent, error) {
	// Preloads skip the counting lookup so background warming never skews
	// the hit rate; the caller has already checked residency.
	if !preloaded {
		if content, ok := c.Get(key); ok {
			return content, nil
		}
	}

	v, err, _ := c.flight.Do(key.String(), func() (interface{}, error) {
		// A concurrent flight may have filled the entry between our miss
		// and acquiring the flight.
		c.mu.Lock()
		if elem, ok := c.items[key]; ok {
			c.evictList.MoveToFront(elem)
			c.mu.Unlock()
			return elem.Value.(*entry).content, nil
		}
		c.mu.Unlock()

		start := time.Now()
		content, err := loader(ctx)
		if err != nil {
			c.mu.Lock()
			c.errorCount++
			c.mu.Unlock()
			return nil, err
		}
		// A result finished after cancellation is discarded, never inserted.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.recordGenTime(time.Since(start))

		if insertErr := c.insert(key, content, preloaded); insertErr != nil {
			c.logger.Warn("serving %s uncached: %v", key, insertErr)
		}
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.GeneratedContent), nil
}

// Insert stores content under key, evicting as needed. The hard byte limit
// is never exceeded.
func (c *LRU) Insert(key types.CacheKey, content *types.GeneratedContent) error {
	return c.insert(key, content, false)
}

func (c *LRU) insert(key types.CacheKey, content *types.GeneratedContent, preloaded bool) error {
	size := content.SizeBytes()
	if size > c.config.HardLimitBytes {
		return errors.Newf(errors.ErrCodeCacheFull,
			"entry of %d bytes exceeds hard limit %d", size, c.config.HardLimitBytes).
			WithComponent("cache").WithOperation("insert")
	}

	c.mu.Lock()

	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}

	evicted := 0
	for len(c.items) >= c.config.MaxItems || c.bytes+size > c.config.HardLimitBytes {
		if !c.evictOldestLocked() {
			break
		}
		evicted++
	}

	elem := c.evictList.PushFront(&entry{
		key:       key,
		content:   content,
		size:      size,
		preloaded: preloaded,
	})
	c.items[key] = elem
	c.bytes += size
	if preloaded {
		c.preloadCount++
	}

	overSoft := c.bytes > c.config.SoftLimitBytes
	entries, bytes := len(c.items), c.bytes
	c.mu.Unlock()

	if c.sink != nil {
		if evicted > 0 {
			c.sink.ObserveEviction(evicted)
		}
		c.sink.SetCacheSize(entries, bytes)
	}

	if overSoft && c.evicting.CompareAndSwap(false, true) {
		go c.evictToSoft()
	}
	return nil
}

// evictToSoft trims the cache back under the soft byte limit in the
// background.
func (c *LRU) evictToSoft() {
	defer c.evicting.Store(false)

	c.mu.Lock()
	evicted := 0
	for c.bytes > c.config.SoftLimitBytes {
		if !c.evictOldestLocked() {
			break
		}
		evicted++
	}
	entries, bytes := len(c.items), c.bytes
	c.mu.Unlock()

	if evicted > 0 {
		c.logger.Debug("soft eviction removed %d entries, %d bytes resident", evicted, bytes)
		if c.sink != nil {
			c.sink.ObserveEviction(evicted)
			c.sink.SetCacheSize(entries, bytes)
		}
	}
}

// evictOldestLocked removes the least recently used entry. Returns false
// when the cache is empty.
func (c *LRU) evictOldestLocked() bool {
	elem := c.evictList.Back()
	if elem == nil {
		return false
	}
	c.removeLocked(elem)
	c.evictions++
	return true
}

func (c *LRU) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.evictList.Remove(elem)
	delete(c.items, ent.key)
	c.bytes -= ent.size
}

// contains reports presence without touching recency or counters.
func (c *LRU) contains(key types.CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Invalidate removes one entry. Idempotent.
func (c *LRU) Invalidate(key types.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
}

// Clear removes all entries and resets every counter.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[types.CacheKey]*list.Element)
	c.evictList.Init()
	c.bytes = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.preloadCount, c.preloadHits, c.errorCount = 0, 0, 0
	c.avgGenTime = 0
	c.genIdx, c.genCount = 0, 0

	if c.sink != nil {
		c.sink.SetCacheSize(0, 0)
	}
}

func (c *LRU) recordGenTime(d time.Duration) {
	c.mu.Lock()
	if c.genCount == 0 {
		c.avgGenTime = d
	} else {
		c.avgGenTime = time.Duration(float64(c.avgGenTime)*(1-emaAlpha) + float64(d)*emaAlpha)
	}
	c.genTimes[c.genIdx] = d
	c.genIdx = (c.genIdx + 1) % genTimeWindow
	if c.genCount < genTimeWindow {
		c.genCount++
	}
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.ObserveGeneration(d.Seconds())
	}
}

// Metrics returns a snapshot of the cache counters.
func (c *LRU) Metrics() types.CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := types.CacheMetrics{
		Hits:              c.hits,
		Misses:            c.misses,
		TotalRequests:     c.hits + c.misses,
		Evictions:         c.evictions,
		Entries:           len(c.items),
		MemoryBytes:       c.bytes,
		AvgGenerationTime: c.avgGenTime,
		PreloadCount:      c.preloadCount,
		PreloadHits:       c.preloadHits,
		ErrorCount:        c.errorCount,
	}

	if c.genCount > 0 {
		samples := make([]time.Duration, c.genCount)
		copy(samples, c.genTimes[:c.genCount])
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		m.P95GenerationTime = samples[(len(samples)*95)/100]
	}
	return m
}
