package types

import "context"

// LoaderFunc produces content for a missing cache key. It runs outside the
// cache's lock; at most one loader executes per key at a time.
type LoaderFunc func(ctx context.Context) (*GeneratedContent, error)

// ContentCache is the bounded content store.
type ContentCache interface {
	// Get returns the cached content for key, updating recency.
	// It never generates.
	Get(key CacheKey) (*GeneratedContent, bool)

	// GetOrGenerate returns cached content, or runs loader exactly once per
	// missing key (single-flight) and inserts the result.
	GetOrGenerate(ctx context.Context, key CacheKey, loader LoaderFunc) (*GeneratedContent, error)

	// Insert stores content under key, evicting as needed. The hard byte
	// limit is never exceeded.
	Insert(key CacheKey, content *GeneratedContent) error

	// Invalidate removes one entry. Idempotent.
	Invalidate(key CacheKey)

	// Clear removes all entries and resets metrics.
	Clear()

	// Metrics returns a snapshot of the cache counters.
	Metrics() CacheMetrics
}

// SecurityChecker screens text for terminal-hijacking or injection content.
type SecurityChecker interface {
	Check(text string) ValidationResult
}

// MetricsSink receives pipeline observations. Implementations must be safe
// for concurrent use; a nil-safe no-op is acceptable.
type MetricsSink interface {
	ObserveHit()
	ObserveMiss()
	ObserveEviction(n int)
	ObserveGeneration(seconds float64)
	ObservePreload()
	ObserveValidationFailure(kind string)
	SetCacheSize(entries int, bytes int64)
}
