// Package cache provides the byte-bounded LRU content store and the
// background preloader that keeps upcoming levels warm. Misses for the
// same key are deduplicated so concurrent requests trigger one generation.
package cache
