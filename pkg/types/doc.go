// Package types defines the shared data types and interfaces used across
// keydrill components: generated content, cache keys and metrics, validation
// results, and difficulty scores.
package types
