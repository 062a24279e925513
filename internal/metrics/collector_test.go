package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(&Config{Enabled: true, Namespace: "keydrill"}, nil)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	return c
}

func TestCollectorCounters(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveHit()
	c.ObserveHit()
	c.ObserveMiss()
	c.ObserveEviction(3)
	c.ObservePreload()

	if got := testutil.ToFloat64(c.cacheRequests.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.cacheRequests.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.evictions); got != 3 {
		t.Errorf("evictions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.preloads); got != 1 {
		t.Errorf("preloads = %v, want 1", got)
	}
}

func TestCollectorValidationFailureLabels(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveValidationFailure("escape_sequence")
	c.ObserveValidationFailure("escape_sequence")
	c.ObserveValidationFailure("composition_mismatch")

	if got := testutil.ToFloat64(c.validationFailures.WithLabelValues("escape_sequence")); got != 2 {
		t.Errorf("escape_sequence failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.validationFailures.WithLabelValues("composition_mismatch")); got != 1 {
		t.Errorf("composition_mismatch failures = %v, want 1", got)
	}
}

func TestCollectorGauges(t *testing.T) {
	c := newTestCollector(t)

	c.SetCacheSize(12, 4096)

	if got := testutil.ToFloat64(c.cacheEntries); got != 12 {
		t.Errorf("entries gauge = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.cacheBytes); got != 4096 {
		t.Errorf("bytes gauge = %v, want 4096", got)
	}
}

// TestCollectorDisabled verifies a disabled collector absorbs observations
// without panicking.
func TestCollectorDisabled(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	c.ObserveHit()
	c.ObserveMiss()
	c.ObserveEviction(1)
	c.ObserveGeneration(0.01)
	c.ObservePreload()
	c.ObserveValidationFailure("escape_sequence")
	c.SetCacheSize(1, 100)

	if c.Registry() != nil {
		t.Error("disabled collector has a registry")
	}
}
