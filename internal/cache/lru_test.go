package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keydrill/keydrill/pkg/errors"
	"github.com/keydrill/keydrill/pkg/types"
)

func testContent(level int, size int) *types.GeneratedContent {
	text := make([]byte, size)
	for i := range text {
		text[i] = 'a'
	}
	return &types.GeneratedContent{
		Text:        string(text),
		Level:       level,
		Seed:        uint64(level),
		GeneratedAt: time.Now(),
	}
}

func testKey(level int) types.CacheKey {
	return types.CacheKey{Level: level, Seed: uint64(level)}
}

func TestNewDefaults(t *testing.T) {
	c := New(nil, nil, nil)
	if c.config.MaxItems != 128 {
		t.Errorf("default MaxItems = %d, want 128", c.config.MaxItems)
	}
	if c.config.SoftLimitBytes >= c.config.HardLimitBytes {
		t.Error("default soft limit not below hard limit")
	}
}

func TestInsertAndGet(t *testing.T) {
	c := New(nil, nil, nil)
	content := testContent(1, 300)

	if err := c.Insert(testKey(1), content); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, ok := c.Get(testKey(1))
	if !ok {
		t.Fatal("Get missed after Insert")
	}
	if got.Text != content.Text {
		t.Error("Get returned different content")
	}

	if _, ok := c.Get(testKey(2)); ok {
		t.Error("Get hit for absent key")
	}
}

func TestMaxItemsEviction(t *testing.T) {
	c := New(&Config{MaxItems: 3, SoftLimitBytes: 1 << 20, HardLimitBytes: 1 << 21}, nil, nil)

	for lvl := 1; lvl <= 3; lvl++ {
		if err := c.Insert(testKey(lvl), testContent(lvl, 100)); err != nil {
			t.Fatalf("Insert level %d failed: %v", lvl, err)
		}
	}

	// Touch level 1 so level 2 is the least recently used.
	c.Get(testKey(1))

	if err := c.Insert(testKey(4), testContent(4, 100)); err != nil {
		t.Fatalf("Insert level 4 failed: %v", err)
	}

	if _, ok := c.Get(testKey(2)); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, lvl := range []int{1, 3, 4} {
		if _, ok := c.Get(testKey(lvl)); !ok {
			t.Errorf("level %d evicted unexpectedly", lvl)
		}
	}

	if m := c.Metrics(); m.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", m.Evictions)
	}
}

func TestHardLimitNeverExceeded(t *testing.T) {
	// Each 300-byte entry occupies 364 accounted bytes.
	cfg := &Config{MaxItems: 100, SoftLimitBytes: 600, HardLimitBytes: 800}
	c := New(cfg, nil, nil)

	for lvl := 1; lvl <= 20; lvl++ {
		if err := c.Insert(testKey(lvl), testContent(lvl, 300)); err != nil {
			t.Fatalf("Insert level %d failed: %v", lvl, err)
		}
		if m := c.Metrics(); m.MemoryBytes > cfg.HardLimitBytes {
			t.Fatalf("resident bytes %d exceed hard limit %d", m.MemoryBytes, cfg.HardLimitBytes)
		}
	}
}

func TestInsertRejectsOversizedEntry(t *testing.T) {
	c := New(&Config{MaxItems: 10, SoftLimitBytes: 100, HardLimitBytes: 200}, nil, nil)

	err := c.Insert(testKey(1), testContent(1, 500))
	if err == nil {
		t.Fatal("expected rejection of entry above hard limit")
	}
	if !errors.IsCode(err, errors.ErrCodeCacheFull) {
		t.Errorf("expected CACHE_FULL, got %v", err)
	}
}

func TestSoftLimitBackgroundEviction(t *testing.T) {
	cfg := &Config{MaxItems: 100, SoftLimitBytes: 800, HardLimitBytes: 1 << 20}
	c := New(cfg, nil, nil)

	for lvl := 1; lvl <= 10; lvl++ {
		if err := c.Insert(testKey(lvl), testContent(lvl, 300)); err != nil {
			t.Fatalf("Insert level %d failed: %v", lvl, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Metrics().MemoryBytes <= cfg.SoftLimitBytes {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("resident bytes %d still above soft limit %d", c.Metrics().MemoryBytes, cfg.SoftLimitBytes)
}

func TestInsertReplacesExistingKey(t *testing.T) {
	c := New(nil, nil, nil)

	if err := c.Insert(testKey(1), testContent(1, 100)); err != nil {
		t.Fatal(err)
	}
	if err := c.Insert(testKey(1), testContent(1, 200)); err != nil {
		t.Fatal(err)
	}

	m := c.Metrics()
	if m.Entries != 1 {
		t.Errorf("entries = %d, want 1", m.Entries)
	}
	if m.MemoryBytes != 264 {
		t.Errorf("resident bytes = %d, want 264", m.MemoryBytes)
	}
}

// TestGetOrGenerateSingleFlight hammers one missing key from 50 goroutines
// and verifies the loader runs exactly once.
func TestGetOrGenerateSingleFlight(t *testing.T) {
	c := New(nil, nil, nil)
	var calls atomic.Int64

	loader := func(ctx context.Context) (*types.GeneratedContent, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return testContent(7, 300), nil
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			content, err := c.GetOrGenerate(context.Background(), testKey(7), loader)
			if err != nil {
				t.Errorf("GetOrGenerate failed: %v", err)
				return
			}
			if content.Level != 7 {
				t.Errorf("wrong content level %d", content.Level)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("loader ran %d times, want 1", n)
	}
}

func TestGetOrGenerateLoaderError(t *testing.T) {
	c := New(nil, nil, nil)
	wantErr := fmt.Errorf("generation broke")

	_, err := c.GetOrGenerate(context.Background(), testKey(1), func(ctx context.Context) (*types.GeneratedContent, error) {
		return nil, wantErr
	})
	if err == nil {
		t.Fatal("expected loader error to propagate")
	}
	if c.Metrics().ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", c.Metrics().ErrorCount)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(nil, nil, nil)
	if err := c.Insert(testKey(1), testContent(1, 100)); err != nil {
		t.Fatal(err)
	}

	c.Invalidate(testKey(1))
	if _, ok := c.Get(testKey(1)); ok {
		t.Error("entry survived invalidation")
	}

	// Idempotent.
	c.Invalidate(testKey(1))
	c.Invalidate(testKey(99))
}

func TestClearResetsMetrics(t *testing.T) {
	c := New(nil, nil, nil)
	if err := c.Insert(testKey(1), testContent(1, 100)); err != nil {
		t.Fatal(err)
	}
	c.Get(testKey(1))
	c.Get(testKey(2))

	c.Clear()

	m := c.Metrics()
	if m.Entries != 0 || m.MemoryBytes != 0 {
		t.Errorf("entries=%d bytes=%d after Clear, want 0", m.Entries, m.MemoryBytes)
	}
	if m.Hits != 0 || m.Misses != 0 || m.TotalRequests != 0 {
		t.Errorf("counters not reset: %+v", m)
	}
}

// TestHitRateSteadyState replays a session-like workload where the same
// level is fetched repeatedly and verifies the hit rate clears 90%.
func TestHitRateSteadyState(t *testing.T) {
	c := New(nil, nil, nil)
	loader := func(ctx context.Context) (*types.GeneratedContent, error) {
		return testContent(3, 300), nil
	}

	for i := 0; i < 100; i++ {
		if _, err := c.GetOrGenerate(context.Background(), testKey(3), loader); err != nil {
			t.Fatal(err)
		}
	}

	m := c.Metrics()
	if rate := m.HitRate(); rate < 90.0 {
		t.Errorf("hit rate %.1f%%, want >= 90%%", rate)
	}
}

func TestGenerationTimeTracking(t *testing.T) {
	c := New(nil, nil, nil)

	for lvl := 1; lvl <= 5; lvl++ {
		key := testKey(lvl)
		_, err := c.GetOrGenerate(context.Background(), key, func(ctx context.Context) (*types.GeneratedContent, error) {
			time.Sleep(time.Millisecond)
			return testContent(key.Level, 100), nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	m := c.Metrics()
	if m.AvgGenerationTime <= 0 {
		t.Error("average generation time not tracked")
	}
	if m.P95GenerationTime < m.AvgGenerationTime/2 {
		t.Errorf("p95 %v implausibly below average %v", m.P95GenerationTime, m.AvgGenerationTime)
	}
}
