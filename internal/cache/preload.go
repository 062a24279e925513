package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keydrill/keydrill/internal/level"
	"github.com/keydrill/keydrill/pkg/types"
	"github.com/keydrill/keydrill/pkg/utils"
)

// PreloadStrategy chooses which levels to warm ahead of the user.
type PreloadStrategy interface {
	Name() string

	// Upcoming returns up to count levels worth preloading when the user
	// is practicing current.
	Upcoming(current level.ID, count int) []level.ID

	// RecordCompletion feeds the strategy one finished level.
	RecordCompletion(id level.ID, completedAt time.Time)
}

// Sequential preloads the next levels in order. The zero value is usable.
type Sequential struct{}

func (Sequential) Name() string { return "sequential" }

func (Sequential) Upcoming(current level.ID, count int) []level.ID {
	return nextLevels(current, count)
}

func (Sequential) RecordCompletion(level.ID, time.Time) {}

func nextLevels(current level.ID, count int) []level.ID {
	var ids []level.ID
	for n := int(current) + 1; n <= level.MaxLevel && len(ids) < count; n++ {
		ids = append(ids, level.ID(n))
	}
	return ids
}

// Adaptive widens the preload horizon for users advancing quickly, based
// on completion velocity over a sliding window.
type Adaptive struct {
	mu          sync.Mutex
	completions []time.Time
}

// adaptiveWindow is how much completion history velocity is computed over.
const adaptiveWindow = 10 * time.Minute

// fastVelocity is the completions-per-minute rate above which the horizon
// doubles.
const fastVelocity = 1.0

func NewAdaptive() *Adaptive {
	return &Adaptive{}
}

func (a *Adaptive) Name() string { return "adaptive" }

func (a *Adaptive) Upcoming(current level.ID, count int) []level.ID {
	if a.velocity() > fastVelocity {
		count *= 2
	}
	return nextLevels(current, count)
}

func (a *Adaptive) RecordCompletion(_ level.ID, completedAt time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completions = append(a.completions, completedAt)
	cutoff := completedAt.Add(-adaptiveWindow)
	for len(a.completions) > 0 && a.completions[0].Before(cutoff) {
		a.completions = a.completions[1:]
	}
}

// velocity returns completions per minute over the retained window.
func (a *Adaptive) velocity() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.completions) < 2 {
		return 0
	}
	elapsed := a.completions[len(a.completions)-1].Sub(a.completions[0]).Minutes()
	if elapsed <= 0 {
		return fastVelocity + 1
	}
	return float64(len(a.completions)-1) / elapsed
}

// UserHistory mixes the sequential path with the user's most revisited
// levels, so frequently repeated drills stay warm.
type UserHistory struct {
	mu     sync.Mutex
	visits map[level.ID]int
}

func NewUserHistory() *UserHistory {
	return &UserHistory{visits: make(map[level.ID]int)}
}

func (u *UserHistory) Name() string { return "user_history" }

func (u *UserHistory) Upcoming(current level.ID, count int) []level.ID {
	sequential := nextLevels(current, (count+1)/2)

	ids := make([]level.ID, 0, count)
	seen := make(map[level.ID]bool)
	for _, id := range sequential {
		ids = append(ids, id)
		seen[id] = true
	}
	for _, id := range u.topVisited() {
		if len(ids) >= count {
			break
		}
		if !seen[id] && id != current {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	return ids
}

func (u *UserHistory) RecordCompletion(id level.ID, _ time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.visits[id]++
}

// topVisited returns visited levels ordered by visit count, ties broken by
// level number for a stable order.
func (u *UserHistory) topVisited() []level.ID {
	u.mu.Lock()
	ids := make([]level.ID, 0, len(u.visits))
	for id := range u.visits {
		ids = append(ids, id)
	}
	counts := make(map[level.ID]int, len(u.visits))
	for id, n := range u.visits {
		counts[id] = n
	}
	u.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// GenerateFunc produces validated content for one level with its canonical
// seed.
type GenerateFunc func(ctx context.Context, id level.ID) (*types.GeneratedContent, error)

// Preloader warms the cache in the background. A new Preload call cancels
// any run still in flight; generation errors are logged and skipped so one
// bad level never blocks the rest of the batch.
type Preloader struct {
	cache       *LRU
	strategy    PreloadStrategy
	generate    GenerateFunc
	concurrency int
	logger      *utils.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	spawnDone chan struct{}
}

// NewPreloader creates a preloader with bounded generation concurrency.
func NewPreloader(cache *LRU, strategy PreloadStrategy, generate GenerateFunc, concurrency int, logger *utils.Logger) *Preloader {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Preloader{
		cache:       cache,
		strategy:    strategy,
		generate:    generate,
		concurrency: concurrency,
		logger:      logger.WithComponent("preloader"),
	}
}

// Preload starts warming the levels the strategy selects around current.
// It returns immediately; Wait blocks on the batch.
func (p *Preloader) Preload(ctx context.Context, current level.ID, count int) {
	upcoming := p.strategy.Upcoming(current, count)
	if len(upcoming) == 0 {
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	group.SetLimit(p.concurrency)
	spawnDone := make(chan struct{})
	p.cancel = cancel
	p.group = group
	p.spawnDone = spawnDone
	p.mu.Unlock()

	// Go blocks once the concurrency limit is reached, so spawning runs
	// off the caller's goroutine.
	go func() {
		defer close(spawnDone)
		for _, id := range upcoming {
			if groupCtx.Err() != nil {
				return
			}
			group.Go(func() error {
				return p.warm(groupCtx, id)
			})
		}
	}()
}

func (p *Preloader) warm(ctx context.Context, id level.ID) error {
	if ctx.Err() != nil {
		return nil
	}
	key := types.CacheKey{Level: int(id), Seed: level.DefaultSeed(id)}
	if p.cache.contains(key) {
		return nil
	}

	// The warm shares the foreground flight for its key. When a user request
	// wins the flight this closure never runs and the entry is theirs, not a
	// preload.
	generated := false
	_, err := p.cache.getOrGenerate(ctx, key, func(ctx context.Context) (*types.GeneratedContent, error) {
		content, err := p.generate(ctx, id)
		if err == nil {
			generated = true
		}
		return content, err
	}, true)
	if err != nil {
		p.logger.Warn("preload of level %d skipped: %v", id, err)
		return nil
	}
	if generated && p.cache.sink != nil {
		p.cache.sink.ObservePreload()
	}
	return nil
}

// Wait blocks until the current batch finishes.
func (p *Preloader) Wait() {
	p.mu.Lock()
	spawnDone := p.spawnDone
	group := p.group
	p.mu.Unlock()

	if spawnDone != nil {
		<-spawnDone
	}
	if group != nil {
		_ = group.Wait()
	}
}

// Stop cancels any in-flight batch and waits for it to drain.
func (p *Preloader) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.Wait()
}
