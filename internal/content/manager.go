package content

import (
	"context"
	"time"

	"github.com/keydrill/keydrill/internal/cache"
	"github.com/keydrill/keydrill/internal/config"
	"github.com/keydrill/keydrill/internal/generator"
	"github.com/keydrill/keydrill/internal/level"
	"github.com/keydrill/keydrill/internal/validate"
	"github.com/keydrill/keydrill/pkg/errors"
	"github.com/keydrill/keydrill/pkg/types"
	"github.com/keydrill/keydrill/pkg/utils"
)

// Manager orchestrates the content pipeline: cache lookup, generation on
// miss, the security gate, the difficulty gate, and insertion. The cache is
// the only shared mutable state; everything else here is stateless or owns
// its own synchronization.
type Manager struct {
	cfg        *config.Configuration
	cache      *cache.LRU
	generator  *generator.Generator
	security   types.SecurityChecker
	difficulty *validate.Difficulty
	strategy   cache.PreloadStrategy
	preloader  *cache.Preloader
	sink       types.MetricsSink
	logger     *utils.Logger
}

// NewManager builds the pipeline from configuration. The configuration is
// validated first; a bad one is an error, never a panic.
func NewManager(cfg *config.Configuration, sink types.MetricsSink, logger *utils.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "configuration rejected: %v", err).
			WithComponent("content").WithCause(err)
	}

	soft, err := cfg.Cache.SoftLimitBytes()
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "bad soft limit: %v", err).WithCause(err)
	}
	hard, err := cfg.Cache.HardLimitBytes()
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "bad hard limit: %v", err).WithCause(err)
	}

	m := &Manager{
		cfg: cfg,
		cache: cache.New(&cache.Config{
			MaxItems:       cfg.Cache.MaxItems,
			SoftLimitBytes: soft,
			HardLimitBytes: hard,
		}, sink, logger),
		generator:  generator.New(logger),
		security:   validate.NewSecurity(),
		difficulty: validate.NewDifficulty(),
		strategy:   strategyFor(cfg.Preload.Strategy),
		sink:       sink,
		logger:     logger.WithComponent("content"),
	}

	m.preloader = cache.NewPreloader(m.cache, m.strategy, func(ctx context.Context, id level.ID) (*types.GeneratedContent, error) {
		return m.generateValidated(ctx, id, m.seedFor(id))
	}, cfg.Preload.Concurrency, logger)

	return m, nil
}

func strategyFor(name string) cache.PreloadStrategy {
	switch name {
	case "adaptive":
		return cache.NewAdaptive()
	case "user_history":
		return cache.NewUserHistory()
	default:
		return cache.Sequential{}
	}
}

// seedFor resolves the canonical seed for a level: the configured override
// when set, the per-level default otherwise.
func (m *Manager) seedFor(id level.ID) uint64 {
	if m.cfg.Generator.DefaultSeed != 0 {
		return m.cfg.Generator.DefaultSeed
	}
	return level.DefaultSeed(id)
}

// GetLevelContent returns practice text for a level using its canonical
// seed, generating and caching on miss.
func (m *Manager) GetLevelContent(ctx context.Context, lvl int) (string, error) {
	id, err := level.NewID(lvl)
	if err != nil {
		return "", err
	}
	return m.getContent(ctx, id, m.seedFor(id))
}

// GetLevelContentWithSeed returns practice text for a level and an explicit
// seed.
func (m *Manager) GetLevelContentWithSeed(ctx context.Context, lvl int, seed uint64) (string, error) {
	id, err := level.NewID(lvl)
	if err != nil {
		return "", err
	}
	return m.getContent(ctx, id, seed)
}

func (m *Manager) getContent(ctx context.Context, id level.ID, seed uint64) (string, error) {
	key := types.CacheKey{Level: int(id), Seed: seed}
	content, err := m.cache.GetOrGenerate(ctx, key, func(ctx context.Context) (*types.GeneratedContent, error) {
		return m.generateValidated(ctx, id, seed)
	})
	if err != nil {
		return "", err
	}
	return content.Text, nil
}

// generateValidated runs the full miss path: generate, security gate,
// difficulty gate. Retryable difficulty failures regenerate with a derived
// sub-seed up to the configured retry bound; security failures never retry.
func (m *Manager) generateValidated(ctx context.Context, id level.ID, seed uint64) (*types.GeneratedContent, error) {
	spec := level.Spec(id)

	var lastIssues []types.Issue
	for attempt := 0; attempt < m.cfg.Generator.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptSeed := seed
		if attempt > 0 {
			attemptSeed = level.SubSeed(seed, attempt)
		}

		content, err := m.generator.Generate(spec, attemptSeed)
		if err != nil {
			return nil, err
		}
		// The returned record must carry the caller's seed so the cache key
		// and the content agree even after sub-seed regeneration.
		content.Seed = seed

		if !m.cfg.Generator.EnableValidation {
			return content, nil
		}

		if result := m.security.Check(content.Text); !result.Valid {
			m.observeFailures(result.Issues)
			return nil, errors.Newf(errors.ErrCodeSecurityIssue,
				"level %d content rejected: %s", id, result.Issues[0]).
				WithComponent("content").WithOperation("security_check")
		}

		result := m.difficulty.CheckComposition(content.Text, spec)
		if result.Valid {
			return content, nil
		}
		m.observeFailures(result.Issues)
		lastIssues = result.Issues
		m.logger.Debug("level %d attempt %d failed composition: %v", id, attempt, result.Issues)
	}

	return nil, errors.Newf(errors.ErrCodeCompositionMismatch,
		"level %d composition invalid after %d attempts: %v",
		id, m.cfg.Generator.MaxRetries, lastIssues).
		WithComponent("content").WithOperation("difficulty_check")
}

func (m *Manager) observeFailures(issues []types.Issue) {
	if m.sink == nil {
		return
	}
	for _, issue := range issues {
		m.sink.ObserveValidationFailure(string(issue.Kind))
	}
}

// GetCachedContent returns cached text for a level and seed. It never
// generates.
func (m *Manager) GetCachedContent(lvl int, seed uint64) (string, bool) {
	if _, err := level.NewID(lvl); err != nil {
		return "", false
	}
	content, ok := m.cache.Get(types.CacheKey{Level: lvl, Seed: seed})
	if !ok {
		return "", false
	}
	return content.Text, true
}

// PreloadUpcomingLevels starts warming the levels the configured strategy
// anticipates after current. It returns without waiting for generation.
func (m *Manager) PreloadUpcomingLevels(ctx context.Context, current int) error {
	id, err := level.NewID(current)
	if err != nil {
		return err
	}
	if !m.cfg.Preload.Enabled || m.cfg.Preload.Count <= 0 {
		return nil
	}
	m.preloader.Preload(ctx, id, m.cfg.Preload.Count)
	return nil
}

// InvalidateLevel drops the cached entry for one level and seed.
func (m *Manager) InvalidateLevel(lvl int, seed uint64) {
	m.cache.Invalidate(types.CacheKey{Level: lvl, Seed: seed})
}

// ClearCache drops every cached entry and resets cache counters.
func (m *Manager) ClearCache() {
	m.cache.Clear()
}

// GetCacheMetrics returns a snapshot of the cache counters.
func (m *Manager) GetCacheMetrics() types.CacheMetrics {
	return m.cache.Metrics()
}

// AnalyzeDifficulty scores arbitrary text with the difficulty model.
func (m *Manager) AnalyzeDifficulty(text string) types.DifficultyScore {
	return m.difficulty.Analyze(text)
}

// ValidateProgression checks the inclusive level range [from, to]: the
// modeled difficulty step between each adjacent pair must stay in the 3% to
// 7% band, and measured difficulty of the canonical content must not
// regress or spike. Content is generated through the normal pipeline, so
// results land in the cache.
func (m *Manager) ValidateProgression(ctx context.Context, from, to int) error {
	if from >= to {
		return errors.Newf(errors.ErrCodeInvalidLevel,
			"progression range [%d, %d] must span at least two levels", from, to).
			WithComponent("content")
	}

	var prevScore types.DifficultyScore
	for lvl := from; lvl <= to; lvl++ {
		id, err := level.NewID(lvl)
		if err != nil {
			return err
		}

		text, err := m.getContent(ctx, id, m.seedFor(id))
		if err != nil {
			return err
		}
		score := m.difficulty.Analyze(text)

		if lvl > from {
			if result := validate.CheckProgression(level.ID(lvl-1), id); !result.Valid {
				return progressionError(lvl, result.Issues)
			}
			if result := m.difficulty.CheckMeasuredProgression(prevScore, score); !result.Valid {
				m.observeFailures(result.Issues)
				return progressionError(lvl, result.Issues)
			}
		}
		prevScore = score
	}
	return nil
}

func progressionError(lvl int, issues []types.Issue) error {
	return errors.Newf(errors.ErrCodeProgressionViolation,
		"progression broken at level %d: %v", lvl, issues).
		WithComponent("content").WithOperation("validate_progression")
}

// RecordCompletion feeds one finished level to the preload strategy so
// adaptive and history-based preloading can react to the user's pace.
func (m *Manager) RecordCompletion(lvl int, completedAt time.Time) error {
	id, err := level.NewID(lvl)
	if err != nil {
		return err
	}
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	m.strategy.RecordCompletion(id, completedAt)
	return nil
}

// Close cancels background preloading and waits for it to drain.
func (m *Manager) Close() {
	m.preloader.Stop()
}
