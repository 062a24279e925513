package types

import (
	"fmt"
	"time"
)

// GeneratedContent is a single unit of practice text produced by the
// generator. It is immutable after creation; the cache owns the stored copy.
type GeneratedContent struct {
	Text        string        `json:"text"`
	Level       int           `json:"level"`
	Seed        uint64        `json:"seed"`
	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"generation_duration"`
}

// SizeBytes returns the resident size estimate used for cache accounting.
func (c *GeneratedContent) SizeBytes() int64 {
	if c == nil {
		return 0
	}
	// Text dominates; the fixed fields are a small constant overhead.
	return int64(len(c.Text)) + 64
}

// CacheKey identifies one cached content entry: a level plus the seed it was
// generated with. Seedless requests resolve to the level's canonical seed
// before a key is formed, so every key carries a concrete seed.
type CacheKey struct {
	Level int    `json:"level"`
	Seed  uint64 `json:"seed"`
}

// String renders the stable wire form of the key.
func (k CacheKey) String() string {
	return fmt.Sprintf("content/v1/%d/%d", k.Level, k.Seed)
}

// IssueKind classifies a single validation problem.
type IssueKind string

const (
	IssueEscapeSequence   IssueKind = "escape_sequence"
	IssueShellInjection   IssueKind = "shell_injection"
	IssueControlCharacter IssueKind = "control_character"
	IssueUnicodeAnomaly   IssueKind = "unicode_anomaly"
	IssuePathDisclosure   IssueKind = "path_disclosure"
	IssueOversizedPayload IssueKind = "oversized_payload"

	IssueCompositionMismatch  IssueKind = "composition_mismatch"
	IssueProgressionViolation IssueKind = "progression_violation"
	IssueLengthOutOfRange     IssueKind = "length_out_of_range"
)

// Severity ranks how a validation issue must be treated.
type Severity string

const (
	// SeverityReject means the content must be discarded, never repaired.
	SeverityReject Severity = "reject"
	// SeverityRetry means the caller may regenerate with a derived sub-seed.
	SeverityRetry Severity = "retry"
)

// Issue is one classified validation problem with its character offset.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Offset  int       `json:"offset"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s at %d: %s", i.Kind, i.Offset, i.Message)
}

// ValidationResult is the transient outcome of one validation call.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Issues   []Issue  `json:"issues,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

// Valid returns a passing result.
func ValidResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing result carrying the given issues.
func Invalid(severity Severity, issues ...Issue) ValidationResult {
	return ValidationResult{Valid: false, Issues: issues, Severity: severity}
}

// CharacterHistogram counts characters by typing-difficulty class.
type CharacterHistogram struct {
	Lowercase   int `json:"lowercase"`
	Uppercase   int `json:"uppercase"`
	Digits      int `json:"digits"`
	Whitespace  int `json:"whitespace"`
	Punctuation int `json:"punctuation"`
	Symbols     int `json:"symbols"`
}

// Total returns the total number of classified characters.
func (h CharacterHistogram) Total() int {
	return h.Lowercase + h.Uppercase + h.Digits + h.Whitespace + h.Punctuation + h.Symbols
}

// DifficultyScore is the measured challenge level of a piece of text, broken
// down by contribution so regressions can be attributed to one class.
type DifficultyScore struct {
	Overall               float64 `json:"overall"`
	SymbolContribution    float64 `json:"symbol_contribution"`
	NumberContribution    float64 `json:"number_contribution"`
	TechnicalContribution float64 `json:"technical_contribution"`
	VarietyContribution   float64 `json:"variety_contribution"`
	LengthContribution    float64 `json:"length_contribution"`
}

// CacheMetrics is a point-in-time snapshot of cache performance counters.
// Counters accumulate monotonically until an explicit Clear.
type CacheMetrics struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	TotalRequests uint64 `json:"total_requests"`
	Evictions     uint64 `json:"evictions"`
	Entries       int    `json:"entries"`
	MemoryBytes   int64  `json:"memory_bytes"`

	AvgGenerationTime time.Duration `json:"avg_generation_time"`
	P95GenerationTime time.Duration `json:"p95_generation_time"`

	PreloadCount uint64 `json:"preload_count"`
	PreloadHits  uint64 `json:"preload_hits"`
	ErrorCount   uint64 `json:"error_count"`
}

// HitRate returns the hit rate as a percentage of total requests.
func (m CacheMetrics) HitRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.Hits) / float64(m.TotalRequests) * 100.0
}

// PreloadEfficiency returns the fraction of preloaded entries that were
// later served to a caller, as a percentage.
func (m CacheMetrics) PreloadEfficiency() float64 {
	if m.PreloadCount == 0 {
		return 0
	}
	return float64(m.PreloadHits) / float64(m.PreloadCount) * 100.0
}

// Steady-state performance targets for a session-shaped workload.
const (
	// TargetHitRate is the minimum acceptable cache hit rate, in percent.
	TargetHitRate = 90.0

	// TargetP95Generation bounds the 95th-percentile generation time.
	TargetP95Generation = 50 * time.Millisecond

	// minRequestsForTargets is how many requests a snapshot needs before
	// its hit rate is meaningful; colder snapshots pass unconditionally.
	minRequestsForTargets = 100
)

// ValidateTargets reports whether the snapshot meets the steady-state
// performance targets.
func (m CacheMetrics) ValidateTargets() error {
	if m.TotalRequests >= minRequestsForTargets && m.HitRate() < TargetHitRate {
		return fmt.Errorf("hit rate %.1f%% below %.1f%% target", m.HitRate(), TargetHitRate)
	}
	if m.P95GenerationTime > TargetP95Generation {
		return fmt.Errorf("p95 generation time %s above %s target", m.P95GenerationTime, TargetP95Generation)
	}
	return nil
}
