package validate

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/keydrill/keydrill/internal/corpus"
	"github.com/keydrill/keydrill/internal/level"
	"github.com/keydrill/keydrill/pkg/types"
)

// Composition tolerance: measured class ratios may deviate from the level's
// difficulty spec by at most this much, as an absolute fraction of total
// characters.
const CompositionTolerance = 0.02

// Measured difficulty must not fall by more than this between adjacent
// levels, nor rise by more than the spike limit. Mirrors the bounds the
// scoring model was calibrated against.
const (
	maxRegression = 5.0
	maxSpike      = 15.0
)

// DifficultyConfig weights the per-class contributions to the overall
// score. Symbols weigh heaviest: they demand the most hand movement.
type DifficultyConfig struct {
	SymbolWeight    float64
	NumberWeight    float64
	TechnicalWeight float64
	VarietyWeight   float64
	LengthWeight    float64

	// MinAnalysisLength is the shortest text worth scoring; anything
	// below it scores zero across the board.
	MinAnalysisLength int
}

// DefaultDifficultyConfig returns the calibrated weights.
func DefaultDifficultyConfig() DifficultyConfig {
	return DifficultyConfig{
		SymbolWeight:      3.0,
		NumberWeight:      1.5,
		TechnicalWeight:   2.0,
		VarietyWeight:     1.2,
		LengthWeight:      0.8,
		MinAnalysisLength: 50,
	}
}

// Difficulty measures and validates the challenge level of practice text.
type Difficulty struct {
	config DifficultyConfig
}

// NewDifficulty creates an analyzer with the default weights.
func NewDifficulty() *Difficulty {
	return &Difficulty{config: DefaultDifficultyConfig()}
}

// NewDifficultyWithConfig creates an analyzer with custom weights.
func NewDifficultyWithConfig(config DifficultyConfig) *Difficulty {
	return &Difficulty{config: config}
}

// Histogram classifies every character of text by typing-difficulty class.
func Histogram(text string) types.CharacterHistogram {
	var h types.CharacterHistogram
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			h.Lowercase++
		case r >= 'A' && r <= 'Z':
			h.Uppercase++
		case r >= '0' && r <= '9':
			h.Digits++
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			h.Whitespace++
		case strings.ContainsRune(`.,;:!?'"`, r):
			h.Punctuation++
		default:
			h.Symbols++
		}
	}
	return h
}

// Analyze scores text by summing weighted per-class contributions. The
// overall score is clamped to [0, 100].
func (d *Difficulty) Analyze(text string) types.DifficultyScore {
	if len(text) < d.config.MinAnalysisLength {
		return types.DifficultyScore{}
	}

	h := Histogram(text)
	total := float64(len(text))

	score := types.DifficultyScore{
		SymbolContribution:    float64(h.Symbols) / total * 100.0 * d.config.SymbolWeight,
		NumberContribution:    float64(h.Digits) / total * 100.0 * d.config.NumberWeight,
		TechnicalContribution: d.technicalContribution(text),
		VarietyContribution:   varietyScore(h) * d.config.VarietyWeight,
		LengthContribution:    math.Min(total/3000.0, 1.0) * 10.0 * d.config.LengthWeight,
	}
	score.Overall = math.Min(math.Max(
		score.SymbolContribution+score.NumberContribution+score.TechnicalContribution+
			score.VarietyContribution+score.LengthContribution, 0.0), 100.0)
	return score
}

// technicalContribution measures the fraction of words that are technical:
// dictionary terms plus anything shaped like a code identifier.
func (d *Difficulty) technicalContribution(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	technical := 0
	for _, word := range words {
		clean := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if clean == "" {
			continue
		}
		if corpus.IsTechTerm(clean) || looksLikeIdentifier(clean) {
			technical++
		}
	}
	return float64(technical) / float64(len(words)) * 100.0 * d.config.TechnicalWeight
}

// looksLikeIdentifier reports whether a word has code-identifier shape:
// snake_case, or mixed case after the first character.
func looksLikeIdentifier(word string) bool {
	if strings.ContainsRune(word, '_') {
		return true
	}
	for i, r := range word {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(rune(word[0])) {
			return true
		}
	}
	return false
}

// varietyScore maps the number of distinct non-whitespace character
// classes present to a base variety score.
func varietyScore(h types.CharacterHistogram) float64 {
	classes := 0
	for _, n := range []int{h.Lowercase, h.Uppercase, h.Digits, h.Punctuation, h.Symbols} {
		if n > 0 {
			classes++
		}
	}
	switch classes {
	case 0, 1:
		return 0.0
	case 2:
		return 2.0
	case 3:
		return 5.0
	case 4:
		return 8.0
	default:
		return 12.0
	}
}

// CheckComposition verifies text against its difficulty spec: exact target
// length and every class ratio within the composition tolerance. Failures
// are retryable with a derived sub-seed.
func (d *Difficulty) CheckComposition(text string, spec level.DifficultySpec) types.ValidationResult {
	var issues []types.Issue

	if len(text) != spec.TargetLength {
		issues = append(issues, types.Issue{
			Kind:    types.IssueLengthOutOfRange,
			Message: fmt.Sprintf("length %d, want %d", len(text), spec.TargetLength),
		})
	}

	h := Histogram(text)
	total := float64(len(text))
	if total == 0 {
		total = 1
	}

	ratios := []struct {
		name   string
		got    float64
		target float64
	}{
		{"symbol", float64(h.Symbols) / total, spec.SymbolRatio},
		{"number", float64(h.Digits) / total, spec.NumberRatio},
		{"technical", techCharRatio(text, total), spec.TechRatio},
	}
	for _, r := range ratios {
		if math.Abs(r.got-r.target) > CompositionTolerance {
			issues = append(issues, types.Issue{
				Kind: types.IssueCompositionMismatch,
				Message: fmt.Sprintf("%s ratio %.4f deviates from target %.4f by more than %.2f",
					r.name, r.got, r.target, CompositionTolerance),
			})
		}
	}

	if len(issues) > 0 {
		return types.Invalid(types.SeverityRetry, issues...)
	}
	return types.ValidResult()
}

// techCharRatio measures the fraction of characters belonging to
// dictionary technical terms.
func techCharRatio(text string, total float64) float64 {
	chars := 0
	for _, word := range strings.Fields(text) {
		clean := strings.Trim(word, `.,;:!?'"`)
		if corpus.IsTechTerm(clean) {
			chars += len(clean)
		}
	}
	return float64(chars) / total
}

// CheckProgression verifies that the modeled difficulty step between two
// adjacent levels stays strictly inside the 3% to 7% band.
func CheckProgression(from, to level.ID) types.ValidationResult {
	if int(to) != int(from)+1 {
		return types.Invalid(types.SeverityReject, types.Issue{
			Kind:    types.IssueProgressionViolation,
			Message: fmt.Sprintf("levels %d and %d are not adjacent", from, to),
		})
	}

	prev := level.ExpectedScore(from)
	next := level.ExpectedScore(to)
	step := (next - prev) / prev
	if step <= 0.03 || step >= 0.07 {
		return types.Invalid(types.SeverityReject, types.Issue{
			Kind: types.IssueProgressionViolation,
			Message: fmt.Sprintf("difficulty step %.4f from level %d to %d outside (0.03, 0.07)",
				step, from, to),
		})
	}
	return types.ValidResult()
}

// CheckMeasuredProgression verifies that measured difficulty neither
// regresses nor spikes between consecutive levels' content.
func (d *Difficulty) CheckMeasuredProgression(prev, next types.DifficultyScore) types.ValidationResult {
	change := next.Overall - prev.Overall
	if change < -maxRegression {
		return types.Invalid(types.SeverityRetry, types.Issue{
			Kind:    types.IssueProgressionViolation,
			Message: fmt.Sprintf("difficulty regression %.1f -> %.1f", prev.Overall, next.Overall),
		})
	}
	if change > maxSpike {
		return types.Invalid(types.SeverityRetry, types.Issue{
			Kind:    types.IssueProgressionViolation,
			Message: fmt.Sprintf("difficulty spike %.1f -> %.1f", prev.Overall, next.Overall),
		})
	}
	return types.ValidResult()
}
