package generator

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/keydrill/keydrill/internal/corpus"
	"github.com/keydrill/keydrill/internal/level"
	"github.com/keydrill/keydrill/pkg/errors"
	"github.com/keydrill/keydrill/pkg/types"
	"github.com/keydrill/keydrill/pkg/utils"
)

// maxComposeAttempts bounds re-derived sub-seed retries when a composition
// pass cannot satisfy the spec.
const maxComposeAttempts = 3

// pcgStreamSalt decorrelates the two PCG state words derived from one seed.
const pcgStreamSalt = 0x9E3779B97F4A7C15

// Generator synthesizes practice text for a difficulty spec. Output is a
// pure function of (spec, seed): no clock, environment, or scheduling state
// may influence the produced bytes.
type Generator struct {
	logger *utils.Logger
}

// New creates a content generator.
func New(logger *utils.Logger) *Generator {
	return &Generator{logger: logger.WithComponent("generator")}
}

// Generate produces content matching spec, deterministically from seed.
func (g *Generator) Generate(spec level.DifficultySpec, seed uint64) (*types.GeneratedContent, error) {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt < maxComposeAttempts; attempt++ {
		text, err := compose(spec, level.SubSeed(seed, attempt))
		if err != nil {
			lastErr = err
			g.logger.Debug("compose attempt %d for level %d failed: %v", attempt, spec.Level, err)
			continue
		}

		return &types.GeneratedContent{
			Text:        text,
			Level:       int(spec.Level),
			Seed:        seed,
			GeneratedAt: time.Now(),
			Duration:    time.Since(start),
		}, nil
	}

	return nil, errors.Newf(errors.ErrCodeGenerationFailed,
		"could not satisfy length %d for level %d after %d attempts",
		spec.TargetLength, spec.Level, maxComposeAttempts).
		WithComponent("generator").
		WithOperation("generate").
		WithCause(lastErr)
}

// budget tracks the remaining character quota for one token class.
type budget struct {
	total int
	done  int
}

func (b *budget) left() int { return b.total - b.done }

// compose runs one deterministic assembly pass.
//
// The pass is exact by construction: class quotas are materialized as a
// token list up front, the emission loop never lets the remaining capacity
// drop below what the unplaced quota tokens require, and the prose tail is
// fitted to the final character. The resulting text always has exactly
// spec.TargetLength characters with each class quota fully placed.
func compose(spec level.DifficultySpec, seed uint64) (string, error) {
	rng := rand.New(rand.NewPCG(seed, seed^pcgStreamSalt))

	n := spec.TargetLength
	quota := buildQuotaTokens(spec, rng)

	band := spec.Level.Band()
	useMarkers := band == level.BandFoundation
	lang := corpus.English
	if rng.IntN(2) == 1 {
		lang = corpus.Indonesian
	}

	var b strings.Builder
	b.Grow(n + 16)
	emitted := 0
	nextSwitch := spec.SwitchFrequency
	qi := 0

	// Upper bound on characters still needed to place the unplaced quota
	// tokens: their content plus one separator each.
	need := 0
	for _, tok := range quota {
		need += len(tok) + 1
	}

	emit := func(tok string, sep string) {
		if emitted > 0 && sep != "" {
			b.WriteString(sep)
			emitted += len(sep)
		}
		b.WriteString(tok)
		emitted += len(tok)
	}

	for emitted < n {
		remaining := n - emitted

		if qi < len(quota) {
			// Drain mode: no slack left for anything but quota tokens.
			// Outside drain mode, place quota tokens with probability
			// proportional to the space they still require, which spreads
			// them evenly through the text.
			drain := remaining <= need+16
			if drain || rng.Float64() < float64(need)/float64(remaining) {
				need -= len(quota[qi]) + 1
				emit(quota[qi], " ")
				qi++
				continue
			}
		}

		// Language switch boundary.
		if emitted >= nextSwitch {
			nextSwitch += spec.SwitchFrequency
			lang = lang.Next()
			if useMarkers && remaining > need+16 {
				emit(lang.Marker(), "\n")
				continue
			}
		}

		// Prose. Clip the tail so the final length is exact.
		words := corpus.BasicWords(lang)
		word := words[rng.IntN(len(words))]
		punct := ""
		if rng.IntN(5) == 0 {
			punct = "."
		}
		cost := len(word) + len(punct)
		if emitted > 0 {
			cost++
		}

		if remaining-cost < need || cost > remaining {
			// Tail fit: exact-length filler, then a closing period.
			if qi < len(quota) {
				need -= len(quota[qi]) + 1
				emit(quota[qi], " ")
				qi++
				continue
			}
			if remaining == 1 {
				b.WriteByte('.')
				emitted++
				continue
			}
			fill := corpus.FillerWord(min(remaining-1, corpus.MaxFillerLen))
			emit(fill, " ")
			continue
		}

		emit(word+punct, " ")
	}

	if emitted != n || qi != len(quota) {
		return "", errors.Newf(errors.ErrCodeGenerationFailed,
			"composed %d of %d chars with %d quota tokens unplaced",
			emitted, n, len(quota)-qi).WithComponent("generator")
	}

	return b.String(), nil
}

// buildQuotaTokens materializes the symbol, digit, and technical-term
// quotas as concrete tokens, shuffled into a deterministic order.
func buildQuotaTokens(spec level.DifficultySpec, rng *rand.Rand) []string {
	n := float64(spec.TargetLength)
	symBudget := budget{total: int(math.Round(n * spec.SymbolRatio))}
	digBudget := budget{total: int(math.Round(n * spec.NumberRatio))}
	techBudget := budget{total: int(math.Round(n * spec.TechRatio))}

	var tokens []string

	maxRun := 3
	if spec.Level.Band() >= level.BandAdvanced {
		maxRun = 4
	}
	for symBudget.left() > 0 {
		k := min(1+rng.IntN(maxRun), symBudget.left())
		var run strings.Builder
		for i := 0; i < k; i++ {
			run.WriteRune(corpus.Symbols[rng.IntN(len(corpus.Symbols))])
		}
		tokens = append(tokens, run.String())
		symBudget.done += k
	}

	for digBudget.left() > 0 {
		k := min(1+rng.IntN(4), digBudget.left())
		var run strings.Builder
		for i := 0; i < k; i++ {
			run.WriteRune(corpus.Digits[rng.IntN(len(corpus.Digits))])
		}
		tokens = append(tokens, run.String())
		digBudget.done += k
	}

	terms := corpus.TechTerms(spec.Level.Band() >= level.BandIntermediate)
	for techBudget.left() > 0 {
		term := pickTerm(terms, techBudget.left(), rng)
		if term == "" {
			// Remaining quota is smaller than the shortest term; the
			// shortfall is bounded by one term length and stays well
			// inside the composition tolerance.
			break
		}
		tokens = append(tokens, term)
		techBudget.done += len(term)
	}

	rng.Shuffle(len(tokens), func(i, j int) {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	})
	return tokens
}

// pickTerm selects a technical term not exceeding the remaining quota by
// more than two characters, or "" if none fits.
func pickTerm(terms []string, remaining int, rng *rand.Rand) string {
	candidates := make([]string, 0, len(terms))
	for _, t := range terms {
		if len(t) <= remaining+2 {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rng.IntN(len(candidates))]
}
