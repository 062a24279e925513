package validate

import (
	"strings"
	"testing"

	"github.com/keydrill/keydrill/internal/level"
	"github.com/keydrill/keydrill/pkg/types"
)

func TestHistogram(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.CharacterHistogram
	}{
		{
			name: "mixed classes",
			text: "Go 1.2 {x}!",
			want: types.CharacterHistogram{
				Lowercase: 2, Uppercase: 1, Digits: 2,
				Whitespace: 2, Punctuation: 2, Symbols: 2,
			},
		},
		{
			name: "empty",
			text: "",
			want: types.CharacterHistogram{},
		},
		{
			name: "whitespace variants",
			text: " \t\n\r",
			want: types.CharacterHistogram{Whitespace: 4},
		},
		{
			name: "punctuation set",
			text: `.,;:!?'"`,
			want: types.CharacterHistogram{Punctuation: 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Histogram(tt.text); got != tt.want {
				t.Errorf("Histogram(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAnalyzeShortTextScoresZero(t *testing.T) {
	d := NewDifficulty()
	score := d.Analyze("too short")
	if score.Overall != 0 {
		t.Errorf("short text scored %.2f, want 0", score.Overall)
	}
}

func TestAnalyzeContributions(t *testing.T) {
	d := NewDifficulty()
	text := strings.Repeat("hello world with some plain simple prose here now ", 3)
	plain := d.Analyze(text)

	symbolic := d.Analyze(strings.Repeat("hel@# wor{} with *(}+ plain =[]_ prose ~%^ no 12 ", 3))
	if symbolic.SymbolContribution <= plain.SymbolContribution {
		t.Error("symbol-heavy text did not raise symbol contribution")
	}
	if symbolic.Overall <= plain.Overall {
		t.Errorf("symbol-heavy overall %.2f not above plain %.2f", symbolic.Overall, plain.Overall)
	}
}

func TestAnalyzeTechnicalTerms(t *testing.T) {
	d := NewDifficulty()
	prose := d.Analyze(strings.Repeat("the quick brown fox jumps over the lazy dog again ", 2))
	code := d.Analyze(strings.Repeat("struct pointer goroutine channel mutex slice index ", 2))

	if code.TechnicalContribution <= prose.TechnicalContribution {
		t.Errorf("technical text contribution %.2f not above prose %.2f",
			code.TechnicalContribution, prose.TechnicalContribution)
	}
}

func TestLooksLikeIdentifier(t *testing.T) {
	tests := []struct {
		word string
		want bool
	}{
		{"snake_case", true},
		{"camelCase", true},
		{"plain", false},
		{"Capitalized", false},
		{"UPPER", false},
	}
	for _, tt := range tests {
		if got := looksLikeIdentifier(tt.word); got != tt.want {
			t.Errorf("looksLikeIdentifier(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}

func TestCheckCompositionLengthMismatch(t *testing.T) {
	d := NewDifficulty()
	spec := level.Spec(level.MustID(1))
	result := d.CheckComposition("way too short", spec)
	if result.Valid {
		t.Fatal("expected length failure")
	}
	if result.Severity != types.SeverityRetry {
		t.Errorf("severity = %s, want retry", result.Severity)
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Kind == types.IssueLengthOutOfRange {
			found = true
		}
	}
	if !found {
		t.Errorf("no length issue in %v", result.Issues)
	}
}

func TestCheckCompositionRatioMismatch(t *testing.T) {
	d := NewDifficulty()
	spec := level.Spec(level.MustID(1))

	// Correct length but all prose: symbol and number ratios land at zero,
	// more than the tolerance below the level targets.
	text := strings.Repeat("word ", spec.TargetLength/5)
	result := d.CheckComposition(text, spec)
	if result.Valid {
		t.Fatal("expected composition failure for all-prose text")
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Kind == types.IssueCompositionMismatch {
			found = true
		}
	}
	if !found {
		t.Errorf("no composition issue in %v", result.Issues)
	}
}

// TestCheckProgressionAdjacentLevels verifies the modeled step between
// every adjacent pair falls inside the open (3%, 7%) band.
func TestCheckProgressionAdjacentLevels(t *testing.T) {
	for n := 1; n < 100; n++ {
		result := CheckProgression(level.MustID(n), level.MustID(n+1))
		if !result.Valid {
			t.Errorf("levels %d -> %d: %v", n, n+1, result.Issues)
		}
	}
}

func TestCheckProgressionNonAdjacent(t *testing.T) {
	result := CheckProgression(level.MustID(1), level.MustID(3))
	if result.Valid {
		t.Fatal("expected rejection of non-adjacent levels")
	}
	if result.Issues[0].Kind != types.IssueProgressionViolation {
		t.Errorf("kind = %s, want progression violation", result.Issues[0].Kind)
	}
}

func TestCheckMeasuredProgression(t *testing.T) {
	d := NewDifficulty()
	tests := []struct {
		name  string
		prev  float64
		next  float64
		valid bool
	}{
		{"small increase", 20.0, 21.0, true},
		{"flat", 20.0, 20.0, true},
		{"tolerable dip", 20.0, 16.0, true},
		{"regression", 20.0, 10.0, false},
		{"spike", 20.0, 40.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.CheckMeasuredProgression(
				types.DifficultyScore{Overall: tt.prev},
				types.DifficultyScore{Overall: tt.next},
			)
			if result.Valid != tt.valid {
				t.Errorf("valid = %v, want %v", result.Valid, tt.valid)
			}
		})
	}
}
