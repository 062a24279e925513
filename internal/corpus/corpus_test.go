package corpus

import (
	"strings"
	"testing"
	"unicode"
)

func TestBankSeparation(t *testing.T) {
	// Basic vocabulary overlapping the tech dictionary would skew the
	// measured technical density of prose.
	for _, lang := range []Language{English, Indonesian} {
		for _, w := range BasicWords(lang) {
			if IsTechTerm(w) {
				t.Errorf("basic word %q is also a technical term", w)
			}
		}
	}
	for n := 1; n <= MaxFillerLen; n++ {
		if IsTechTerm(FillerWord(n)) {
			t.Errorf("filler word %q is also a technical term", FillerWord(n))
		}
	}
}

func TestWordsAreAlphabetic(t *testing.T) {
	check := func(bank []string, name string) {
		for _, w := range bank {
			for _, r := range w {
				if !unicode.IsLetter(r) {
					t.Errorf("%s word %q contains non-letter %q", name, w, r)
				}
			}
		}
	}
	check(BasicWords(English), "english")
	check(BasicWords(Indonesian), "indonesian")
	check(TechTerms(false), "tech-basic")
	check(TechTerms(true), "tech-advanced")
}

func TestSymbolAlphabetSafety(t *testing.T) {
	// Characters the security validator rejects, and characters the
	// histogram classifies as punctuation, must not be in the symbol bank.
	forbidden := ";<>|&`$" + ".,:!?'\""
	for _, r := range Symbols {
		if strings.ContainsRune(forbidden, r) {
			t.Errorf("symbol bank contains forbidden character %q", r)
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			t.Errorf("symbol bank contains non-symbol character %q", r)
		}
	}
}

func TestFillerWordLengths(t *testing.T) {
	for n := 1; n <= MaxFillerLen; n++ {
		if got := len(FillerWord(n)); got != n {
			t.Errorf("FillerWord(%d) = %q, length %d", n, FillerWord(n), got)
		}
	}
	if FillerWord(0) != "" {
		t.Error("FillerWord(0) should be empty")
	}
	if got := FillerWord(100); len(got) != MaxFillerLen {
		t.Errorf("oversized request should clamp, got %q", got)
	}
}

func TestTechTermLookupIsCaseInsensitive(t *testing.T) {
	if !IsTechTerm("HashMap") || !IsTechTerm("hashmap") || !IsTechTerm("HASHMAP") {
		t.Error("tech lookup should fold case")
	}
	if IsTechTerm("banana") {
		t.Error("non-term matched")
	}
}

func TestLanguageCycling(t *testing.T) {
	if English.Next() != Indonesian || Indonesian.Next() != English {
		t.Error("languages should alternate")
	}
	if English.Marker() != "EN:" || Indonesian.Marker() != "ID:" {
		t.Error("unexpected language markers")
	}
}
