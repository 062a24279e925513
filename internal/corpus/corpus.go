package corpus

import "strings"

// Language selects a word bank. Content alternates between languages at
// prose-heavy tiers.
type Language int

const (
	English Language = iota
	Indonesian
)

// Marker returns the inline language indicator used at prose tiers.
func (l Language) Marker() string {
	if l == Indonesian {
		return "ID:"
	}
	return "EN:"
}

// Next returns the other language.
func (l Language) Next() Language {
	if l == English {
		return Indonesian
	}
	return English
}

// Basic vocabulary. These words must never appear in the technical term
// banks: the difficulty validator counts technical terms by dictionary
// lookup, and overlap would inflate the measured technical density.
var basicEnglish = []string{
	"the", "and", "you", "that", "was", "for", "are", "with",
	"his", "they", "have", "this", "will", "can", "had", "her",
	"what", "said", "each", "which", "she", "how", "when", "them",
	"these", "way", "many", "then", "write", "about", "hands", "keys",
	"speed", "daily", "letter", "small", "quick", "brown", "light", "sound",
}

var basicIndonesian = []string{
	"dan", "yang", "untuk", "dari", "pada", "ini", "dalam", "tidak",
	"adalah", "atau", "akan", "ada", "oleh", "dapat", "juga", "sebagai",
	"kode", "teks", "latihan", "cepat", "jari", "papan", "ketik", "huruf",
	"kata", "baris", "layar", "tangan", "mudah", "lambat",
}

// Technical terms are purely alphabetic: digits would contaminate the
// number quota and separators like underscores would count as symbols.
var techBasic = []string{
	"func", "struct", "method", "array", "object", "slice", "string",
	"integer", "boolean", "variable", "constant", "package", "import",
	"loop", "branch", "stack", "queue", "index", "value", "pointer",
}

var techAdvanced = []string{
	"goroutine", "channel", "mutex", "closure", "iterator", "interface",
	"context", "encoder", "decoder", "parser", "compiler", "runtime",
	"scheduler", "semaphore", "allocator", "HashMap", "WaitGroup",
	"ReadWriter", "ByteBuffer", "TreeNode",
}

// Symbol alphabet for symbol-quota tokens. Characters classified as
// punctuation by the histogram (.,;:!?'") are excluded, as are the shell
// metacharacters and redirection operators the security validator rejects.
var Symbols = []rune{
	'@', '#', '%', '^', '*', '(', ')', '-', '_', '=', '+',
	'[', ']', '{', '}', '/', '\\', '~',
}

// Digits for number-quota tokens.
var Digits = []rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}

// fillers indexed by length-1 for exact tail fitting.
var fillers = []string{
	"a", "of", "the", "type", "drill", "typing", "drilled", "practice",
}

// MaxFillerLen is the longest available filler word.
const MaxFillerLen = len("practice")

// BasicWords returns the prose bank for a language.
func BasicWords(lang Language) []string {
	if lang == Indonesian {
		return basicIndonesian
	}
	return basicEnglish
}

// TechTerms returns the technical-term bank for a tier band.
func TechTerms(advanced bool) []string {
	if advanced {
		return techAdvanced
	}
	return techBasic
}

// FillerWord returns a prose word of exactly n characters, 1 <= n <= 8.
func FillerWord(n int) string {
	if n < 1 {
		return ""
	}
	if n > MaxFillerLen {
		n = MaxFillerLen
	}
	return fillers[n-1]
}

var techSet = buildTechSet()

func buildTechSet() map[string]bool {
	set := make(map[string]bool, len(techBasic)+len(techAdvanced))
	for _, w := range techBasic {
		set[strings.ToLower(w)] = true
	}
	for _, w := range techAdvanced {
		set[strings.ToLower(w)] = true
	}
	return set
}

// IsTechTerm reports whether a word belongs to the technical dictionary.
// Matching is case-insensitive.
func IsTechTerm(word string) bool {
	return techSet[strings.ToLower(word)]
}
