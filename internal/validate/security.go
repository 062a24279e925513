package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/keydrill/keydrill/pkg/types"
)

// MaxPayloadBytes caps accepted content size. The largest legitimate level
// is 3000 characters; anything approaching this limit is malformed.
const MaxPayloadBytes = 5000

var (
	shellPattern = regexp.MustCompile("\\$\\(|`|&&|\\|\\||[;<>|&]")

	// A line that is nothing but an absolute Unix or Windows path.
	pathPattern = regexp.MustCompile(`^(/[^/\s]+)+/?$|^[A-Z]:\\`)

	// Literal spellings that terminals may interpret when echoed through
	// shells or logging layers.
	escapeLiterals = []string{`\x1b`, `\033`, `\e[`}
)

// Security screens text for terminal-hijacking and injection content.
// Detection is zero tolerance: flagged content is rejected outright, never
// repaired, because a sanitized escape sequence can still reassemble into a
// dangerous one.
type Security struct{}

// NewSecurity creates a security checker.
func NewSecurity() *Security {
	return &Security{}
}

var _ types.SecurityChecker = (*Security)(nil)

// Check scans text and returns every security issue found with its
// character offset. Content passes only with zero issues.
func (s *Security) Check(text string) types.ValidationResult {
	var issues []types.Issue

	if len(text) > MaxPayloadBytes {
		issues = append(issues, types.Issue{
			Kind:    types.IssueOversizedPayload,
			Offset:  MaxPayloadBytes,
			Message: fmt.Sprintf("content is %d bytes, limit %d", len(text), MaxPayloadBytes),
		})
	}

	issues = append(issues, scanRunes(text)...)
	issues = append(issues, scanPatterns(text)...)
	issues = append(issues, scanLines(text)...)

	if len(issues) > 0 {
		return types.Invalid(types.SeverityReject, issues...)
	}
	return types.ValidResult()
}

// scanRunes flags raw escape bytes, control characters, and anomalous
// Unicode code points.
func scanRunes(text string) []types.Issue {
	var issues []types.Issue
	for i, r := range text {
		switch {
		case r == 0x1b:
			issues = append(issues, types.Issue{
				Kind:    types.IssueEscapeSequence,
				Offset:  i,
				Message: "raw ESC byte",
			})
		case r == 0:
			issues = append(issues, types.Issue{
				Kind:    types.IssueControlCharacter,
				Offset:  i,
				Message: "null byte",
			})
		case isDisallowedControl(r):
			issues = append(issues, types.Issue{
				Kind:    types.IssueControlCharacter,
				Offset:  i,
				Message: fmt.Sprintf("control character %#x", r),
			})
		case isAnomalousUnicode(r):
			issues = append(issues, types.Issue{
				Kind:    types.IssueUnicodeAnomaly,
				Offset:  i,
				Message: fmt.Sprintf("disallowed code point %#U", r),
			})
		}
	}
	return issues
}

// isDisallowedControl reports whether r is a C0 or C1 control character
// other than the permitted \n, \r, and \t.
func isDisallowedControl(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return false
	}
	return (r > 0 && r < 0x20) || r == 0x7f || (r >= 0x80 && r <= 0x9f)
}

// isAnomalousUnicode flags private-use code points and bidirectional
// override characters, neither of which belongs in practice text.
func isAnomalousUnicode(r rune) bool {
	if unicode.In(r, unicode.Co) {
		return true
	}
	switch r {
	case 0x202a, 0x202b, 0x202c, 0x202d, 0x202e, 0x2066, 0x2067, 0x2068, 0x2069:
		return true
	}
	return false
}

// scanPatterns flags escape-sequence literals and shell metacharacters.
func scanPatterns(text string) []types.Issue {
	var issues []types.Issue

	for _, literal := range escapeLiterals {
		if idx := strings.Index(text, literal); idx >= 0 {
			issues = append(issues, types.Issue{
				Kind:    types.IssueEscapeSequence,
				Offset:  idx,
				Message: fmt.Sprintf("escape sequence literal %q", literal),
			})
		}
	}

	if loc := shellPattern.FindStringIndex(text); loc != nil {
		issues = append(issues, types.Issue{
			Kind:    types.IssueShellInjection,
			Offset:  loc[0],
			Message: fmt.Sprintf("shell metacharacter %q", text[loc[0]:loc[1]]),
		})
	}

	return issues
}

// scanLines flags lines that disclose filesystem paths.
func scanLines(text string) []types.Issue {
	var issues []types.Issue
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		if pathPattern.MatchString(line) {
			issues = append(issues, types.Issue{
				Kind:    types.IssuePathDisclosure,
				Offset:  offset,
				Message: "line is an absolute filesystem path",
			})
		}
		offset += len(line) + 1
	}
	return issues
}
