package validate

import (
	"strings"
	"testing"

	"github.com/keydrill/keydrill/pkg/types"
)

// TestSecurityCheckMaliciousContent runs the checker against known attack
// payloads and verifies each is rejected with the right classification.
func TestSecurityCheckMaliciousContent(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind types.IssueKind
	}{
		{"raw ANSI escape", "hello \x1b[31mred\x1b[0m world", types.IssueEscapeSequence},
		{"hex escape literal", `color is \x1b[32m green`, types.IssueEscapeSequence},
		{"octal escape literal", `reset with \033[0m now`, types.IssueEscapeSequence},
		{"short escape literal", `try \e[2J to clear`, types.IssueEscapeSequence},
		{"command substitution", "echo $(rm -rf /tmp)", types.IssueShellInjection},
		{"backtick execution", "result is `whoami` here", types.IssueShellInjection},
		{"command chaining", "first && second", types.IssueShellInjection},
		{"pipe", "cat file | grep x", types.IssueShellInjection},
		{"semicolon chain", "one; two", types.IssueShellInjection},
		{"redirection", "data > output", types.IssueShellInjection},
		{"null byte", "abc\x00def", types.IssueControlCharacter},
		{"bell character", "ding\x07dong", types.IssueControlCharacter},
		{"C1 control", "text\u0085more", types.IssueControlCharacter},
		{"delete character", "some\x7ftext", types.IssueControlCharacter},
		{"private use area", "odd \ue000 glyph", types.IssueUnicodeAnomaly},
		{"bidi override", "safe\u202etxt.exe", types.IssueUnicodeAnomaly},
		{"unix path line", "some text\n/etc/passwd\nmore text", types.IssuePathDisclosure},
		{"windows path line", `C:\Windows\System32`, types.IssuePathDisclosure},
	}

	s := NewSecurity()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Check(tt.text)
			if result.Valid {
				t.Fatalf("Check(%q) passed, want rejection", tt.text)
			}
			if result.Severity != types.SeverityReject {
				t.Errorf("severity = %s, want reject", result.Severity)
			}
			found := false
			for _, issue := range result.Issues {
				if issue.Kind == tt.kind {
					found = true
				}
			}
			if !found {
				t.Errorf("no %s issue in %v", tt.kind, result.Issues)
			}
		})
	}
}

func TestSecurityCheckCleanContent(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain prose", "the quick brown fox jumps over the lazy dog"},
		{"newlines and tabs", "line one\nline two\twith tab\r\nline three"},
		{"allowed symbols", "func main() { x := a[0] + b * 2 }"},
		{"digits and terms", "array index 42 with HashMap and struct values"},
		{"relative path fragment", "see docs/readme for more"},
	}

	s := NewSecurity()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := s.Check(tt.text); !result.Valid {
				t.Errorf("Check(%q) rejected clean text: %v", tt.text, result.Issues)
			}
		})
	}
}

func TestSecurityCheckOffsets(t *testing.T) {
	s := NewSecurity()
	text := "clean start \x1b[31m colored"
	result := s.Check(text)
	if result.Valid {
		t.Fatal("expected rejection")
	}
	if got := result.Issues[0].Offset; got != strings.IndexByte(text, 0x1b) {
		t.Errorf("offset = %d, want %d", got, strings.IndexByte(text, 0x1b))
	}
}

func TestSecurityCheckOversizedPayload(t *testing.T) {
	s := NewSecurity()
	result := s.Check(strings.Repeat("a", MaxPayloadBytes+1))
	if result.Valid {
		t.Fatal("expected rejection of oversized payload")
	}
	if result.Issues[0].Kind != types.IssueOversizedPayload {
		t.Errorf("kind = %s, want %s", result.Issues[0].Kind, types.IssueOversizedPayload)
	}
}

// TestSecurityCheckReportsAllIssues verifies multiple problems surface in
// one pass rather than stopping at the first.
func TestSecurityCheckReportsAllIssues(t *testing.T) {
	s := NewSecurity()
	result := s.Check("run $(cmd) with \x1b[0m and \x00 byte")
	if result.Valid {
		t.Fatal("expected rejection")
	}
	kinds := make(map[types.IssueKind]bool)
	for _, issue := range result.Issues {
		kinds[issue.Kind] = true
	}
	for _, want := range []types.IssueKind{
		types.IssueShellInjection, types.IssueEscapeSequence, types.IssueControlCharacter,
	} {
		if !kinds[want] {
			t.Errorf("missing issue kind %s in %v", want, result.Issues)
		}
	}
}
