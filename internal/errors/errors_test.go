package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"relkit/internal/procbridge"
)

func exitCode(c int) *int { return &c }

func TestClassifiedError_Error(t *testing.T) {
	tests := []struct {
		name      string
		category  Category
		message   string
		cause     error
		wantParts []string
	}{
		{"with cause", Transient, "Network error", errors.New("connection refused"), []string{"TRANSIENT", "Network error", "connection refused"}},
		{"without cause", Configuration, "Bad flag", nil, []string{"CONFIGURATION", "Bad flag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.category, tt.message, tt.cause, nil, nil).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, missing %q", got, part)
				}
			}
		})
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := New(Unknown, "wrapped", cause, nil, nil)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	wrapped := fmt.Errorf("analyze: %w", err)
	ce, ok := As(wrapped)
	if !ok || ce != err {
		t.Error("As should find the ClassifiedError through wrapping")
	}
	if CategoryOf(errors.New("plain")) != Unknown {
		t.Error("CategoryOf plain error should be Unknown")
	}
}

func TestClassifiedError_Retryable(t *testing.T) {
	want := map[Category]bool{
		Transient:       true,
		Timeout:         true,
		CliUnavailable:  false,
		ExecutionFailed: false,
		ParseError:      false,
		Configuration:   false,
		Unknown:         false,
	}
	for _, c := range Categories {
		if got := New(c, "x", nil, nil, nil).IsRetryable(); got != want[c] {
			t.Errorf("%s.IsRetryable() = %v, want %v", c, got, want[c])
		}
	}
}

func TestClassifiedError_DefaultSuggestions(t *testing.T) {
	err := New(CliUnavailable, "missing", nil, nil, nil)
	joined := strings.Join(err.Suggestions(), "\n")
	for _, want := range []string{"Verify npm is installed and in PATH", "Check that release:analyze script exists in package.json"} {
		if !strings.Contains(joined, want) {
			t.Errorf("suggestions missing %q", want)
		}
	}

	// callers cannot mutate the shared table through the copy
	s := err.Suggestions()
	s[0] = "changed"
	if RecoverySuggestions[CliUnavailable][0] == "changed" {
		t.Error("Suggestions exposed the shared table")
	}
	for _, c := range Categories {
		if len(SuggestionsFor(c)) == 0 {
			t.Errorf("category %s has no suggestions", c)
		}
	}
}

func TestClassifiedError_UserMessage(t *testing.T) {
	err := New(CliUnavailable, "spawn failed", nil, nil, nil)
	if got := err.UserMessage(); got != "Release analysis CLI is not available" {
		t.Errorf("UserMessage() = %q", got)
	}
	for _, c := range Categories {
		if New(c, "x", nil, nil, nil).UserMessage() == "" {
			t.Errorf("category %s has no user message", c)
		}
	}
}

func TestClassifiedError_DetailedMessage(t *testing.T) {
	exec := &procbridge.ExecutionResult{ExitCode: exitCode(1), Stderr: "Error details"}
	err := New(ExecutionFailed, "Execution failed", nil, exec, []string{"Suggestion 1", "Suggestion 2"})

	detailed := err.DetailedMessage()
	for _, want := range []string{
		"Category: EXECUTION_FAILED",
		"Message: Execution failed",
		"Exit Code: 1",
		"Stderr: Error details",
		"Suggestion 1",
		"Suggestion 2",
	} {
		if !strings.Contains(detailed, want) {
			t.Errorf("DetailedMessage missing %q:\n%s", want, detailed)
		}
	}
}

func TestClassifiedError_DetailedMessageTruncatesStderr(t *testing.T) {
	exec := &procbridge.ExecutionResult{Stderr: strings.Repeat("x", 2000)}
	detailed := New(Unknown, "m", nil, exec, nil).DetailedMessage()
	if strings.Count(detailed, "x") > stderrExcerptLimit+10 {
		t.Errorf("stderr excerpt not truncated (%d bytes)", len(detailed))
	}
}
