package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"relkit/internal/procbridge"
)

// Category is the stable classification of an analysis failure.
type Category string

const (
	// CliUnavailable means the analysis tool could not be started
	CliUnavailable Category = "CLI_UNAVAILABLE"
	// Timeout means the tool exceeded its deadline
	Timeout Category = "TIMEOUT"
	// ExecutionFailed means the tool ran and reported failure
	ExecutionFailed Category = "EXECUTION_FAILED"
	// ParseError means the tool's output could not be decoded
	ParseError Category = "PARSE_ERROR"
	// Transient means a network or similar temporary failure
	Transient Category = "TRANSIENT"
	// Configuration means the tool rejected its arguments or setup
	Configuration Category = "CONFIGURATION"
	// Unknown covers everything else
	Unknown Category = "UNKNOWN"
)

// Categories lists every category in classification order.
var Categories = []Category{CliUnavailable, Timeout, ExecutionFailed, ParseError, Transient, Configuration, Unknown}

// Retryable reports whether failures of this category are worth retrying.
func (c Category) Retryable() bool {
	return c == Transient || c == Timeout
}

// ClassifiedError is the single error type surfaced by analysis
// operations. Its category is fixed at construction.
type ClassifiedError struct {
	Category            Category                    `json:"category"`
	Message             string                      `json:"message"`
	RecoverySuggestions []string                    `json:"recoverySuggestions"`
	Execution           *procbridge.ExecutionResult `json:"execution,omitempty"`
	cause               error
}

// New creates a ClassifiedError. Nil suggestions default to the
// category's standard list.
func New(category Category, message string, cause error, execution *procbridge.ExecutionResult, suggestions []string) *ClassifiedError {
	if suggestions == nil {
		suggestions = SuggestionsFor(category)
	}
	return &ClassifiedError{
		Category:            category,
		Message:             message,
		RecoverySuggestions: suggestions,
		Execution:           execution,
		cause:               cause,
	}
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Category, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

func (e *ClassifiedError) IsRetryable() bool {
	return e.Category.Retryable()
}

// Suggestions returns a copy of the recovery suggestions for automated
// consumers.
func (e *ClassifiedError) Suggestions() []string {
	return append([]string(nil), e.RecoverySuggestions...)
}

var userMessages = map[Category]string{
	CliUnavailable:  "Release analysis CLI is not available",
	Timeout:         "Release analysis timed out",
	ExecutionFailed: "Release analysis failed",
	ParseError:      "Release analysis produced output that could not be understood",
	Transient:       "Release analysis hit a temporary problem",
	Configuration:   "Release analysis is misconfigured",
	Unknown:         "An unexpected error occurred during release analysis",
}

// UserMessage is a short category-keyed message for people.
func (e *ClassifiedError) UserMessage() string {
	if msg, ok := userMessages[e.Category]; ok {
		return msg
	}
	return userMessages[Unknown]
}

const stderrExcerptLimit = 500

// DetailedMessage is a multi-line diagnostic for operator logs.
func (e *ClassifiedError) DetailedMessage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", e.Category)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.cause)
	}
	if e.Execution != nil {
		if code, ok := e.Execution.Code(); ok {
			fmt.Fprintf(&b, "Exit Code: %d\n", code)
		}
		if e.Execution.TimedOut {
			b.WriteString("Timed Out: true\n")
		}
		if stderr := strings.TrimSpace(e.Execution.Stderr); stderr != "" {
			if len(stderr) > stderrExcerptLimit {
				stderr = stderr[:stderrExcerptLimit] + "..."
			}
			fmt.Fprintf(&b, "Stderr: %s\n", stderr)
		}
	}
	if len(e.RecoverySuggestions) > 0 {
		b.WriteString("Recovery Suggestions:\n")
		for i, s := range e.RecoverySuggestions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RecoverySuggestions maps each category to its standard remediation steps.
var RecoverySuggestions = map[Category][]string{
	CliUnavailable: {
		"Verify npm is installed and in PATH",
		"Check that release:analyze script exists in package.json",
		"Run npm install to ensure dependencies are installed",
	},
	Timeout: {
		"Increase the analysis timeout",
		"Check whether the analysis is waiting on an interactive prompt",
		"Narrow the analysis range with --since",
	},
	ExecutionFailed: {
		"Check the analysis output above for the reported failure",
		"Run the analysis manually to reproduce the failure",
	},
	ParseError: {
		"Ensure the analysis tool supports --format json",
		"Check that nothing else writes to standard output during analysis",
		"Update the analysis tool to a compatible version",
	},
	Transient: {
		"Retry the analysis",
		"Check network connectivity",
	},
	Configuration: {
		"Check the arguments passed to the analysis tool",
		"Review the analyzer settings in .relkit/config.json",
	},
	Unknown: {
		"Re-run with -vv for debug logging",
		"Run the analysis manually to inspect its output",
	},
}

// SuggestionsFor returns a copy of the standard suggestions for c.
func SuggestionsFor(c Category) []string {
	return append([]string(nil), RecoverySuggestions[c]...)
}

// As extracts a ClassifiedError from err's chain.
func As(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CategoryOf returns err's category, or Unknown for unclassified errors.
func CategoryOf(err error) Category {
	if ce, ok := As(err); ok {
		return ce.Category
	}
	return Unknown
}
