package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"relkit/internal/procbridge"
)

// DefaultUsageExitCode is the conventional "command line usage error" code.
const DefaultUsageExitCode = 64

var (
	spawnTokens = []string{
		"spawn", "enoent", "not found", "no such file", "permission denied", "executable file not found",
	}
	networkTokens = []string{
		"econnrefused", "econnreset", "etimedout", "enotfound", "eai_again",
		"connection refused", "connection reset", "no such host", "network", "connection",
	}
	configTokens = []string{
		"invalid argument", "unknown option", "unknown flag", "unrecognized option",
	}
)

// Classifier decides the category of a failed execution.
type Classifier struct {
	// UsageExitCode is the tool's reserved exit code for bad invocation.
	UsageExitCode int
}

// NewClassifier returns a Classifier; a non-positive usageExitCode selects
// DefaultUsageExitCode.
func NewClassifier(usageExitCode int) *Classifier {
	if usageExitCode <= 0 {
		usageExitCode = DefaultUsageExitCode
	}
	return &Classifier{UsageExitCode: usageExitCode}
}

type rule struct {
	category Category
	match    func(c *Classifier, r *procbridge.ExecutionResult, parseErr error) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{Timeout, func(_ *Classifier, r *procbridge.ExecutionResult, _ error) bool {
		return r != nil && r.TimedOut
	}},
	{ParseError, func(_ *Classifier, _ *procbridge.ExecutionResult, parseErr error) bool {
		return parseErr != nil
	}},
	{CliUnavailable, func(_ *Classifier, r *procbridge.ExecutionResult, _ error) bool {
		return r != nil && containsAny(r.Error, spawnTokens)
	}},
	{Transient, func(_ *Classifier, r *procbridge.ExecutionResult, _ error) bool {
		return r != nil && containsAny(r.Error+"\n"+r.Stderr, networkTokens)
	}},
	{Configuration, func(c *Classifier, r *procbridge.ExecutionResult, _ error) bool {
		if r == nil {
			return false
		}
		if code, ok := r.Code(); ok && code == c.UsageExitCode {
			return true
		}
		return containsAny(r.Error+"\n"+r.Stderr, configTokens)
	}},
	{ExecutionFailed, func(_ *Classifier, r *procbridge.ExecutionResult, _ error) bool {
		code, ok := r.Code()
		return ok && (code == 1 || code == 2)
	}},
}

// Categorize applies the ordered rule chain.
func (c *Classifier) Categorize(r *procbridge.ExecutionResult, parseErr error) Category {
	for _, rl := range rules {
		if rl.match(c, r, parseErr) {
			return rl.category
		}
	}
	return Unknown
}

// CreateError classifies r and wraps it in a ClassifiedError carrying the
// category's standard suggestions.
func (c *Classifier) CreateError(r *procbridge.ExecutionResult, parseErr error) *ClassifiedError {
	category := c.Categorize(r, parseErr)
	var cause error = parseErr
	if cause == nil && r != nil && r.Error != "" {
		cause = stderrors.New(r.Error)
	}
	return New(category, messageFor(category, r, parseErr), cause, r, nil)
}

func messageFor(category Category, r *procbridge.ExecutionResult, parseErr error) string {
	switch category {
	case Timeout:
		return fmt.Sprintf("Analysis timed out after %s", r.Duration())
	case ParseError:
		return fmt.Sprintf("Failed to parse CLI output: %v", parseErr)
	case CliUnavailable:
		return "Release analysis CLI could not be started"
	case Transient:
		return fmt.Sprintf("Analysis failed with a transient error: %s", firstLine(r.Stderr, r.Error))
	case Configuration:
		return fmt.Sprintf("Analysis rejected its configuration: %s", firstLine(r.Stderr, r.Error))
	case ExecutionFailed:
		code, _ := r.Code()
		return fmt.Sprintf("Analysis failed with exit code %d", code)
	default:
		if r != nil && r.Error != "" {
			return fmt.Sprintf("Analysis failed: %s", r.Error)
		}
		return "Analysis failed for an unknown reason"
	}
}

// ValidateResult rejects unsuccessful executions and successful ones that
// produced no output.
func (c *Classifier) ValidateResult(r *procbridge.ExecutionResult) error {
	if r == nil || !r.Succeeded {
		return c.CreateError(r, nil)
	}
	if strings.TrimSpace(r.Stdout) == "" {
		return New(ExecutionFailed, "CLI produced no output", nil, r, []string{
			"Ensure the analysis tool writes its result to standard output",
			"Run the analysis manually with --format json to inspect its output",
		})
	}
	return nil
}

// ValidateParsing converts a parse failure into a ParseError-category error.
func (c *Classifier) ValidateParsing(r *procbridge.ExecutionResult, parseErr error) error {
	if parseErr == nil {
		return nil
	}
	return c.CreateError(r, parseErr)
}

// IsRecoverable reports whether err is a retryable ClassifiedError.
func IsRecoverable(err error) bool {
	ce, ok := As(err)
	return ok && ce.IsRetryable()
}

// FallbackOptions controls the guidance emitted by Handle.
type FallbackOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

var fallbackGuidance = map[Category]string{
	CliUnavailable:  "CLI is unavailable; run the release analysis manually or skip it for this change",
	Timeout:         "Analysis timed out; retry with a longer timeout or a narrower --since range",
	ParseError:      "Failed to parse CLI output; inspect the raw output and run the analysis manually",
	Transient:       "Analysis hit a temporary failure; it can be retried later",
	Configuration:   "Analysis is misconfigured; fix the reported arguments before retrying",
	ExecutionFailed: "Analysis failed; review its output and run it manually once fixed",
	Unknown:         "Analysis failed unexpectedly; run it manually to investigate",
}

// Handle logs err with its diagnostics and, when fallbacks are enabled,
// category-specific guidance. It always returns err unchanged.
func Handle(logger *slog.Logger, err error, opts FallbackOptions) error {
	if err == nil || logger == nil {
		return err
	}
	ce, ok := As(err)
	if !ok {
		logger.Error("Analysis error", "error", err)
		return err
	}
	logger.Error("Analysis error details",
		"category", string(ce.Category),
		"message", ce.Message,
		"detail", ce.DetailedMessage(),
	)
	if opts.Enabled {
		logger.Warn(fallbackGuidance[ce.Category], "category", string(ce.Category))
	}
	return err
}

func containsAny(s string, tokens []string) bool {
	s = strings.ToLower(s)
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func firstLine(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if i := strings.IndexByte(c, '\n'); i >= 0 {
			return strings.TrimSpace(c[:i])
		}
		return c
	}
	return "no diagnostic output"
}
