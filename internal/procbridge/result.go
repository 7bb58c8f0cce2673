package procbridge

import "time"

// ExecutionResult is the outcome of a single child-process run. It is
// built once by Execute and never modified afterwards.
type ExecutionResult struct {
	Succeeded bool   `json:"succeeded"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	// ExitCode is nil when the process never started or was killed by a
	// signal before reporting a code.
	ExitCode   *int   `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	TimedOut   bool   `json:"timedOut"`
	Error      string `json:"error,omitempty"`
}

// Duration returns the wall-clock run time.
func (r *ExecutionResult) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// Code returns the exit code and whether one was recorded.
func (r *ExecutionResult) Code() (int, bool) {
	if r == nil || r.ExitCode == nil {
		return 0, false
	}
	return *r.ExitCode, true
}

func intPtr(v int) *int { return &v }
