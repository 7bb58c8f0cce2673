package workflow

import (
	"context"
	"fmt"
	"os"
	"time"
)

// HealthReport describes the persisted workflow state.
type HealthReport struct {
	Healthy         bool     `json:"healthy" yaml:"healthy"`
	StateFileExists bool     `json:"stateFileExists" yaml:"stateFileExists"`
	LogFileExists   bool     `json:"logFileExists" yaml:"logFileExists"`
	CurrentState    *State   `json:"currentState" yaml:"currentState"`
	Issues          []string `json:"issues" yaml:"issues"`
}

// Health inspects the marker. An absent marker is the idle state; a marker
// older than the stuck threshold, or one that cannot be read, is an issue.
func (g *Guard) Health(_ context.Context) HealthReport {
	report := HealthReport{Issues: []string{}}
	if g.logPath != "" {
		if _, err := os.Stat(g.logPath); err == nil {
			report.LogFileExists = true
		}
	}
	if g.store == nil {
		report.Healthy = true
		return report
	}

	st, err := g.store.Load()
	switch {
	case err != nil:
		report.StateFileExists = true
		report.Issues = append(report.Issues, fmt.Sprintf("Workflow state could not be read: %v", err))
	case st != nil:
		report.StateFileExists = true
		report.CurrentState = st
		if age := st.Age(g.now()); st.InProgress && age > g.stuckThreshold {
			report.Issues = append(report.Issues, fmt.Sprintf(
				"Operation '%s' has been in progress for %s (threshold %s)",
				st.Operation, age.Round(time.Second), g.stuckThreshold))
		}
	}
	report.Healthy = len(report.Issues) == 0
	return report
}

// RecoveryResult reports the outcome of Recover.
type RecoveryResult struct {
	Recovered bool   `json:"recovered" yaml:"recovered"`
	Message   string `json:"message" yaml:"message"`
}

// Recover removes a leftover in-progress marker.
func (g *Guard) Recover(_ context.Context) RecoveryResult {
	if g.store == nil {
		return RecoveryResult{Recovered: true, Message: "No recovery needed: no state store configured"}
	}
	st, loadErr := g.store.Load()
	if loadErr == nil && st == nil {
		return RecoveryResult{Recovered: true, Message: "No recovery needed: no operation in progress"}
	}
	if err := g.store.Clear(); err != nil {
		return RecoveryResult{Recovered: false, Message: fmt.Sprintf("Failed to clear workflow state: %v", err)}
	}
	if st == nil {
		g.logger.Warn("Removed unreadable workflow state", "error", loadErr.Error())
		return RecoveryResult{Recovered: true, Message: "Recovered from unreadable workflow state"}
	}
	g.logger.Warn("Recovered from stuck operation", "operation", st.Operation, "startTime", st.StartTime)
	return RecoveryResult{Recovered: true, Message: fmt.Sprintf("Recovered from stuck operation: %s", st.Operation)}
}

// TransparencyReport tallies operations by kind.
type TransparencyReport struct {
	OperationsExecuted    int      `json:"operationsExecuted" yaml:"operationsExecuted"`
	TransparentOperations int      `json:"transparentOperations" yaml:"transparentOperations"`
	DisruptiveOperations  int      `json:"disruptiveOperations" yaml:"disruptiveOperations"`
	Disruptive            []string `json:"disruptive,omitempty" yaml:"disruptive,omitempty"`
	WorkflowPreserved     bool     `json:"workflowPreserved" yaml:"workflowPreserved"`
}

// Report classifies names; the batch preserves the workflow only when none
// of them is disruptive.
func Report(names []string) TransparencyReport {
	r := TransparencyReport{OperationsExecuted: len(names)}
	for _, name := range names {
		if IsTransparent(name) {
			r.TransparentOperations++
		} else {
			r.DisruptiveOperations++
			r.Disruptive = append(r.Disruptive, name)
		}
	}
	r.WorkflowPreserved = r.DisruptiveOperations == 0
	return r
}
