// Package hooks turns source-control hook events into guarded release
// analysis steps and reports a uniform result back to the hook caller.
package hooks

import (
	"encoding/json"
	"time"
)

// CommitEvent describes a commit reported by a post-commit hook.
type CommitEvent struct {
	Message      string    `json:"message"`
	Revision     string    `json:"revision"`
	ChangedFiles []string  `json:"changedFiles"`
	Timestamp    time.Time `json:"timestamp"`
	Branch       string    `json:"branch"`
}

// OrganizedFile is one file moved by a file-organization pass.
type OrganizedFile struct {
	OriginalPath string            `json:"originalPath"`
	NewPath      string            `json:"newPath"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// OrganizationEvent describes a completed file-organization pass.
type OrganizationEvent struct {
	Entries []OrganizedFile `json:"entries"`
	Trigger string          `json:"trigger"`
}

// HookResult is returned to every hook caller.
type HookResult struct {
	Success       bool          `json:"success" yaml:"success"`
	HookName      string        `json:"hookName" yaml:"hookName"`
	ExecutionTime time.Duration `json:"executionTime" yaml:"executionTime"`
	Output        string        `json:"output,omitempty" yaml:"output,omitempty"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// MarshalJSON reports ExecutionTime in milliseconds.
func (r HookResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Success       bool   `json:"success"`
		HookName      string `json:"hookName"`
		ExecutionTime int64  `json:"executionTime"`
		Output        string `json:"output,omitempty"`
		Error         string `json:"error,omitempty"`
	}
	return json.Marshal(wire{
		Success:       r.Success,
		HookName:      r.HookName,
		ExecutionTime: r.ExecutionTime.Milliseconds(),
		Output:        r.Output,
		Error:         r.Error,
	})
}
