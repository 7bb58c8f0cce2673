// Package workflow guards automated release steps so that their failures
// never block the developer workflow they are attached to.
package workflow

import (
	"strings"
	"unicode"
)

// OperationKind tags a guarded operation. Free-text operation names are
// reduced to a kind once, at the boundary, by KindOf.
type OperationKind int

const (
	Unknown OperationKind = iota
	Detection
	TriggerCreation
	Logging
	StateTracking
	AnalysisExecution
	PackageUpdate
	ChangelogUpdate
	Commit
	Push
	TagRelease
)

var kindNames = map[OperationKind]string{
	Unknown:           "unknown",
	Detection:         "detection",
	TriggerCreation:   "trigger-creation",
	Logging:           "logging",
	StateTracking:     "state-tracking",
	AnalysisExecution: "analysis-execution",
	PackageUpdate:     "package-update",
	ChangelogUpdate:   "changelog-update",
	Commit:            "commit",
	Push:              "push",
	TagRelease:        "tag-release",
}

func (k OperationKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// Transparent reports whether the kind can run without disturbing the
// outer workflow.
func (k OperationKind) Transparent() bool {
	switch k {
	case Detection, TriggerCreation, Logging, StateTracking, AnalysisExecution:
		return true
	default:
		return false
	}
}

// kindTokens is checked in order; transparent kinds come first so that
// "release-detection" is detection rather than a release.
var kindTokens = []struct {
	kind   OperationKind
	tokens []string
}{
	{Detection, []string{"detection", "detect"}},
	{TriggerCreation, []string{"trigger", "triggers"}},
	{Logging, []string{"log", "logging", "logs"}},
	{StateTracking, []string{"state", "tracking"}},
	{AnalysisExecution, []string{"analysis", "analyze"}},
	{PackageUpdate, []string{"package", "packages"}},
	{ChangelogUpdate, []string{"changelog"}},
	{Commit, []string{"commit"}},
	{Push, []string{"push"}},
	{TagRelease, []string{"tag", "release", "publish"}},
}

// KindOf maps an operation name such as "release-detection" or "git-push"
// to its kind by whole-word tokens.
func KindOf(name string) OperationKind {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	for _, kt := range kindTokens {
		for _, tok := range kt.tokens {
			if set[tok] {
				return kt.kind
			}
		}
	}
	return Unknown
}

// IsTransparent reports whether the named operation is transparent.
func IsTransparent(name string) bool {
	return KindOf(name).Transparent()
}
