package workflow

import "testing"

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want OperationKind
	}{
		{"release-detection", Detection},
		{"trigger-creation", TriggerCreation},
		{"log-writing", Logging},
		{"state-tracking", StateTracking},
		{"analysis-execution", AnalysisExecution},
		{"release-analysis", AnalysisExecution},
		{"package-update", PackageUpdate},
		{"changelog-update", ChangelogUpdate},
		{"git-commit", Commit},
		{"git-push", Push},
		{"github-release", TagRelease},
		{"npm-publish", TagRelease},
		{"Release Detection", Detection},
		{"unknown-operation", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.name); got != tt.want {
				t.Errorf("KindOf(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestIsTransparent(t *testing.T) {
	for _, name := range []string{"release-detection", "trigger-creation", "log-writing", "state-tracking", "analysis-execution"} {
		if !IsTransparent(name) {
			t.Errorf("%s should be transparent", name)
		}
	}
	for _, name := range []string{"package-update", "changelog-update", "git-commit", "git-push", "github-release", "npm-publish", "unknown-operation"} {
		if IsTransparent(name) {
			t.Errorf("%s should be disruptive", name)
		}
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name        string
		ops         []string
		transparent int
		disruptive  int
		preserved   bool
	}{
		{"all transparent", []string{"release-detection", "trigger-creation", "log-writing"}, 3, 0, true},
		{"mixed", []string{"release-detection", "package-update", "trigger-creation", "git-commit"}, 2, 2, false},
		{"all disruptive", []string{"package-update", "git-commit", "npm-publish"}, 0, 3, false},
		{"empty", nil, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Report(tt.ops)
			if r.OperationsExecuted != len(tt.ops) {
				t.Errorf("OperationsExecuted = %d, want %d", r.OperationsExecuted, len(tt.ops))
			}
			if r.TransparentOperations != tt.transparent || r.DisruptiveOperations != tt.disruptive {
				t.Errorf("got %d transparent / %d disruptive, want %d / %d",
					r.TransparentOperations, r.DisruptiveOperations, tt.transparent, tt.disruptive)
			}
			if r.WorkflowPreserved != tt.preserved {
				t.Errorf("WorkflowPreserved = %v, want %v", r.WorkflowPreserved, tt.preserved)
			}
		})
	}
}
