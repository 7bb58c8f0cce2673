// Package paths resolves the well-known locations relkit keeps under a
// repository's .relkit directory.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DirName is the per-repository state directory.
	DirName = ".relkit"

	ConfigFile          = "config.json"
	HooksConfigFile     = "hooks.toml"
	WorkflowStateFile   = "workflow-state.json"
	WorkflowLockFile    = "workflow-state.lock"
	PreservationLogFile = "workflow-preservation.log"
	JournalFile         = "journal.db"
	LogsDirName         = "logs"
	TriggersDirName     = "triggers"
	MetricsDirName      = "metrics"
	MetricsFile         = "relkit.prom"
)

// Dir returns <repoRoot>/.relkit.
func Dir(repoRoot string) string {
	return filepath.Join(repoRoot, DirName)
}

// LogsDir returns <repoRoot>/.relkit/logs.
func LogsDir(repoRoot string) string {
	return filepath.Join(Dir(repoRoot), LogsDirName)
}

// TriggersDir returns <repoRoot>/.relkit/triggers.
func TriggersDir(repoRoot string) string {
	return filepath.Join(Dir(repoRoot), TriggersDirName)
}

func ConfigPath(repoRoot string) string        { return filepath.Join(Dir(repoRoot), ConfigFile) }
func HooksConfigPath(repoRoot string) string   { return filepath.Join(Dir(repoRoot), HooksConfigFile) }
func WorkflowStatePath(repoRoot string) string { return filepath.Join(Dir(repoRoot), WorkflowStateFile) }
func WorkflowLockPath(repoRoot string) string  { return filepath.Join(Dir(repoRoot), WorkflowLockFile) }
func JournalPath(repoRoot string) string       { return filepath.Join(Dir(repoRoot), JournalFile) }

// PreservationLogPath is where disruptive workflow operations are recorded.
func PreservationLogPath(repoRoot string) string {
	return filepath.Join(LogsDir(repoRoot), PreservationLogFile)
}

// MetricsPath is the node_exporter textfile relkit rewrites after each run.
func MetricsPath(repoRoot string) string {
	return filepath.Join(Dir(repoRoot), MetricsDirName, MetricsFile)
}

// EnsureDir creates dir (and parents) and returns it.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// FindRepoRoot walks up from start looking for a .git or .relkit entry.
// It returns start itself when neither is found.
func FindRepoRoot(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for dir := abs; ; {
		for _, marker := range []string{".git", DirName} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		dir = parent
	}
}

// CanonicalizePath converts an absolute path into a slash-separated path
// relative to repoRoot, resolving symlinks where the target exists.
func CanonicalizePath(absolutePath, repoRoot string) (string, error) {
	resolved, err := evalIfExists(absolutePath)
	if err != nil {
		return "", err
	}
	root, err := evalIfExists(repoRoot)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func evalIfExists(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if os.IsNotExist(err) {
		return p, nil
	}
	return resolved, err
}

// NormalizePath converts separators to forward slashes and strips a
// leading "./".
func NormalizePath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(p), "./")
}

// IsWithinRepo reports whether path resolves inside repoRoot.
func IsWithinRepo(path, repoRoot string) bool {
	canonical, err := CanonicalizePath(path, repoRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}
