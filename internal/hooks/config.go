package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config controls hook behaviour. It is stored in .relkit/hooks.toml.
type Config struct {
	// Enabled turns every hook into a no-op when false.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// QuickMode asks the analysis tool for a faster, shallower pass.
	QuickMode bool `toml:"quick_mode" json:"quickMode" yaml:"quickMode"`

	// TimeoutSeconds bounds one analysis run started from a hook.
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeoutSeconds" yaml:"timeoutSeconds"`

	// FailSilently reports success to the hook caller even when the
	// automation failed, so the developer workflow is never blocked.
	FailSilently bool `toml:"fail_silently" json:"failSilently" yaml:"failSilently"`

	// CacheResults stores analysis output in the journal.
	CacheResults bool `toml:"cache_results" json:"cacheResults" yaml:"cacheResults"`

	// TriggerPaths are directories whose completion documents trigger an
	// analysis when they change.
	TriggerPaths []string `toml:"trigger_paths" json:"triggerPaths" yaml:"triggerPaths"`

	// SkipBranches never trigger an analysis.
	SkipBranches []string `toml:"skip_branches,omitempty" json:"skipBranches,omitempty" yaml:"skipBranches,omitempty"`

	// CommitMarkers are words in a commit message that trigger an analysis.
	CommitMarkers []string `toml:"commit_markers" json:"commitMarkers" yaml:"commitMarkers"`
}

// DefaultConfig returns the configuration used when no hooks.toml exists.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		QuickMode:      true,
		TimeoutSeconds: 10,
		FailSilently:   true,
		CacheResults:   true,
		TriggerPaths:   []string{".kiro/specs", "docs/specs"},
		CommitMarkers:  []string{"completion", "complete", "completed", "release"},
	}
}

// Timeout returns TimeoutSeconds as a duration; zero means no hook bound.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse hook config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create hook config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode hook config: %w", err)
	}
	return nil
}
