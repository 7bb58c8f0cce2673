package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"relkit/internal/paths"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Analyzer.Command != "npm" {
		t.Errorf("Analyzer.Command = %q, want %q", cfg.Analyzer.Command, "npm")
	}
	if got := cfg.AnalyzerTimeout(); got != 5*time.Minute {
		t.Errorf("AnalyzerTimeout() = %v, want 5m", got)
	}
	if got := cfg.AnalyzerGrace(); got != 5*time.Second {
		t.Errorf("AnalyzerGrace() = %v, want 5s", got)
	}
	if cfg.Analyzer.UsageExitCode != 64 {
		t.Errorf("UsageExitCode = %d, want 64", cfg.Analyzer.UsageExitCode)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.InitialDelay() != time.Second || cfg.MaxDelay() != 10*time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.StuckThreshold() != 5*time.Minute {
		t.Errorf("StuckThreshold() = %v, want 5m", cfg.StuckThreshold())
	}
	if cfg.Retention() != 30*24*time.Hour {
		t.Errorf("Retention() = %v, want 720h", cfg.Retention())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Analyzer.TimeoutMs != def.Analyzer.TimeoutMs {
		t.Errorf("TimeoutMs = %d, want %d", cfg.Analyzer.TimeoutMs, def.Analyzer.TimeoutMs)
	}
	if len(cfg.Analyzer.BaseArgs) != len(def.Analyzer.BaseArgs) {
		t.Errorf("BaseArgs = %v, want %v", cfg.Analyzer.BaseArgs, def.Analyzer.BaseArgs)
	}
	if cfg.Retry.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2", cfg.Retry.BackoffMultiplier)
	}
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Analyzer.Command = "release-tool"
	cfg.Analyzer.BaseArgs = []string{"analyze"}
	cfg.Retry.MaxAttempts = 5
	cfg.Logging.Level = "debug"
	cfg.Journal.Enabled = false

	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(paths.ConfigPath(root)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Analyzer.Command != "release-tool" {
		t.Errorf("Command = %q, want %q", loaded.Analyzer.Command, "release-tool")
	}
	if len(loaded.Analyzer.BaseArgs) != 1 || loaded.Analyzer.BaseArgs[0] != "analyze" {
		t.Errorf("BaseArgs = %v, want [analyze]", loaded.Analyzer.BaseArgs)
	}
	if loaded.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", loaded.Retry.MaxAttempts)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", loaded.Logging.Level)
	}
	if loaded.Journal.Enabled {
		t.Error("Journal.Enabled should round-trip as false")
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(paths.Dir(root), 0o755); err != nil {
		t.Fatal(err)
	}
	partial := `{"version": 1, "analyzer": {"timeoutMs": 1500}}`
	if err := os.WriteFile(filepath.Join(paths.Dir(root), "config.json"), []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Analyzer.TimeoutMs != 1500 {
		t.Errorf("TimeoutMs = %d, want 1500", cfg.Analyzer.TimeoutMs)
	}
	if cfg.Analyzer.Command != "npm" {
		t.Errorf("Command = %q, want default npm", cfg.Analyzer.Command)
	}
	if cfg.Workflow.StuckThresholdMs != 300000 {
		t.Errorf("StuckThresholdMs = %d, want default", cfg.Workflow.StuckThresholdMs)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("RELKIT_ANALYZER_TIMEOUTMS", "2500")
	t.Setenv("RELKIT_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Analyzer.TimeoutMs != 2500 {
		t.Errorf("TimeoutMs = %d, want 2500", cfg.Analyzer.TimeoutMs)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(paths.Dir(root), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.ConfigPath(root), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(root); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unsupported version", func(c *Config) { c.Version = 7 }, "version"},
		{"missing command", func(c *Config) { c.Analyzer.Command = "" }, "analyzer.command"},
		{"zero timeout", func(c *Config) { c.Analyzer.TimeoutMs = 0 }, "analyzer.timeoutMs"},
		{"usage code out of range", func(c *Config) { c.Analyzer.UsageExitCode = 300 }, "analyzer.usageExitCode"},
		{"no attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.maxAttempts"},
		{"multiplier below one", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }, "retry.backoffMultiplier"},
		{"max delay below initial", func(c *Config) { c.Retry.MaxDelayMs = 10 }, "retry.maxDelayMs"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero retention", func(c *Config) { c.Journal.RetentionDays = 0 }, "journal.retentionDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ce *ConfigError
			if !stderrors.As(err, &ce) {
				t.Fatalf("error type = %T, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
			if ce.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "retry.maxAttempts", Message: "value 0 must be at least 1"}
	want := "config error in field 'retry.maxAttempts': value 0 must be at least 1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestMetricsTextfile(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "repo")
	abs := filepath.Join(string(filepath.Separator), "var", "lib", "node_exporter", "relkit.prom")

	tests := []struct {
		textfile string
		want     string
	}{
		{"", paths.MetricsPath(root)},
		{"out/relkit.prom", filepath.Join(root, "out", "relkit.prom")},
		{abs, abs},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Metrics.Textfile = tt.textfile
		if got := cfg.MetricsTextfile(root); got != tt.want {
			t.Errorf("MetricsTextfile(%q) = %q, want %q", tt.textfile, got, tt.want)
		}
	}
}
