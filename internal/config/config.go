package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"relkit/internal/paths"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// EnvPrefix namespaces environment overrides, e.g. RELKIT_ANALYZER_TIMEOUTMS.
const EnvPrefix = "RELKIT"

// Config represents the complete relkit configuration
type Config struct {
	Version int `json:"version" mapstructure:"version" yaml:"version" validate:"eq=1"`

	Analyzer AnalyzerConfig `json:"analyzer" mapstructure:"analyzer" yaml:"analyzer"`
	Retry    RetryConfig    `json:"retry" mapstructure:"retry" yaml:"retry"`
	Workflow WorkflowConfig `json:"workflow" mapstructure:"workflow" yaml:"workflow"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging" yaml:"logging"`
	Journal  JournalConfig  `json:"journal" mapstructure:"journal" yaml:"journal"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics" yaml:"metrics"`
}

// AnalyzerConfig describes how the external analysis tool is invoked
type AnalyzerConfig struct {
	Command         string   `json:"command" mapstructure:"command" yaml:"command" validate:"required"`
	BaseArgs        []string `json:"baseArgs" mapstructure:"baseArgs" yaml:"baseArgs"`
	Banner          string   `json:"banner" mapstructure:"banner" yaml:"banner"`
	TimeoutMs       int      `json:"timeoutMs" mapstructure:"timeoutMs" yaml:"timeoutMs" validate:"gt=0"`
	GraceMs         int      `json:"graceMs" mapstructure:"graceMs" yaml:"graceMs" validate:"gte=0"`
	UsageExitCode   int      `json:"usageExitCode" mapstructure:"usageExitCode" yaml:"usageExitCode" validate:"gte=1,lte=255"`
	ValidateResults bool     `json:"validateResults" mapstructure:"validateResults" yaml:"validateResults"`
}

// RetryConfig contains backoff settings for analysis attempts
type RetryConfig struct {
	MaxAttempts       int     `json:"maxAttempts" mapstructure:"maxAttempts" yaml:"maxAttempts" validate:"gte=1,lte=10"`
	InitialDelayMs    int     `json:"initialDelayMs" mapstructure:"initialDelayMs" yaml:"initialDelayMs" validate:"gte=0"`
	BackoffMultiplier float64 `json:"backoffMultiplier" mapstructure:"backoffMultiplier" yaml:"backoffMultiplier" validate:"gte=1"`
	MaxDelayMs        int     `json:"maxDelayMs" mapstructure:"maxDelayMs" yaml:"maxDelayMs" validate:"gtefield=InitialDelayMs"`
}

// WorkflowConfig contains workflow guard settings
type WorkflowConfig struct {
	StuckThresholdMs int `json:"stuckThresholdMs" mapstructure:"stuckThresholdMs" yaml:"stuckThresholdMs" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format" yaml:"format" validate:"oneof=human json"`
	Level      string `json:"level" mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize" yaml:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups" yaml:"maxBackups" validate:"gte=0"`
}

// JournalConfig contains hook run journal settings
type JournalConfig struct {
	Enabled       bool `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	RetentionDays int  `json:"retentionDays" mapstructure:"retentionDays" yaml:"retentionDays" validate:"gte=1"`
}

// MetricsConfig controls the Prometheus textfile. An empty Textfile means
// .relkit/metrics/relkit.prom.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Textfile string `json:"textfile" mapstructure:"textfile" yaml:"textfile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Analyzer: AnalyzerConfig{
			Command:         "npm",
			BaseArgs:        []string{"run", "release:analyze", "--"},
			Banner:          "Release Analysis",
			TimeoutMs:       300000,
			GraceMs:         5000,
			UsageExitCode:   64,
			ValidateResults: true,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialDelayMs:    1000,
			BackoffMultiplier: 2.0,
			MaxDelayMs:        10000,
		},
		Workflow: WorkflowConfig{
			StuckThresholdMs: 300000,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
		Journal: JournalConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration from .relkit/config.json. Environment
// variables prefixed with RELKIT_ override file values.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.Dir(repoRoot))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every leaf of def so AutomaticEnv can see the keys
// even when no config file exists.
func setDefaults(v *viper.Viper, def *Config) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	flatten("", tree, v.SetDefault)
	return nil
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			flatten(key, sub, set)
			continue
		}
		set(key, val)
	}
}

// Save writes the configuration to .relkit/config.json
func (c *Config) Save(repoRoot string) error {
	if _, err := paths.EnsureDir(paths.Dir(repoRoot)); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(paths.ConfigPath(repoRoot), append(data, '\n'), 0o644)
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks the configuration against its field constraints and
// reports the first violation.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return &ConfigError{Field: fieldPath(fe), Message: describe(fe)}
}

// fieldPath strips the root type from a namespace like "Config.retry.maxAttempts".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "eq":
		return fmt.Sprintf("unsupported value %v (want %s)", fe.Value(), fe.Param())
	case "oneof":
		return fmt.Sprintf("value %q must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("value %v must be greater than %s", fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("value %v must be at least %s", fe.Value(), fe.Param())
	case "lte":
		return fmt.Sprintf("value %v must be at most %s", fe.Value(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("value %v must not be less than %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// AnalyzerTimeout is the per-run deadline for the analysis tool.
func (c *Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutMs) * time.Millisecond
}

// AnalyzerGrace is how long a timed-out run gets between SIGTERM and SIGKILL.
func (c *Config) AnalyzerGrace() time.Duration {
	return time.Duration(c.Analyzer.GraceMs) * time.Millisecond
}

func (c *Config) InitialDelay() time.Duration {
	return time.Duration(c.Retry.InitialDelayMs) * time.Millisecond
}

func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
}

func (c *Config) StuckThreshold() time.Duration {
	return time.Duration(c.Workflow.StuckThresholdMs) * time.Millisecond
}

// MetricsTextfile resolves the textfile path, relative paths against repoRoot.
func (c *Config) MetricsTextfile(repoRoot string) string {
	switch {
	case c.Metrics.Textfile == "":
		return paths.MetricsPath(repoRoot)
	case filepath.IsAbs(c.Metrics.Textfile):
		return c.Metrics.Textfile
	default:
		return filepath.Join(repoRoot, c.Metrics.Textfile)
	}
}

// Retention is how long journal entries are kept before pruning.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Journal.RetentionDays) * 24 * time.Hour
}
