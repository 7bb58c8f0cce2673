package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relkit/internal/config"
	"relkit/internal/hooks"
	"relkit/internal/paths"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage relkit configuration",
	Long:  "View and manage relkit configuration stored in .relkit/config.json and .relkit/hooks.toml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default configuration files",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after applying defaults, the config file, and
RELKIT_* environment overrides (for example RELKIT_ANALYZER_TIMEOUTMS=60000).`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing files")
	configShowCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, yaml)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the response format for config show
type ConfigShowResponse struct {
	ConfigPath string         `json:"configPath" yaml:"configPath"`
	FileExists bool           `json:"fileExists" yaml:"fileExists"`
	Config     *config.Config `json:"config" yaml:"config"`
	Hooks      hooks.Config   `json:"hooks" yaml:"hooks"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	hcfg, err := hooks.LoadConfig(paths.HooksConfigPath(a.repoRoot))
	if err != nil {
		return err
	}
	resp := &ConfigShowResponse{
		ConfigPath: paths.ConfigPath(a.repoRoot),
		FileExists: fileExists(paths.ConfigPath(a.repoRoot)),
		Config:     a.cfg,
		Hooks:      hcfg,
	}
	return printResponse(cmd, resp, configFormat)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root := repoFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = paths.FindRepoRoot(wd)
	}

	out := cmd.OutOrStdout()
	cfgPath := paths.ConfigPath(root)
	if fileExists(cfgPath) && !configForce {
		fmt.Fprintf(out, "%s %s already exists (use --force to overwrite)\n", yellow("!"), cfgPath)
	} else {
		if err := config.DefaultConfig().Save(root); err != nil {
			return fmt.Errorf("failed to write %s: %w", cfgPath, err)
		}
		fmt.Fprintf(out, "%s Wrote %s\n", green("✓"), cfgPath)
	}

	hooksPath := paths.HooksConfigPath(root)
	if fileExists(hooksPath) && !configForce {
		fmt.Fprintf(out, "%s %s already exists (use --force to overwrite)\n", yellow("!"), hooksPath)
		return nil
	}
	if err := hooks.DefaultConfig().Save(hooksPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", hooksPath, err)
	}
	fmt.Fprintf(out, "%s Wrote %s\n", green("✓"), hooksPath)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
