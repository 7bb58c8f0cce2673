package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var probeFormat string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the analysis tool can be launched",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeFormat, "format", "human", "Output format (human, json, yaml)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newContext()
	defer cancel()

	command, base := a.bridge().Command()
	integ := a.integration()
	resp := &ProbeResponseCLI{
		Command:   strings.TrimSpace(command + " " + strings.Join(base, " ")),
		Available: integ.IsAvailable(ctx),
	}
	if resp.Available {
		resp.Version, _ = integ.Version(ctx)
	}
	if err := printResponse(cmd, resp, probeFormat); err != nil {
		return err
	}
	if !resp.Available {
		return &exitError{code: 1}
	}
	return nil
}
