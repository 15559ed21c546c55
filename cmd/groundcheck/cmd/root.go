// Package cmd provides the CLI commands for groundcheck.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groundcheck-ai/groundcheck/internal/config"
	"github.com/groundcheck-ai/groundcheck/pkg/version"
)

var configPath string

// NewRootCmd creates the root command for the groundcheck CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groundcheck",
		Short: "Reliability-aware retrieval-augmented question answering",
		Long: `Groundcheck answers questions over an ingested document corpus and
refuses to bluff: every answer passes retrieval-quality scoring and
groundedness verification before it reaches the caller, and weak
evidence produces a caveated or abstained response instead.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("groundcheck version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
