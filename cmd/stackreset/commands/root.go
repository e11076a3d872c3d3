package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	manifestPath string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackreset",
		Short: "StackReset - environment lifecycle reset orchestrator",
		Long: `StackReset tears down, purges, and rebuilds containerized development
environments as one fail-fast sequence.

A reset runs three phases in strict order:
  1. teardown - stop and remove the environment's containers, networks,
     and anonymous volumes
  2. purge    - delete the declared state directories
  3. rebuild  - build images and start all services again

There are no retries and no rollback: a failed phase stops the reset and
the result reports exactly how far it got.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file path (default: discover stackreset.cue/.yaml in cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newResetCommand())
	rootCmd.AddCommand(newDownCommand())
	rootCmd.AddCommand(newPurgeCommand())
	rootCmd.AddCommand(newUpCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
