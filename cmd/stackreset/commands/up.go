package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackreset/stackreset/pkg/orchestrator"
)

func newUpCommand() *cobra.Command {
	var noBuild bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Build and start the environment's services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			defer a.Close(ctx)

			opts := orchestrator.RebuildOptions{
				ForceBuild: !noBuild,
				Detached:   true,
			}
			if err := a.runtime.Rebuild(ctx, a.manifest.Environment, opts); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Environment %q is up\n", a.manifest.Environment)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBuild, "no-build", false, "reuse existing images instead of rebuilding")
	return cmd
}
