package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackreset/stackreset/pkg/orchestrator"
)

func newDownCommand() *cobra.Command {
	var keepVolumes bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Tear down the environment without purging state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			defer a.Close(ctx)

			opts := orchestrator.TeardownOptions{
				RemoveVolumes: !keepVolumes,
				RemoveOrphans: true,
			}
			if err := a.runtime.Teardown(ctx, a.manifest.Environment, opts); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Environment %q torn down\n", a.manifest.Environment)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepVolumes, "keep-volumes", false, "keep anonymous volumes")
	return cmd
}
