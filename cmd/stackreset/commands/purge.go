package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPurgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the environment's state directories",
		Long: `Purge deletes the manifest's state paths, in order, without touching the
running environment. The same policy gate that guards a full reset
guards purge: a denied request deletes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			defer a.Close(ctx)

			req := a.manifest.Request()
			if err := a.gate.CheckPurge(ctx, req.EnvironmentID, req.StatePaths); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			for _, path := range req.StatePaths {
				if err := a.store.RemovePath(ctx, path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: failed to purge %s: %v\n", path, err)
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", path)
			}
			return nil
		},
	}

	return cmd
}
