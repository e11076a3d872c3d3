package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past resets of this environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			defer a.Close(ctx)

			if a.history == nil {
				err := fmt.Errorf("no history database configured; set history_db in the manifest")
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			records, err := a.history.ListResets(ctx, a.manifest.Environment, limit, 0)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No resets recorded")
				return nil
			}

			for _, r := range records {
				line := fmt.Sprintf("%s  %s  %-9s phase=%s",
					r.StartedAt.Format(time.RFC3339), r.ID, r.Status, r.Phase)
				if r.Error != nil {
					line += "  error=" + *r.Error
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)

				if showEvents {
					events, err := a.history.ListEvents(ctx, r.ID)
					if err != nil {
						return err
					}
					for _, e := range events {
						fmt.Fprintf(cmd.OutOrStdout(), "    %s  %-10s %s\n",
							e.Timestamp.Format(time.RFC3339), e.Phase, e.Message)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of resets to show")
	cmd.Flags().BoolVar(&showEvents, "events", false, "show phase events for each reset")
	return cmd
}
