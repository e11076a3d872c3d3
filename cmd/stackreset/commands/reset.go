package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackreset/stackreset/pkg/orchestrator"
)

func newResetCommand() *cobra.Command {
	var skipRebuild bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Tear down, purge, and rebuild the environment",
		Long: `Reset runs the full lifecycle for the manifest's environment: teardown,
purge, and rebuild, in that order. A failed phase stops the reset; the
output reports the last phase that completed.`,
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
			if skipRebuild {
				req.Rebuild = false
			}

			result := a.orch.Execute(ctx, req)
			return reportResult(cmd, req.EnvironmentID, result)
		},
	}

	cmd.Flags().BoolVar(&skipRebuild, "skip-rebuild", false, "stop after purge; do not re-create services")
	return cmd
}

// resultOutput is the JSON shape of a finished reset.
type resultOutput struct {
	ResetID     string `json:"reset_id"`
	Environment string `json:"environment"`
	Phase       string `json:"phase"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Duration    string `json:"duration"`
}

// reportResult prints the result and returns the reset error, if any,
// so the process exits non-zero on failure.
func reportResult(cmd *cobra.Command, environment string, result orchestrator.ResetResult) error {
	out := resultOutput{
		ResetID:     result.ResetID,
		Environment: environment,
		Phase:       string(result.Phase),
		Status:      "completed",
		Duration:    result.Duration().Round(time.Millisecond).String(),
	}
	if result.Failed() {
		out.Status = "failed"
		out.Error = result.Err.Error()
	}

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else if result.Failed() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Reset failed at phase %q after %s: %v\n", out.Phase, out.Duration, result.Err)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Reset completed (phase %q) in %s\n", out.Phase, out.Duration)
	}

	return result.Err
}
