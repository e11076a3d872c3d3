package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackreset/stackreset/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest and evaluate purge policies",
		Long: `Validate loads the manifest, checks it against the schema, and evaluates
the purge policies against the reset it describes, without running
anything. With --watch it re-evaluates whenever a policy file changes.`,
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
			evaluate := func() (*policy.Result, error) {
				return a.gate.Evaluate(ctx, &policy.Input{
					Environment: req.EnvironmentID,
					Paths:       req.StatePaths,
				})
			}

			if watch && len(a.manifest.PolicyPaths) > 0 {
				return watchPolicies(cmd, a, evaluate)
			}

			result, err := evaluate()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Manifest OK: environment %q, %d state path(s), rebuild=%t\n",
					req.EnvironmentID, len(req.StatePaths), req.Rebuild)
				for _, v := range result.Violations {
					fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s: %s", v.Severity, v.Policy, v.Message)
					if v.Path != "" {
						fmt.Fprintf(cmd.OutOrStdout(), " (%s)", v.Path)
					}
					fmt.Fprintln(cmd.OutOrStdout())
				}
			}

			if !result.Allowed {
				err := fmt.Errorf("a reset of this manifest would be blocked by policy")
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-evaluate policies when their files change")
	return cmd
}

// watchPolicies re-evaluates the manifest whenever a policy file
// changes, until the command is interrupted.
func watchPolicies(cmd *cobra.Command, a *app, evaluate func() (*policy.Result, error)) error {
	ctx := cmd.Context()

	report := func() {
		result, err := evaluate()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return
		}
		status := "allowed"
		if !result.Allowed {
			status = "blocked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d violation(s)\n", status, len(result.Violations))
	}

	paths := make([]string, len(a.manifest.PolicyPaths))
	for i, p := range a.manifest.PolicyPaths {
		paths[i] = a.manifest.ResolveLocal(p)
	}

	loader := policy.NewLoader(a.logger)
	err := loader.Watch(ctx, paths, func(policies []policy.Policy) error {
		if err := a.gate.Reload(policies); err != nil {
			return err
		}
		report()
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = loader.StopWatching() }()

	report()
	<-ctx.Done()
	return nil
}
