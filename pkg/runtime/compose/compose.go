// Package compose implements the EnvironmentRuntime contract on top of
// the docker compose CLI. Each operation is one blocking subprocess
// invocation; cancellation is delegated to the command's context.
package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stackreset/stackreset/pkg/orchestrator"
)

// RuntimeError wraps a failed compose invocation with enough context to
// diagnose it: the operation, the command line, and trailing stderr.
type RuntimeError struct {
	Op     string
	Cmd    string
	Stderr string
	Err    error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("compose %s failed (%s): %v: %s", e.Op, e.Cmd, e.Err, e.Stderr)
	}
	return fmt.Sprintf("compose %s failed (%s): %v", e.Op, e.Cmd, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// commandRunner abstracts subprocess execution so tests can intercept
// the exact command line.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stderr string, err error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Config configures a compose runtime.
type Config struct {
	// Binary is the container CLI to invoke. Defaults to "docker".
	Binary string

	// ComposeFile is an explicit compose file path. Empty means compose
	// discovers the file itself.
	ComposeFile string

	// ProjectDirectory is passed as --project-directory when set.
	ProjectDirectory string

	// Logger receives command-level debug events.
	Logger zerolog.Logger
}

// Runtime shells out to docker compose. It implements
// orchestrator.EnvironmentRuntime.
type Runtime struct {
	binary     string
	file       string
	projectDir string
	runner     commandRunner
	logger     zerolog.Logger
}

// New creates a compose runtime.
func New(cfg Config) *Runtime {
	binary := cfg.Binary
	if binary == "" {
		binary = "docker"
	}
	return &Runtime{
		binary:     binary,
		file:       cfg.ComposeFile,
		projectDir: cfg.ProjectDirectory,
		runner:     execRunner{},
		logger:     cfg.Logger.With().Str("component", "compose-runtime").Logger(),
	}
}

// Teardown stops and removes all resources for the environment's
// compose project, including resources from a stale project shape.
func (r *Runtime) Teardown(ctx context.Context, environmentID string, opts orchestrator.TeardownOptions) error {
	args := r.baseArgs(environmentID)
	args = append(args, "down")
	if opts.RemoveVolumes {
		args = append(args, "--volumes")
	}
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	return r.run(ctx, "down", args)
}

// Rebuild builds and starts all declared services for the environment.
func (r *Runtime) Rebuild(ctx context.Context, environmentID string, opts orchestrator.RebuildOptions) error {
	args := r.baseArgs(environmentID)
	args = append(args, "up")
	if opts.Detached {
		args = append(args, "-d")
	}
	if opts.ForceBuild {
		args = append(args, "--build")
	}
	return r.run(ctx, "up", args)
}

// baseArgs builds the shared compose prefix for a project.
func (r *Runtime) baseArgs(environmentID string) []string {
	args := []string{"compose", "-p", environmentID}
	if r.file != "" {
		args = append(args, "-f", r.file)
	}
	if r.projectDir != "" {
		args = append(args, "--project-directory", r.projectDir)
	}
	return args
}

func (r *Runtime) run(ctx context.Context, op string, args []string) error {
	cmdline := r.binary + " " + strings.Join(args, " ")
	r.logger.Debug().Str("cmd", cmdline).Msg("running compose command")

	stderr, err := r.runner.Run(ctx, r.binary, args...)
	if err == nil {
		return nil
	}

	// A missing binary means the orchestration tool is not installed at
	// all; surface it before compose-specific detail.
	if errors.Is(err, exec.ErrNotFound) {
		err = fmt.Errorf("%s not found in PATH: %w", r.binary, err)
	}

	return &RuntimeError{
		Op:     op,
		Cmd:    cmdline,
		Stderr: tail(stderr, 4),
		Err:    err,
	}
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}
