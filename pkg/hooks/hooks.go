// Package hooks runs user-supplied Starlark scripts around reset
// phases. A script receives the reset request as predeclared values and
// may set a top-level `abort = True` (with an optional `reason`) to
// stop the reset before any destructive call.
package hooks

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ErrAborted is wrapped into the error returned when a hook script sets
// abort = True.
var ErrAborted = fmt.Errorf("hook aborted the reset")

// Config names the scripts run for each lifecycle hook. Empty entries
// disable the hook.
type Config struct {
	PreTeardown string
	PostPurge   string
	PostRebuild string
}

// Runner evaluates hook scripts under a timeout.
type Runner struct {
	scripts map[string]string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRunner creates a hook runner. A zero timeout defaults to 30s.
func NewRunner(cfg Config, timeout time.Duration, logger zerolog.Logger) *Runner {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	scripts := map[string]string{}
	if cfg.PreTeardown != "" {
		scripts["pre_teardown"] = cfg.PreTeardown
	}
	if cfg.PostPurge != "" {
		scripts["post_purge"] = cfg.PostPurge
	}
	if cfg.PostRebuild != "" {
		scripts["post_rebuild"] = cfg.PostRebuild
	}
	return &Runner{
		scripts: scripts,
		timeout: timeout,
		logger:  logger.With().Str("component", "hooks").Logger(),
	}
}

// Run executes the script configured for hook with the given input.
// A hook with no configured script is a no-op.
func (r *Runner) Run(ctx context.Context, hook string, input map[string]interface{}) error {
	scriptPath, ok := r.scripts[hook]
	if !ok {
		return nil
	}

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read hook script %s: %w", scriptPath, err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger := r.logger.With().Str("hook", hook).Logger()
	thread := &starlark.Thread{
		Name: "stackreset-" + hook,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info().Str("script", scriptPath).Msg(msg)
		},
	}

	type evalResult struct {
		globals starlark.StringDict
		err     error
	}
	resultCh := make(chan evalResult, 1)
	go func() {
		globals, err := r.evaluate(thread, scriptPath, string(src), input, hook)
		resultCh <- evalResult{globals, err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("timed out")
		return fmt.Errorf("hook %s timed out after %v", hook, r.timeout)
	case res := <-resultCh:
		if res.err != nil {
			return fmt.Errorf("hook %s failed: %w", hook, res.err)
		}
		return r.checkAbort(hook, res.globals)
	}
}

// evaluate runs the script synchronously on the given thread.
func (r *Runner) evaluate(thread *starlark.Thread, scriptPath, src string, input map[string]interface{}, hook string) (starlark.StringDict, error) {
	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"hook":   starlark.String(hook),
	}
	for key, val := range input {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}

	return starlark.ExecFile(thread, scriptPath, src, predeclared)
}

// checkAbort inspects the script globals for an abort signal.
func (r *Runner) checkAbort(hook string, globals starlark.StringDict) error {
	abortVal, ok := globals["abort"]
	if !ok {
		return nil
	}
	if abort, ok := abortVal.(starlark.Bool); !ok || !bool(abort) {
		return nil
	}

	reason := "no reason given"
	if reasonVal, ok := globals["reason"].(starlark.String); ok {
		reason = string(reasonVal)
	}
	return fmt.Errorf("%w: %s (hook %s)", ErrAborted, reason, hook)
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			starlarkVal, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
