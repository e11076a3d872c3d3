package orchestrator

import "context"

// TeardownOptions control how runtime resources are removed.
type TeardownOptions struct {
	// RemoveVolumes removes anonymous volumes declared by services.
	RemoveVolumes bool `json:"remove_volumes"`

	// RemoveOrphans removes resources left over from a prior,
	// differently-shaped environment definition.
	RemoveOrphans bool `json:"remove_orphans"`
}

// RebuildOptions control how services are re-created.
type RebuildOptions struct {
	// ForceBuild rebuilds images instead of reusing cached layers.
	ForceBuild bool `json:"force_build"`

	// Detached starts services in the background.
	Detached bool `json:"detached"`
}

// EnvironmentRuntime starts, stops, and rebuilds the declared set of
// services for an environment. Implementations block until the
// underlying operation returns; both calls may take seconds to minutes.
type EnvironmentRuntime interface {
	// Teardown stops and removes all resources (containers, networks,
	// anonymous volumes) associated with the environment, including
	// resources that are not currently running.
	Teardown(ctx context.Context, environmentID string, opts TeardownOptions) error

	// Rebuild builds and starts all declared services for the environment.
	Rebuild(ctx context.Context, environmentID string, opts RebuildOptions) error
}

// StateStore deletes named on-disk locations holding service-persisted
// data. RemovePath must be idempotent: a missing path is success.
type StateStore interface {
	RemovePath(ctx context.Context, path string) error
}

// PurgeGate decides whether the requested state paths may be purged at
// all. It runs before teardown so that a denial leaves the environment
// untouched.
type PurgeGate interface {
	CheckPurge(ctx context.Context, environmentID string, paths []string) error
}

// Hook names passed to a Hooks runner.
const (
	HookPreTeardown = "pre_teardown"
	HookPostPurge   = "post_purge"
	HookPostRebuild = "post_rebuild"
)

// Hooks runs user-supplied lifecycle scripts. A pre-teardown error
// aborts the reset before any destructive call; post-phase errors are
// logged but do not fail the run.
type Hooks interface {
	Run(ctx context.Context, hook string, input map[string]interface{}) error
}

// Recorder persists reset runs for later inspection. Recording is
// best-effort: implementations report errors, but the orchestrator
// never fails a reset because of them.
type Recorder interface {
	RecordStart(ctx context.Context, resetID string, req ResetRequest) error
	RecordPhase(ctx context.Context, resetID string, phase Phase, message string) error
	RecordResult(ctx context.Context, resetID string, result ResetResult) error
}
