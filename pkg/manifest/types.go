package manifest

import (
	"path/filepath"

	"github.com/stackreset/stackreset/pkg/orchestrator"
	"github.com/stackreset/stackreset/pkg/statestore"
)

// Manifest declares one resettable environment.
type Manifest struct {
	// Environment is the compose project name the runtime acts on.
	Environment string `json:"environment" yaml:"environment" validate:"required,lowercase"`

	// ComposeFile is an explicit compose file path, relative to the
	// manifest directory. Empty means compose discovers it.
	ComposeFile string `json:"compose_file,omitempty" yaml:"compose_file,omitempty"`

	// StatePaths are the state directories purged on reset, in order,
	// relative to the manifest directory unless absolute.
	StatePaths []string `json:"state_paths" yaml:"state_paths" validate:"dive,required"`

	// Rebuild controls whether services are re-created after purge.
	// Unset means true.
	Rebuild *bool `json:"rebuild,omitempty" yaml:"rebuild,omitempty"`

	// Remote, when set, purges state paths on a remote host over SFTP
	// instead of the local filesystem.
	Remote *statestore.RemoteConfig `json:"remote,omitempty" yaml:"remote,omitempty"`

	// Hooks are optional Starlark lifecycle scripts.
	Hooks HooksConfig `json:"hooks,omitempty" yaml:"hooks,omitempty"`

	// PolicyPaths are extra Rego policy files or directories loaded
	// into the purge gate.
	PolicyPaths []string `json:"policy_paths,omitempty" yaml:"policy_paths,omitempty"`

	// HistoryDB is the SQLite file recording reset runs. Empty disables
	// history.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty"`

	// BaseDir is the directory the manifest was loaded from; relative
	// paths resolve against it. Set by the loader, not the file.
	BaseDir string `json:"-" yaml:"-"`
}

// HooksConfig names the Starlark scripts run around reset phases.
type HooksConfig struct {
	PreTeardown string `json:"pre_teardown,omitempty" yaml:"pre_teardown,omitempty"`
	PostPurge   string `json:"post_purge,omitempty" yaml:"post_purge,omitempty"`
	PostRebuild string `json:"post_rebuild,omitempty" yaml:"post_rebuild,omitempty"`
}

// Default returns the built-in manifest used when no manifest file is
// present: the conventional core environment with its data and log
// directories, rebuilt on every reset.
func Default(baseDir string) *Manifest {
	rebuild := true
	return &Manifest{
		Environment: "core",
		StatePaths:  []string{"core-data", "core-logs"},
		Rebuild:     &rebuild,
		BaseDir:     baseDir,
	}
}

// Request builds the ResetRequest this manifest describes, with state
// paths resolved against the manifest directory.
func (m *Manifest) Request() orchestrator.ResetRequest {
	paths := make([]string, len(m.StatePaths))
	for i, p := range m.StatePaths {
		paths[i] = m.ResolvePath(p)
	}
	rebuild := true
	if m.Rebuild != nil {
		rebuild = *m.Rebuild
	}
	return orchestrator.ResetRequest{
		EnvironmentID: m.Environment,
		StatePaths:    paths,
		Rebuild:       rebuild,
	}
}

// ResolvePath resolves p against the manifest directory. Paths purged
// on a remote host are left untouched; they are remote-absolute.
func (m *Manifest) ResolvePath(p string) string {
	if m.Remote != nil || filepath.IsAbs(p) || m.BaseDir == "" {
		return p
	}
	return filepath.Join(m.BaseDir, p)
}

// ResolveLocal resolves p against the manifest directory regardless of
// the remote setting; used for compose files, hooks, and policies,
// which always live next to the manifest.
func (m *Manifest) ResolveLocal(p string) string {
	if p == "" || filepath.IsAbs(p) || m.BaseDir == "" {
		return p
	}
	return filepath.Join(m.BaseDir, p)
}
