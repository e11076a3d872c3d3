package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/stackreset/stackreset/pkg/hooks"
	"github.com/stackreset/stackreset/pkg/manifest"
	"github.com/stackreset/stackreset/pkg/orchestrator"
	"github.com/stackreset/stackreset/pkg/policy"
	"github.com/stackreset/stackreset/pkg/runtime/compose"
	"github.com/stackreset/stackreset/pkg/statestore"
	"github.com/stackreset/stackreset/pkg/stores"
	"github.com/stackreset/stackreset/pkg/telemetry"
)

// app bundles the wired collaborators behind one reset invocation.
type app struct {
	manifest *manifest.Manifest
	orch     *orchestrator.Orchestrator
	runtime  *compose.Runtime
	store    orchestrator.StateStore
	gate     *policy.Gate
	logger   zerolog.Logger

	history *stores.SQLiteStore
	remote  *statestore.RemoteStore
	tracer  *telemetry.Tracer
}

// buildApp loads the manifest and wires runtime, store, gate, hooks,
// recorder, and telemetry into an orchestrator.
func buildApp(ctx context.Context) (*app, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, err
	}

	cfg := telemetry.DefaultConfig()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	tl, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	logger := tl.Zerolog()

	metrics, err := telemetry.NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to configure metrics: %w", err)
	}
	tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to configure tracing: %w", err)
	}

	a := &app{manifest: m, logger: logger, tracer: tracer}

	runtime := compose.New(compose.Config{
		ComposeFile:      m.ResolveLocal(m.ComposeFile),
		ProjectDirectory: m.BaseDir,
		Logger:           logger,
	})
	a.runtime = runtime

	var store orchestrator.StateStore
	if m.Remote != nil {
		remote, err := statestore.NewRemoteStore(m.Remote, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure remote state store: %w", err)
		}
		a.remote = remote
		store = remote
	} else {
		store = statestore.NewLocalStore(logger)
	}
	a.store = store

	gate, err := policy.NewGate(logger, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy gate: %w", err)
	}
	if len(m.PolicyPaths) > 0 {
		paths := make([]string, len(m.PolicyPaths))
		for i, p := range m.PolicyPaths {
			paths[i] = m.ResolveLocal(p)
		}
		if err := gate.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	a.gate = gate

	runner := hooks.NewRunner(hooks.Config{
		PreTeardown: m.ResolveLocal(m.Hooks.PreTeardown),
		PostPurge:   m.ResolveLocal(m.Hooks.PostPurge),
		PostRebuild: m.ResolveLocal(m.Hooks.PostRebuild),
	}, 0, logger)

	var recorder orchestrator.Recorder
	if m.HistoryDB != "" {
		history, err := openHistory(ctx, m.ResolveLocal(m.HistoryDB))
		if err != nil {
			// History is best-effort from the orchestrator's point of
			// view; a broken database should not stop a reset either.
			logger.Warn().Err(err).Msg("reset history disabled")
		} else {
			a.history = history
			recorder = stores.NewRecorder(history)
		}
	}

	orch, err := orchestrator.New(runtime, store, orchestrator.Options{
		Gate:     gate,
		Hooks:    runner,
		Recorder: recorder,
		Metrics:  metrics,
		Tracer:   tracer,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	a.orch = orch

	return a, nil
}

// Close releases long-lived resources.
func (a *app) Close(ctx context.Context) {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close history store")
		}
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close remote store")
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("failed to shut down tracer")
		}
	}
}

// loadManifest resolves the manifest: the --manifest flag, then a
// well-known file in the working directory, then the built-in default.
func loadManifest() (*manifest.Manifest, error) {
	parser := manifest.NewParser()

	if manifestPath != "" {
		return parser.Load(manifestPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	if discovered := manifest.Discover(cwd); discovered != "" {
		return parser.Load(discovered)
	}
	return manifest.Default(cwd), nil
}

// openHistory opens and migrates the history database.
func openHistory(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	history, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := history.Init(ctx); err != nil {
		return nil, err
	}
	if err := history.Migrate(ctx); err != nil {
		_ = history.Close()
		return nil, err
	}
	return history, nil
}
