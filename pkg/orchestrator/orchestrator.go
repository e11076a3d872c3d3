package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/stackreset/stackreset/pkg/telemetry"
)

// Options configure an Orchestrator. The zero value is usable: teardown
// removes volumes and orphans, rebuild forces image builds and detaches,
// and every optional collaborator is disabled.
type Options struct {
	// Teardown are the options passed to EnvironmentRuntime.Teardown.
	Teardown *TeardownOptions

	// Rebuild are the options passed to EnvironmentRuntime.Rebuild.
	Rebuild *RebuildOptions

	// Gate, when set, is consulted before teardown; a denial blocks the
	// reset while the environment is still untouched.
	Gate PurgeGate

	// Hooks, when set, runs lifecycle scripts around the phases.
	Hooks Hooks

	// Recorder, when set, persists reset runs. Best-effort.
	Recorder Recorder

	// Metrics and Tracer, when set, record phase telemetry.
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer

	// Logger receives structured phase events.
	Logger zerolog.Logger
}

// Orchestrator executes ResetRequests as an ordered, fail-fast sequence
// of teardown, purge, and rebuild. It is stateless between invocations.
type Orchestrator struct {
	runtime EnvironmentRuntime
	store   StateStore

	teardownOpts TeardownOptions
	rebuildOpts  RebuildOptions

	gate     PurgeGate
	hooks    Hooks
	recorder Recorder
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	logger   zerolog.Logger
}

// New creates an Orchestrator over the given collaborators.
func New(runtime EnvironmentRuntime, store StateStore, opts Options) (*Orchestrator, error) {
	if runtime == nil {
		return nil, fmt.Errorf("environment runtime is required")
	}
	if store == nil {
		return nil, fmt.Errorf("state store is required")
	}

	teardown := TeardownOptions{RemoveVolumes: true, RemoveOrphans: true}
	if opts.Teardown != nil {
		teardown = *opts.Teardown
	}
	rebuild := RebuildOptions{ForceBuild: true, Detached: true}
	if opts.Rebuild != nil {
		rebuild = *opts.Rebuild
	}

	return &Orchestrator{
		runtime:      runtime,
		store:        store,
		teardownOpts: teardown,
		rebuildOpts:  rebuild,
		gate:         opts.Gate,
		hooks:        opts.Hooks,
		recorder:     opts.Recorder,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		logger:       opts.Logger.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// Execute runs one reset. Phases execute in strict order: teardown
// before purge, purge before rebuild; a later phase never begins if an
// earlier phase failed. There are no retries and no rollback; paths
// already deleted stay deleted. The returned result reports exactly how
// far the reset got.
func (o *Orchestrator) Execute(ctx context.Context, req ResetRequest) ResetResult {
	result := ResetResult{
		ResetID:   uuid.NewString(),
		Phase:     PhaseNone,
		StartedAt: time.Now(),
	}

	logger := o.logger.With().
		Str("reset_id", result.ResetID).
		Str("environment", req.EnvironmentID).
		Logger()

	if err := req.Validate(); err != nil {
		result.Err = &ResetError{Kind: KindInvalidRequest, Err: err}
		result.CompletedAt = time.Now()
		logger.Error().Err(err).Msg("reset request rejected")
		return result
	}

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.StartResetSpan(ctx, result.ResetID, req.EnvironmentID)
		defer func() {
			o.finishSpan(span, result)
			span.End()
		}()
	}

	o.metrics.RecordResetStarted(req.EnvironmentID)
	o.record(ctx, func(r Recorder) error {
		return r.RecordStart(ctx, result.ResetID, req)
	}, logger)

	logger.Info().
		Int("state_paths", len(req.StatePaths)).
		Bool("rebuild", req.Rebuild).
		Msg("reset started")

	o.execute(ctx, req, &result, logger)

	result.CompletedAt = time.Now()
	o.record(ctx, func(r Recorder) error {
		return r.RecordResult(ctx, result.ResetID, result)
	}, logger)

	if result.Failed() {
		o.metrics.RecordResetCompleted("failed", result.Duration())
		var resetErr *ResetError
		if errors.As(result.Err, &resetErr) {
			o.metrics.RecordFailure(string(resetErr.Kind))
		}
		logger.Error().Err(result.Err).
			Str("phase", string(result.Phase)).
			Dur("duration", result.Duration()).
			Msg("reset failed")
	} else {
		o.metrics.RecordResetCompleted("completed", result.Duration())
		logger.Info().
			Str("phase", string(result.Phase)).
			Dur("duration", result.Duration()).
			Msg("reset completed")
	}

	return result
}

// execute walks the state machine, mutating result in place. It returns
// as soon as a phase fails.
func (o *Orchestrator) execute(ctx context.Context, req ResetRequest, result *ResetResult, logger zerolog.Logger) {
	// Gate and pre-teardown hook both run before any destructive call,
	// so a denial leaves the environment exactly as it was.
	if o.gate != nil && len(req.StatePaths) > 0 {
		if err := o.gate.CheckPurge(ctx, req.EnvironmentID, req.StatePaths); err != nil {
			result.Err = NewBlockedError(err)
			return
		}
	}
	if err := o.runHook(ctx, HookPreTeardown, req, logger); err != nil {
		result.Err = NewBlockedError(err)
		return
	}

	if err := o.teardown(ctx, req, result.ResetID, logger); err != nil {
		result.Err = err
		return
	}
	result.Phase = PhaseTornDown

	if err := o.purge(ctx, req, result.ResetID, logger); err != nil {
		result.Err = err
		return
	}
	result.Phase = PhasePurged
	o.advisoryHook(ctx, HookPostPurge, req, logger)

	if !req.Rebuild {
		return
	}

	if err := o.rebuild(ctx, req, result.ResetID, logger); err != nil {
		result.Err = err
		return
	}
	result.Phase = PhaseRebuilt
	o.advisoryHook(ctx, HookPostRebuild, req, logger)
}

func (o *Orchestrator) teardown(ctx context.Context, req ResetRequest, resetID string, logger zerolog.Logger) error {
	ctx, span := o.startPhaseSpan(ctx, StateTearingDown)
	timer := telemetry.NewTimer()
	logger.Info().
		Bool("remove_volumes", o.teardownOpts.RemoveVolumes).
		Bool("remove_orphans", o.teardownOpts.RemoveOrphans).
		Msg("tearing down environment")

	err := o.runtime.Teardown(ctx, req.EnvironmentID, o.teardownOpts)
	if err != nil {
		o.endPhase(ctx, span, resetID, StateTearingDown, timer, err, logger)
		return NewTeardownError(err)
	}
	o.endPhase(ctx, span, resetID, StateTearingDown, timer, nil, logger)
	return nil
}

func (o *Orchestrator) purge(ctx context.Context, req ResetRequest, resetID string, logger zerolog.Logger) error {
	ctx, span := o.startPhaseSpan(ctx, StatePurging)
	timer := telemetry.NewTimer()

	for _, path := range req.StatePaths {
		if err := o.store.RemovePath(ctx, path); err != nil {
			o.metrics.RecordPurgePath("failed")
			o.endPhase(ctx, span, resetID, StatePurging, timer, err, logger)
			return NewPurgeError(path, err)
		}
		o.metrics.RecordPurgePath("removed")
		logger.Debug().Str("path", path).Msg("state path purged")
	}

	o.endPhase(ctx, span, resetID, StatePurging, timer, nil, logger)
	return nil
}

func (o *Orchestrator) rebuild(ctx context.Context, req ResetRequest, resetID string, logger zerolog.Logger) error {
	ctx, span := o.startPhaseSpan(ctx, StateRebuilding)
	timer := telemetry.NewTimer()
	logger.Info().
		Bool("force_build", o.rebuildOpts.ForceBuild).
		Bool("detached", o.rebuildOpts.Detached).
		Msg("rebuilding environment")

	err := o.runtime.Rebuild(ctx, req.EnvironmentID, o.rebuildOpts)
	if err != nil {
		o.endPhase(ctx, span, resetID, StateRebuilding, timer, err, logger)
		return NewRebuildError(err)
	}
	o.endPhase(ctx, span, resetID, StateRebuilding, timer, nil, logger)
	return nil
}

// runHook runs a hook whose failure stops the reset.
func (o *Orchestrator) runHook(ctx context.Context, hook string, req ResetRequest, logger zerolog.Logger) error {
	if o.hooks == nil {
		return nil
	}
	if err := o.hooks.Run(ctx, hook, hookInput(req)); err != nil {
		logger.Error().Err(err).Str("hook", hook).Msg("hook stopped the reset")
		return err
	}
	return nil
}

// advisoryHook runs a hook whose failure is logged but never fails the
// run; by the time post-phase hooks fire the destructive work is done.
func (o *Orchestrator) advisoryHook(ctx context.Context, hook string, req ResetRequest, logger zerolog.Logger) {
	if o.hooks == nil {
		return
	}
	if err := o.hooks.Run(ctx, hook, hookInput(req)); err != nil {
		logger.Warn().Err(err).Str("hook", hook).Msg("hook failed")
	}
}

func hookInput(req ResetRequest) map[string]interface{} {
	paths := make([]interface{}, len(req.StatePaths))
	for i, p := range req.StatePaths {
		paths[i] = p
	}
	return map[string]interface{}{
		"environment": req.EnvironmentID,
		"state_paths": paths,
		"rebuild":     req.Rebuild,
	}
}

func (o *Orchestrator) startPhaseSpan(ctx context.Context, state State) (context.Context, trace.Span) {
	if o.tracer == nil {
		return ctx, telemetry.SpanFromContext(ctx)
	}
	return o.tracer.StartPhaseSpan(ctx, string(state))
}

func (o *Orchestrator) endPhase(ctx context.Context, span trace.Span, resetID string, state State, timer *telemetry.Timer, err error, logger zerolog.Logger) {
	status := "completed"
	if err != nil {
		status = "failed"
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()

	o.metrics.RecordPhaseDuration(string(state), status, timer.Duration())
	o.record(ctx, func(r Recorder) error {
		return r.RecordPhase(ctx, resetID, phaseFor(state), status)
	}, logger)
	logger.Debug().
		Str("state", string(state)).
		Str("status", status).
		Dur("duration", timer.Duration()).
		Msg("phase finished")
}

// phaseFor maps an in-progress state to the phase it completes.
func phaseFor(state State) Phase {
	switch state {
	case StateTearingDown:
		return PhaseTornDown
	case StatePurging:
		return PhasePurged
	case StateRebuilding:
		return PhaseRebuilt
	default:
		return PhaseNone
	}
}

// record applies fn to the recorder, logging failures instead of
// propagating them; history must never block a reset.
func (o *Orchestrator) record(ctx context.Context, fn func(Recorder) error, logger zerolog.Logger) {
	if o.recorder == nil {
		return
	}
	if err := fn(o.recorder); err != nil {
		logger.Warn().Err(err).Msg("failed to record reset history")
	}
}

func (o *Orchestrator) finishSpan(span trace.Span, result ResetResult) {
	if result.Failed() {
		telemetry.RecordError(span, result.Err)
		return
	}
	telemetry.RecordSuccess(span)
}
