package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stackreset/stackreset/pkg/orchestrator"
)

// Recorder adapts a Store to the orchestrator's Recorder interface.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// RecordStart inserts a running record for the reset.
func (r *Recorder) RecordStart(ctx context.Context, resetID string, req orchestrator.ResetRequest) error {
	paths, err := json.Marshal(req.StatePaths)
	if err != nil {
		return err
	}

	now := time.Now()
	return r.store.CreateReset(ctx, &ResetRecord{
		ID:          resetID,
		Environment: req.EnvironmentID,
		Phase:       string(orchestrator.PhaseNone),
		Status:      ResetStatusRunning,
		StatePaths:  string(paths),
		Rebuild:     req.Rebuild,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// RecordPhase appends a phase event and advances the record's phase.
func (r *Recorder) RecordPhase(ctx context.Context, resetID string, phase orchestrator.Phase, message string) error {
	if err := r.store.AppendEvent(ctx, &ResetEvent{
		ResetID:   resetID,
		Phase:     string(phase),
		Message:   message,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}
	return r.store.UpdateReset(ctx, resetID, string(phase), ResetStatusRunning, nil)
}

// RecordResult marks the record completed or failed.
func (r *Recorder) RecordResult(ctx context.Context, resetID string, result orchestrator.ResetResult) error {
	status := ResetStatusCompleted
	var errMsg *string
	if result.Failed() {
		status = ResetStatusFailed
		msg := result.Err.Error()
		errMsg = &msg
	}
	return r.store.UpdateReset(ctx, resetID, string(result.Phase), status, errMsg)
}
