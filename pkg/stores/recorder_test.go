package stores

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stackreset/stackreset/pkg/orchestrator"
)

func TestRecorderRoundTrip(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store)
	ctx := context.Background()

	req := orchestrator.ResetRequest{
		EnvironmentID: "core",
		StatePaths:    []string{"/srv/core-data"},
		Rebuild:       true,
	}

	if err := recorder.RecordStart(ctx, "reset-1", req); err != nil {
		t.Fatalf("RecordStart failed: %v", err)
	}
	if err := recorder.RecordPhase(ctx, "reset-1", orchestrator.PhaseTornDown, "completed"); err != nil {
		t.Fatalf("RecordPhase failed: %v", err)
	}
	if err := recorder.RecordResult(ctx, "reset-1", orchestrator.ResetResult{
		ResetID:     "reset-1",
		Phase:       orchestrator.PhaseRebuilt,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	record, err := store.GetReset(ctx, "reset-1")
	if err != nil {
		t.Fatalf("GetReset failed: %v", err)
	}
	if record.Status != ResetStatusCompleted {
		t.Errorf("status = %q, want completed", record.Status)
	}
	if record.Phase != string(orchestrator.PhaseRebuilt) {
		t.Errorf("phase = %q, want rebuilt", record.Phase)
	}
	if record.StatePaths != `["/srv/core-data"]` {
		t.Errorf("state paths = %q", record.StatePaths)
	}

	events, err := store.ListEvents(ctx, "reset-1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Phase != string(orchestrator.PhaseTornDown) {
		t.Errorf("events = %+v", events)
	}
}

func TestRecorderRecordsFailure(t *testing.T) {
	store := newTestStore(t)
	recorder := NewRecorder(store)
	ctx := context.Background()

	req := orchestrator.ResetRequest{EnvironmentID: "core", Rebuild: true}
	if err := recorder.RecordStart(ctx, "reset-1", req); err != nil {
		t.Fatalf("RecordStart failed: %v", err)
	}

	result := orchestrator.ResetResult{
		ResetID: "reset-1",
		Phase:   orchestrator.PhaseTornDown,
		Err:     orchestrator.NewPurgeError("/srv/core-data", fmt.Errorf("permission denied")),
	}
	if err := recorder.RecordResult(ctx, "reset-1", result); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	record, err := store.GetReset(ctx, "reset-1")
	if err != nil {
		t.Fatalf("GetReset failed: %v", err)
	}
	if record.Status != ResetStatusFailed {
		t.Errorf("status = %q, want failed", record.Status)
	}
	if record.Error == nil {
		t.Fatal("error message not recorded")
	}
}
