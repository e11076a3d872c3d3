package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeRuntime records teardown/rebuild calls and fails on demand.
type fakeRuntime struct {
	mu            sync.Mutex
	teardownCalls int
	rebuildCalls  int
	teardownErr   error
	rebuildErr    error
}

func (f *fakeRuntime) Teardown(_ context.Context, _ string, _ TeardownOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardownCalls++
	return f.teardownErr
}

func (f *fakeRuntime) Rebuild(_ context.Context, _ string, _ RebuildOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuildCalls++
	return f.rebuildErr
}

// fakeStore records removed paths and fails on a configured path.
type fakeStore struct {
	mu       sync.Mutex
	removed  []string
	failPath string
	failErr  error
}

func (f *fakeStore) RemovePath(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == f.failPath {
		return f.failErr
	}
	f.removed = append(f.removed, path)
	return nil
}

type fakeGate struct {
	err   error
	calls int
}

func (f *fakeGate) CheckPurge(_ context.Context, _ string, _ []string) error {
	f.calls++
	return f.err
}

type fakeHooks struct {
	calls []string
	errOn string
	err   error
}

func (f *fakeHooks) Run(_ context.Context, hook string, _ map[string]interface{}) error {
	f.calls = append(f.calls, hook)
	if hook == f.errOn {
		return f.err
	}
	return nil
}

type fakeRecorder struct {
	starts  int
	phases  []Phase
	results []ResetResult
	err     error
}

func (f *fakeRecorder) RecordStart(_ context.Context, _ string, _ ResetRequest) error {
	f.starts++
	return f.err
}

func (f *fakeRecorder) RecordPhase(_ context.Context, _ string, phase Phase, _ string) error {
	f.phases = append(f.phases, phase)
	return f.err
}

func (f *fakeRecorder) RecordResult(_ context.Context, _ string, result ResetResult) error {
	f.results = append(f.results, result)
	return f.err
}

func newTestOrchestrator(t *testing.T, runtime *fakeRuntime, store *fakeStore, opts Options) *Orchestrator {
	t.Helper()
	opts.Logger = zerolog.Nop()
	o, err := New(runtime, store, opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return o
}

func testRequest() ResetRequest {
	return ResetRequest{
		EnvironmentID: "core",
		StatePaths:    []string{"/srv/core-data", "/srv/core-logs"},
		Rebuild:       true,
	}
}

func TestExecuteFullReset(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	o := newTestOrchestrator(t, runtime, store, Options{})

	result := o.Execute(context.Background(), testRequest())

	if result.Failed() {
		t.Fatalf("reset failed: %v", result.Err)
	}
	if result.Phase != PhaseRebuilt {
		t.Errorf("phase = %q, want %q", result.Phase, PhaseRebuilt)
	}
	if result.ResetID == "" {
		t.Error("reset ID is empty")
	}
	if runtime.teardownCalls != 1 || runtime.rebuildCalls != 1 {
		t.Errorf("teardown=%d rebuild=%d, want 1 each", runtime.teardownCalls, runtime.rebuildCalls)
	}
	if len(store.removed) != 2 {
		t.Errorf("removed %d paths, want 2", len(store.removed))
	}
	if store.removed[0] != "/srv/core-data" || store.removed[1] != "/srv/core-logs" {
		t.Errorf("paths removed out of order: %v", store.removed)
	}
}

func TestExecuteInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  ResetRequest
	}{
		{"empty environment", ResetRequest{StatePaths: []string{"/a"}}},
		{"empty state path", ResetRequest{EnvironmentID: "core", StatePaths: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := &fakeRuntime{}
			store := &fakeStore{}
			o := newTestOrchestrator(t, runtime, store, Options{})

			result := o.Execute(context.Background(), tt.req)

			if !result.Failed() {
				t.Fatal("expected failure")
			}
			var resetErr *ResetError
			if !errors.As(result.Err, &resetErr) || resetErr.Kind != KindInvalidRequest {
				t.Errorf("err = %v, want KindInvalidRequest", result.Err)
			}
			if runtime.teardownCalls != 0 {
				t.Error("teardown ran for an invalid request")
			}
		})
	}
}

func TestExecuteTeardownFailureStopsEverything(t *testing.T) {
	runtime := &fakeRuntime{teardownErr: fmt.Errorf("compose down exploded")}
	store := &fakeStore{}
	o := newTestOrchestrator(t, runtime, store, Options{})

	result := o.Execute(context.Background(), testRequest())

	if !IsTeardownFailed(result.Err) {
		t.Fatalf("err = %v, want teardown failure", result.Err)
	}
	if result.Phase != PhaseNone {
		t.Errorf("phase = %q, want %q", result.Phase, PhaseNone)
	}
	if len(store.removed) != 0 {
		t.Errorf("purge ran after teardown failure: %v", store.removed)
	}
	if runtime.rebuildCalls != 0 {
		t.Error("rebuild ran after teardown failure")
	}
}

func TestExecutePurgeFailureKeepsEarlierDeletions(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{
		failPath: "/srv/core-logs",
		failErr:  fmt.Errorf("permission denied"),
	}
	o := newTestOrchestrator(t, runtime, store, Options{})

	result := o.Execute(context.Background(), testRequest())

	if !IsPurgeFailed(result.Err) {
		t.Fatalf("err = %v, want purge failure", result.Err)
	}
	if result.Phase != PhaseTornDown {
		t.Errorf("phase = %q, want %q", result.Phase, PhaseTornDown)
	}
	if got := FailedPath(result.Err); got != "/srv/core-logs" {
		t.Errorf("failed path = %q, want /srv/core-logs", got)
	}
	// No rollback: the first path stays deleted.
	if len(store.removed) != 1 || store.removed[0] != "/srv/core-data" {
		t.Errorf("removed = %v, want only /srv/core-data", store.removed)
	}
	if runtime.rebuildCalls != 0 {
		t.Error("rebuild ran after purge failure")
	}
}

func TestExecuteRebuildFailure(t *testing.T) {
	runtime := &fakeRuntime{rebuildErr: fmt.Errorf("build failed")}
	store := &fakeStore{}
	o := newTestOrchestrator(t, runtime, store, Options{})

	result := o.Execute(context.Background(), testRequest())

	if !IsRebuildFailed(result.Err) {
		t.Fatalf("err = %v, want rebuild failure", result.Err)
	}
	if result.Phase != PhasePurged {
		t.Errorf("phase = %q, want %q", result.Phase, PhasePurged)
	}
	if len(store.removed) != 2 {
		t.Errorf("removed %d paths, want 2", len(store.removed))
	}
}

func TestExecuteSkipsRebuildWhenNotRequested(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	o := newTestOrchestrator(t, runtime, store, Options{})

	req := testRequest()
	req.Rebuild = false
	result := o.Execute(context.Background(), req)

	if result.Failed() {
		t.Fatalf("reset failed: %v", result.Err)
	}
	if result.Phase != PhasePurged {
		t.Errorf("phase = %q, want %q", result.Phase, PhasePurged)
	}
	if runtime.rebuildCalls != 0 {
		t.Error("rebuild ran although not requested")
	}
}

func TestExecuteEmptyStatePaths(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	gate := &fakeGate{}
	o := newTestOrchestrator(t, runtime, store, Options{Gate: gate})

	req := ResetRequest{EnvironmentID: "core", Rebuild: true}
	result := o.Execute(context.Background(), req)

	if result.Failed() {
		t.Fatalf("reset failed: %v", result.Err)
	}
	if result.Phase != PhaseRebuilt {
		t.Errorf("phase = %q, want %q", result.Phase, PhaseRebuilt)
	}
	// Nothing to purge means nothing for the gate to check.
	if gate.calls != 0 {
		t.Errorf("gate consulted %d times for an empty purge", gate.calls)
	}
}

func TestExecuteGateDenialLeavesEnvironmentUntouched(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	gate := &fakeGate{err: fmt.Errorf("path is protected")}
	o := newTestOrchestrator(t, runtime, store, Options{Gate: gate})

	result := o.Execute(context.Background(), testRequest())

	if !IsBlocked(result.Err) {
		t.Fatalf("err = %v, want blocked", result.Err)
	}
	if result.Phase != PhaseNone {
		t.Errorf("phase = %q, want %q", result.Phase, PhaseNone)
	}
	if runtime.teardownCalls != 0 || len(store.removed) != 0 {
		t.Error("gate denial did not stop the reset before side effects")
	}
}

func TestExecutePreTeardownHookAborts(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	hooks := &fakeHooks{errOn: HookPreTeardown, err: fmt.Errorf("abort = True")}
	o := newTestOrchestrator(t, runtime, store, Options{Hooks: hooks})

	result := o.Execute(context.Background(), testRequest())

	if !IsBlocked(result.Err) {
		t.Fatalf("err = %v, want blocked", result.Err)
	}
	if runtime.teardownCalls != 0 {
		t.Error("teardown ran after pre-teardown hook aborted")
	}
}

func TestExecutePostHooksAreAdvisory(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	hooks := &fakeHooks{errOn: HookPostPurge, err: fmt.Errorf("notify failed")}
	o := newTestOrchestrator(t, runtime, store, Options{Hooks: hooks})

	result := o.Execute(context.Background(), testRequest())

	if result.Failed() {
		t.Fatalf("advisory hook failure failed the reset: %v", result.Err)
	}
	if result.Phase != PhaseRebuilt {
		t.Errorf("phase = %q, want %q", result.Phase, PhaseRebuilt)
	}

	want := []string{HookPreTeardown, HookPostPurge, HookPostRebuild}
	if len(hooks.calls) != len(want) {
		t.Fatalf("hook calls = %v, want %v", hooks.calls, want)
	}
	for i := range want {
		if hooks.calls[i] != want[i] {
			t.Errorf("hook call %d = %q, want %q", i, hooks.calls[i], want[i])
		}
	}
}

func TestExecuteRecorderFailureDoesNotBlockReset(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	recorder := &fakeRecorder{err: fmt.Errorf("database locked")}
	o := newTestOrchestrator(t, runtime, store, Options{Recorder: recorder})

	result := o.Execute(context.Background(), testRequest())

	if result.Failed() {
		t.Fatalf("recorder failure failed the reset: %v", result.Err)
	}
	if recorder.starts != 1 {
		t.Errorf("recorder starts = %d, want 1", recorder.starts)
	}
}

func TestExecuteRecordsLifecycle(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	recorder := &fakeRecorder{}
	o := newTestOrchestrator(t, runtime, store, Options{Recorder: recorder})

	result := o.Execute(context.Background(), testRequest())

	if result.Failed() {
		t.Fatalf("reset failed: %v", result.Err)
	}
	wantPhases := []Phase{PhaseTornDown, PhasePurged, PhaseRebuilt}
	if len(recorder.phases) != len(wantPhases) {
		t.Fatalf("recorded phases = %v, want %v", recorder.phases, wantPhases)
	}
	for i := range wantPhases {
		if recorder.phases[i] != wantPhases[i] {
			t.Errorf("phase %d = %q, want %q", i, recorder.phases[i], wantPhases[i])
		}
	}
	if len(recorder.results) != 1 {
		t.Fatalf("recorded %d results, want 1", len(recorder.results))
	}
	if recorder.results[0].Phase != PhaseRebuilt {
		t.Errorf("recorded result phase = %q, want %q", recorder.results[0].Phase, PhaseRebuilt)
	}
}

func TestExecuteIsRepeatable(t *testing.T) {
	runtime := &fakeRuntime{}
	store := &fakeStore{}
	o := newTestOrchestrator(t, runtime, store, Options{})

	first := o.Execute(context.Background(), testRequest())
	second := o.Execute(context.Background(), testRequest())

	if first.Failed() || second.Failed() {
		t.Fatalf("repeat reset failed: %v / %v", first.Err, second.Err)
	}
	if first.ResetID == second.ResetID {
		t.Error("consecutive resets share a reset ID")
	}
	if runtime.teardownCalls != 2 || runtime.rebuildCalls != 2 {
		t.Errorf("teardown=%d rebuild=%d, want 2 each", runtime.teardownCalls, runtime.rebuildCalls)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, &fakeStore{}, Options{}); err == nil {
		t.Error("New accepted a nil runtime")
	}
	if _, err := New(&fakeRuntime{}, nil, Options{}); err == nil {
		t.Error("New accepted a nil store")
	}
}
