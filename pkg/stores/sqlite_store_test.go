package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(id string) *ResetRecord {
	now := time.Now()
	return &ResetRecord{
		ID:          id,
		Environment: "core",
		Phase:       "none",
		Status:      ResetStatusRunning,
		StatePaths:  `["/srv/core-data","/srv/core-logs"]`,
		Rebuild:     true,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateAndGetReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateReset(ctx, testRecord("reset-1")); err != nil {
		t.Fatalf("CreateReset failed: %v", err)
	}

	got, err := store.GetReset(ctx, "reset-1")
	if err != nil {
		t.Fatalf("GetReset failed: %v", err)
	}
	if got.Environment != "core" || got.Status != ResetStatusRunning {
		t.Errorf("record = %+v", got)
	}
	if !got.Rebuild {
		t.Error("rebuild flag lost")
	}
}

func TestGetResetNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetReset(context.Background(), "missing"); err == nil {
		t.Error("missing reset returned without error")
	}
}

func TestUpdateResetLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateReset(ctx, testRecord("reset-1")); err != nil {
		t.Fatalf("CreateReset failed: %v", err)
	}

	if err := store.UpdateReset(ctx, "reset-1", "torn_down", ResetStatusRunning, nil); err != nil {
		t.Fatalf("UpdateReset failed: %v", err)
	}
	got, err := store.GetReset(ctx, "reset-1")
	if err != nil {
		t.Fatalf("GetReset failed: %v", err)
	}
	if got.Phase != "torn_down" || got.CompletedAt != nil {
		t.Errorf("mid-run record = %+v", got)
	}

	errMsg := "purge failed"
	if err := store.UpdateReset(ctx, "reset-1", "torn_down", ResetStatusFailed, &errMsg); err != nil {
		t.Fatalf("UpdateReset failed: %v", err)
	}
	got, err = store.GetReset(ctx, "reset-1")
	if err != nil {
		t.Fatalf("GetReset failed: %v", err)
	}
	if got.Status != ResetStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("terminal status did not set completed_at")
	}
	if got.Error == nil || *got.Error != errMsg {
		t.Errorf("error = %v, want %q", got.Error, errMsg)
	}
}

func TestUpdateResetNotFound(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpdateReset(context.Background(), "missing", "purged", ResetStatusCompleted, nil); err == nil {
		t.Error("updating a missing reset did not error")
	}
}

func TestListResetsFiltersByEnvironment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testRecord("reset-1")
	second := testRecord("reset-2")
	second.Environment = "staging"
	if err := store.CreateReset(ctx, first); err != nil {
		t.Fatalf("CreateReset failed: %v", err)
	}
	if err := store.CreateReset(ctx, second); err != nil {
		t.Fatalf("CreateReset failed: %v", err)
	}

	core, err := store.ListResets(ctx, "core", 10, 0)
	if err != nil {
		t.Fatalf("ListResets failed: %v", err)
	}
	if len(core) != 1 || core[0].ID != "reset-1" {
		t.Errorf("core resets = %+v", core)
	}

	all, err := store.ListResets(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListResets failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all resets = %d, want 2", len(all))
	}
}

func TestAppendAndListEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateReset(ctx, testRecord("reset-1")); err != nil {
		t.Fatalf("CreateReset failed: %v", err)
	}

	for _, phase := range []string{"torn_down", "purged", "rebuilt"} {
		event := &ResetEvent{
			ResetID:   "reset-1",
			Phase:     phase,
			Message:   "completed",
			Timestamp: time.Now(),
		}
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
		if event.ID == 0 {
			t.Error("event ID not backfilled")
		}
	}

	events, err := store.ListEvents(ctx, "reset-1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].Phase != "torn_down" || events[2].Phase != "rebuilt" {
		t.Errorf("events out of order: %+v", events)
	}
}

func TestAppendEventRequiresReset(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendEvent(context.Background(), &ResetEvent{
		ResetID:   "missing",
		Phase:     "torn_down",
		Timestamp: time.Now(),
	})
	if err == nil {
		t.Error("foreign key violation not reported")
	}
}
