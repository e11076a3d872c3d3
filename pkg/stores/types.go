// Package stores persists reset history in SQLite. Recording is
// best-effort: the orchestrator logs store failures and carries on, so
// a broken history database never blocks a reset.
package stores

import (
	"context"
	"time"
)

// ResetStatus is the lifecycle status of a recorded reset.
type ResetStatus string

const (
	ResetStatusRunning   ResetStatus = "running"
	ResetStatusCompleted ResetStatus = "completed"
	ResetStatusFailed    ResetStatus = "failed"
)

// ResetRecord is one reset run.
type ResetRecord struct {
	ID          string      `json:"id"`
	Environment string      `json:"environment"`
	Phase       string      `json:"phase"`
	Status      ResetStatus `json:"status"`
	StatePaths  string      `json:"state_paths"` // JSON-encoded []string
	Rebuild     bool        `json:"rebuild"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       *string     `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ResetEvent is one phase transition within a reset run.
type ResetEvent struct {
	ID        int64     `json:"id"`
	ResetID   string    `json:"reset_id"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence interface for reset history.
type Store interface {
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error

	CreateReset(ctx context.Context, record *ResetRecord) error
	GetReset(ctx context.Context, id string) (*ResetRecord, error)
	UpdateReset(ctx context.Context, id string, phase string, status ResetStatus, errMsg *string) error
	ListResets(ctx context.Context, environment string, limit, offset int) ([]*ResetRecord, error)

	AppendEvent(ctx context.Context, event *ResetEvent) error
	ListEvents(ctx context.Context, resetID string) ([]*ResetEvent, error)
}
