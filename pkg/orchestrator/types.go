package orchestrator

import (
	"fmt"
	"time"
)

// Phase identifies the last phase a reset completed successfully.
type Phase string

const (
	// PhaseNone means no phase completed; teardown itself failed or the
	// reset was blocked before any destructive call.
	PhaseNone Phase = "none"

	// PhaseTornDown means all runtime resources were stopped and removed.
	PhaseTornDown Phase = "torn_down"

	// PhasePurged means every state path was deleted (or already absent).
	PhasePurged Phase = "purged"

	// PhaseRebuilt means services were rebuilt and started.
	PhaseRebuilt Phase = "rebuilt"
)

// State represents the orchestrator's position in the reset state machine.
// Idle is initial; Done and Errored are terminal.
type State string

const (
	StateIdle        State = "idle"
	StateTearingDown State = "tearing_down"
	StatePurging     State = "purging"
	StateRebuilding  State = "rebuilding"
	StateDone        State = "done"
	StateErrored     State = "errored"
)

// ResetRequest describes one reset operation. It is immutable: one
// request is constructed per invocation and discarded after producing
// one ResetResult.
type ResetRequest struct {
	// EnvironmentID is the opaque handle of the runtime-managed stack.
	EnvironmentID string `json:"environment_id"`

	// StatePaths are the filesystem locations to purge, in order.
	// May be empty (no-op purge).
	StatePaths []string `json:"state_paths,omitempty"`

	// Rebuild controls whether services are re-created after purge.
	Rebuild bool `json:"rebuild"`
}

// Validate checks the request before any side effect happens.
func (r ResetRequest) Validate() error {
	if r.EnvironmentID == "" {
		return fmt.Errorf("environment id is required")
	}
	for i, p := range r.StatePaths {
		if p == "" {
			return fmt.Errorf("state path %d is empty", i)
		}
	}
	return nil
}

// ResetResult is the outcome of one Execute call.
type ResetResult struct {
	// ResetID uniquely identifies this reset run.
	ResetID string `json:"reset_id"`

	// Phase is the last phase that completed successfully.
	Phase Phase `json:"phase"`

	// Err is non-nil iff the reset did not reach its final phase. It is
	// always a *ResetError wrapping the collaborator error verbatim.
	Err error `json:"-"`

	// StartedAt and CompletedAt bound the whole sequence.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Failed reports whether the reset stopped before its final phase.
func (r ResetResult) Failed() bool {
	return r.Err != nil
}

// Duration returns how long the reset ran.
func (r ResetResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
