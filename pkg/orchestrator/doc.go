// Package orchestrator implements the environment reset state machine.
// A reset brings a stateful, multi-service local environment from
// "running, possibly dirty" to "freshly rebuilt, guaranteed clean" in
// three strictly ordered phases: Teardown -> Purge -> Rebuild.
//
// The orchestrator holds no durable state of its own. All side effects
// happen through two collaborator interfaces: an EnvironmentRuntime
// (stops, removes, and rebuilds the environment's services) and a
// StateStore (deletes named on-disk state locations). Phases are
// fail-fast: there are no retries and no rollback; purge deletions are
// not undoable. A failure aborts the sequence and is surfaced with the
// last phase that completed.
//
// Concurrent Execute calls against the same environment are not
// serialized here; callers that need mutual exclusion must provide it
// (for example an external lock keyed by environment ID).
package orchestrator
