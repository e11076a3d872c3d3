package orchestrator

import (
	"errors"
	"fmt"
)

// FailureKind classifies where a reset failed.
type FailureKind string

const (
	// KindInvalidRequest means the request never passed validation.
	KindInvalidRequest FailureKind = "invalid_request"

	// KindBlocked means a purge policy or pre-teardown hook stopped the
	// reset before any destructive call.
	KindBlocked FailureKind = "blocked"

	// KindTeardownFailed means the runtime reported an error while
	// stopping and removing resources.
	KindTeardownFailed FailureKind = "teardown_failed"

	// KindPurgeFailed means a state path could not be removed.
	KindPurgeFailed FailureKind = "purge_failed"

	// KindRebuildFailed means the runtime reported an error while
	// building and starting services.
	KindRebuildFailed FailureKind = "rebuild_failed"
)

// ResetError wraps the underlying collaborator error verbatim, tagged
// with the kind of failure and, for purge failures, the offending path.
type ResetError struct {
	Kind FailureKind `json:"kind"`

	// Path is the state path that could not be removed. Set only for
	// KindPurgeFailed.
	Path string `json:"path,omitempty"`

	// Err is the underlying error, surfaced unmodified.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ResetError) Error() string {
	switch e.Kind {
	case KindPurgeFailed:
		return fmt.Sprintf("purge failed (path %s): %v", e.Path, e.Err)
	case KindTeardownFailed:
		return fmt.Sprintf("teardown failed: %v", e.Err)
	case KindRebuildFailed:
		return fmt.Sprintf("rebuild failed: %v", e.Err)
	case KindBlocked:
		return fmt.Sprintf("reset blocked: %v", e.Err)
	default:
		return fmt.Sprintf("invalid reset request: %v", e.Err)
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ResetError) Unwrap() error {
	return e.Err
}

// Is matches on Kind (and Path when the target sets one), so callers
// can write errors.Is(err, &ResetError{Kind: KindPurgeFailed}).
func (e *ResetError) Is(target error) bool {
	t, ok := target.(*ResetError)
	if !ok {
		return false
	}
	if t.Path != "" && t.Path != e.Path {
		return false
	}
	return e.Kind == t.Kind
}

// NewTeardownError wraps a runtime teardown failure.
func NewTeardownError(err error) *ResetError {
	return &ResetError{Kind: KindTeardownFailed, Err: err}
}

// NewPurgeError wraps a state store failure for one path.
func NewPurgeError(path string, err error) *ResetError {
	return &ResetError{Kind: KindPurgeFailed, Path: path, Err: err}
}

// NewRebuildError wraps a runtime rebuild failure.
func NewRebuildError(err error) *ResetError {
	return &ResetError{Kind: KindRebuildFailed, Err: err}
}

// NewBlockedError wraps a policy or hook denial.
func NewBlockedError(err error) *ResetError {
	return &ResetError{Kind: KindBlocked, Err: err}
}

// IsTeardownFailed reports whether err is a teardown failure.
func IsTeardownFailed(err error) bool {
	return kindOf(err) == KindTeardownFailed
}

// IsPurgeFailed reports whether err is a purge failure.
func IsPurgeFailed(err error) bool {
	return kindOf(err) == KindPurgeFailed
}

// IsRebuildFailed reports whether err is a rebuild failure.
func IsRebuildFailed(err error) bool {
	return kindOf(err) == KindRebuildFailed
}

// IsBlocked reports whether err is a policy or hook denial.
func IsBlocked(err error) bool {
	return kindOf(err) == KindBlocked
}

// FailedPath returns the state path of a purge failure, or "".
func FailedPath(err error) string {
	var e *ResetError
	if errors.As(err, &e) {
		return e.Path
	}
	return ""
}

func kindOf(err error) FailureKind {
	var e *ResetError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
