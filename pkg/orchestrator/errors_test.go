package orchestrator

import (
	"errors"
	"fmt"
	"testing"
)

func TestResetErrorUnwrapsVerbatim(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := NewPurgeError("/srv/data", cause)

	if !errors.Is(err, cause) {
		t.Error("underlying error lost in wrapping")
	}
	if got := FailedPath(err); got != "/srv/data" {
		t.Errorf("FailedPath = %q, want /srv/data", got)
	}
}

func TestResetErrorIsMatchesKindAndPath(t *testing.T) {
	err := NewPurgeError("/srv/data", fmt.Errorf("boom"))

	if !errors.Is(err, &ResetError{Kind: KindPurgeFailed}) {
		t.Error("kind-only target did not match")
	}
	if !errors.Is(err, &ResetError{Kind: KindPurgeFailed, Path: "/srv/data"}) {
		t.Error("kind+path target did not match")
	}
	if errors.Is(err, &ResetError{Kind: KindPurgeFailed, Path: "/other"}) {
		t.Error("mismatched path matched")
	}
	if errors.Is(err, &ResetError{Kind: KindTeardownFailed}) {
		t.Error("mismatched kind matched")
	}
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		err  error
		pred func(error) bool
	}{
		{NewTeardownError(fmt.Errorf("x")), IsTeardownFailed},
		{NewPurgeError("/p", fmt.Errorf("x")), IsPurgeFailed},
		{NewRebuildError(fmt.Errorf("x")), IsRebuildFailed},
		{NewBlockedError(fmt.Errorf("x")), IsBlocked},
	}
	for _, tt := range tests {
		if !tt.pred(tt.err) {
			t.Errorf("predicate rejected %v", tt.err)
		}
	}
	if IsTeardownFailed(fmt.Errorf("plain")) {
		t.Error("plain error classified as teardown failure")
	}
}
