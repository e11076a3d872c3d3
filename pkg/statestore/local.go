package statestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LocalStore deletes state directories on the local filesystem.
type LocalStore struct {
	logger zerolog.Logger
}

// NewLocalStore creates a local filesystem state store.
func NewLocalStore(logger zerolog.Logger) *LocalStore {
	return &LocalStore{
		logger: logger.With().Str("component", "local-store").Logger(),
	}
}

// RemovePath recursively and unconditionally deletes path. A missing
// path is success. Filesystem roots are refused outright; a reset that
// asks for them is misconfigured, not destructive-by-intent.
func (s *LocalStore) RemovePath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("state path is empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve state path %s: %w", path, err)
	}
	if abs == string(filepath.Separator) || abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return fmt.Errorf("refusing to remove filesystem root %s", abs)
	}

	if _, err := os.Lstat(abs); os.IsNotExist(err) {
		s.logger.Debug().Str("path", abs).Msg("state path already absent")
		return nil
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("failed to remove %s: %w", abs, err)
	}

	s.logger.Debug().Str("path", abs).Msg("state path removed")
	return nil
}
