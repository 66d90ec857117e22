package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	logDirPerm  = 0o755
	logFilePerm = 0o644
)

// Store is an append-only destination for formatted entries.
type Store interface {
	// Ensure prepares the destination so later appends can succeed.
	Ensure(ctx context.Context) error

	// Append persists one entry.
	Append(ctx context.Context, entry string) error
}

// FileStore appends entries to a UTF-8 text file, one entry per write.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the log file location.
func (f *FileStore) Path() string {
	return f.path
}

// Ensure creates the parent directory of the log file.
func (f *FileStore) Ensure(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(f.path), logDirPerm); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Append writes entry followed by a newline in a single call.
func (f *FileStore) Append(_ context.Context, entry string) error {
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	_, writeErr := file.WriteString(entry + "\n")
	closeErr := file.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to append log entry: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close log file: %w", closeErr)
	}
	return nil
}

// MultiStore fans every call out to all stores. A failing store does not
// stop the others; errors are joined.
type MultiStore struct {
	stores []Store
}

// NewMultiStore combines stores, skipping nil entries.
func NewMultiStore(stores ...Store) *MultiStore {
	kept := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiStore{stores: kept}
}

// Ensure prepares every store.
func (m *MultiStore) Ensure(ctx context.Context) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Ensure(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Append writes entry to every store.
func (m *MultiStore) Append(ctx context.Context, entry string) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
