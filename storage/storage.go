// Package storage defines the narrow persistent-medium surface the log store
// depends on. Every call opens, acts, and closes within one operation: no
// handle survives between calls, so an abrupt power loss never catches a
// stream held open mid-write.
package storage

import (
	"errors"
	"io"
)

// ErrNotExist is returned by Size and Open when the file is absent.
var ErrNotExist = errors.New("storage: file does not exist")

type Medium interface {
	// Size returns the stored byte length of path, or ErrNotExist.
	Size(path string) (int64, error)

	// Append opens path (creating it if needed), appends p, and closes it.
	Append(path string, p []byte) error

	// Open returns a reader positioned at the start of path. The caller
	// consumes it once and closes it; a restart requires reopening.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes path. Removing a missing file is not an error.
	Remove(path string) error

	// Format erases the whole medium.
	Format() error
}
