//go:build tinygo

// Package flashfs adapts a tinyfs filesystem (littlefs over the on-chip
// flash block device) to storage.Medium.
package flashfs

import (
	"io"
	"os"

	"tinygo.org/x/tinyfs"

	"datalogger-go/storage"
)

// FS is the subset of tinyfs.Filesystem we rely on; littlefs.LFS satisfies it.
type FS interface {
	OpenFile(name string, flags int) (tinyfs.File, error)
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	Format() error
	Mount() error
	Unmount() error
}

type Medium struct {
	fs FS
}

// New wraps an already-mounted filesystem.
func New(fs FS) *Medium { return &Medium{fs: fs} }

func (m *Medium) Size(path string) (int64, error) {
	st, err := m.fs.Stat(path)
	if err != nil {
		// littlefs reports a bare error for missing entries.
		return 0, storage.ErrNotExist
	}
	return st.Size(), nil
}

func (m *Medium) Append(path string, p []byte) error {
	f, err := m.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
	if err != nil {
		return err
	}
	_, werr := f.Write(p)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func (m *Medium) Open(path string) (io.ReadCloser, error) {
	f, err := m.fs.OpenFile(path, os.O_RDONLY)
	if err != nil {
		return nil, storage.ErrNotExist
	}
	return f, nil
}

func (m *Medium) Remove(path string) error {
	if err := m.fs.Remove(path); err != nil {
		// Missing entries are fine; the caller recreates on next append.
		if _, serr := m.fs.Stat(path); serr != nil {
			return nil
		}
		return err
	}
	return nil
}

// Format erases the whole medium and remounts it empty.
func (m *Medium) Format() error {
	_ = m.fs.Unmount()
	if err := m.fs.Format(); err != nil {
		_ = m.fs.Mount()
		return err
	}
	return m.fs.Mount()
}
