// Package memfs is an in-memory storage.Medium for host builds and tests.
package memfs

import (
	"bytes"
	"io"
	"sync"

	"datalogger-go/storage"
)

type Medium struct {
	mu    sync.Mutex
	files map[string][]byte

	// Fault injection for tests. When set, the matching operation fails
	// with the given error before touching any file.
	AppendErr error
	OpenErr   error
	FormatErr error
}

func New() *Medium {
	return &Medium{files: make(map[string][]byte)}
}

func (m *Medium) Size(path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return 0, storage.ErrNotExist
	}
	return int64(len(b)), nil
}

func (m *Medium) Append(path string, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.files[path] = append(m.files[path], p...)
	return nil
}

func (m *Medium) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	b, ok := m.files[path]
	if !ok {
		return nil, storage.ErrNotExist
	}
	cp := append([]byte(nil), b...)
	return io.NopCloser(bytes.NewReader(cp)), nil
}

func (m *Medium) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *Medium) Format() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FormatErr != nil {
		return m.FormatErr
	}
	m.files = make(map[string][]byte)
	return nil
}
