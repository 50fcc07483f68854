// Package logstore implements the bounded append-only log streams.
//
// Each stream has a hard byte-capacity ceiling and an enabled latch. The
// ceiling is re-measured from the live medium on every append rather than
// tracked as a running counter: a partially failed write or a mid-session
// reset cannot drift the check. Once a stream is observed at or past its
// ceiling the latch goes off and stays off until an explicit Clear or
// WipeAll.
//
// The store is owned by a single goroutine (the recorder loop); there are no
// concurrent writers and no locks.
package logstore

import (
	"io"

	"datalogger-go/errcode"
	"datalogger-go/storage"
	"datalogger-go/types"
)

// Stream is one bounded append-only log.
type Stream struct {
	Name     string
	Path     string
	Header   string
	Capacity int64

	enabled bool
}

// Enabled reports the latch. False means the ceiling was reached and only
// Clear or WipeAll can re-enable the stream.
func (s *Stream) Enabled() bool { return s.enabled }

type Store struct {
	med     storage.Medium
	streams []*Stream
}

func New(med storage.Medium, streams ...*Stream) *Store {
	return &Store{med: med, streams: streams}
}

func (st *Store) Streams() []*Stream { return st.streams }

// Init runs once at boot: writes the header when a stream file is absent or
// empty, then sets the latch from the observed size. Returns the first
// failure but keeps initializing the remaining streams.
func (st *Store) Init() error {
	var first error
	for _, s := range st.streams {
		size, err := st.med.Size(s.Path)
		if err == storage.ErrNotExist || (err == nil && size == 0) {
			if werr := st.writeHeader(s); werr != nil {
				if first == nil {
					first = errcode.OpenFailed
				}
				continue
			}
			size, err = st.med.Size(s.Path)
		}
		if err != nil {
			if first == nil {
				first = errcode.OpenFailed
			}
			continue
		}
		s.enabled = size < s.Capacity
	}
	return first
}

// Append writes line plus a terminator to the stream.
//
// A disabled stream refuses immediately without measuring the medium. An
// enabled stream re-reads the live byte length first; at or past the ceiling
// the latch goes off, FileFull is returned, and nothing is written — a single
// oversized record can never be admitted on top of a full stream.
func (st *Store) Append(s *Stream, line string) error {
	if !s.enabled {
		return errcode.StreamDisabled
	}
	size, err := st.med.Size(s.Path)
	if err == storage.ErrNotExist {
		// A wipe elsewhere removed the file; re-create it header-first.
		if werr := st.writeHeader(s); werr != nil {
			return errcode.OpenFailed
		}
		size = int64(len(s.Header)) + 1
	} else if err != nil {
		return errcode.OpenFailed
	}
	// Strictly-before-the-write ceiling enforcement: an already-full stream
	// latches off, and so does one that this record would push past the
	// ceiling. Either way nothing is written.
	if size >= s.Capacity || size+int64(len(line))+1 > s.Capacity {
		s.enabled = false
		return errcode.FileFull
	}
	if err := st.med.Append(s.Path, []byte(line+"\n")); err != nil {
		return errcode.OpenFailed
	}
	return nil
}

// Clear deletes the stream, recreates it with its header, and re-enables it.
// On failure the stream must be treated as unusable until Clear is retried;
// the latch is deliberately left untouched.
func (st *Store) Clear(s *Stream) error {
	if err := st.med.Remove(s.Path); err != nil {
		return errcode.OpenFailed
	}
	if err := st.writeHeader(s); err != nil {
		return errcode.OpenFailed
	}
	s.enabled = true
	return nil
}

// Dump copies the stream's bytes to w in one open-copy-close pass.
func (st *Store) Dump(s *Stream, w io.Writer) error {
	r, err := st.med.Open(s.Path)
	if err != nil {
		return errcode.ReadFailed
	}
	var buf [256]byte
	_, cerr := io.CopyBuffer(w, r, buf[:])
	r.Close()
	if cerr != nil {
		return errcode.ReadFailed
	}
	return nil
}

// WipeAll formats the entire medium, then recreates every stream with its
// header and latch on. A failed format retains all prior state.
func (st *Store) WipeAll() error {
	if err := st.med.Format(); err != nil {
		return errcode.FormatFailed
	}
	var first error
	for _, s := range st.streams {
		if err := st.writeHeader(s); err != nil {
			if first == nil {
				first = errcode.OpenFailed
			}
			continue
		}
		s.enabled = true
	}
	return first
}

// Usage reports current occupancy against the ceiling. Read-only: a missing
// file counts as zero and the latch is never touched here.
func (st *Store) Usage(s *Stream) types.StreamUsage {
	size, err := st.med.Size(s.Path)
	if err != nil {
		size = 0
	}
	return types.StreamUsage{
		CurrentBytes:  size,
		CapacityBytes: s.Capacity,
		Enabled:       s.enabled,
	}
}

func (st *Store) writeHeader(s *Stream) error {
	return st.med.Append(s.Path, []byte(s.Header+"\n"))
}
