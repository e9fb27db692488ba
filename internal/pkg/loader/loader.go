package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/threadedstream/uniqwords/internal/mr"
)

// Mode selects how a file is made available to the workers.
type Mode string

const (
	// ModeAuto maps the file and falls back to ModeStream when mapping is
	// not possible.
	ModeAuto   Mode = "auto"
	ModeMmap   Mode = "mmap"
	ModeStream Mode = "stream"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeMmap, ModeStream:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown input mode %q", mr.ErrInvalidArgument, s)
}

// File is an mr.Input backed by an open file. Close releases the mapping
// and the descriptor; it is safe to call more than once.
type File interface {
	mr.Input
	io.Closer
	Mode() Mode
}

// Open loads `path` for counting
func Open(path string, mode Mode) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mr.ErrResourceUnavailable, err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: %w", mr.ErrResourceUnavailable, err), f.Close())
	}
	if fi.IsDir() {
		return nil, multierr.Append(fmt.Errorf("%w: %s is a directory", mr.ErrResourceUnavailable, path), f.Close())
	}

	switch mode {
	case ModeStream:
		return newStreamed(f, fi.Size()), nil
	case ModeMmap, ModeAuto, "":
		m, err := newMapped(f, fi.Size())
		if err == nil {
			return m, nil
		}
		if mode == ModeMmap {
			return nil, multierr.Append(fmt.Errorf("%w: mmap %s: %w", mr.ErrResourceUnavailable, path, err), f.Close())
		}
		return newStreamed(f, fi.Size()), nil
	}
	return nil, multierr.Append(fmt.Errorf("%w: unknown input mode %q", mr.ErrInvalidArgument, mode), f.Close())
}

var errClosed = errors.New("input closed")

// handle is the part shared by both File implementations.
type handle struct {
	f        *os.File
	size     int64
	closed   atomic.Bool
	once     sync.Once
	closeErr error
}

func (h *handle) Size() int64 { return h.size }

func (h *handle) check(start, end int64) error {
	if h.closed.Load() {
		return fmt.Errorf("%w: %w", mr.ErrResourceUnavailable, errClosed)
	}
	if start < 0 || end > h.size || start > end {
		return fmt.Errorf("%w: window [%d,%d) out of range %d", mr.ErrInvalidArgument, start, end, h.size)
	}
	return nil
}

func (h *handle) close(release func() error) error {
	h.once.Do(func() {
		h.closed.Store(true)
		var err error
		if release != nil {
			err = release()
		}
		h.closeErr = multierr.Append(err, h.f.Close())
	})
	return h.closeErr
}

// Mapped serves windows straight out of a read-only shared mapping.
type Mapped struct {
	handle
	data []byte
}

func newMapped(f *os.File, size int64) (*Mapped, error) {
	m := &Mapped{handle: handle{f: f, size: size}}
	if size == 0 {
		// a zero-length mapping is rejected by the kernel
		return m, nil
	}
	data, err := mapFile(f, size)
	if err != nil {
		return nil, err
	}
	m.data = data
	return m, nil
}

func (m *Mapped) Mode() Mode { return ModeMmap }

func (m *Mapped) Window(start, end int64) ([]byte, error) {
	if err := m.check(start, end); err != nil {
		return nil, err
	}
	return m.data[start:end:end], nil
}

func (m *Mapped) Close() error {
	return m.close(func() error {
		if m.data == nil {
			return nil
		}
		return unmapFile(m.data)
	})
}

// Streamed reads every window from the file with ReadAt.
type Streamed struct {
	handle
}

func newStreamed(f *os.File, size int64) *Streamed {
	return &Streamed{handle: handle{f: f, size: size}}
}

func (s *Streamed) Mode() Mode { return ModeStream }

func (s *Streamed) Window(start, end int64) ([]byte, error) {
	if err := s.check(start, end); err != nil {
		return nil, err
	}
	buf := make([]byte, end-start)
	n, err := s.f.ReadAt(buf, start)
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read [%d,%d): %w", mr.ErrResourceUnavailable, start, end, err)
	}
	return buf, nil
}

func (s *Streamed) Close() error {
	return s.close(nil)
}
