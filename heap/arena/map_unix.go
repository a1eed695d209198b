//go:build linux || darwin || freebsd

package arena

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map is a file-backed Extender. The file is mapped read-write and shared, so
// the arena contents survive the process and can be inspected offline. Growth
// truncates the file to the new length and remaps the whole region.
type Map struct {
	f    *os.File
	data []byte
	size int
	max  int
}

// OpenMap creates (or truncates) path and returns an empty arena backed by it.
// limit <= 0 selects MaxSize.
func OpenMap(path string, limit int) (*Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("arena: open %s: %w", path, err)
	}
	return &Map{f: f, max: clampLimit(limit, MaxSize)}, nil
}

// Extend implements Extender.
func (m *Map) Extend(n int) (int, error) {
	if m.f == nil {
		return 0, ErrClosed
	}
	old := m.size
	if err := checkExtend(old, n, m.max); err != nil {
		return 0, err
	}
	if n == 0 {
		return old, nil
	}
	if err := m.remap(old + n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExhausted, err)
	}
	return old, nil
}

// remap moves the mapping to newSize bytes, restoring the old mapping on
// failure so the arena is never left unmapped.
func (m *Map) remap(newSize int) error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("unmap before grow: %w", err)
		}
		m.data = nil
	}

	if err := m.f.Truncate(int64(newSize)); err != nil {
		m.restore()
		return fmt.Errorf("truncate file: %w", err)
	}
	if newSize == 0 {
		m.size = 0
		return nil
	}

	data, err := unix.Mmap(int(m.f.Fd()), 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = m.f.Truncate(int64(m.size))
		m.restore()
		return fmt.Errorf("remap after grow: %w", err)
	}
	m.data = data
	m.size = newSize
	return nil
}

// restore maps the previous m.size bytes again after a failed grow. When that
// fails too the contents are unreachable, so the arena is closed and every
// later call returns ErrClosed.
func (m *Map) restore() {
	if m.size == 0 {
		return
	}
	data, err := unix.Mmap(int(m.f.Fd()), 0, m.size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		m.size = 0
		_ = m.f.Close()
		m.f = nil
		return
	}
	m.data = data
}

// Max returns the capacity limit.
func (m *Map) Max() int { return m.max }

// Bytes implements Extender.
func (m *Map) Bytes() []byte { return m.data }

// Lo implements Extender.
func (m *Map) Lo() int { return 0 }

// Hi implements Extender.
func (m *Map) Hi() int { return m.size - 1 }

// Size implements Extender.
func (m *Map) Size() int { return m.size }

// Sync flushes the mapped arena to its file.
func (m *Map) Sync() error {
	if m.f == nil {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Reset implements Extender.
func (m *Map) Reset() error {
	if m.f == nil {
		return ErrClosed
	}
	return m.remap(0)
}

// Close implements Extender. The file keeps the last arena contents.
func (m *Map) Close() error {
	if m.f == nil {
		return nil
	}
	var err error
	if m.data != nil {
		if serr := unix.Msync(m.data, unix.MS_SYNC); serr != nil {
			err = serr
		}
		if uerr := unix.Munmap(m.data); uerr != nil && err == nil {
			err = uerr
		}
		m.data = nil
	}
	if cerr := m.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	m.f = nil
	return err
}
