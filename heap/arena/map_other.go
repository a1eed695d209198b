//go:build !linux && !darwin && !freebsd

package arena

import (
	"fmt"
	"os"
)

// Map is a file-backed Extender. Without mmap support the arena lives in
// memory and is written back to the file on Sync and Close.
type Map struct {
	f   *os.File
	mem *Mem
}

// OpenMap creates (or truncates) path and returns an empty arena backed by it.
// limit <= 0 selects MaxSize.
func OpenMap(path string, limit int) (*Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("arena: open %s: %w", path, err)
	}
	mem := &Mem{max: clampLimit(limit, MaxSize)}
	return &Map{f: f, mem: mem}, nil
}

// Extend implements Extender.
func (m *Map) Extend(n int) (int, error) {
	if m.f == nil {
		return 0, ErrClosed
	}
	return m.mem.Extend(n)
}

// Max returns the capacity limit.
func (m *Map) Max() int { return m.mem.Max() }

// Bytes implements Extender.
func (m *Map) Bytes() []byte { return m.mem.Bytes() }

// Lo implements Extender.
func (m *Map) Lo() int { return 0 }

// Hi implements Extender.
func (m *Map) Hi() int { return m.mem.Hi() }

// Size implements Extender.
func (m *Map) Size() int { return m.mem.Size() }

// Sync writes the arena to its file.
func (m *Map) Sync() error {
	if m.f == nil {
		return ErrClosed
	}
	if err := m.f.Truncate(0); err != nil {
		return err
	}
	if _, err := m.f.WriteAt(m.mem.Bytes(), 0); err != nil {
		return fmt.Errorf("arena: write back: %w", err)
	}
	return nil
}

// Reset implements Extender.
func (m *Map) Reset() error {
	if m.f == nil {
		return ErrClosed
	}
	return m.mem.Reset()
}

// Close implements Extender.
func (m *Map) Close() error {
	if m.f == nil {
		return nil
	}
	err := m.Sync()
	if cerr := m.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	m.f = nil
	_ = m.mem.Close()
	return err
}
