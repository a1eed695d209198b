package arena

// Mem is an Extender backed by a Go byte slice with a hard capacity limit.
type Mem struct {
	data   []byte
	max    int
	closed bool
}

// NewMem returns an empty in-memory arena that refuses to grow beyond limit
// bytes. limit <= 0 selects DefaultMaxSize; larger limits are capped at
// MaxSize.
func NewMem(limit int) *Mem {
	return &Mem{max: clampLimit(limit, DefaultMaxSize)}
}

// Extend implements Extender.
func (m *Mem) Extend(n int) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	old := len(m.data)
	if err := checkExtend(old, n, m.max); err != nil {
		return 0, err
	}
	if n == 0 {
		return old, nil
	}
	if cap(m.data)-old >= n {
		m.data = m.data[:old+n]
		clear(m.data[old:])
		return old, nil
	}
	// Grow geometrically, capped at the limit.
	newCap := min(max(2*cap(m.data), old+n), m.max)
	grown := make([]byte, old+n, newCap)
	copy(grown, m.data)
	m.data = grown
	return old, nil
}

// Bytes implements Extender.
func (m *Mem) Bytes() []byte { return m.data }

// Lo implements Extender.
func (m *Mem) Lo() int { return 0 }

// Hi implements Extender.
func (m *Mem) Hi() int { return len(m.data) - 1 }

// Size implements Extender.
func (m *Mem) Size() int { return len(m.data) }

// Max returns the capacity limit.
func (m *Mem) Max() int { return m.max }

// Reset implements Extender. The backing array is kept for reuse.
func (m *Mem) Reset() error {
	if m.closed {
		return ErrClosed
	}
	m.data = m.data[:0]
	return nil
}

// Close implements Extender.
func (m *Mem) Close() error {
	m.data = nil
	m.closed = true
	return nil
}
