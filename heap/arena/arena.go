// Package arena supplies the growable byte region a heapkit allocator manages.
//
// An Extender only appends bytes and reports bounds; it has no knowledge of
// blocks. Every implementation may move its backing memory when it grows, so
// callers must re-read Bytes() after each Extend and address the arena by
// offset, never by retained slices.
package arena

import (
	"errors"
	"math"

	"github.com/joshuapare/heapkit/internal/format"
)

// DefaultMaxSize is the default capacity limit of a Mem arena (20 MiB).
const DefaultMaxSize = 20 * (1 << 20)

// MaxSize is the largest arena any Extender will grow to: the bound of the
// 32-bit block format, or the int range where that is smaller.
const MaxSize = min(format.MaxArenaSize, math.MaxInt)

var (
	// ErrExhausted indicates the arena cannot grow by the requested amount.
	ErrExhausted = errors.New("arena: out of memory")

	// ErrInvalidSize indicates a negative or misaligned extension request.
	ErrInvalidSize = errors.New("arena: invalid extension size")

	// ErrClosed indicates an operation on a closed arena.
	ErrClosed = errors.New("arena: closed")
)

// Extender is the host-side primitive behind an allocator: grow the arena at
// its high end and report the current bounds.
type Extender interface {
	// Extend appends n zeroed bytes and returns the offset of the first new
	// byte (the old break). On failure the arena is unchanged.
	Extend(n int) (int, error)

	// Bytes returns the current arena contents. The slice is invalidated by
	// the next Extend or Reset.
	Bytes() []byte

	// Lo returns the offset of the first arena byte (always 0).
	Lo() int

	// Hi returns the offset of the last arena byte, or -1 when empty.
	Hi() int

	// Size returns the number of bytes in the arena.
	Size() int

	// Reset drops all bytes, returning the arena to empty.
	Reset() error

	// Close releases backing resources.
	Close() error
}

// clampLimit bounds a caller limit by MaxSize. limit <= 0 selects def.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxSize)
}

func checkExtend(cur, n, limit int) error {
	if n < 0 || n%8 != 0 {
		return ErrInvalidSize
	}
	if n > limit-cur {
		return ErrExhausted
	}
	return nil
}
