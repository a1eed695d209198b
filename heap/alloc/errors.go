package alloc

import "errors"

var (
	// ErrNoSpace indicates that no free block fits and the arena could not grow.
	ErrNoSpace = errors.New("alloc: out of memory")

	// ErrBadPointer indicates a pointer that does not name a block in this heap.
	ErrBadPointer = errors.New("alloc: bad pointer")

	// ErrDoubleFree indicates a release of a block that is already free.
	ErrDoubleFree = errors.New("alloc: block is not allocated")

	// ErrOverflow indicates a request size that cannot be represented.
	ErrOverflow = errors.New("alloc: request size overflows")

	// ErrCorrupt indicates the heap checker found violations after an operation.
	ErrCorrupt = errors.New("alloc: heap check failed")
)
