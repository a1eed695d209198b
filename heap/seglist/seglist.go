// Package seglist is the segregated free-list index of a heapkit arena.
//
// Free blocks are partitioned into power-of-two size classes. Each class is a
// doubly linked list, sorted ascending by block size, threaded through the
// free blocks' own payloads (see package block for the link slots). The index
// itself only stores one head offset per class.
//
// # Size classes
//
// With the default ten classes:
//
//	Class 0:    24 -    31 bytes
//	Class 1:    32 -    63 bytes
//	Class 2:    64 -   127 bytes
//	...
//	Class 8:  4096 -  8191 bytes
//	Class 9:  8192+        bytes (unbounded)
//
// # Fit policy
//
// FindFit is best-fit inside the request's own class (the list is sorted, so
// the first block that is large enough is the smallest one) and first-fit
// across classes: every member of a higher class is at least as large as any
// size mapped to a lower class, so the head of the next non-empty class is
// taken without looking further.
package seglist

import (
	"math/bits"

	"github.com/joshuapare/heapkit/heap/block"
	"github.com/joshuapare/heapkit/internal/format"
)

const (
	// DefaultClasses is the number of size classes of the reference sizing.
	DefaultClasses = 10

	// MinClasses is the fewest classes an index accepts.
	MinClasses = 2

	// MaxClasses keeps the largest class lower bound inside a 32-bit tag.
	MaxClasses = 27

	// classShift maps the double-word count of a size to its class:
	// class = bits.Len(size/8) - classShift.
	classShift = 2

	// smallWords is the double-word count below which sizes fall in class 0.
	smallWords = 4
)

// Index holds one list head per size class.
type Index struct {
	heads []int
}

// New returns an empty index with n size classes, clamped to
// [MinClasses, MaxClasses].
func New(n int) *Index {
	n = max(MinClasses, min(n, MaxClasses))
	return &Index{heads: make([]int, n)}
}

// Classes returns the number of size classes.
func (ix *Index) Classes() int { return len(ix.heads) }

// Head returns the first block of class k, or block.Null.
func (ix *Index) Head(k int) int { return ix.heads[k] }

// Reset empties every class.
func (ix *Index) Reset() {
	clear(ix.heads)
}

// ClassOf returns the class a block of size bytes belongs to.
func (ix *Index) ClassOf(size int) int {
	words := uint(size / format.DoubleWordSize)
	if words < smallWords {
		return 0
	}
	k := bits.Len(words) - classShift
	return min(k, len(ix.heads)-1)
}

// ClassBounds returns the half-open size range [lo, hi) of class k. The last
// class is unbounded, reported as bounded == false.
func (ix *Index) ClassBounds(k int) (lo, hi int, bounded bool) {
	if k > 0 {
		lo = 1 << (k + classShift + 2)
	}
	if k == len(ix.heads)-1 {
		return lo, 0, false
	}
	return lo, 1 << (k + classShift + 3), true
}

// Insert links free block bp into its class, keeping the list ascending by
// size. Blocks of equal size are inserted before existing ones.
func (ix *Index) Insert(data []byte, bp int) {
	size := block.Size(data, bp)
	k := ix.ClassOf(size)

	prev := block.Null
	cur := ix.heads[k]
	for cur != block.Null && block.Size(data, cur) < size {
		prev = cur
		cur = block.NextFree(data, cur)
	}

	block.SetPrevFree(data, bp, prev)
	block.SetNextFree(data, bp, cur)
	switch {
	case prev == block.Null && cur == block.Null:
		// empty class
		ix.heads[k] = bp
	case prev == block.Null:
		// new head
		block.SetPrevFree(data, cur, bp)
		ix.heads[k] = bp
	case cur == block.Null:
		// new tail
		block.SetNextFree(data, prev, bp)
	default:
		block.SetNextFree(data, prev, bp)
		block.SetPrevFree(data, cur, bp)
	}
}

// Remove unlinks free block bp from its class in O(1). bp's own links are
// left as they were; the caller is about to reuse the payload.
func (ix *Index) Remove(data []byte, bp int) {
	prev := block.PrevFree(data, bp)
	next := block.NextFree(data, bp)

	if prev == block.Null {
		ix.heads[ix.ClassOf(block.Size(data, bp))] = next
	} else {
		block.SetNextFree(data, prev, next)
	}
	if next != block.Null {
		block.SetPrevFree(data, next, prev)
	}
}

// FindFit returns a free block of at least asize bytes, or block.Null. The
// block stays linked; callers Remove it before use.
func (ix *Index) FindFit(data []byte, asize int) int {
	k := ix.ClassOf(asize)
	for cur := ix.heads[k]; cur != block.Null; cur = block.NextFree(data, cur) {
		if block.Size(data, cur) >= asize {
			return cur
		}
	}
	for k++; k < len(ix.heads); k++ {
		if ix.heads[k] != block.Null {
			return ix.heads[k]
		}
	}
	return block.Null
}

// Len walks every class and returns the number of linked blocks. Diagnostic
// only: it is O(free blocks).
func (ix *Index) Len(data []byte) int {
	n := 0
	for _, head := range ix.heads {
		for cur := head; cur != block.Null; cur = block.NextFree(data, cur) {
			n++
		}
	}
	return n
}
