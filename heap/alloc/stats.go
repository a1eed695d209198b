package alloc

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/heapkit/heap/block"
	"github.com/joshuapare/heapkit/heap/verify"
	"github.com/joshuapare/heapkit/internal/format"
)

// Stats holds allocator counters since the last Init.
type Stats struct {
	MallocCalls  int // Malloc calls, including those made by Realloc(Null, n)
	FreeCalls    int // Free calls, including Free(Null)
	ReallocCalls int
	CallocCalls  int

	FitHits     int   // requests served from the free lists without growth
	Extends     int   // arena extensions
	ExtendBytes int64 // bytes added by extensions

	Splits       int // placements that split off a free remainder
	CoalesceNone int // releases with no free neighbor
	CoalesceNext int // merges with the following block
	CoalescePrev int // merges with the preceding block
	CoalesceBoth int // merges with both neighbors

	ReallocInPlace int // grows served by absorbing the next block
	ReallocShrink  int // shrinks done in place
	ReallocMoved   int // grows that had to copy

	BytesAllocated int64 // block bytes handed out, tags included
	BytesFreed     int64 // block bytes released
	InUse          int64 // block bytes currently allocated
	PeakInUse      int64 // high-water mark of InUse
}

// Stats returns a snapshot of the counters.
func (a *Allocator) Stats() Stats { return a.stats }

// Print writes the counters to w in a fixed-width report.
func (s Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "\n=== ALLOCATOR STATISTICS ===\n")
	fmt.Fprintf(w, "Malloc calls:       %d (fit: %d)\n", s.MallocCalls, s.FitHits)
	fmt.Fprintf(w, "Free calls:         %d\n", s.FreeCalls)
	fmt.Fprintf(
		w,
		"Realloc calls:      %d (in place: %d, shrink: %d, moved: %d)\n",
		s.ReallocCalls,
		s.ReallocInPlace,
		s.ReallocShrink,
		s.ReallocMoved,
	)
	fmt.Fprintf(w, "Calloc calls:       %d\n", s.CallocCalls)
	fmt.Fprintf(w, "Extensions:         %d (%s added)\n", s.Extends, humanize.IBytes(uint64(s.ExtendBytes)))
	fmt.Fprintf(w, "Bytes allocated:    %s\n", humanize.IBytes(uint64(s.BytesAllocated)))
	fmt.Fprintf(w, "Bytes freed:        %s\n", humanize.IBytes(uint64(s.BytesFreed)))
	fmt.Fprintf(w, "In use (peak):      %s (%s)\n", humanize.IBytes(uint64(s.InUse)), humanize.IBytes(uint64(s.PeakInUse)))
	fmt.Fprintf(w, "Splits:             %d\n", s.Splits)
	fmt.Fprintf(
		w,
		"Coalesce:           none %d, next %d, prev %d, both %d\n",
		s.CoalesceNone,
		s.CoalesceNext,
		s.CoalescePrev,
		s.CoalesceBoth,
	)
}

// HeapSize returns the current arena size in bytes.
func (a *Allocator) HeapSize() int { return a.ext.Size() }

// BlockInfo describes one block of the arena.
type BlockInfo struct {
	Ptr   Ptr
	Size  int
	Alloc bool
	Class int // free-list class, -1 for allocated blocks
}

// Blocks walks the arena from the first block to the epilogue. The walk
// stops early at a block whose size is corrupt.
func (a *Allocator) Blocks() []BlockInfo {
	data := a.ext.Bytes()
	var out []BlockInfo
	for bp := firstBlock; bp+format.WordSize <= len(data); {
		size, alloc := format.Unpack(block.Tag(data, bp))
		if size == 0 || bp-format.WordSize+size > len(data) {
			break
		}
		class := -1
		if !alloc {
			class = a.index.ClassOf(size)
		}
		out = append(out, BlockInfo{Ptr: Ptr(bp), Size: size, Alloc: alloc, Class: class})
		bp += size
	}
	return out
}

// FreeBlocks returns the number of blocks linked in each size class.
func (a *Allocator) FreeBlocks() []int {
	counts := make([]int, a.index.Classes())
	data, err := a.heapBytes()
	if err != nil {
		return counts
	}
	for k := range counts {
		for cur := a.index.Head(k); cur != block.Null; cur = block.NextFree(data, cur) {
			counts[k]++
		}
	}
	return counts
}

// ClassBounds returns the half-open size range [lo, hi) of free-list class
// k. The last class is unbounded.
func (a *Allocator) ClassBounds(k int) (lo, hi int, bounded bool) {
	return a.index.ClassBounds(k)
}

// CheckHeap runs the consistency checker and logs each violation at warn
// level under tag. It never modifies the heap.
func (a *Allocator) CheckHeap(tag string) *verify.Report {
	r := verify.Heap(tag, verify.View{
		Data:  a.ext.Bytes(),
		Lo:    a.ext.Lo(),
		Hi:    a.ext.Hi(),
		Index: a.index,
	})
	for _, v := range r.Violations {
		a.log.Warn("heap check", "tag", tag, "kind", string(v.Kind), "offset", v.Offset, "msg", v.Message)
	}
	return r
}
