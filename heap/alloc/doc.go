// Package alloc is the heapkit allocator: a segregated free-list,
// boundary-tag allocator over a growable byte arena.
//
// # Overview
//
// An Allocator owns one arena.Extender. Every allocation is a block inside
// that arena, addressed by the offset of its payload (a Ptr). Each block
// carries a 4-byte header and footer holding its size and allocated bit, so
// both neighbors of any block are found in O(1) and freeing merges adjacent
// free blocks immediately. Free blocks are indexed by a seglist.Index of ten
// power-of-two size classes.
//
// # Usage Example
//
//	a, err := alloc.New(arena.NewMem(0))
//	if err != nil {
//	    return err
//	}
//
//	p, err := a.Malloc(100)
//	if err != nil {
//	    return err
//	}
//	copy(a.Payload(p), "hello")
//
//	p, err = a.Realloc(p, 400) // contents preserved
//	...
//	err = a.Free(p)
//
// # Arena Layout
//
//	0   pad word
//	4   prologue header (8 | alloc)
//	8   prologue footer (8 | alloc)
//	12  first block header ... blocks ... epilogue header (0 | alloc)
//
// The prologue and epilogue are allocated sentinels, so coalescing never has
// to special-case the arena ends.
//
// # Growth
//
// When no free block fits, the arena is extended by max(request, ChunkSize)
// rounded to an even number of words. The new region becomes one free block
// whose header overwrites the old epilogue, it is merged with a free block
// just before it, and the request is placed there. Extension failures are
// returned as ErrNoSpace and leave the heap unchanged.
//
// # Placement
//
// The chosen block is split when the remainder is at least MinBlockSize
// (24 bytes); the remainder goes back into the index. Smaller remainders stay
// in the allocated block as internal fragmentation.
//
// # Invalid Pointers
//
// Free and Realloc reject pointers that are out of bounds, misaligned, have a
// header that disagrees with its footer, or name a block that is not
// allocated, returning ErrBadPointer or ErrDoubleFree. These are O(1) checks,
// not a guarantee: a pointer into the middle of a payload can still look like
// a block.
//
// # Thread Safety
//
// An Allocator is NOT thread-safe. Callers must serialize access.
//
// # Debugging
//
// Set HEAPKIT_LOG_ALLOC to log every operation at debug level, and use
// WithCheckEveryOp to run the heap checker after each mutating call.
package alloc
