// Package verify checks the structural invariants of a heapkit arena.
//
// Heap walks the arena block by block and then every free-list class, and
// reports what it finds as a list of violations. It never writes to the arena
// and never panics, however corrupted the bytes are: every offset is bounds
// checked before it is read and every walk is bounded by the number of blocks
// the arena could possibly hold.
package verify

import (
	"errors"
	"fmt"

	"github.com/joshuapare/heapkit/heap/block"
	"github.com/joshuapare/heapkit/heap/seglist"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Kind classifies a violation.
type Kind string

const (
	KindPrologue        Kind = "Prologue"
	KindEpilogue        Kind = "Epilogue"
	KindBounds          Kind = "Bounds"
	KindAlignment       Kind = "Alignment"
	KindSize            Kind = "Size"
	KindTagMismatch     Kind = "TagMismatch"
	KindAdjacentFree    Kind = "AdjacentFree"
	KindClassRange      Kind = "ClassRange"
	KindOrder           Kind = "Order"
	KindLink            Kind = "Link"
	KindAllocatedInList Kind = "AllocatedInList"
	KindCycle           Kind = "Cycle"
	KindDuplicate       Kind = "Duplicate"
	KindUnlisted        Kind = "Unlisted"
	KindCount           Kind = "Count"
)

// Violation is one broken invariant.
type Violation struct {
	Kind    Kind
	Message string
	Offset  int // payload offset of the offending block, -1 if none
	Details map[string]any
}

func (v *Violation) Error() string {
	if v.Offset < 0 {
		return fmt.Sprintf("%s: %s", v.Kind, v.Message)
	}
	return fmt.Sprintf("%s at offset 0x%X: %s", v.Kind, v.Offset, v.Message)
}

// Report is the outcome of one Heap call.
type Report struct {
	Tag        string
	Violations []*Violation

	Blocks   int // blocks seen by the arena walk, sentinels excluded
	HeapFree int // free blocks seen by the arena walk
	ListFree int // free blocks seen by the class walk
}

// OK reports whether no violation was found.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Err joins every violation into one error, nil when the heap is consistent.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Violations))
	for i, v := range r.Violations {
		errs[i] = v
	}
	return errors.Join(errs...)
}

// Has reports whether any violation of kind k was found.
func (r *Report) Has(k Kind) bool {
	for _, v := range r.Violations {
		if v.Kind == k {
			return true
		}
	}
	return false
}

func (r *Report) add(kind Kind, off int, msg string, args ...any) {
	r.Violations = append(r.Violations, &Violation{
		Kind:    kind,
		Message: fmt.Sprintf(msg, args...),
		Offset:  off,
	})
}

// View is the read-only state the checker inspects.
type View struct {
	Data  []byte
	Lo    int
	Hi    int
	Index *seglist.Index
}

// firstBlock is the payload offset of the first block after the prologue.
const firstBlock = format.ProloguePayload + format.PrologueSize

// Heap checks every invariant of v and returns the findings.
func Heap(tag string, v View) *Report {
	r := &Report{Tag: tag}
	free := arenaWalk(r, v)
	listed := classWalk(r, v)

	for bp := range free {
		if !listed[bp] {
			r.add(KindUnlisted, bp, "free block is not in any class list")
		}
	}
	if r.HeapFree != r.ListFree {
		r.Violations = append(r.Violations, &Violation{
			Kind:    KindCount,
			Message: fmt.Sprintf("arena walk found %d free blocks, class lists hold %d", r.HeapFree, r.ListFree),
			Offset:  -1,
			Details: map[string]any{"heap": r.HeapFree, "lists": r.ListFree},
		})
	}
	return r
}

// maxSteps bounds any walk over data: no chain of distinct blocks can be
// longer than this.
func maxSteps(data []byte) int {
	return len(data)/format.MinBlockSize + 1
}

func arenaWalk(r *Report, v View) map[int]bool {
	data := v.Data
	free := make(map[int]bool)

	if len(data) < format.PrefixSize {
		r.add(KindBounds, -1, "arena too small: %d bytes", len(data))
		return free
	}
	if v.Lo != 0 || v.Hi != len(data)-1 {
		r.add(KindBounds, -1, "bounds [%d,%d] disagree with %d arena bytes", v.Lo, v.Hi, len(data))
	}

	pro := format.Pack(format.PrologueSize, true)
	if block.Tag(data, format.ProloguePayload) != pro ||
		format.ReadU32(data, format.ProloguePayload) != pro {
		r.add(KindPrologue, format.ProloguePayload, "prologue tags are 0x%08X/0x%08X",
			block.Tag(data, format.ProloguePayload), format.ReadU32(data, format.ProloguePayload))
	}

	prevFree := false
	limit := maxSteps(data)
	bp := firstBlock
	for step := 0; ; step++ {
		hdr := block.HeaderOff(bp)
		if !buf.Has(data, hdr, format.WordSize) {
			r.add(KindEpilogue, bp, "walk ran past the arena end without an epilogue")
			return free
		}
		size, alloc := format.Unpack(format.ReadU32(data, hdr))
		if size == 0 {
			if !alloc {
				r.add(KindEpilogue, bp, "epilogue is marked free")
			}
			if hdr != len(data)-format.WordSize {
				r.add(KindEpilogue, bp, "zero-size header %d bytes before the arena end", len(data)-hdr)
			}
			return free
		}
		if step >= limit {
			r.add(KindCycle, bp, "arena walk exceeded %d blocks", limit)
			return free
		}
		r.Blocks++

		if !format.IsAligned8(bp) {
			r.add(KindAlignment, bp, "payload not 8-byte aligned")
		}
		if size < format.MinBlockSize {
			r.add(KindSize, bp, "block size %d below minimum %d", size, format.MinBlockSize)
		}
		if !buf.Has(data, hdr, size) {
			r.add(KindBounds, bp, "block of %d bytes runs past the arena end", size)
			return free
		}
		if ftr := block.FooterTag(data, bp); ftr != block.Tag(data, bp) {
			r.add(KindTagMismatch, bp, "header 0x%08X != footer 0x%08X", block.Tag(data, bp), ftr)
		}
		if !alloc {
			r.HeapFree++
			free[bp] = true
			if prevFree {
				r.add(KindAdjacentFree, bp, "free block follows another free block")
			}
		}
		prevFree = !alloc
		bp += size
	}
}

// inArena reports whether bp could name a block whose minimal extent lies
// inside the arena.
func inArena(v View, bp int) bool {
	return bp >= firstBlock && format.IsAligned8(bp) &&
		bp-format.WordSize >= v.Lo && buf.Has(v.Data, bp-format.WordSize, format.MinBlockSize)
}

func classWalk(r *Report, v View) map[int]bool {
	listed := make(map[int]bool)
	if v.Index == nil || len(v.Data) < format.PrefixSize {
		return listed
	}
	data := v.Data
	limit := maxSteps(data)

	for k := range v.Index.Classes() {
		lo, hi, bounded := v.Index.ClassBounds(k)
		prev := block.Null
		prevSize := 0
		steps := 0
		for cur := v.Index.Head(k); cur != block.Null; cur = block.NextFree(data, cur) {
			if steps++; steps > limit {
				r.add(KindCycle, cur, "class %d list exceeds %d members", k, limit)
				break
			}
			if !inArena(v, cur) {
				r.add(KindLink, prev, "class %d link to 0x%X leaves the arena", k, cur)
				break
			}
			if listed[cur] {
				r.add(KindDuplicate, cur, "block linked more than once (class %d)", k)
				break
			}
			listed[cur] = true
			r.ListFree++

			size, alloc := format.Unpack(block.Tag(data, cur))
			if alloc {
				r.add(KindAllocatedInList, cur, "allocated block in class %d list", k)
			}
			if size < lo || (bounded && size >= hi) {
				r.add(KindClassRange, cur, "size %d outside class %d range", size, k)
			}
			if size < prevSize {
				r.add(KindOrder, cur, "size %d after %d in class %d", size, prevSize, k)
			}
			if back := block.PrevFree(data, cur); back != prev {
				r.add(KindLink, cur, "prev link 0x%X, expected 0x%X", back, prev)
			}
			prev, prevSize = cur, size
		}
	}
	return listed
}
