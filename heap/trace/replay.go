package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	// ErrSequence indicates an op on an id in the wrong state, such as a
	// free before the allocation.
	ErrSequence = errors.New("trace: invalid op sequence")

	// ErrInvalid indicates the allocator returned an unusable block.
	ErrInvalid = errors.New("trace: allocator returned invalid block")

	// ErrClobbered indicates payload bytes changed while a block was live.
	ErrClobbered = errors.New("trace: payload clobbered")
)

// ReplayOptions controls Replay.
type ReplayOptions struct {
	// Validate checks every returned block: alignment, arena bounds, overlap
	// with other live blocks and preservation of payload contents.
	Validate bool

	// Check runs the heap checker after every op.
	Check bool

	// Logger receives per-op debug logs. Nil means logger.L.
	Logger *slog.Logger
}

// Result summarizes one replay.
type Result struct {
	Name        string
	Ops         int
	Allocs      int
	Reallocs    int
	Frees       int
	PeakPayload int           // high-water mark of requested live bytes
	HeapSize    int           // arena size at the end of the trace
	Utilization float64       // PeakPayload / HeapSize
	Elapsed     time.Duration // wall time spent in allocator calls and checks
	Stats       alloc.Stats
}

// span is the requested extent of one live id.
type span struct {
	lo, hi int
	id     int
}

type replayer struct {
	a    *alloc.Allocator
	opts ReplayOptions
	log  *slog.Logger

	ptrs  []alloc.Ptr
	sizes []int
	live  []bool
	spans []span // sorted by lo

	payload int
}

// Replay runs tr against a, which is re-initialized first. It stops at the
// first allocator error or validation failure and reports the op index.
func Replay(a *alloc.Allocator, tr *Trace, opts ReplayOptions) (*Result, error) {
	if err := a.Init(); err != nil {
		return nil, err
	}
	r := &replayer{
		a:     a,
		opts:  opts,
		log:   opts.Logger,
		ptrs:  make([]alloc.Ptr, tr.NumIDs),
		sizes: make([]int, tr.NumIDs),
		live:  make([]bool, tr.NumIDs),
	}
	if r.log == nil {
		r.log = logger.L
	}

	res := &Result{Name: tr.Name}
	start := time.Now()
	for i, op := range tr.Ops {
		if err := r.step(op); err != nil {
			return nil, fmt.Errorf("op %d (%c %d): %w", i, op.Kind, op.ID, err)
		}
		if opts.Check {
			if rep := a.CheckHeap(fmt.Sprintf("%s op %d", tr.Name, i)); !rep.OK() {
				return nil, fmt.Errorf("op %d (%c %d): %w: %w", i, op.Kind, op.ID, alloc.ErrCorrupt, rep.Err())
			}
		}
		switch op.Kind {
		case Alloc:
			res.Allocs++
		case Realloc:
			res.Reallocs++
		case Free:
			res.Frees++
		}
		res.Ops++
		res.PeakPayload = max(res.PeakPayload, r.payload)
	}
	res.Elapsed = time.Since(start)

	res.HeapSize = a.HeapSize()
	if res.HeapSize > 0 {
		res.Utilization = float64(res.PeakPayload) / float64(res.HeapSize)
	}
	res.Stats = a.Stats()
	r.log.Debug("trace replayed", "trace", tr.Name, "ops", res.Ops, "heap", res.HeapSize, "util", res.Utilization)
	return res, nil
}

func (r *replayer) step(op Op) error {
	if op.ID < 0 || op.ID >= len(r.ptrs) {
		return fmt.Errorf("%w: id out of range", ErrSequence)
	}
	id := op.ID

	switch op.Kind {
	case Alloc:
		if r.live[id] {
			return fmt.Errorf("%w: id already allocated", ErrSequence)
		}
		p, err := r.a.Malloc(op.Size)
		if err != nil {
			return err
		}
		if err := r.admit(id, p, op.Size); err != nil {
			return err
		}
		r.fill(id, 0)

	case Realloc:
		if !r.live[id] {
			return fmt.Errorf("%w: realloc of unallocated id", ErrSequence)
		}
		old := r.sizes[id]
		if err := r.verify(id, old); err != nil {
			return err
		}
		r.retire(id)
		p, err := r.a.Realloc(r.ptrs[id], op.Size)
		if err != nil {
			return err
		}
		if err := r.admit(id, p, op.Size); err != nil {
			return err
		}
		if err := r.verify(id, min(old, op.Size)); err != nil {
			return err
		}
		r.fill(id, min(old, op.Size))

	case Free:
		if !r.live[id] {
			return fmt.Errorf("%w: free of unallocated id", ErrSequence)
		}
		if err := r.verify(id, r.sizes[id]); err != nil {
			return err
		}
		r.retire(id)
		if err := r.a.Free(r.ptrs[id]); err != nil {
			return err
		}
		r.ptrs[id] = alloc.Null
		r.live[id] = false

	default:
		return fmt.Errorf("%w: unknown op %q", ErrSequence, byte(op.Kind))
	}

	r.log.Debug("trace op", "kind", op.Kind.String(), "id", id, "size", op.Size, "ptr", uint32(r.ptrs[id]))
	return nil
}

// admit records p as the block of id and validates its placement.
func (r *replayer) admit(id int, p alloc.Ptr, n int) error {
	r.ptrs[id] = p
	r.sizes[id] = n
	r.live[id] = true
	r.payload += n

	if !r.opts.Validate || n == 0 {
		return nil
	}
	lo, hi := int(p), int(p)+n
	ext := r.a.Arena()
	if !format.IsAligned8(lo) {
		return fmt.Errorf("%w: payload 0x%X not 8-byte aligned", ErrInvalid, lo)
	}
	if lo < ext.Lo() || hi-1 > ext.Hi() {
		return fmt.Errorf("%w: payload [0x%X,0x%X) outside arena [0x%X,0x%X]", ErrInvalid, lo, hi, ext.Lo(), ext.Hi())
	}

	i, _ := slices.BinarySearchFunc(r.spans, lo, func(s span, lo int) int { return s.lo - lo })
	if i > 0 && r.spans[i-1].hi > lo {
		prev := r.spans[i-1]
		return fmt.Errorf("%w: payload [0x%X,0x%X) overlaps id %d at [0x%X,0x%X)", ErrInvalid, lo, hi, prev.id, prev.lo, prev.hi)
	}
	if i < len(r.spans) && r.spans[i].lo < hi {
		next := r.spans[i]
		return fmt.Errorf("%w: payload [0x%X,0x%X) overlaps id %d at [0x%X,0x%X)", ErrInvalid, lo, hi, next.id, next.lo, next.hi)
	}
	r.spans = slices.Insert(r.spans, i, span{lo: lo, hi: hi, id: id})
	return nil
}

// retire drops id's span and payload accounting before its block changes.
func (r *replayer) retire(id int) {
	r.payload -= r.sizes[id]
	if !r.opts.Validate || r.sizes[id] == 0 {
		return
	}
	lo := int(r.ptrs[id])
	if i, ok := slices.BinarySearchFunc(r.spans, lo, func(s span, lo int) int { return s.lo - lo }); ok {
		r.spans = slices.Delete(r.spans, i, i+1)
	}
}

// pattern is the byte stored at offset j of id's payload.
func pattern(id, j int) byte { return byte(id*31 + j) }

// fill writes id's pattern from byte from to the end of its request.
func (r *replayer) fill(id, from int) {
	if !r.opts.Validate || r.sizes[id] == 0 {
		return
	}
	b := r.a.Payload(r.ptrs[id])
	for j := from; j < r.sizes[id]; j++ {
		b[j] = pattern(id, j)
	}
}

// verify checks the first n bytes of id's payload.
func (r *replayer) verify(id, n int) error {
	if !r.opts.Validate || n == 0 {
		return nil
	}
	b := r.a.Payload(r.ptrs[id])
	if len(b) < n {
		return fmt.Errorf("%w: id %d has %d usable bytes, needs %d", ErrInvalid, id, len(b), n)
	}
	for j := range n {
		if b[j] != pattern(id, j) {
			return fmt.Errorf("%w: id %d byte %d", ErrClobbered, id, j)
		}
	}
	return nil
}
