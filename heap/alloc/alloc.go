package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/heapkit/heap/arena"
	"github.com/joshuapare/heapkit/heap/block"
	"github.com/joshuapare/heapkit/heap/seglist"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Ptr is the payload offset of a block inside the arena.
type Ptr uint32

// Null is the no-object pointer. Offset 0 is the pad word and never a payload.
const Null Ptr = 0

// firstBlock is the payload offset of the first block after the prologue.
const firstBlock = format.ProloguePayload + format.PrologueSize

// maxRequest is the largest payload a single request may ask for.
const maxRequest = arena.MaxSize - format.PrefixSize - format.TagOverhead

// Allocator serves variable-sized requests out of one arena.
type Allocator struct {
	ext   arena.Extender
	index *seglist.Index
	cfg   Config
	log   *slog.Logger
	stats Stats
}

// New builds an allocator over ext and initializes the heap.
func New(ext arena.Extender, opts ...Option) (*Allocator, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()

	a := &Allocator{
		ext:   ext,
		index: seglist.New(cfg.Classes),
		cfg:   cfg,
		log:   cfg.Logger.With("component", "alloc"),
	}
	if err := a.Init(); err != nil {
		return nil, err
	}
	return a, nil
}

// Config returns the effective configuration.
func (a *Allocator) Config() Config { return a.cfg }

// Arena returns the underlying extender.
func (a *Allocator) Arena() arena.Extender { return a.ext }

// Init discards every block and rebuilds an empty heap: the sentinels plus
// one ChunkSize free block. All outstanding pointers become invalid.
func (a *Allocator) Init() error {
	if err := a.ext.Reset(); err != nil {
		return fmt.Errorf("%w: reset arena: %w", ErrNoSpace, err)
	}
	a.index.Reset()
	a.stats = Stats{}

	if _, err := a.ext.Extend(format.PrefixSize); err != nil {
		return fmt.Errorf("%w: arena prefix: %w", ErrNoSpace, err)
	}
	data := a.ext.Bytes()
	format.PutU32(data, format.PadOffset, 0)
	block.SetTags(data, format.ProloguePayload, format.PrologueSize, true)
	block.SetEpilogue(data, firstBlock)

	if _, err := a.extend(a.cfg.ChunkSize); err != nil {
		return err
	}
	a.log.Debug("heap initialized", "bytes", a.ext.Size(), "classes", a.index.Classes())
	return nil
}

// Malloc returns a block with at least n usable bytes. Malloc(0) returns
// Null and no error.
func (a *Allocator) Malloc(n int) (Ptr, error) {
	a.stats.MallocCalls++
	p, err := a.malloc(n)
	if err != nil {
		return Null, err
	}
	if a.cfg.Trace {
		a.log.Debug("malloc", "n", n, "ptr", uint32(p))
	}
	return p, a.afterOp("malloc")
}

func (a *Allocator) malloc(n int) (Ptr, error) {
	if n == 0 {
		return Null, nil
	}
	asize, err := adjust(n)
	if err != nil {
		return Null, err
	}

	data, err := a.heapBytes()
	if err != nil {
		return Null, err
	}
	bp := a.index.FindFit(data, asize)
	if bp == block.Null {
		if bp, err = a.extend(max(asize, a.cfg.ChunkSize)); err != nil {
			return Null, err
		}
		data = a.ext.Bytes()
	} else {
		a.stats.FitHits++
	}
	a.place(data, bp, asize)
	return Ptr(bp), nil
}

// Free releases p. Free(Null) is a no-op.
func (a *Allocator) Free(p Ptr) error {
	a.stats.FreeCalls++
	if p == Null {
		return nil
	}
	data, err := a.heapBytes()
	if err != nil {
		return err
	}
	bp := int(p)
	if err := checkPtr(data, bp); err != nil {
		return err
	}
	a.release(data, bp)
	if a.cfg.Trace {
		a.log.Debug("free", "ptr", uint32(p))
	}
	return a.afterOp("free")
}

func (a *Allocator) release(data []byte, bp int) {
	size := block.Size(data, bp)
	a.stats.BytesFreed += int64(size)
	a.stats.InUse -= int64(size)
	block.SetTags(data, bp, size, false)
	a.coalesce(data, bp)
}

// Realloc resizes p to at least n usable bytes, preserving the first
// min(old usable size, n) bytes. Realloc(Null, n) is Malloc(n) and
// Realloc(p, 0) frees p and returns Null. On failure p is left intact.
func (a *Allocator) Realloc(p Ptr, n int) (Ptr, error) {
	a.stats.ReallocCalls++
	if p == Null {
		return a.Malloc(n)
	}
	if n == 0 {
		return Null, a.Free(p)
	}

	data, err := a.heapBytes()
	if err != nil {
		return Null, err
	}
	bp := int(p)
	if err := checkPtr(data, bp); err != nil {
		return Null, err
	}
	asize, err := adjust(n)
	if err != nil {
		return Null, err
	}

	csize := block.Size(data, bp)
	switch {
	case asize == csize:
		return p, nil

	case asize < csize:
		a.shrink(data, bp, asize)
		a.stats.ReallocShrink++

	default:
		next := block.Next(data, bp)
		if !block.IsAlloc(data, next) && csize+block.Size(data, next) >= asize {
			total := csize + block.Size(data, next)
			a.index.Remove(data, next)
			a.stats.InUse -= int64(csize)
			a.carve(data, bp, total, asize)
			a.stats.ReallocInPlace++
			break
		}

		np, err := a.malloc(n)
		if err != nil {
			return Null, err
		}
		data = a.ext.Bytes()
		keep := min(block.PayloadSize(data, bp), n)
		copy(data[int(np):int(np)+keep], data[bp:bp+keep])
		a.release(data, bp)
		a.stats.ReallocMoved++
		p = np
	}

	if a.cfg.Trace {
		a.log.Debug("realloc", "n", n, "ptr", uint32(p))
	}
	return p, a.afterOp("realloc")
}

// shrink cuts bp down to asize. The cut-off tail is merged with a free
// successor, and is only split off when the result is a legal block.
func (a *Allocator) shrink(data []byte, bp, asize int) {
	csize := block.Size(data, bp)
	next := block.Next(data, bp)
	nextFree := !block.IsAlloc(data, next)
	if !nextFree && csize-asize < format.MinBlockSize {
		return
	}

	total := csize
	if nextFree {
		total += block.Size(data, next)
		a.index.Remove(data, next)
		a.stats.CoalesceNext++
	}
	a.stats.InUse -= int64(csize)
	a.carve(data, bp, total, asize)
}

// Calloc allocates count*size zeroed bytes.
func (a *Allocator) Calloc(count, size int) (Ptr, error) {
	a.stats.CallocCalls++
	n, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		return Null, fmt.Errorf("%w: %d x %d", ErrOverflow, count, size)
	}
	p, err := a.malloc(n)
	if err != nil || p == Null {
		return p, err
	}
	clear(a.Payload(p))
	if a.cfg.Trace {
		a.log.Debug("calloc", "count", count, "size", size, "ptr", uint32(p))
	}
	return p, a.afterOp("calloc")
}

// Payload returns the usable bytes of p, or nil if p is not an allocated
// block. The slice aliases the arena and is invalidated by the next
// allocating call.
func (a *Allocator) Payload(p Ptr) []byte {
	data := a.ext.Bytes()
	bp := int(p)
	if checkPtr(data, bp) != nil {
		return nil
	}
	b, _ := buf.Slice(data, bp, block.PayloadSize(data, bp))
	return b
}

// UsableSize returns the usable bytes of p, or 0 if p is not an allocated block.
func (a *Allocator) UsableSize(p Ptr) int {
	data := a.ext.Bytes()
	bp := int(p)
	if checkPtr(data, bp) != nil {
		return 0
	}
	return block.PayloadSize(data, bp)
}

// extend grows the arena by at least n bytes, formats the new region as one
// free block over the old epilogue, and returns it after coalescing.
func (a *Allocator) extend(n int) (int, error) {
	// Offsets past MaxSize would not fit a tag or a Ptr.
	room := arena.MaxSize - a.ext.Size()
	if n > room {
		return block.Null, fmt.Errorf("%w: extend by %d bytes: %w", ErrNoSpace, n, arena.ErrExhausted)
	}
	words := (n + format.WordSize - 1) / format.WordSize
	size := format.EvenWords(words)
	if size > room {
		return block.Null, fmt.Errorf("%w: extend by %d bytes: %w", ErrNoSpace, size, arena.ErrExhausted)
	}

	bp, err := a.ext.Extend(size)
	if err != nil {
		a.log.Warn("arena extension failed", "bytes", size, "heap", a.ext.Size(), "error", err)
		return block.Null, fmt.Errorf("%w: extend by %d bytes: %w", ErrNoSpace, size, err)
	}
	a.stats.Extends++
	a.stats.ExtendBytes += int64(size)

	// The backing memory may have moved.
	data := a.ext.Bytes()
	block.SetTags(data, bp, size, false)
	block.SetEpilogue(data, block.Next(data, bp))

	if a.cfg.Trace {
		a.log.Debug("extend", "bytes", size, "heap", a.ext.Size())
	}
	return a.coalesce(data, bp), nil
}

// place allocates asize bytes at the start of free block bp.
func (a *Allocator) place(data []byte, bp, asize int) {
	a.index.Remove(data, bp)
	a.carve(data, bp, block.Size(data, bp), asize)
}

// carve writes bp as an allocated block spanning total bytes, splitting off
// and indexing a free tail when at least MinBlockSize would remain.
func (a *Allocator) carve(data []byte, bp, total, asize int) {
	size := total
	if total-asize >= format.MinBlockSize {
		size = asize
		rest := bp + asize
		block.SetTags(data, rest, total-asize, false)
		a.index.Insert(data, rest)
		a.stats.Splits++
	}
	block.SetTags(data, bp, size, true)

	a.stats.BytesAllocated += int64(size)
	a.stats.InUse += int64(size)
	a.stats.PeakInUse = max(a.stats.PeakInUse, a.stats.InUse)
}

// coalesce merges free block bp with its free neighbors, indexes the result
// and returns its payload offset. bp must not be indexed yet.
func (a *Allocator) coalesce(data []byte, bp int) int {
	prevAlloc := block.PrevAlloc(data, bp)
	next := block.Next(data, bp)
	nextAlloc := block.IsAlloc(data, next)
	size := block.Size(data, bp)

	switch {
	case prevAlloc && nextAlloc:
		a.stats.CoalesceNone++

	case prevAlloc && !nextAlloc:
		a.index.Remove(data, next)
		size += block.Size(data, next)
		a.stats.CoalesceNext++

	case !prevAlloc && nextAlloc:
		prev := block.Prev(data, bp)
		a.index.Remove(data, prev)
		size += block.Size(data, prev)
		bp = prev
		a.stats.CoalescePrev++

	default:
		prev := block.Prev(data, bp)
		a.index.Remove(data, prev)
		a.index.Remove(data, next)
		size += block.Size(data, prev) + block.Size(data, next)
		bp = prev
		a.stats.CoalesceBoth++
	}

	block.SetTags(data, bp, size, false)
	a.index.Insert(data, bp)
	return bp
}

// heapBytes returns the arena contents, or an error once the arena has lost
// them (closed, or a failed remap).
func (a *Allocator) heapBytes() ([]byte, error) {
	data := a.ext.Bytes()
	if len(data) <= firstBlock {
		return nil, fmt.Errorf("%w: arena holds %d bytes: %w", ErrNoSpace, len(data), arena.ErrClosed)
	}
	return data, nil
}

// adjust returns the block size serving an n-byte request.
func adjust(n int) (int, error) {
	if n < 0 || n > maxRequest {
		return 0, fmt.Errorf("%w: %d bytes", ErrOverflow, n)
	}
	return format.AdjustedSize(n), nil
}

// checkPtr validates that bp names an allocated block using only its own
// tags.
func checkPtr(data []byte, bp int) error {
	if bp < firstBlock || !format.IsAligned8(bp) {
		return fmt.Errorf("%w: 0x%X", ErrBadPointer, bp)
	}
	hdr := block.HeaderOff(bp)
	// The block must end before the epilogue header.
	if !buf.Has(data, hdr, format.MinBlockSize+format.WordSize) {
		return fmt.Errorf("%w: 0x%X outside heap", ErrBadPointer, bp)
	}
	size, alloc := format.Unpack(block.Tag(data, bp))
	if size < format.MinBlockSize || !buf.Has(data, hdr, size+format.WordSize) {
		return fmt.Errorf("%w: 0x%X has invalid size %d", ErrBadPointer, bp, size)
	}
	if block.FooterTag(data, bp) != block.Tag(data, bp) {
		return fmt.Errorf("%w: 0x%X header/footer mismatch", ErrBadPointer, bp)
	}
	if !alloc {
		return fmt.Errorf("%w: 0x%X", ErrDoubleFree, bp)
	}
	return nil
}

func (a *Allocator) afterOp(op string) error {
	if !a.cfg.CheckEveryOp {
		return nil
	}
	r := a.CheckHeap(op)
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w after %s: %w", ErrCorrupt, op, r.Err())
}
