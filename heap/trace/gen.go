package trace

import (
	"math/rand/v2"
)

// maxReallocPercent leaves room for frees so every generated trace ends.
const maxReallocPercent = 90

// GenOptions shapes a generated trace.
type GenOptions struct {
	IDs            int // allocation slots, each allocated exactly once
	MinSize        int // smallest request in bytes
	MaxSize        int // largest request in bytes
	ReallocPercent int // share of steps on a live id that resize instead of free, at most 90
	MaxLive        int // cap on simultaneously live ids, 0 for no cap
}

// DefaultGenOptions returns a mixed workload of a few hundred ops.
func DefaultGenOptions() GenOptions {
	return GenOptions{
		IDs:            200,
		MinSize:        1,
		MaxSize:        4096,
		ReallocPercent: 25,
	}
}

// Generate builds a random, well-formed trace: every id is allocated once,
// may be resized, and is freed by the end. The same seed and options always
// yield the same trace.
func Generate(seed uint64, opts GenOptions) *Trace {
	opts.IDs = max(opts.IDs, 1)
	opts.MinSize = max(opts.MinSize, 0)
	opts.MaxSize = max(opts.MaxSize, opts.MinSize)
	opts.ReallocPercent = min(max(opts.ReallocPercent, 0), maxReallocPercent)
	opts.MaxLive = max(opts.MaxLive, 0)

	rng := rand.New(rand.NewPCG(seed, uint64(opts.IDs)))
	size := func() int { return opts.MinSize + rng.IntN(opts.MaxSize-opts.MinSize+1) }

	tr := &Trace{NumIDs: opts.IDs, Weight: 1}
	var live []int
	sizes := make([]int, opts.IDs)
	curPayload, peakPayload := 0, 0
	next := 0

	for next < opts.IDs || len(live) > 0 {
		canAlloc := next < opts.IDs && (opts.MaxLive == 0 || len(live) < opts.MaxLive)
		if canAlloc && (len(live) == 0 || rng.IntN(2) == 0) {
			n := size()
			tr.Ops = append(tr.Ops, Op{Kind: Alloc, ID: next, Size: n})
			sizes[next] = n
			curPayload += n
			live = append(live, next)
			next++
		} else {
			j := rng.IntN(len(live))
			id := live[j]
			if rng.IntN(100) < opts.ReallocPercent {
				n := size()
				tr.Ops = append(tr.Ops, Op{Kind: Realloc, ID: id, Size: n})
				curPayload += n - sizes[id]
				sizes[id] = n
			} else {
				tr.Ops = append(tr.Ops, Op{Kind: Free, ID: id})
				curPayload -= sizes[id]
				live[j] = live[len(live)-1]
				live = live[:len(live)-1]
			}
		}
		peakPayload = max(peakPayload, curPayload)
	}

	tr.SuggestedHeap = peakPayload
	return tr
}
