package alloc

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/arena"
)

type liveBlock struct {
	p    Ptr
	n    int
	seed byte
}

func fillPattern(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func requirePattern(t *testing.T, b []byte, seed byte) {
	t.Helper()
	for i := range b {
		if b[i] != seed+byte(i) {
			require.Failf(t, "payload corrupted", "byte %d: got 0x%02X want 0x%02X", i, b[i], seed+byte(i))
		}
	}
}

// randomSize favors small requests with an occasional large one.
func randomSize(rng *rand.Rand) int {
	switch r := rng.IntN(100); {
	case r < 70:
		return 1 + rng.IntN(64)
	case r < 95:
		return 64 + rng.IntN(1024)
	default:
		return 1024 + rng.IntN(16384)
	}
}

// TestRandomTrace_InvariantsHold drives a pseudo-random mix of malloc, free
// and realloc, checking the heap after every call and the payload contents
// of every live block before it is touched.
func TestRandomTrace_InvariantsHold(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		a := newTestAllocator(t)
		rng := rand.New(rand.NewPCG(seed, 99))
		var live []liveBlock

		for i := range 3000 {
			op := rng.IntN(10)
			switch {
			case op < 5 || len(live) == 0:
				n := randomSize(rng)
				p := mustMalloc(t, a, n)
				b := liveBlock{p: p, n: n, seed: byte(i)}
				fillPattern(a.Payload(p)[:n], b.seed)
				live = append(live, b)

			case op < 8:
				j := rng.IntN(len(live))
				b := live[j]
				requirePattern(t, a.Payload(b.p)[:b.n], b.seed)
				require.NoError(t, a.Free(b.p))
				live = slices.Delete(live, j, j+1)

			default:
				j := rng.IntN(len(live))
				b := live[j]
				n := randomSize(rng)
				p, err := a.Realloc(b.p, n)
				require.NoError(t, err)
				requirePattern(t, a.Payload(p)[:min(n, b.n)], b.seed)

				live[j] = liveBlock{p: p, n: n, seed: byte(i)}
				fillPattern(a.Payload(p)[:n], live[j].seed)
			}
		}

		// Live payloads never overlap.
		slices.SortFunc(live, func(x, y liveBlock) int { return int(x.p) - int(y.p) })
		for j := 1; j < len(live); j++ {
			prev := live[j-1]
			require.LessOrEqual(t, int(prev.p)+a.UsableSize(prev.p), int(live[j].p))
		}

		for _, b := range live {
			requirePattern(t, a.Payload(b.p)[:b.n], b.seed)
			require.NoError(t, a.Free(b.p))
		}
		blocks := a.Blocks()
		require.Len(t, blocks, 1, "seed %d: freeing everything leaves one block", seed)
		require.False(t, blocks[0].Alloc)
	}
}

// TestRandomTrace_TightArena repeats the mix against a small arena so
// extension failures happen mid-trace.
func TestRandomTrace_TightArena(t *testing.T) {
	a, err := New(arena.NewMem(16<<10), WithCheckEveryOp(true))
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(7, 7))
	var live []Ptr
	failures := 0

	for range 2000 {
		if rng.IntN(3) > 0 || len(live) == 0 {
			p, err := a.Malloc(randomSize(rng))
			if err != nil {
				require.ErrorIs(t, err, ErrNoSpace)
				failures++
				continue
			}
			live = append(live, p)
			continue
		}
		j := rng.IntN(len(live))
		require.NoError(t, a.Free(live[j]))
		live = slices.Delete(live, j, j+1)
	}
	require.Positive(t, failures)
	require.LessOrEqual(t, a.HeapSize(), 16<<10)
	require.True(t, a.CheckHeap("tight").OK())
}

func BenchmarkMallocFree(b *testing.B) {
	a, err := New(arena.NewMem(0))
	require.NoError(b, err)
	rng := rand.New(rand.NewPCG(1, 1))
	ptrs := make([]Ptr, 0, 256)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if len(ptrs) < cap(ptrs) && rng.IntN(2) == 0 {
			p, err := a.Malloc(randomSize(rng))
			if err != nil {
				b.Fatal(err)
			}
			ptrs = append(ptrs, p)
			continue
		}
		if len(ptrs) == 0 {
			continue
		}
		j := rng.IntN(len(ptrs))
		if err := a.Free(ptrs[j]); err != nil {
			b.Fatal(err)
		}
		ptrs[j] = ptrs[len(ptrs)-1]
		ptrs = ptrs[:len(ptrs)-1]
	}
}
