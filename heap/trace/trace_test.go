package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/arena"
)

func newAllocator(t *testing.T, limit int) *alloc.Allocator {
	t.Helper()
	a, err := alloc.New(arena.NewMem(limit))
	require.NoError(t, err)
	return a
}

// TestParse_Short1 tests parsing of a small balanced trace.
func TestParse_Short1(t *testing.T) {
	tr, err := Load(filepath.Join("testdata", "short1.rep"))
	require.NoError(t, err)

	assert.Equal(t, "short1.rep", tr.Name)
	assert.Equal(t, 20000, tr.SuggestedHeap)
	assert.Equal(t, 6, tr.NumIDs)
	assert.Equal(t, 1, tr.Weight)
	require.Len(t, tr.Ops, 12)
	assert.Equal(t, Op{Kind: Alloc, ID: 0, Size: 2040}, tr.Ops[0])
	assert.Equal(t, Op{Kind: Free, ID: 1}, tr.Ops[2])
}

// TestParse_SkipsBlankLines tests that blank lines are ignored anywhere.
func TestParse_SkipsBlankLines(t *testing.T) {
	src := "\n100\n1\n\n2\n1\n\na 0 8\n\nf 0\n\n"
	tr, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, tr.Ops, 2)
}

// TestParse_Errors tests detection of malformed input.
func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"short header":    "100\n1\n",
		"bad header":      "100\nx\n1\n1\na 0 8\n",
		"unknown op":      "100\n1\n1\n1\nx 0 8\n",
		"id out of range": "100\n1\n1\n1\na 1 8\n",
		"missing size":    "100\n1\n1\n1\na 0\n",
		"extra field":     "100\n1\n1\n1\nf 0 8\n",
		"negative size":   "100\n1\n1\n1\na 0 -8\n",
		"op count":        "100\n1\n3\n1\na 0 8\nf 0\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src))
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

// TestWrite_ParsesBack tests that Write emits what Parse reads.
func TestWrite_ParsesBack(t *testing.T) {
	tr := Generate(5, DefaultGenOptions())

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tr))
	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, tr, got)
}

// TestSaveLoad_Snappy tests the compressed file form.
func TestSaveLoad_Snappy(t *testing.T) {
	tr := Generate(9, GenOptions{IDs: 50, MinSize: 8, MaxSize: 512, ReallocPercent: 30})
	dir := t.TempDir()

	plain := filepath.Join(dir, "gen.rep")
	packed := filepath.Join(dir, "gen.rep.sz")
	require.NoError(t, Save(plain, tr))
	require.NoError(t, Save(packed, tr))

	raw, err := os.ReadFile(packed)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\xff\x06\x00\x00sNaPpY")), "snappy stream identifier")

	a, err := Load(plain)
	require.NoError(t, err)
	b, err := Load(packed)
	require.NoError(t, err)
	assert.Equal(t, "gen.rep", b.Name)
	assert.Equal(t, a.Ops, b.Ops)
	assert.Equal(t, tr.Ops, b.Ops)
}

// TestGenerate_WellFormed tests that generated traces free every id exactly once.
func TestGenerate_WellFormed(t *testing.T) {
	tr := Generate(1, GenOptions{IDs: 300, MinSize: 1, MaxSize: 2000, ReallocPercent: 40, MaxLive: 20})

	live := make(map[int]bool)
	allocated := make(map[int]bool)
	maxLive := 0
	for _, op := range tr.Ops {
		switch op.Kind {
		case Alloc:
			require.False(t, allocated[op.ID], "id %d allocated twice", op.ID)
			allocated[op.ID] = true
			live[op.ID] = true
		case Realloc:
			require.True(t, live[op.ID])
		case Free:
			require.True(t, live[op.ID])
			delete(live, op.ID)
		}
		maxLive = max(maxLive, len(live))
		require.GreaterOrEqual(t, op.Size, 0)
		require.LessOrEqual(t, op.Size, 2000)
	}
	assert.Len(t, allocated, 300)
	assert.Empty(t, live)
	assert.LessOrEqual(t, maxLive, 20)
	assert.Positive(t, tr.SuggestedHeap)
}

// TestGenerate_Deterministic tests that a seed reproduces its trace.
func TestGenerate_Deterministic(t *testing.T) {
	opts := DefaultGenOptions()
	assert.Equal(t, Generate(42, opts), Generate(42, opts))
	assert.NotEqual(t, Generate(42, opts).Ops, Generate(43, opts).Ops)
}

// TestReplay_Short1 tests replay accounting on a known trace.
func TestReplay_Short1(t *testing.T) {
	tr, err := Load(filepath.Join("testdata", "short1.rep"))
	require.NoError(t, err)
	a := newAllocator(t, 0)

	res, err := Replay(a, tr, ReplayOptions{Validate: true, Check: true})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Ops)
	assert.Equal(t, 6, res.Allocs)
	assert.Equal(t, 6, res.Frees)
	assert.Equal(t, 8144, res.PeakPayload)
	assert.Equal(t, a.HeapSize(), res.HeapSize)
	assert.Greater(t, res.Utilization, 0.5)
	assert.LessOrEqual(t, res.Utilization, 1.0)
	assert.Len(t, a.Blocks(), 1, "every id freed")
}

// TestReplay_Realloc tests content preservation across resizes.
func TestReplay_Realloc(t *testing.T) {
	tr, err := Load(filepath.Join("testdata", "realloc.rep"))
	require.NoError(t, err)

	res, err := Replay(newAllocator(t, 0), tr, ReplayOptions{Validate: true, Check: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reallocs)
	assert.Equal(t, 250, res.PeakPayload)
}

// TestReplay_Generated tests a long random workload end to end.
func TestReplay_Generated(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 4} {
		tr := Generate(seed, GenOptions{IDs: 400, MinSize: 0, MaxSize: 3000, ReallocPercent: 30, MaxLive: 60})
		a := newAllocator(t, 0)

		res, err := Replay(a, tr, ReplayOptions{Validate: true, Check: true})
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, len(tr.Ops), res.Ops)
		assert.Equal(t, tr.SuggestedHeap, res.PeakPayload)
		assert.Len(t, a.Blocks(), 1)
	}
}

// TestReplay_ReinitializesAllocator tests that consecutive replays start clean.
func TestReplay_ReinitializesAllocator(t *testing.T) {
	tr, err := Load(filepath.Join("testdata", "short1.rep"))
	require.NoError(t, err)
	a := newAllocator(t, 0)

	first, err := Replay(a, tr, ReplayOptions{})
	require.NoError(t, err)
	second, err := Replay(a, tr, ReplayOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.HeapSize, second.HeapSize)
	assert.Equal(t, first.Stats.Extends, second.Stats.Extends)
}

// TestReplay_BadSequence tests rejection of ops on ids in the wrong state.
func TestReplay_BadSequence(t *testing.T) {
	cases := map[string][]Op{
		"free before alloc":    {{Kind: Free, ID: 0}},
		"realloc before alloc": {{Kind: Realloc, ID: 0, Size: 8}},
		"double alloc":         {{Kind: Alloc, ID: 0, Size: 8}, {Kind: Alloc, ID: 0, Size: 8}},
		"id out of range":      {{Kind: Alloc, ID: 5, Size: 8}},
	}
	for name, ops := range cases {
		t.Run(name, func(t *testing.T) {
			tr := &Trace{NumIDs: 1, Ops: ops}
			_, err := Replay(newAllocator(t, 0), tr, ReplayOptions{Validate: true})
			require.ErrorIs(t, err, ErrSequence)
		})
	}
}

// TestReplay_OutOfMemory tests that allocator failures surface with the op index.
func TestReplay_OutOfMemory(t *testing.T) {
	tr := &Trace{NumIDs: 1, Ops: []Op{{Kind: Alloc, ID: 0, Size: 8192}}}
	_, err := Replay(newAllocator(t, 4096), tr, ReplayOptions{})
	require.ErrorIs(t, err, alloc.ErrNoSpace)
	require.ErrorContains(t, err, "op 0")
}
