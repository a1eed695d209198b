package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/trace"
)

func TestReplayCommand(t *testing.T) {
	tests := []struct {
		name        string
		traces      []string
		stats       bool
		json        bool
		wantContain []string
	}{
		{
			name:        "single trace",
			traces:      []string{"short1.rep"},
			wantContain: []string{"short1.rep", "ops/sec", "util"},
		},
		{
			name:        "with stats",
			traces:      []string{"realloc.rep"},
			stats:       true,
			wantContain: []string{"realloc.rep", "ALLOCATOR STATISTICS", "Realloc calls:      2"},
		},
		{
			name:        "several traces",
			traces:      []string{"short1.rep", "realloc.rep"},
			wantContain: []string{"short1.rep", "realloc.rep", "total"},
		},
		{
			name:        "as JSON",
			traces:      []string{"short1.rep"},
			json:        true,
			wantContain: []string{`"ops_per_sec"`, `"PeakPayload": 8144`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.json
			replayStats = tt.stats
			replayCheck = true
			replayNoValidate = false

			var args []string
			for _, name := range tt.traces {
				args = append(args, testTracePath(t, name))
			}
			output, err := captureOutput(t, func() error { return runReplay(args) })
			require.NoError(t, err)
			if tt.json {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestReplayCommand_MissingFile(t *testing.T) {
	resetFlags()
	_, err := captureOutput(t, func() error {
		return runReplay([]string{filepath.Join(t.TempDir(), "missing.rep")})
	})
	require.Error(t, err)
}

func TestReplayCommand_ArenaTooSmall(t *testing.T) {
	resetFlags()
	arenaMax = 4096
	_, err := captureOutput(t, func() error {
		return runReplay([]string{testTracePath(t, "short1.rep")})
	})
	require.ErrorIs(t, err, alloc.ErrNoSpace)
}

func TestReplayCommand_ArenaFile(t *testing.T) {
	resetFlags()
	arenaFile = filepath.Join(t.TempDir(), "heap.bin")
	output, err := captureOutput(t, func() error {
		return runReplay([]string{testTracePath(t, "short1.rep")})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"short1.rep"})
}

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		name        string
		ops         int
		finalOnly   bool
		json        bool
		wantContain []string
	}{
		{
			name:        "whole trace",
			wantContain: []string{"OK", "short1.rep", "12 ops", "1 blocks (1 free)"},
		},
		{
			name:        "prefix",
			ops:         2,
			wantContain: []string{"OK", "2 ops", "3 blocks (1 free)"},
		},
		{
			name:        "final only",
			finalOnly:   true,
			wantContain: []string{"OK"},
		},
		{
			name:        "as JSON",
			json:        true,
			wantContain: []string{`"ok": true`, `"trace": "short1.rep"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.json
			checkOps = tt.ops
			checkFinalOnly = tt.finalOnly

			output, err := captureOutput(t, func() error {
				return runCheck([]string{testTracePath(t, "short1.rep")})
			})
			require.NoError(t, err)
			if tt.json {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestDumpCommand(t *testing.T) {
	tests := []struct {
		name        string
		ops         int
		blocks      bool
		noMap       bool
		json        bool
		wantContain []string
	}{
		{
			name:        "after two allocations",
			ops:         2,
			blocks:      true,
			wantContain: []string{"short1.rep after 2 ops", "Blocks:       3", "free (class 3)", "class 3", "##", "."},
		},
		{
			name:        "whole trace without map",
			noMap:       true,
			wantContain: []string{"Blocks:       1", "Free lists"},
		},
		{
			name:        "as JSON",
			ops:         2,
			json:        true,
			wantContain: []string{`"heap_size"`, `"classes"`, `"alloc_bytes": 4096`, `"free_bytes": 200`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.json
			dumpOps = tt.ops
			dumpBlocks = tt.blocks
			dumpNoMap = tt.noMap
			dumpCell = 64
			dumpWidth = 64

			output, err := captureOutput(t, func() error {
				return runDump([]string{testTracePath(t, "short1.rep")})
			})
			require.NoError(t, err)
			if tt.json {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestBlockMap(t *testing.T) {
	noColor = true
	blocks := []alloc.BlockInfo{
		{Size: 128, Alloc: true},
		{Size: 24},
		{Size: 64, Alloc: true},
	}

	rows := blockMap(blocks, 32, 3)
	assert.Equal(t, []string{"###", "#.#", "#"}, rows)
	assert.Empty(t, blockMap(nil, 32, 3))
}

func TestGenCommand(t *testing.T) {
	resetFlags()
	genSeed = 3
	genIDs = 40
	genMin = 1
	genMax = 256
	genRealloc = 20
	genMaxLive = 0

	out := filepath.Join(t.TempDir(), "gen.rep.sz")
	output, err := captureOutput(t, func() error { return runGen([]string{out}) })
	require.NoError(t, err)
	assertContains(t, output, []string{"Wrote", "40 ids"})

	tr, err := trace.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 40, tr.NumIDs)
	assert.Equal(t, trace.Generate(3, trace.GenOptions{IDs: 40, MinSize: 1, MaxSize: 256, ReallocPercent: 20}).Ops, tr.Ops)
}
