package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/trace"
)

var (
	dumpOps    int
	dumpCell   int
	dumpWidth  int
	dumpNoMap  bool
	dumpBlocks bool
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().IntVar(&dumpOps, "ops", 0, "Replay only the first N ops (0 = all)")
	cmd.Flags().IntVar(&dumpCell, "cell", 64, "Bytes per cell in the block map")
	cmd.Flags().IntVar(&dumpWidth, "width", 64, "Cells per block map row")
	cmd.Flags().BoolVar(&dumpNoMap, "no-map", false, "Omit the block map")
	cmd.Flags().BoolVar(&dumpBlocks, "blocks", false, "List every block")
	addAllocatorFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <trace>",
		Short: "Show the heap layout after replaying a trace",
		Long: `The dump command replays a trace, or its first N ops, and prints the
resulting heap: per-class free list lengths, an optional block listing and a
block map where '#' marks allocated bytes and '.' free bytes.

Example:
  heapctl dump short1.rep --ops 6
  heapctl dump short1.rep --ops 6 --blocks --cell 32
  heapctl dump short1.rep --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

// DumpSummary is the JSON shape of a heap dump.
type DumpSummary struct {
	Trace      string            `json:"trace"`
	Ops        int               `json:"ops"`
	HeapSize   int               `json:"heap_size"`
	Classes    []ClassSummary    `json:"classes"`
	Blocks     []alloc.BlockInfo `json:"blocks"`
	AllocBytes int               `json:"alloc_bytes"`
	FreeBytes  int               `json:"free_bytes"`
}

// ClassSummary describes one free-list size class.
type ClassSummary struct {
	Class int  `json:"class"`
	Lo    int  `json:"lo"`
	Hi    int  `json:"hi,omitempty"` // exclusive, zero for the unbounded last class
	Count int  `json:"count"`
	Open  bool `json:"open,omitempty"`
}

func runDump(args []string) error {
	tr, err := loadPrefix(args[0], dumpOps)
	if err != nil {
		return err
	}
	a, closeArena, err := openAllocator()
	if err != nil {
		return err
	}
	defer func() { _ = closeArena() }()

	if _, err := trace.Replay(a, tr, trace.ReplayOptions{Validate: true}); err != nil {
		return err
	}

	s := buildDump(a, tr)
	if jsonOut {
		return printJSON(s)
	}
	printDump(s)
	return nil
}

func buildDump(a *alloc.Allocator, tr *trace.Trace) DumpSummary {
	s := DumpSummary{
		Trace:    tr.Name,
		Ops:      len(tr.Ops),
		HeapSize: a.HeapSize(),
		Blocks:   a.Blocks(),
	}
	for k, n := range a.FreeBlocks() {
		lo, hi, bounded := a.ClassBounds(k)
		s.Classes = append(s.Classes, ClassSummary{Class: k, Lo: lo, Hi: hi, Count: n, Open: !bounded})
	}
	for _, b := range s.Blocks {
		if b.Alloc {
			s.AllocBytes += b.Size
		} else {
			s.FreeBytes += b.Size
		}
	}
	return s
}

func printDump(s DumpSummary) {
	printInfo("%s\n", render(headerStyle, fmt.Sprintf("%s after %s ops", s.Trace, humanize.Comma(int64(s.Ops)))))
	printInfo("Heap size:    %s\n", humanize.IBytes(uint64(s.HeapSize)))
	printInfo("Blocks:       %d (%s allocated, %s free)\n",
		len(s.Blocks), humanize.IBytes(uint64(s.AllocBytes)), humanize.IBytes(uint64(s.FreeBytes)))

	printInfo("\n%s\n", render(headerStyle, "Free lists"))
	for _, c := range s.Classes {
		bounds := fmt.Sprintf("%d-%d", c.Lo, c.Hi-1)
		if c.Open {
			bounds = fmt.Sprintf("%d+", c.Lo)
		}
		line := fmt.Sprintf("  class %-2d %12s  %d", c.Class, bounds, c.Count)
		if c.Count == 0 {
			line = render(mutedStyle, line)
		}
		printInfo("%s\n", line)
	}

	if dumpBlocks {
		printInfo("\n%s\n", render(headerStyle, fmt.Sprintf("%-10s %10s  %s", "ptr", "size", "state")))
		for _, b := range s.Blocks {
			state := render(allocCellStyle, "alloc")
			if !b.Alloc {
				state = render(freeCellStyle, fmt.Sprintf("free (class %d)", b.Class))
			}
			printInfo("0x%-8X %10d  %s\n", uint32(b.Ptr), b.Size, state)
		}
	}

	if !dumpNoMap {
		printInfo("\n%s\n", render(headerStyle, fmt.Sprintf("Block map (%d B per cell)", max(dumpCell, 1))))
		for _, row := range blockMap(s.Blocks, dumpCell, dumpWidth) {
			printInfo("%s\n", row)
		}
	}
}

// blockMap renders blocks as rows of cells, each covering cell bytes. Every
// block gets at least one cell so small blocks stay visible.
func blockMap(blocks []alloc.BlockInfo, cell, width int) []string {
	cell = max(cell, 1)
	width = max(width, 1)

	var rows []string
	var sb strings.Builder
	col := 0
	flush := func() {
		rows = append(rows, sb.String())
		sb.Reset()
		col = 0
	}
	for _, b := range blocks {
		n := max((b.Size+cell-1)/cell, 1)
		ch, st := "#", allocCellStyle
		if !b.Alloc {
			ch, st = ".", freeCellStyle
		}
		for n > 0 {
			take := min(n, width-col)
			sb.WriteString(render(st, strings.Repeat(ch, take)))
			col += take
			n -= take
			if col == width {
				flush()
			}
		}
	}
	if col > 0 {
		flush()
	}
	return rows
}
