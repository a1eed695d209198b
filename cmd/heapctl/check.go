package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/trace"
	"github.com/joshuapare/heapkit/heap/verify"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	checkOps       int
	checkFinalOnly bool
)

// errCheckFailed is returned when the checker reports violations so the
// process exits non-zero after the report is printed.
var errCheckFailed = errors.New("heap check failed")

func init() {
	cmd := newCheckCmd()
	cmd.Flags().IntVar(&checkOps, "ops", 0, "Replay only the first N ops (0 = all)")
	cmd.Flags().BoolVar(&checkFinalOnly, "final-only", false, "Check the heap once at the end instead of after every op")
	addAllocatorFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <trace>",
		Short: "Run the heap consistency checker over a trace",
		Long: `The check command replays a trace with block validation enabled and runs
the heap checker after every op, then once more on the final heap. Violations
are listed with their kind and block offset.

Example:
  heapctl check short1.rep
  heapctl check big.rep --ops 5000 --final-only
  heapctl check short1.rep --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args)
		},
	}
	return cmd
}

// CheckSummary is the JSON shape of a check run.
type CheckSummary struct {
	Trace      string              `json:"trace"`
	Ops        int                 `json:"ops"`
	OK         bool                `json:"ok"`
	Error      string              `json:"error,omitempty"`
	Blocks     int                 `json:"blocks"`
	FreeBlocks int                 `json:"free_blocks"`
	Violations []*verify.Violation `json:"violations,omitempty"`
}

func runCheck(args []string) error {
	tr, err := loadPrefix(args[0], checkOps)
	if err != nil {
		return err
	}
	a, closeArena, err := openAllocator()
	if err != nil {
		return err
	}
	defer func() { _ = closeArena() }()

	summary := CheckSummary{Trace: tr.Name, Ops: len(tr.Ops)}
	printVerbose("Checking %s (%d ops)\n", tr.Name, len(tr.Ops))

	_, replayErr := trace.Replay(a, tr, trace.ReplayOptions{Validate: true, Check: !checkFinalOnly})
	if replayErr != nil && !errors.Is(replayErr, alloc.ErrCorrupt) {
		// Sequence and validation failures are not heap state; report them as is.
		return replayErr
	}

	rep := a.CheckHeap(tr.Name + " final")
	summary.Blocks = rep.Blocks
	summary.FreeBlocks = rep.HeapFree
	summary.Violations = rep.Violations
	if replayErr != nil {
		summary.Error = replayErr.Error()
	}
	summary.OK = rep.OK() && replayErr == nil
	if !summary.OK {
		logger.Warn("heap check failed", "trace", tr.Name, "violations", len(rep.Violations), "error", replayErr)
	}

	if jsonOut {
		if err := printJSON(summary); err != nil {
			return err
		}
	} else {
		printCheck(summary)
	}
	if !summary.OK {
		return errCheckFailed
	}
	return nil
}

func printCheck(s CheckSummary) {
	if s.OK {
		printInfo("%s %s: %d ops, %d blocks (%d free)\n",
			render(okStyle, "OK"), s.Trace, s.Ops, s.Blocks, s.FreeBlocks)
		return
	}
	printInfo("%s %s\n", render(failStyle, "FAIL"), s.Trace)
	if s.Error != "" {
		printInfo("  %s\n", s.Error)
	}
	for _, v := range s.Violations {
		where := "-"
		if v.Offset >= 0 {
			where = fmt.Sprintf("0x%X", v.Offset)
		}
		printInfo("  %s %10s  %s\n", render(kindStyle, fmt.Sprintf("%-16s", v.Kind)), where, v.Message)
	}
}
