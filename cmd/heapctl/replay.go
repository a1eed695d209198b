package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/trace"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	replayCheck      bool
	replayNoValidate bool
	replayStats      bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().BoolVar(&replayCheck, "check", false, "Run the heap checker after every op")
	cmd.Flags().BoolVar(&replayNoValidate, "no-validate", false, "Skip block placement and content validation")
	cmd.Flags().BoolVar(&replayStats, "stats", false, "Print allocator counters for each trace")
	addAllocatorFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>...",
		Short: "Replay traces and report correctness and utilization",
		Long: `The replay command runs each trace against a fresh heap, validating every
returned block, and reports peak payload, final heap size and utilization.
Traces ending in .sz are read as snappy streams.

Example:
  heapctl replay traces/*.rep
  heapctl replay short1.rep --check --stats
  heapctl replay big.rep.sz --arena-file /tmp/heap.bin --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
	return cmd
}

// ReplaySummary is the JSON shape of one replayed trace.
type ReplaySummary struct {
	*trace.Result
	OpsPerSec float64 `json:"ops_per_sec"`
}

func runReplay(args []string) error {
	a, closeArena, err := openAllocator()
	if err != nil {
		return err
	}
	defer func() { _ = closeArena() }()

	opts := trace.ReplayOptions{Validate: !replayNoValidate, Check: replayCheck}
	var summaries []ReplaySummary
	var totalOps int
	var totalTime time.Duration
	var utilSum float64

	for _, path := range args {
		printVerbose("Loading trace: %s\n", path)
		tr, err := trace.Load(path)
		if err != nil {
			return err
		}
		logger.Debug("trace loaded", "trace", tr.Name, "ids", tr.NumIDs, "ops", len(tr.Ops))
		res, err := trace.Replay(a, tr, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", tr.Name, err)
		}

		s := ReplaySummary{Result: res, OpsPerSec: opsPerSec(res.Ops, res.Elapsed)}
		summaries = append(summaries, s)
		totalOps += res.Ops
		totalTime += res.Elapsed
		utilSum += res.Utilization
	}

	if jsonOut {
		return printJSON(summaries)
	}

	printInfo("%s\n", render(headerStyle, fmt.Sprintf("%-20s %8s %10s %10s %6s %12s", "trace", "ops", "peak", "heap", "util", "ops/sec")))
	for _, s := range summaries {
		printInfo("%-20s %8s %10s %10s %5.1f%% %12s\n",
			s.Name,
			humanize.Comma(int64(s.Ops)),
			humanize.IBytes(uint64(s.PeakPayload)),
			humanize.IBytes(uint64(s.HeapSize)),
			100*s.Utilization,
			humanize.Comma(int64(s.OpsPerSec)),
		)
		if replayStats {
			printStats(s.Stats)
		}
	}
	if len(summaries) > 1 {
		printInfo("%s\n", render(mutedStyle, fmt.Sprintf("%-20s %8s %33.1f%% %12s",
			"total",
			humanize.Comma(int64(totalOps)),
			100*utilSum/float64(len(summaries)),
			humanize.Comma(int64(opsPerSec(totalOps, totalTime))),
		)))
	}
	return nil
}

func opsPerSec(ops int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(ops) / d.Seconds()
}
