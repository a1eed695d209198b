package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/trace"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	genSeed    uint64
	genIDs     int
	genMin     int
	genMax     int
	genRealloc int
	genMaxLive int
)

func init() {
	cmd := newGenCmd()
	d := trace.DefaultGenOptions()
	cmd.Flags().Uint64Var(&genSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&genIDs, "ids", d.IDs, "Number of allocation ids")
	cmd.Flags().IntVar(&genMin, "min", d.MinSize, "Smallest request in bytes")
	cmd.Flags().IntVar(&genMax, "max", d.MaxSize, "Largest request in bytes")
	cmd.Flags().IntVar(&genRealloc, "realloc", d.ReallocPercent, "Percent of steps that resize a live id (max 90)")
	cmd.Flags().IntVar(&genMaxLive, "max-live", d.MaxLive, "Cap on simultaneously live ids (0 = none)")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen <output>",
		Short: "Generate a random well-formed trace",
		Long: `The gen command writes a random trace in which every id is allocated
once, may be resized, and is freed by the end. The same seed and flags always
produce the same trace. Outputs ending in .sz are snappy-compressed.

Example:
  heapctl gen random.rep --seed 7
  heapctl gen big.rep.sz --ids 100000 --max 65536 --max-live 500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(args)
		},
	}
	return cmd
}

func runGen(args []string) error {
	tr := trace.Generate(genSeed, trace.GenOptions{
		IDs:            genIDs,
		MinSize:        genMin,
		MaxSize:        genMax,
		ReallocPercent: genRealloc,
		MaxLive:        genMaxLive,
	})
	if err := trace.Save(args[0], tr); err != nil {
		return err
	}
	logger.Info("trace generated", "path", args[0], "seed", genSeed, "ops", len(tr.Ops))

	if jsonOut {
		return printJSON(map[string]any{
			"path":           args[0],
			"ids":            tr.NumIDs,
			"ops":            len(tr.Ops),
			"suggested_heap": tr.SuggestedHeap,
		})
	}
	printInfo("%s %s: %s ops over %d ids, peak payload %s\n",
		render(okStyle, "Wrote"),
		args[0],
		humanize.Comma(int64(len(tr.Ops))),
		tr.NumIDs,
		humanize.IBytes(uint64(tr.SuggestedHeap)),
	)
	printVerbose("Seed: %d\n", genSeed)
	return nil
}
