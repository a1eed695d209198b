package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/arena"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool

	// Allocator flags shared by every command that replays a trace
	arenaMax   int
	arenaFile  string
	chunkSize  int
	numClasses int
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Replay, check and inspect heapkit allocation traces",
	Long: `heapctl drives the heapkit allocator with allocation traces. It replays
traces for correctness and utilization, runs the heap consistency checker,
dumps the block layout of a heap mid-trace, and generates random traces.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger.Init(logger.Options{
			Enabled: verbose || logger.AllocTracing(),
			Output:  os.Stderr,
			JSON:    jsonOut,
			Level:   level,
		})
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// addAllocatorFlags registers the arena and sizing flags on cmd.
func addAllocatorFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&arenaMax, "arena-max", arena.DefaultMaxSize, "Arena capacity in bytes")
	cmd.Flags().StringVar(&arenaFile, "arena-file", "", "Back the arena with this file (mmap) instead of memory")
	cmd.Flags().IntVar(&chunkSize, "chunk", alloc.DefaultChunkSize, "Minimum arena extension in bytes")
	cmd.Flags().IntVar(&numClasses, "classes", 0, "Number of free-list size classes (0 = default)")
}

// openAllocator builds an allocator from the allocator flags. The returned
// closer releases the arena.
func openAllocator() (*alloc.Allocator, func() error, error) {
	var ext arena.Extender
	if arenaFile != "" {
		m, err := arena.OpenMap(arenaFile, arenaMax)
		if err != nil {
			return nil, nil, err
		}
		printVerbose("Arena file: %s\n", arenaFile)
		ext = m
	} else {
		ext = arena.NewMem(arenaMax)
	}

	a, err := alloc.New(ext,
		alloc.WithChunkSize(chunkSize),
		alloc.WithClasses(numClasses),
		alloc.WithLogger(logger.L),
	)
	if err != nil {
		_ = ext.Close()
		return nil, nil, err
	}
	return a, ext.Close, nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		printError("%v\n", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
