package main

import (
	"os"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/trace"
)

// printStats writes the allocator counters unless quiet is set.
func printStats(s alloc.Stats) {
	if quiet {
		return
	}
	s.Print(os.Stdout)
	printInfo("\n")
}

// loadPrefix loads the trace at path and keeps only its first n ops when
// n is positive.
func loadPrefix(path string, n int) (*trace.Trace, error) {
	tr, err := trace.Load(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && n < len(tr.Ops) {
		tr.Ops = tr.Ops[:n]
	}
	return tr, nil
}
