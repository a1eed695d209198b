package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
)

// CompressedExt marks snappy-framed trace files.
const CompressedExt = ".sz"

// Load parses the trace at path, decompressing .sz files. The trace is named
// after the file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, CompressedExt) {
		r = snappy.NewReader(f)
	}
	tr, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tr.Name = strings.TrimSuffix(filepath.Base(path), CompressedExt)
	return tr, nil
}

// Save writes tr to path, snappy-framed when path ends in .sz.
func Save(path string, tr *Trace) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, CompressedExt) {
		return Write(f, tr)
	}
	sw := snappy.NewBufferedWriter(f)
	if err := Write(sw, tr); err != nil {
		return err
	}
	return sw.Close()
}
