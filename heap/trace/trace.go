// Package trace reads, writes, generates and replays allocation traces.
//
// A trace file is plain text:
//
//	<suggested heap size>
//	<number of ids>
//	<number of ops>
//	<weight>
//	a <id> <bytes>    allocate
//	r <id> <bytes>    resize
//	f <id>            free
//
// Ids name allocation slots; each id is allocated before it is resized or
// freed. Files ending in .sz are snappy-framed.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSyntax indicates a malformed trace file.
var ErrSyntax = errors.New("trace: syntax error")

// Kind is the operation of one trace line.
type Kind byte

const (
	Alloc   Kind = 'a'
	Realloc Kind = 'r'
	Free    Kind = 'f'
)

func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case Realloc:
		return "realloc"
	case Free:
		return "free"
	}
	return fmt.Sprintf("Kind(%q)", byte(k))
}

// Op is one trace line.
type Op struct {
	Kind Kind
	ID   int
	Size int // unused for Free
}

// Trace is a parsed trace file.
type Trace struct {
	Name          string
	SuggestedHeap int
	NumIDs        int
	Weight        int
	Ops           []Op
}

// Parse reads a trace from r.
func Parse(r io.Reader) (*Trace, error) {
	sc := bufio.NewScanner(r)
	tr := &Trace{}
	line := 0

	var header [4]int
	for i := range header {
		fields, err := nextLine(sc, &line)
		if err != nil {
			return nil, fmt.Errorf("%w: header: %w", ErrSyntax, err)
		}
		if len(fields) != 1 {
			return nil, fmt.Errorf("%w: line %d: expected one header number", ErrSyntax, line)
		}
		if header[i], err = strconv.Atoi(fields[0]); err != nil || header[i] < 0 {
			return nil, fmt.Errorf("%w: line %d: bad header value %q", ErrSyntax, line, fields[0])
		}
	}
	tr.SuggestedHeap, tr.NumIDs, tr.Weight = header[0], header[1], header[3]
	numOps := header[2]
	tr.Ops = make([]Op, 0, min(numOps, 1<<16))

	for {
		fields, err := nextLine(sc, &line)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
		}
		op, err := parseOp(fields, tr.NumIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrSyntax, line, err)
		}
		tr.Ops = append(tr.Ops, op)
	}

	if len(tr.Ops) != numOps {
		return nil, fmt.Errorf("%w: header declares %d ops, found %d", ErrSyntax, numOps, len(tr.Ops))
	}
	return tr, nil
}

// nextLine returns the fields of the next non-blank line.
func nextLine(sc *bufio.Scanner, line *int) ([]string, error) {
	for sc.Scan() {
		*line++
		if fields := strings.Fields(sc.Text()); len(fields) > 0 {
			return fields, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func parseOp(fields []string, numIDs int) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}
	op := Op{Kind: Kind(fields[0][0])}

	want := 3
	switch op.Kind {
	case Alloc, Realloc:
	case Free:
		want = 2
	default:
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%s takes %d fields, got %d", op.Kind, want, len(fields))
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 || id >= numIDs {
		return Op{}, fmt.Errorf("bad id %q (trace has %d ids)", fields[1], numIDs)
	}
	op.ID = id

	if want == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, fmt.Errorf("bad size %q", fields[2])
		}
		op.Size = size
	}
	return op, nil
}

// Write serializes tr in the text format Parse reads.
func Write(w io.Writer, tr *Trace) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%d\n%d\n%d\n", tr.SuggestedHeap, tr.NumIDs, len(tr.Ops), tr.Weight)
	for _, op := range tr.Ops {
		if op.Kind == Free {
			fmt.Fprintf(bw, "%c %d\n", op.Kind, op.ID)
			continue
		}
		fmt.Fprintf(bw, "%c %d %d\n", op.Kind, op.ID, op.Size)
	}
	return bw.Flush()
}
