// Package format holds the word-level layout of a heapkit arena: word sizes,
// alignment, the boundary-tag bit layout and little-endian accessors. It knows
// nothing about blocks or free lists; higher-level packages compose these
// primitives.
package format

const (
	// WordSize is the size of a boundary tag (header or footer) in bytes.
	WordSize = 4

	// DoubleWordSize is the alignment unit of every payload and block size.
	DoubleWordSize = 8

	// TagOverhead is the per-block cost of a header plus a footer.
	TagOverhead = 2 * WordSize

	// LinkSize is the width of one free-list link stored in a free payload.
	LinkSize = 8

	// MinBlockSize is the smallest legal block: header, two links, footer.
	// Every freed block must be able to hold its own free-list links.
	MinBlockSize = 3 * DoubleWordSize

	// Alignment is the required payload alignment.
	Alignment = DoubleWordSize

	// AlignmentMask is Alignment - 1.
	AlignmentMask = Alignment - 1

	// AllocBit marks a tag as allocated. Sizes are multiples of 8, so the
	// low three bits of a tag are free for flags.
	AllocBit = 0x1

	// SizeMask clears the flag bits of a tag.
	SizeMask = ^uint32(AlignmentMask)

	// MaxArenaSize bounds an arena so every offset and size fits in a tag.
	MaxArenaSize = 1<<32 - DoubleWordSize
)

// Fixed arena prefix written by Init. The pad word keeps every payload
// 8-byte aligned once the 4-byte headers are accounted for.
//
//	0   pad
//	4   prologue header (8 | alloc)
//	8   prologue footer (8 | alloc)
//	12  epilogue header (0 | alloc)
const (
	PadOffset            = 0
	PrologueHeaderOffset = WordSize
	ProloguePayload      = 2 * WordSize
	PrologueSize         = DoubleWordSize
	EpilogueInitOffset   = 3 * WordSize
	PrefixSize           = 4 * WordSize
)
