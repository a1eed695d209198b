// Package block is the addressing layer over a heapkit arena.
//
// A block is named by the offset of its payload. Every block carries a
// 4-byte header just before the payload and a mirrored 4-byte footer in its
// last word, both holding size|alloc. Neighbors are derived from these tags
// alone:
//
//	        hdr                                   ftr
//	  ... | s|a | payload ...................... | s|a | s'|a' | payload' ...
//	            ^bp                                     ^Next(bp) - 4
//
// A free block also stores two 8-byte links in its payload: the next free
// block at bp+0 and the previous free block at bp+8. Link value 0 means none.
//
// Functions here have no failure modes. A corrupted size makes them compute
// garbage offsets; detecting that is the checker's job.
package block

import "github.com/joshuapare/heapkit/internal/format"

// Null is the no-block offset. Offset 0 is the arena pad word and never a payload.
const Null = 0

// HeaderOff returns the offset of bp's header.
func HeaderOff(bp int) int { return bp - format.WordSize }

// FooterOff returns the offset of bp's footer.
func FooterOff(data []byte, bp int) int {
	return bp + Size(data, bp) - format.DoubleWordSize
}

// Tag returns bp's raw header word.
func Tag(data []byte, bp int) uint32 {
	return format.ReadU32(data, HeaderOff(bp))
}

// FooterTag returns bp's raw footer word.
func FooterTag(data []byte, bp int) uint32 {
	return format.ReadU32(data, FooterOff(data, bp))
}

// Size returns the total size of bp, header and footer included.
func Size(data []byte, bp int) int {
	size, _ := format.Unpack(Tag(data, bp))
	return size
}

// IsAlloc reports whether bp is allocated.
func IsAlloc(data []byte, bp int) bool {
	_, alloc := format.Unpack(Tag(data, bp))
	return alloc
}

// SetTags writes header and footer of bp together.
func SetTags(data []byte, bp, size int, alloc bool) {
	tag := format.Pack(size, alloc)
	format.PutU32(data, HeaderOff(bp), tag)
	format.PutU32(data, bp+size-format.DoubleWordSize, tag)
}

// SetEpilogue writes a zero-size allocated header for a sentinel whose
// payload would start at bp.
func SetEpilogue(data []byte, bp int) {
	format.PutU32(data, HeaderOff(bp), format.Pack(0, true))
}

// Next returns the payload offset of the block after bp.
func Next(data []byte, bp int) int {
	return bp + Size(data, bp)
}

// PrevSize returns the size of the block before bp, read from its footer.
func PrevSize(data []byte, bp int) int {
	size, _ := format.Unpack(format.ReadU32(data, bp-format.DoubleWordSize))
	return size
}

// PrevAlloc reports whether the block before bp is allocated, from its footer.
func PrevAlloc(data []byte, bp int) bool {
	_, alloc := format.Unpack(format.ReadU32(data, bp-format.DoubleWordSize))
	return alloc
}

// Prev returns the payload offset of the block before bp.
func Prev(data []byte, bp int) int {
	return bp - PrevSize(data, bp)
}

// PayloadSize returns the usable bytes of bp.
func PayloadSize(data []byte, bp int) int {
	return Size(data, bp) - format.TagOverhead
}

// NextFree returns the next-free link stored in free block bp.
func NextFree(data []byte, bp int) int {
	return int(format.ReadU64(data, bp))
}

// PrevFree returns the previous-free link stored in free block bp.
func PrevFree(data []byte, bp int) int {
	return int(format.ReadU64(data, bp+format.LinkSize))
}

// SetNextFree stores the next-free link of bp.
func SetNextFree(data []byte, bp, next int) {
	format.PutU64(data, bp, uint64(next))
}

// SetPrevFree stores the previous-free link of bp.
func SetPrevFree(data []byte, bp, prev int) {
	format.PutU64(data, bp+format.LinkSize, uint64(prev))
}
