package format

import "encoding/binary"

// Tags and links are stored little-endian regardless of host byte order so a
// file-backed arena reads the same on every platform.

// PutU32 writes v at off.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// ReadU32 reads the uint32 at off.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// PutU64 writes v at off.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadU64 reads the uint64 at off.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

// Pack combines a block size and allocated flag into a tag word.
func Pack(size int, alloc bool) uint32 {
	v := uint32(size) & SizeMask
	if alloc {
		v |= AllocBit
	}
	return v
}

// Unpack splits a tag word into size and allocated flag.
func Unpack(tag uint32) (int, bool) {
	return int(tag & SizeMask), tag&AllocBit != 0
}
