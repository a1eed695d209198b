package format

// Align8 returns n rounded up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
func Align8(n int) int {
	return (n + AlignmentMask) & ^AlignmentMask
}

// IsAligned8 reports whether n sits on an 8-byte boundary.
func IsAligned8(n int) bool {
	return n&AlignmentMask == 0
}

// EvenWords rounds a word count up to an even number of words and returns
// the result in bytes. Extending the arena by an even word count keeps the
// next payload double-word aligned.
//
// Example:
//
//	EvenWords(49) = 200
//	EvenWords(50) = 200
func EvenWords(words int) int {
	if words%2 != 0 {
		words++
	}
	return words * WordSize
}

// AdjustedSize returns the block size needed to serve a request of n payload
// bytes: the payload plus header and footer, rounded to a double word, never
// below MinBlockSize.
func AdjustedSize(n int) int {
	asize := Align8(n + TagOverhead)
	if asize < MinBlockSize {
		return MinBlockSize
	}
	return asize
}
