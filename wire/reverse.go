package wire

// ReverseBytes reverses the low 7 bytes of v, leaving the most-significant
// byte untouched, and is used by the reversible byte-sequence blob
// generator to turn a fragment offset into generator state.
//
// This mirrors the original's reverse_bytes helper, including its quirk of
// only ever touching 7 of the 8 bytes. The result is not that of a full
// 8-byte reversal: the low byte of the result is byte 6 of v, not byte 7
// (ReverseBytes(1<<48) is 1, where an 8-byte reversal gives 1<<8). The
// narrower 7-byte behavior is kept as is.
func ReverseBytes(v uint64) uint64 {
	b := [8]byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
	for i, j := 0, 6; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	var r uint64
	for i := 7; i >= 0; i-- {
		r = r<<8 | uint64(b[i])
	}
	return r
}
