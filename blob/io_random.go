package blob

import "crypto/rand"

// RandomSourceIO streams cryptographically random bytes, supplementing the
// original engine's random-blob generator (dropped by the distillation but
// part of its resource-server scheme vocabulary, "eagires:/random").
type RandomSourceIO struct {
	size int64
}

var _ SourceIO = RandomSourceIO{}

// NewRandomSourceIO creates a random-byte source of size bytes.
func NewRandomSourceIO(size int64) RandomSourceIO {
	return RandomSourceIO{size: size}
}

// TotalSize returns the configured size.
func (r RandomSourceIO) TotalSize() int64 { return r.size }

// FetchFragment fills dst with fresh random bytes, unrelated across calls;
// random blobs are for load/latency testing, not content verification.
func (r RandomSourceIO) FetchFragment(offset int64, dst []byte) int64 {
	remaining := r.size - offset
	if remaining <= 0 {
		return 0
	}
	n := int64(len(dst))
	if n > remaining {
		n = remaining
	}
	_, _ = rand.Read(dst[:n])
	return n
}
