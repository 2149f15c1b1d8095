package blob

// ZeroesSourceIO produces size zero bytes, grounded in the original
// engine's zeroes_source_blob_io used throughout its own round-trip tests.
type ZeroesSourceIO struct {
	size int64
}

var _ SourceIO = ZeroesSourceIO{}

// NewZeroesSourceIO creates a source of size zero bytes.
func NewZeroesSourceIO(size int64) ZeroesSourceIO {
	return ZeroesSourceIO{size: size}
}

// TotalSize returns the configured size.
func (z ZeroesSourceIO) TotalSize() int64 { return z.size }

// FetchFragment zero-fills dst up to what remains of the blob from offset.
func (z ZeroesSourceIO) FetchFragment(offset int64, dst []byte) int64 {
	remaining := z.size - offset
	if remaining <= 0 {
		return 0
	}
	n := int64(len(dst))
	if n > remaining {
		n = remaining
	}
	for i := int64(0); i < n; i++ {
		dst[i] = 0
	}
	return n
}
