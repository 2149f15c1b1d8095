package blob

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/wire"
)

func TestFragmentHeaderRoundTrip(t *testing.T) {
	hdr := fragmentHeader{BlobID: 42, Offset: 2048, TotalSize: 4096, Age: 3 * time.Second, Priority: wire.PriorityHigh}
	payload := []byte("hello, blob")

	encoded := hdr.encode(payload)
	got, rest, err := decodeFragmentHeader(encoded)
	require.NoError(t, err)
	require.Equal(t, hdr, got)
	require.Equal(t, payload, rest)
}

func TestResendHeaderRoundTrip(t *testing.T) {
	hdr := resendHeader{BlobID: 7, Offset: 1024, Length: 512}
	got, err := decodeResendHeader(hdr.encode())
	require.NoError(t, err)
	require.Equal(t, hdr, got)
}

func TestDecodeFragmentHeaderTooShort(t *testing.T) {
	_, _, err := decodeFragmentHeader([]byte{1, 2, 3})
	require.Error(t, err)
}
