package blob

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/msgbus/wire"
)

// fragmentHeaderSize is the encoded size of a fragmentHeader, matching the
// explicit blobFrgmnt field list of the specification: blob id, offset,
// total size, priority and age, ahead of the raw fragment bytes. This is a
// fixed, small, explicitly specified layout rather than a general struct, so
// it is hand-encoded with encoding/binary instead of routed through the
// proton struct marshaller used for the handshake/envelope types.
const fragmentHeaderSize = 8 + 8 + 8 + 8 + 1

// resendHeaderSize is the encoded size of a resendHeader.
const resendHeaderSize = 8 + 8 + 8

type fragmentHeader struct {
	BlobID    wire.ID
	Offset    int64
	TotalSize int64
	Age       time.Duration
	Priority  wire.Priority
}

func (h fragmentHeader) encode(payload []byte) []byte {
	buf := make([]byte, fragmentHeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], uint64(h.BlobID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.Offset))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.TotalSize))
	binary.BigEndian.PutUint64(buf[24:32], uint64(h.Age))
	buf[32] = byte(h.Priority)
	copy(buf[fragmentHeaderSize:], payload)
	return buf
}

func decodeFragmentHeader(buf []byte) (fragmentHeader, []byte, error) {
	if len(buf) < fragmentHeaderSize {
		return fragmentHeader{}, nil, errors.Errorf("blob fragment record too short: %d bytes", len(buf))
	}
	h := fragmentHeader{
		BlobID:    wire.ID(binary.BigEndian.Uint64(buf[0:8])),
		Offset:    int64(binary.BigEndian.Uint64(buf[8:16])),
		TotalSize: int64(binary.BigEndian.Uint64(buf[16:24])),
		Age:       time.Duration(binary.BigEndian.Uint64(buf[24:32])),
		Priority:  wire.Priority(buf[32]),
	}
	return h, buf[fragmentHeaderSize:], nil
}

type resendHeader struct {
	BlobID wire.ID
	Offset int64
	Length int64
}

func (h resendHeader) encode() []byte {
	buf := make([]byte, resendHeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(h.BlobID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.Offset))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.Length))
	return buf
}

func decodeResendHeader(buf []byte) (resendHeader, error) {
	if len(buf) < resendHeaderSize {
		return resendHeader{}, errors.Errorf("blob resend record too short: %d bytes", len(buf))
	}
	return resendHeader{
		BlobID: wire.ID(binary.BigEndian.Uint64(buf[0:8])),
		Offset: int64(binary.BigEndian.Uint64(buf[8:16])),
		Length: int64(binary.BigEndian.Uint64(buf[16:24])),
	}, nil
}
