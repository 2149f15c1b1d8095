// Package blob implements the fragmentation/reassembly engine for bulk
// transfers: a source side reads an arbitrary-size payload through a
// pluggable source_blob_io, fragments it into bounded messages, and a
// target side reassembles it through a pluggable target_blob_io, invoking a
// completion callback exactly once.
package blob

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

// Info describes a blob transfer to a TargetIO's completion callbacks.
type Info struct {
	Source    wire.ID
	Target    wire.ID
	BlobID    wire.ID
	TotalSize int64
}

// SourceIO is random-access read access to the bytes of an outgoing blob.
type SourceIO interface {
	// TotalSize is the number of bytes the blob carries.
	TotalSize() int64
	// FetchFragment reads as much of dst as is available starting at
	// offset, returning the number of bytes written.
	FetchFragment(offset int64, dst []byte) int64
}

// TargetIO receives and verifies the bytes of an incoming blob.
type TargetIO interface {
	// StoreFragment records data at offset, reporting whether it accepted
	// it.
	StoreFragment(offset int64, data []byte, info Info) bool
	// CheckStored verifies previously stored bytes still match data,
	// reporting whether they do. Used when a fragment is re-delivered.
	CheckStored(offset int64, data []byte) bool
	// HandleFinished is invoked exactly once, when every byte in
	// [0, total size) has been stored or checked.
	HandleFinished(msgID wire.MessageID, age time.Duration, info Info)
	// HandleCancelled is invoked exactly once if the transfer expires or
	// is cancelled before completion.
	HandleCancelled()
}

// TargetIOFactory builds a default TargetIO for a blob fragment that
// arrived with no prior expect_incoming call, e.g. certificate responses in
// the router.
type TargetIOFactory func(msgID wire.MessageID, info Info) TargetIO
