package router

import (
	"time"

	"github.com/outofforest/msgbus/blob"
	"github.com/outofforest/msgbus/wire"
)

// discardTargetIO accepts and throws away every fragment; it backs
// certificate and other query-response blobs this router does not need to
// persist itself, only relay to its own blob engine for delivery.
type discardTargetIO struct{}

func newDiscardTargetIO() *discardTargetIO { return &discardTargetIO{} }

func (discardTargetIO) StoreFragment(int64, []byte, blob.Info) bool             { return true }
func (discardTargetIO) CheckStored(int64, []byte) bool                         { return true }
func (discardTargetIO) HandleFinished(wire.MessageID, time.Duration, blob.Info) {}
func (discardTargetIO) HandleCancelled()                                       {}

// staticSourceIO serves a fixed in-memory byte slice as a blob, used for
// certificate query responses.
type staticSourceIO struct {
	data []byte
}

func (s *staticSourceIO) TotalSize() int64 { return int64(len(s.data)) }

func (s *staticSourceIO) FetchFragment(offset int64, dst []byte) int64 {
	if offset >= int64(len(s.data)) {
		return 0
	}
	n := copy(dst, s.data[offset:])
	return int64(n)
}
