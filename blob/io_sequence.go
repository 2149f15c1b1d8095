package blob

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

// SequenceSourceIO generates a reversible byte sequence keyed by fragment
// offset via wire.ReverseBytes, so a target can regenerate and compare the
// same stream independently instead of needing the bytes shipped twice.
type SequenceSourceIO struct {
	size int64
	seed uint64
}

var _ SourceIO = SequenceSourceIO{}

// NewSequenceSourceIO creates a reversible-sequence source of size bytes
// derived from seed.
func NewSequenceSourceIO(size int64, seed uint64) SequenceSourceIO {
	return SequenceSourceIO{size: size, seed: seed}
}

// TotalSize returns the configured size.
func (s SequenceSourceIO) TotalSize() int64 { return s.size }

// FetchFragment fills dst with the generator's bytes for [offset, offset+len(dst)).
func (s SequenceSourceIO) FetchFragment(offset int64, dst []byte) int64 {
	remaining := s.size - offset
	if remaining <= 0 {
		return 0
	}
	n := int64(len(dst))
	if n > remaining {
		n = remaining
	}
	for i := int64(0); i < n; i++ {
		dst[i] = sequenceByte(s.seed, offset+i)
	}
	return n
}

func sequenceByte(seed uint64, index int64) byte {
	v := wire.ReverseBytes(seed ^ uint64(index))
	return byte(v)
}

// SequenceTargetIO verifies an incoming blob matches the bytes
// SequenceSourceIO with the same seed would have produced.
type SequenceTargetIO struct {
	seed     uint64
	onDone   func(wire.MessageID, time.Duration, Info)
	onCancel func()
}

var _ TargetIO = (*SequenceTargetIO)(nil)

// NewSequenceTargetIO creates a verifying target for a reversible-sequence
// blob with the given seed.
func NewSequenceTargetIO(seed uint64, onDone func(wire.MessageID, time.Duration, Info), onCancel func()) *SequenceTargetIO {
	return &SequenceTargetIO{seed: seed, onDone: onDone, onCancel: onCancel}
}

// StoreFragment verifies every byte of data matches the generator.
func (s *SequenceTargetIO) StoreFragment(offset int64, data []byte, _ Info) bool {
	return s.CheckStored(offset, data)
}

// CheckStored verifies every byte of data matches the generator.
func (s *SequenceTargetIO) CheckStored(offset int64, data []byte) bool {
	for i, b := range data {
		if b != sequenceByte(s.seed, offset+int64(i)) {
			return false
		}
	}
	return true
}

// HandleFinished invokes the configured completion callback, if any.
func (s *SequenceTargetIO) HandleFinished(msgID wire.MessageID, age time.Duration, info Info) {
	if s.onDone != nil {
		s.onDone(msgID, age, info)
	}
}

// HandleCancelled invokes the configured cancellation callback, if any.
func (s *SequenceTargetIO) HandleCancelled() {
	if s.onCancel != nil {
		s.onCancel()
	}
}
