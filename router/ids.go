package router

import "github.com/outofforest/msgbus/wire"

// defaultIDCount is the number of ids a router reserves for itself absent
// explicit configuration, matching the original's 1<<12 default.
const defaultIDCount = 1 << 12

// idAllocator owns a half-open id range [base, end) and a rolling sequence
// pointer used to find the next unused id in it.
type idAllocator struct {
	base, end wire.ID
	sequence  wire.ID
	inUse     map[wire.ID]struct{}
}

// newIDAllocator derives [base, base+count) from major/minor configuration,
// mirroring the original's host-id/config-minor composition: a nonzero
// major selects a disjoint block, otherwise the allocator starts at 1.
func newIDAllocator(major uint32, minor uint16, count uint32) *idAllocator {
	if count == 0 {
		count = defaultIDCount
	}
	var base wire.ID
	if major != 0 {
		base = wire.ID(major)<<32 | wire.ID(minor)
	} else {
		base = 1
	}
	return &idAllocator{
		base:     base,
		end:      base + wire.ID(count),
		sequence: base,
		inUse:    make(map[wire.ID]struct{}),
	}
}

// assign scans forward from the rolling sequence pointer for an unused id,
// wrapping once back to base+1. It returns wire.InvalidID if the whole
// range is occupied, matching invariant 9: no crash, no duplicate.
func (a *idAllocator) assign() wire.ID {
	start := a.sequence
	for {
		a.sequence++
		if a.sequence >= a.end {
			a.sequence = a.base + 1
		}
		if _, used := a.inUse[a.sequence]; !used && a.sequence.IsValid() {
			a.inUse[a.sequence] = struct{}{}
			return a.sequence
		}
		if a.sequence == start {
			return wire.InvalidID
		}
	}
}

// release returns id to the pool of unused ids.
func (a *idAllocator) release(id wire.ID) {
	delete(a.inUse, id)
}

// owns reports whether id falls within this allocator's range.
func (a *idAllocator) owns(id wire.ID) bool {
	return id >= a.base && id < a.end
}
