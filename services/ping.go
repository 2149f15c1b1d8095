// Package services provides the small message-id vocabulary and
// request/response correlation helpers consumed and produced by endpoints
// sitting on top of a router: pinging other endpoints, requesting a
// shutdown, announcing discovery info, and addressing synthesized or
// file-backed resources by URL.
package services

import (
	"sync"
	"time"

	"github.com/outofforest/msgbus/wire"
)

// Result reports the outcome of a resolved or timed-out ping.
type Result struct {
	Target   wire.ID
	Sequence uint64
	Elapsed  time.Duration
	Verified uint32
	TimedOut bool
}

type pendingPing struct {
	target   wire.ID
	sequence uint64
	sentAt   time.Time
	maxTime  time.Duration
}

// Pinger issues sequence-correlated pings to other endpoints over the
// ordinary eagiMsgBus ping/pong vocabulary and resolves them against the
// pong replies that come back, grounded on pinger_impl's pending-list and
// erase_if match-by-sequence pattern.
type Pinger struct {
	mu      sync.Mutex
	nextSeq uint64
	pending []pendingPing
}

// NewPinger creates an empty Pinger.
func NewPinger() *Pinger {
	return &Pinger{}
}

// Ping builds the ping envelope to send toward target and records it
// pending, to be resolved by a later HandlePong or reported timed out by
// Update.
func (p *Pinger) Ping(target wire.ID, maxTime time.Duration, now time.Time) (wire.MessageID, wire.Envelope) {
	p.mu.Lock()
	p.nextSeq++
	seq := p.nextSeq
	p.pending = append(p.pending, pendingPing{target: target, sequence: seq, sentAt: now, maxTime: maxTime})
	p.mu.Unlock()

	return wire.MethodPing, wire.Envelope{
		MsgID:    wire.MethodPing,
		Target:   target,
		Sequence: seq,
		Priority: wire.PriorityLow,
	}
}

// HandlePong resolves the pending ping matching source and sequence, if
// any, reporting its round trip.
func (p *Pinger) HandlePong(source wire.ID, sequence uint64, verified uint32, now time.Time) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, pp := range p.pending {
		if pp.target == source && pp.sequence == sequence {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return Result{Target: source, Sequence: sequence, Elapsed: now.Sub(pp.sentAt), Verified: verified}, true
		}
	}
	return Result{}, false
}

// Update drops and reports every pending ping whose maxTime has elapsed.
func (p *Pinger) Update(now time.Time) []Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	var timedOut []Result
	kept := p.pending[:0]
	for _, pp := range p.pending {
		if pp.maxTime > 0 && now.Sub(pp.sentAt) > pp.maxTime {
			timedOut = append(timedOut, Result{Target: pp.target, Sequence: pp.sequence, Elapsed: now.Sub(pp.sentAt), TimedOut: true})
			continue
		}
		kept = append(kept, pp)
	}
	p.pending = kept
	return timedOut
}

// HasPending reports whether any ping is still awaiting a reply.
func (p *Pinger) HasPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) > 0
}
