package connection

import (
	"sync/atomic"
	"time"

	"github.com/outofforest/msgbus/wire"
)

const channelBuffer = 256

type queuedEnvelope struct {
	msgID wire.MessageID
	env   wire.Envelope
	age   time.Duration
}

// Channel is an in-process Connection backed by a pair of buffered Go
// channels, generalizing the send/fetch channel plumbing the teacher keeps
// per peer into a symmetric duplex link any router or bridge test can run
// against without a real transport.
type Channel struct {
	out     chan queuedEnvelope
	in      chan queuedEnvelope
	maxData uint64
	typeID  wire.ID
	usable  atomic.Bool
}

var _ Connection = (*Channel)(nil)

// NewChannelPair returns two ends of an in-process connection; messages
// sent on one are fetched on the other.
func NewChannelPair(typeID wire.ID, maxData uint64) (a, b *Channel) {
	c1 := make(chan queuedEnvelope, channelBuffer)
	c2 := make(chan queuedEnvelope, channelBuffer)

	a = &Channel{out: c1, in: c2, maxData: maxData, typeID: typeID}
	b = &Channel{out: c2, in: c1, maxData: maxData, typeID: typeID}
	a.usable.Store(true)
	b.usable.Store(true)
	return a, b
}

// Kind always reports KindInProcess.
func (c *Channel) Kind() Kind { return KindInProcess }

// TypeID returns the tag shared by both ends of the pair.
func (c *Channel) TypeID() wire.ID { return c.typeID }

// MaxDataSize returns the configured payload bound, or 0 if unbounded.
func (c *Channel) MaxDataSize() uint64 { return c.maxData }

// IsUsable reports whether the channel has not been closed.
func (c *Channel) IsUsable() bool { return c.usable.Load() }

// Send enqueues env non-blockingly, reporting false if the channel is
// closed or its buffer is full.
func (c *Channel) Send(msgID wire.MessageID, env wire.Envelope) bool {
	if !c.usable.Load() {
		return false
	}
	select {
	case c.out <- queuedEnvelope{msgID: msgID, env: env}:
		return true
	default:
		return false
	}
}

// FetchMessages drains every message currently queued, offering each to
// handler, and reports whether any message was fetched.
func (c *Channel) FetchMessages(handler Handler) bool {
	fetched := false
	for {
		select {
		case qe := <-c.in:
			fetched = true
			handler(qe.msgID, qe.age, &qe.env)
		default:
			return fetched
		}
	}
}

// Update is a no-op for an in-process channel; it never buffers beyond its
// Go channels.
func (c *Channel) Update() bool { return false }

// QueryStatistics always reports unavailable; an in-process channel has no
// byte-rate or block-usage concept to surface.
func (c *Channel) QueryStatistics(*Stats) bool { return false }

// Cleanup marks the channel unusable. The paired end keeps working until it
// next tries to Send and finds its buffer undrained; this mirrors a socket
// half-close rather than synchronously tearing down both ends.
func (c *Channel) Cleanup() {
	c.usable.Store(false)
}

// ChannelAcceptor hands out Channel connections offered to it via Offer,
// standing in for a listening socket in unit tests.
type ChannelAcceptor struct {
	typeID  wire.ID
	pending chan Connection
}

var _ Acceptor = (*ChannelAcceptor)(nil)

// NewChannelAcceptor creates an acceptor with room for backlog pending
// connections before Offer blocks.
func NewChannelAcceptor(typeID wire.ID, backlog int) *ChannelAcceptor {
	return &ChannelAcceptor{typeID: typeID, pending: make(chan Connection, backlog)}
}

// Kind always reports KindInProcess.
func (a *ChannelAcceptor) Kind() Kind { return KindInProcess }

// TypeID returns the acceptor's configured tag.
func (a *ChannelAcceptor) TypeID() wire.ID { return a.typeID }

// Offer makes conn available to the next ProcessAccepted call.
func (a *ChannelAcceptor) Offer(conn Connection) {
	a.pending <- conn
}

// Update is a no-op; Channel connections are always immediately ready.
func (a *ChannelAcceptor) Update() bool { return false }

// ProcessAccepted offers every connection queued since the last call to cb.
func (a *ChannelAcceptor) ProcessAccepted(cb AcceptHandler) {
	for {
		select {
		case conn := <-a.pending:
			cb(conn)
		default:
			return
		}
	}
}
