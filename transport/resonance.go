// Package transport adapts github.com/outofforest/resonance network
// connections to the connection.Connection/connection.Acceptor
// abstraction, the one concrete transport routers and bridges in this
// repository run over.
package transport

import (
	"context"
	"crypto/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"

	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/wire"
)

const sendBuffer = 256

func newNonce() ([16]byte, error) {
	var n [16]byte
	if _, err := rand.Read(n[:]); err != nil {
		return [16]byte{}, errors.WithStack(err)
	}
	return n, nil
}

type queuedMsg struct {
	msgID wire.MessageID
	env   wire.Envelope
}

// Conn adapts one resonance.Connection: a reader goroutine and a writer
// goroutine, both spawned by run, fill and drain buffered channels the same
// way connection.Channel does for the in-process case.
type Conn struct {
	rc         *resonance.Connection
	marshaller Marshaller
	maxData    uint64

	out    chan queuedMsg
	in     chan queuedMsg
	usable atomic.Bool
}

var _ connection.Connection = (*Conn)(nil)

func newConn(rc *resonance.Connection, marshaller Marshaller, maxData uint64) *Conn {
	c := &Conn{
		rc:         rc,
		marshaller: marshaller,
		maxData:    maxData,
		out:        make(chan queuedMsg, sendBuffer),
		in:         make(chan queuedMsg, sendBuffer),
	}
	c.usable.Store(true)
	return c
}

// Kind always reports a network stream.
func (c *Conn) Kind() connection.Kind { return connection.KindNetworkStream }

// TypeID tags this connection as resonance-backed.
func (c *Conn) TypeID() wire.ID { return wire.ID(1) }

// MaxDataSize returns the configured maximum message size.
func (c *Conn) MaxDataSize() uint64 { return c.maxData }

// IsUsable reports whether the connection is still open.
func (c *Conn) IsUsable() bool { return c.usable.Load() }

// Send enqueues env non-blockingly, reporting false if the connection is
// closed or its outbound buffer is full.
func (c *Conn) Send(msgID wire.MessageID, env wire.Envelope) bool {
	if !c.usable.Load() {
		return false
	}
	select {
	case c.out <- queuedMsg{msgID: msgID, env: env}:
		return true
	default:
		return false
	}
}

// FetchMessages drains every message the reader goroutine has queued,
// offering each to handler.
func (c *Conn) FetchMessages(handler connection.Handler) bool {
	fetched := false
	for {
		select {
		case qm := <-c.in:
			fetched = true
			env := qm.env
			handler(qm.msgID, qm.env.Age, &env)
		default:
			return fetched
		}
	}
}

// Update is a no-op: the reader/writer goroutines started by run already
// move bytes continuously.
func (c *Conn) Update() bool { return false }

// QueryStatistics always reports unavailable, matching connection.Channel:
// neither in-process nor this network adapter tracks a byte rate, since
// nothing in this repository yet needs per-link throughput beyond what
// statsConn reports as zero.
func (c *Conn) QueryStatistics(*connection.Stats) bool { return false }

// Cleanup closes the underlying resonance connection exactly once.
func (c *Conn) Cleanup() {
	if c.usable.CompareAndSwap(true, false) {
		c.rc.Close()
	}
}

// run drives the reader and writer loops for the lifetime of the
// connection, the same split client.go/server.go used for the namespace
// pub/sub protocol: one goroutine blocked in ReceiveProton, one draining an
// outbound channel into SendProton.
func (c *Conn) run(ctx context.Context) error {
	defer c.Cleanup()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("reader", parallel.Fail, func(ctx context.Context) error {
			for {
				msg, err := c.rc.ReceiveProton(c.marshaller)
				if err != nil {
					return err
				}
				em, ok := msg.(*EnvelopeMsg)
				if !ok {
					continue
				}
				env := fromWire(em)
				select {
				case c.in <- queuedMsg{msgID: env.MsgID, env: env}:
				default:
				}
			}
		})
		spawn("writer", parallel.Fail, func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case qm := <-c.out:
					if err := c.rc.SendProton(toWire(qm.msgID, qm.env), c.marshaller); err != nil {
						return err
					}
				}
			}
		})
		return nil
	})
}

func toWire(msgID wire.MessageID, env wire.Envelope) *EnvelopeMsg {
	return &EnvelopeMsg{
		MsgIDClass:  uint64(msgID.Class),
		MsgIDMethod: uint64(msgID.Method),
		Target:      uint64(env.Target),
		Source:      uint64(env.Source),
		Sequence:    env.Sequence,
		Priority:    uint8(env.Priority),
		HopCount:    env.HopCount,
		AgeNanos:    int64(env.Age),
		Verified:    env.Verified,
		Payload:     env.Payload,
	}
}

func fromWire(em *EnvelopeMsg) wire.Envelope {
	return wire.Envelope{
		MsgID:    wire.MessageID{Class: wire.Name(em.MsgIDClass), Method: wire.Name(em.MsgIDMethod)},
		Target:   wire.ID(em.Target),
		Source:   wire.ID(em.Source),
		Sequence: em.Sequence,
		Priority: wire.Priority(em.Priority),
		HopCount: em.HopCount,
		Age:      time.Duration(em.AgeNanos),
		Verified: em.Verified,
		Payload:  em.Payload,
	}
}

func handshake(rc *resonance.Connection, maxMessageSize uint64) (*Conn, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	m := NewMarshaller()
	if err := rc.SendProton(&Hello{Nonce: nonce}, m); err != nil {
		return nil, err
	}
	msg, err := rc.ReceiveProton(m)
	if err != nil {
		return nil, err
	}
	if _, ok := msg.(*Hello); !ok {
		return nil, errors.New("hello message expected")
	}
	return newConn(rc, m, maxMessageSize), nil
}

// Listener accepts resonance connections on ls, handshaking each one and
// making it available to Attach-ed routers via ProcessAccepted.
type Listener struct {
	typeID  wire.ID
	pending chan connection.Connection
}

var _ connection.Acceptor = (*Listener)(nil)

// NewListener starts accepting connections on ls in the background until
// ctx is cancelled.
func NewListener(ctx context.Context, ls net.Listener, maxMessageSize uint64) *Listener {
	l := &Listener{typeID: wire.ID(1), pending: make(chan connection.Connection, 64)}
	go l.run(ctx, ls, maxMessageSize)
	return l
}

func (l *Listener) run(ctx context.Context, ls net.Listener, maxMessageSize uint64) {
	log := logger.Get(ctx)
	cfg := resonance.Config{MaxMessageSize: maxMessageSize}

	err := resonance.RunServer(ctx, ls, cfg, func(ctx context.Context, rc *resonance.Connection) error {
		conn, err := handshake(rc, maxMessageSize)
		if err != nil {
			return err
		}
		select {
		case l.pending <- conn:
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
		return conn.run(ctx)
	})
	if err != nil && ctx.Err() == nil {
		log.Error("Listener stopped", zap.Error(err))
	}
}

// Kind always reports a network stream.
func (l *Listener) Kind() connection.Kind { return connection.KindNetworkStream }

// TypeID tags connections this listener hands out.
func (l *Listener) TypeID() wire.ID { return l.typeID }

// Update is a no-op: accepting happens on the background goroutine started
// by NewListener.
func (l *Listener) Update() bool { return false }

// ProcessAccepted offers every handshaked connection queued since the last
// call to cb.
func (l *Listener) ProcessAccepted(cb connection.AcceptHandler) {
	for {
		select {
		case conn := <-l.pending:
			cb(conn)
		default:
			return
		}
	}
}

// Dial connects to addr, completes the Hello handshake, and returns a Conn
// whose reader/writer loops run in the background until ctx is cancelled or
// the connection fails.
func Dial(ctx context.Context, addr string, maxMessageSize uint64) (*Conn, error) {
	cfg := resonance.Config{MaxMessageSize: maxMessageSize}

	connCh := make(chan *Conn, 1)
	errCh := make(chan error, 1)

	go func() {
		err := resonance.RunClient(ctx, addr, cfg, func(ctx context.Context, rc *resonance.Connection) error {
			conn, err := handshake(rc, maxMessageSize)
			if err != nil {
				errCh <- err
				return err
			}
			connCh <- conn
			return conn.run(ctx)
		})
		if err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	select {
	case conn := <-connCh:
		return conn, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}
