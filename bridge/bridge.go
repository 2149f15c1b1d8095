// Package bridge joins two routers across a byte-stream transport (stdin/
// stdout or equivalent) that has no notion of messages, only bytes: every
// wire.Envelope crossing it is framed as a base64 line by state, while
// Bridge itself handles the subset of the special vocabulary a link needs
// to negotiate its own id and answer topology/statistics probes.
package bridge

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"

	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/wire"
)

const idRequestInterval = time.Second

// Config configures a Bridge's framing size and message-age limit.
type Config struct {
	// MaxDataSize bounds a decoded record's raw size; the line-scan budget
	// is twice this, matching the teacher's max_read.
	MaxDataSize int
	// MaxAge drops a message instead of forwarding it once its accumulated
	// age exceeds this. Zero means unlimited.
	MaxAge time.Duration
}

// DefaultConfig returns reasonable defaults for a bridge link.
func DefaultConfig() Config {
	return Config{MaxDataSize: defaultMaxDataSize, MaxAge: 60 * time.Second}
}

// Bridge owns one connection.Connection to a neighboring router and a
// byte-stream pair to the other side of the link.
type Bridge struct {
	cfg  Config
	conn connection.Connection
	st   *state

	id            wire.ID
	instanceID    wire.ID
	lastIDRequest time.Time
	startedAt     time.Time
}

// New creates a Bridge forwarding between conn and the byte stream (r, w).
// instanceID identifies this process instance in topology/discovery
// replies.
func New(cfg Config, conn connection.Connection, r io.Reader, w io.Writer, instanceID wire.ID, now time.Time) *Bridge {
	return &Bridge{
		cfg:        cfg,
		conn:       conn,
		st:         newState(r, w, cfg.MaxDataSize, cfg.MaxAge),
		instanceID: instanceID,
		startedAt:  now,
	}
}

// ID returns the id this bridge has been assigned by the neighboring
// router, or wire.InvalidID before negotiation completes.
func (b *Bridge) ID() wire.ID { return b.id }

// IsUsable reports whether both the connection and the byte stream are
// still usable.
func (b *Bridge) IsUsable() bool { return b.conn.IsUsable() && b.st.isUsable() }

// DoWork advances the bridge by one step: requesting an id if unassigned,
// updating the connection, forwarding queued messages in both directions
// (intercepting the special ones), and announcing a newly assigned id. It
// reports whether any work was done.
func (b *Bridge) DoWork(now time.Time) bool {
	done := false

	if !b.id.IsValid() && now.Sub(b.lastIDRequest) >= idRequestInterval {
		b.conn.Send(wire.MethodRequestID, wire.Envelope{MsgID: wire.MethodRequestID})
		b.lastIDRequest = now
		done = true
	}
	if b.conn.Update() {
		done = true
	}

	hadID := b.id.IsValid()

	if b.conn.FetchMessages(func(msgID wire.MessageID, age time.Duration, env *wire.Envelope) bool {
		done = true
		if env.AddAge(age, b.cfg.MaxAge) {
			b.st.dropped.Add(1)
			return true
		}
		if b.handleSpecial(msgID, env, false, now) {
			return true
		}
		env.HopCount++
		b.st.push(msgID, *env)
		return true
	}) {
		done = true
	}

	if b.st.fetchMessages(func(msgID wire.MessageID, env wire.Envelope) {
		done = true
		if env.TooOld(b.cfg.MaxAge) {
			b.st.dropped.Add(1)
			return
		}
		if b.handleSpecial(msgID, &env, true, now) {
			return
		}
		env.HopCount++
		b.conn.Send(msgID, env)
	}) {
		done = true
	}

	if b.id.IsValid() && !hadID {
		b.conn.Send(wire.MethodAnnounceID, wire.Envelope{MsgID: wire.MethodAnnounceID, Target: b.id, Source: b.id})
		done = true
	}

	return done
}

// handleSpecial intercepts the subset of the eagiMsgBus vocabulary a bridge
// answers itself. fromStream reports whether the message is currently
// flowing from the byte stream toward the connection (as opposed to from
// the connection toward the byte stream); a reply always goes back the way
// the message came. It reports whether the message was fully consumed.
func (b *Bridge) handleSpecial(msgID wire.MessageID, env *wire.Envelope, fromStream bool, now time.Time) bool {
	if !msgID.IsSpecial() {
		return false
	}

	switch msgID.Method {
	case wire.MethodAssignID.Method:
		if !b.id.IsValid() {
			b.id = env.Target
		}
		return true
	case wire.MethodConfirmID.Method:
		return true
	case wire.MethodPing.Method:
		return b.handlePing(env, fromStream)
	case wire.MethodTopoQuery.Method:
		b.replyTopology(fromStream)
		return false
	case wire.MethodTopoBrdgCn.Method:
		if fromStream {
			if info, ok := decodeBridgeTopologyInfo(env.Payload); ok {
				info.OppositeID = b.id
				env.Payload = info.encode()
			}
		}
		return false
	case wire.MethodStatsQuery.Method:
		b.replyStats(fromStream, now)
		return false
	case wire.MethodMsgFlowInf.Method:
		return true
	default:
		return false
	}
}

func (b *Bridge) handlePing(env *wire.Envelope, fromStream bool) bool {
	if !b.id.IsValid() || env.Target != b.id {
		return false
	}
	reply := wire.Envelope{MsgID: wire.MethodPong, Target: env.Source, Source: b.id, Sequence: env.Sequence}
	b.reply(wire.MethodPong, reply, fromStream)
	return true
}

func (b *Bridge) replyTopology(fromStream bool) {
	info := bridgeTopologyInfo{BridgeID: b.id, InstanceID: b.instanceID}
	reply := wire.Envelope{MsgID: wire.MethodTopoBrdgCn, Source: b.id, Payload: info.encode()}
	b.reply(wire.MethodTopoBrdgCn, reply, fromStream)
}

func (b *Bridge) replyStats(fromStream bool, now time.Time) {
	st := bridgeStats{
		ForwardedMessages: b.st.forwarded.Load(),
		DroppedMessages:   b.st.dropped.Load(),
		UptimeSeconds:     int64(now.Sub(b.startedAt).Seconds()),
	}
	reply := wire.Envelope{MsgID: wire.MethodStatsBrdg, Source: b.id, Payload: st.encode()}
	b.reply(wire.MethodStatsBrdg, reply, fromStream)
}

func (b *Bridge) reply(msgID wire.MessageID, env wire.Envelope, fromStream bool) {
	if fromStream {
		b.st.push(msgID, env)
	} else {
		b.conn.Send(msgID, env)
	}
}

func (b *Bridge) sayBye() {
	msg := wire.Envelope{MsgID: wire.MethodByeByeBrdg, Source: b.id}
	b.conn.Send(wire.MethodByeByeBrdg, msg)
	b.conn.Update()
	b.st.push(wire.MethodByeByeBrdg, msg)
}

// Run drives the bridge's input loop, output loop and message-forwarding
// loop until ctx is cancelled, announcing its departure on the way out.
func (b *Bridge) Run(ctx context.Context) error {
	log := logger.Get(ctx)
	log.Info("Bridge starting")
	defer log.Info("Bridge stopped")

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("recv", parallel.Fail, b.st.recvLoop)
		spawn("send", parallel.Fail, b.st.sendLoop)
		spawn("forward", parallel.Fail, b.forwardLoop)
		return nil
	})
}

func (b *Bridge) forwardLoop(ctx context.Context) error {
	defer b.sayBye()

	const maxBackoff = 5 * time.Millisecond
	backoff := time.Microsecond

	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		if b.DoWork(time.Now()) {
			backoff = time.Microsecond
			continue
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
