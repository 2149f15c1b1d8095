package router

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/tracker"
	"github.com/outofforest/msgbus/wire"
)

func beUint64(buf []byte) uint64   { return binary.BigEndian.Uint64(buf) }
func beFloat64(buf []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(buf)) }

// handleSpecial dispatches one eagiMsgBus-class message against local
// router state. It reports whether the message was fully handled here; a
// false return falls through to ordinary targeted/broadcast routing.
func (r *Router) handleSpecial(ctx context.Context, now time.Time, fromID wire.ID, msgID wire.MessageID, env wire.Envelope) bool {
	switch msgID {
	case wire.MethodPing:
		return r.handlePing(ctx, now, env)

	case wire.MethodPong:
		r.tr.GetNode(fromID).PingResponse(env.Age)
		return env.Target == r.selfID

	case wire.MethodStillAlive:
		r.tr.GetNode(fromID).NoticeAlive()
		r.endpointFor(now, fromID).refresh(now)
		return env.Target == r.selfID

	case wire.MethodSubscribTo:
		r.endpointFor(now, fromID).subscribeTo(decodeMsgIDOrZero(env.Payload))
		r.tr.GetNode(fromID).AddSubscription(decodeMsgIDOrZero(env.Payload))
		return false

	case wire.MethodUnsubFrom:
		r.endpointFor(now, fromID).unsubscribeFrom(decodeMsgIDOrZero(env.Payload))
		r.tr.GetNode(fromID).RemoveSubscription(decodeMsgIDOrZero(env.Payload))
		return false

	case wire.MethodNotSubTo:
		r.endpointFor(now, fromID).notSubscribedTo(decodeMsgIDOrZero(env.Payload))
		r.tr.GetNode(fromID).RemoveSubscription(decodeMsgIDOrZero(env.Payload))
		return false

	case wire.MethodQrySubscrb, wire.MethodQrySubscrp:
		return r.handleSubscriptionQuery(fromID, msgID, env)

	case r.cfg.BlobSendMsgID:
		r.blobs.ProcessIncoming(msgID, env)
		return env.Target == r.selfID

	case r.cfg.BlobResendMsgID:
		if env.Target != r.selfID {
			return false
		}
		r.blobs.ProcessResendRequest(env)
		return true

	case wire.MethodRtrCertQry, wire.MethodEptCertQry:
		r.handleCertQuery(fromID, env)
		return true

	case wire.MethodTopoQuery:
		r.handleTopologyQuery(fromID)
		return true

	case wire.MethodTopoRutrCn, wire.MethodTopoBrdgCn, wire.MethodTopoEndpt:
		r.handleTopologyInfo(now, msgID, env)
		return true

	case wire.MethodStatsQuery:
		r.handleStatsQuery(now, fromID)
		return true

	case wire.MethodStatsRutr, wire.MethodStatsBrdg, wire.MethodStatsEndpt:
		r.handleRemoteStats(fromID, env)
		return true

	case wire.MethodStatsConn:
		return true

	case wire.MethodByeByeEndp, wire.MethodByeByeRutr, wire.MethodByeByeBrdg:
		r.handleByeBye(now, fromID)
		return false

	case wire.MethodNotARouter:
		if n, ok := r.nodes[fromID]; ok {
			n.maybeRouter = false
		}
		return true

	case wire.MethodMsgFlowInf:
		return false

	case wire.MethodRequestID, wire.MethodAnnEndptID, wire.MethodAnnounceID, wire.MethodAssignID, wire.MethodConfirmID:
		return true

	case wire.MethodClrAlwList:
		if n, ok := r.nodes[fromID]; ok {
			n.clearAllowList()
		}
		return true

	case wire.MethodClrBlkList:
		if n, ok := r.nodes[fromID]; ok {
			n.clearBlockList()
		}
		return true

	case wire.MethodMsgAlwList:
		if n, ok := r.nodes[fromID]; ok {
			if id, ok := decodeMessageID(env.Payload); ok {
				n.allow(id)
			}
		}
		return true

	case wire.MethodMsgBlkList:
		if n, ok := r.nodes[fromID]; ok {
			if id, ok := decodeMessageID(env.Payload); ok {
				n.block(id)
			}
		}
		return true

	default:
		return false
	}
}

func (r *Router) handlePing(ctx context.Context, now time.Time, env wire.Envelope) bool {
	if env.Target != r.selfID && env.Target != wire.BroadcastID {
		return false
	}
	pong := wire.Envelope{
		MsgID:    wire.MethodPong,
		Target:   env.Source,
		Source:   r.selfID,
		Sequence: env.Sequence,
		Age:      env.Age,
	}
	r.routeMessage(ctx, now, r.selfID, wire.MethodPong, pong)
	return true
}

func (r *Router) endpointFor(now time.Time, id wire.ID) *endpointInfo {
	ei, ok := r.endpoints[id]
	if !ok {
		ei = newEndpointInfo(now)
		r.endpoints[id] = ei
	}
	return ei
}

// handleSubscriptionQuery answers a qrySubscrb/qrySubscrp query on the
// queried endpoint's behalf when its subscription state is cached here, but
// always still reports false: the query itself keeps propagating through
// the router tree regardless of whether this router could answer it.
func (r *Router) handleSubscriptionQuery(fromID wire.ID, msgID wire.MessageID, env wire.Envelope) bool {
	q, ok := decodeSubscriptionQuery(env.Payload)
	if !ok {
		return false
	}
	ei, known := r.endpoints[q.EndpointID]
	if !known {
		return false
	}
	subscribed, knownSub := ei.cachedSubscription(q.Query)
	if !knownSub {
		return false
	}

	reply := wire.MethodNotSubTo
	if subscribed {
		reply = wire.MethodSubscribTo
	}
	env2 := wire.Envelope{MsgID: reply, Target: fromID, Source: q.EndpointID, Payload: encodeMessageID(q.Query)}
	if n, ok := r.nodes[fromID]; ok {
		n.conn.Send(reply, env2)
	}
	return false
}

func (r *Router) handleCertQuery(fromID wire.ID, env wire.Envelope) {
	if r.cfg.CertificateProvider == nil {
		return
	}
	cert := r.cfg.CertificateProvider(env.Source)
	if cert == nil {
		return
	}
	io := &staticSourceIO{data: cert}
	r.blobs.PushOutgoing(r.selfID, fromID, env.Source, io, 0, wire.PriorityNormal)
}

func (r *Router) handleTopologyQuery(fromID wire.ID) {
	n, ok := r.nodes[fromID]
	if !ok {
		return
	}
	self := topologyInfo{RouterID: r.selfID, RemoteID: r.selfID, InstanceID: r.selfInstance, Kind: connection.KindInProcess}
	n.conn.Send(wire.MethodTopoRutrCn, wire.Envelope{MsgID: wire.MethodTopoRutrCn, Target: fromID, Source: r.selfID, Payload: self.encode()})

	for id, other := range r.nodes {
		if id == fromID || other.maybeRouter {
			continue
		}
		info := topologyInfo{RouterID: r.selfID, RemoteID: id, InstanceID: r.tr.GetNode(id).InstanceID}
		n.conn.Send(wire.MethodTopoEndpt, wire.Envelope{MsgID: wire.MethodTopoEndpt, Target: fromID, Source: r.selfID, Payload: info.encode()})
	}
}

func (r *Router) handleTopologyInfo(now time.Time, msgID wire.MessageID, env wire.Envelope) {
	info := decodeTopologyInfo(env.Payload)
	if info.RemoteID == wire.InvalidID {
		return
	}
	node := r.tr.NoticeInstance(now, info.RemoteID, info.InstanceID)
	switch msgID {
	case wire.MethodTopoRutrCn:
		node.AssignKind(tracker.KindRouter)
	case wire.MethodTopoBrdgCn:
		node.AssignKind(tracker.KindBridge)
	case wire.MethodTopoEndpt:
		node.AssignKind(tracker.KindEndpoint)
	}
}

func (r *Router) handleStatsQuery(now time.Time, fromID wire.ID) {
	n, ok := r.nodes[fromID]
	if !ok {
		return
	}
	s := r.st
	payload := routerStats{
		Forwarded:      s.forwarded,
		Dropped:        s.dropped,
		MessagesPerSec: s.mps,
		AvgAgeMillis:   uint64(s.avgAge.Milliseconds()),
		UptimeSeconds:  uint64(s.uptime(now).Seconds()),
	}.encode()
	n.conn.Send(wire.MethodStatsRutr, wire.Envelope{MsgID: wire.MethodStatsRutr, Target: fromID, Source: r.selfID, Payload: payload})

	for id, other := range r.nodes {
		var cs connection.Stats
		other.conn.QueryStatistics(&cs)
		stat := connStats{RemoteID: id, BlockUsageRatio: cs.BlockUsageRatio, BytesPerSecond: cs.BytesPerSecond}
		n.conn.Send(wire.MethodStatsConn, wire.Envelope{MsgID: wire.MethodStatsConn, Target: fromID, Source: r.selfID, Payload: stat.encode()})
	}
}

func (r *Router) handleRemoteStats(fromID wire.ID, env wire.Envelope) {
	buf := env.Payload
	if len(buf) < routerStatsSize {
		return
	}
	forwarded := beUint64(buf[0:8])
	dropped := beUint64(buf[8:16])
	mps := beFloat64(buf[16:24])
	avgMs := beUint64(buf[24:32])
	uptimeS := beUint64(buf[32:40])
	r.tr.GetNode(fromID).AssignStatistics(forwarded, 0, dropped, mps, time.Duration(avgMs)*time.Millisecond, time.Duration(uptimeS)*time.Second)
}

func (r *Router) handleByeBye(now time.Time, fromID wire.ID) {
	if n, ok := r.nodes[fromID]; ok && !n.maybeRouter {
		n.doDisconnect = true
	}
	delete(r.endpoints, fromID)
	delete(r.index, fromID)
	r.disconnected.mark(now, fromID)
}

func decodeMsgIDOrZero(buf []byte) wire.MessageID {
	id, _ := decodeMessageID(buf)
	return id
}
