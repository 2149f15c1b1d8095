package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/wire"
)

// adoptEndpoint drives the three-probe handshake from the peer side of a
// Channel pair: it offers routerEnd to r for adoption and speaks
// requestId/annEndptId on peerEnd, standing in for an endpoint library. It
// returns the id the router assigned once confirmed.
func adoptEndpoint(t *testing.T, ctx context.Context, r *Router, routerEnd, peerEnd *connection.Channel, now time.Time) wire.ID {
	t.Helper()

	require.True(t, peerEnd.Send(wire.MethodRequestID, wire.Envelope{MsgID: wire.MethodRequestID}))
	r.AddPending(routerEnd, now)
	require.True(t, r.DoWork(ctx, now))

	var assigned wire.ID
	require.True(t, peerEnd.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		require.Equal(t, wire.MethodAssignID, msgID)
		assigned = env.Target
		return true
	}))
	require.True(t, assigned.IsValid())

	require.True(t, peerEnd.Send(wire.MethodAnnEndptID, wire.Envelope{MsgID: wire.MethodAnnEndptID, Target: assigned}))
	require.True(t, r.DoWork(ctx, now))

	require.True(t, peerEnd.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		require.Equal(t, wire.MethodConfirmID, msgID)
		require.Equal(t, assigned, env.Target)
		return true
	}))

	return assigned
}

func TestHandshakeAssignsDistinctIDs(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)

	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	idB := adoptEndpoint(t, ctx, r, routerB, peerB, now)

	require.NotEqual(t, idA, idB)
	require.Len(t, r.nodes, 2)
	require.Equal(t, connection.Connection(routerA), r.index[idA].conn)
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerEnd, peerEnd := connection.NewChannelPair(1, 0)
	id := adoptEndpoint(t, ctx, r, routerEnd, peerEnd, now)

	require.True(t, peerEnd.Send(wire.MethodPing, wire.Envelope{MsgID: wire.MethodPing, Target: r.SelfID(), Source: id}))
	require.True(t, r.DoWork(ctx, now))

	var gotPong bool
	peerEnd.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		if msgID == wire.MethodPong {
			gotPong = true
			require.Equal(t, id, env.Target)
		}
		return true
	})
	require.True(t, gotPong)
}

func TestTargetedMessageIsForwardedToAdoptedPeer(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	idB := adoptEndpoint(t, ctx, r, routerB, peerB, now)

	custom := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("hello")}
	require.True(t, peerA.Send(custom, wire.Envelope{MsgID: custom, Target: idB, Source: idA, Payload: []byte("hi")}))
	require.True(t, r.DoWork(ctx, now))

	var received []byte
	peerB.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		if msgID == custom {
			received = env.Payload
		}
		return true
	})
	require.Equal(t, []byte("hi"), received)
}

func TestBroadcastReachesEveryPeerButTheSender(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	routerC, peerC := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	_ = adoptEndpoint(t, ctx, r, routerB, peerB, now)
	_ = adoptEndpoint(t, ctx, r, routerC, peerC, now)

	custom := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("bcast")}
	require.True(t, peerA.Send(custom, wire.Envelope{MsgID: custom, Target: wire.BroadcastID, Source: idA}))
	require.True(t, r.DoWork(ctx, now))

	gotA, gotB, gotC := false, false, false
	peerA.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool { gotA = gotA || msgID == custom; return true })
	peerB.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool { gotB = gotB || msgID == custom; return true })
	peerC.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool { gotC = gotC || msgID == custom; return true })

	require.False(t, gotA)
	require.True(t, gotB)
	require.True(t, gotC)
}

func TestTopologyQueryDescribesAdoptedEndpoints(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	idB := adoptEndpoint(t, ctx, r, routerB, peerB, now)

	require.True(t, peerA.Send(wire.MethodTopoQuery, wire.Envelope{MsgID: wire.MethodTopoQuery, Target: r.SelfID(), Source: idA}))
	require.True(t, r.DoWork(ctx, now))

	sawSelf, sawPeer := false, false
	peerA.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		switch msgID {
		case wire.MethodTopoRutrCn:
			sawSelf = true
		case wire.MethodTopoEndpt:
			info := decodeTopologyInfo(env.Payload)
			if info.RemoteID == idB {
				sawPeer = true
			}
		}
		return true
	})
	require.True(t, sawSelf)
	require.True(t, sawPeer)
}

func TestDisconnectedEndpointFallsIntoRecentlyDisconnectedSet(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)

	require.True(t, peerA.Send(wire.MethodByeByeEndp, wire.Envelope{MsgID: wire.MethodByeByeEndp, Target: r.SelfID(), Source: idA}))
	r.DoWork(ctx, now)
	r.DoWork(ctx, now.Add(time.Millisecond))

	require.True(t, r.disconnected.contains(now, idA))
	_, stillAdopted := r.nodes[idA]
	require.False(t, stillAdopted)

	later := now.Add(recentlyDisconnectedTTL + time.Second)
	require.False(t, r.disconnected.contains(later, idA))
}

func TestSubscribToUpdatesStateAndStillForwards(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	_ = adoptEndpoint(t, ctx, r, routerB, peerB, now)

	watched := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("watched")}
	require.True(t, peerA.Send(wire.MethodSubscribTo, wire.Envelope{
		MsgID: wire.MethodSubscribTo, Target: wire.BroadcastID, Source: idA, Payload: encodeMessageID(watched),
	}))
	require.True(t, r.DoWork(ctx, now))

	subscribed, known := r.endpoints[idA].cachedSubscription(watched)
	require.True(t, known)
	require.True(t, subscribed)

	var forwarded bool
	peerB.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool {
		forwarded = forwarded || msgID == wire.MethodSubscribTo
		return true
	})
	require.True(t, forwarded)
}

func TestNotSubToUpdatesStateAndStillForwards(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	_ = adoptEndpoint(t, ctx, r, routerB, peerB, now)

	watched := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("watched")}
	require.True(t, peerA.Send(wire.MethodNotSubTo, wire.Envelope{
		MsgID: wire.MethodNotSubTo, Target: wire.BroadcastID, Source: idA, Payload: encodeMessageID(watched),
	}))
	require.True(t, r.DoWork(ctx, now))

	subscribed, known := r.endpoints[idA].cachedSubscription(watched)
	require.True(t, known)
	require.False(t, subscribed)

	var forwarded bool
	peerB.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool {
		forwarded = forwarded || msgID == wire.MethodNotSubTo
		return true
	})
	require.True(t, forwarded)
}

func TestSubscriptionQueryAnswersWhenCachedAndStillForwards(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	idB := adoptEndpoint(t, ctx, r, routerB, peerB, now)

	watched := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("watched")}
	require.True(t, peerA.Send(wire.MethodSubscribTo, wire.Envelope{
		MsgID: wire.MethodSubscribTo, Target: wire.BroadcastID, Source: idA, Payload: encodeMessageID(watched),
	}))
	require.True(t, r.DoWork(ctx, now))
	peerB.FetchMessages(func(wire.MessageID, time.Duration, *wire.Envelope) bool { return true })

	query := subscriptionQuery{EndpointID: idA, Query: watched}
	require.True(t, peerB.Send(wire.MethodQrySubscrb, wire.Envelope{
		MsgID: wire.MethodQrySubscrb, Target: wire.BroadcastID, Source: idB, Payload: query.encode(),
	}))
	require.True(t, r.DoWork(ctx, now))

	var answered, forwarded bool
	peerB.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		if msgID == wire.MethodSubscribTo && env.Source == idA {
			answered = true
		}
		return true
	})
	peerA.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool {
		forwarded = forwarded || msgID == wire.MethodQrySubscrb
		return true
	})
	require.True(t, answered)
	require.True(t, forwarded)
}

func TestBlobFragmentForOtherTargetIsForwardedNotConsumed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	idB := adoptEndpoint(t, ctx, r, routerB, peerB, now)

	require.True(t, peerA.Send(r.cfg.BlobSendMsgID, wire.Envelope{
		MsgID: r.cfg.BlobSendMsgID, Target: idB, Source: idA, Payload: []byte("not a real fragment header"),
	}))
	require.True(t, r.DoWork(ctx, now))

	var forwarded bool
	peerB.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		if msgID == r.cfg.BlobSendMsgID && env.Target == idB {
			forwarded = true
		}
		return true
	})
	require.True(t, forwarded)
}

func TestByeByeIsForwardedAfterLocalCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := New(DefaultConfig(), now)

	routerA, peerA := connection.NewChannelPair(1, 0)
	routerB, peerB := connection.NewChannelPair(1, 0)
	idA := adoptEndpoint(t, ctx, r, routerA, peerA, now)
	_ = adoptEndpoint(t, ctx, r, routerB, peerB, now)

	require.True(t, peerA.Send(wire.MethodByeByeEndp, wire.Envelope{MsgID: wire.MethodByeByeEndp, Target: wire.BroadcastID, Source: idA}))
	r.DoWork(ctx, now)

	var forwarded bool
	peerB.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool {
		forwarded = forwarded || msgID == wire.MethodByeByeEndp
		return true
	})
	require.True(t, forwarded)

	r.DoWork(ctx, now.Add(time.Millisecond))
	_, stillAdopted := r.nodes[idA]
	require.False(t, stillAdopted)
}

func TestIDRangeExhaustionReturnsInvalidID(t *testing.T) {
	// base (the first id in the range) is never itself handed out, so a
	// range of 3 yields exactly 2 assignable ids before the range is full.
	a := newIDAllocator(0, 0, 3)
	first := a.assign()
	second := a.assign()
	require.True(t, first.IsValid())
	require.True(t, second.IsValid())
	require.NotEqual(t, first, second)
	require.Equal(t, wire.InvalidID, a.assign())
}
