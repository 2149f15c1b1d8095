package tracker

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

// Kind classifies what role a remote node plays on the bus.
type Kind int

// Node kinds.
const (
	KindUnknown Kind = iota
	KindEndpoint
	KindRouter
	KindBridge
)

const defaultPingInterval = 5 * time.Second

// Node is one remote endpoint, router or bridge observed on the bus.
type Node struct {
	ID ID

	InstanceID  ID
	HostID      ID
	DisplayName string
	Description string
	Kind        Kind

	SentMessages      uint64
	ReceivedMessages  uint64
	DroppedMessages   uint64
	MessagesPerSecond float64
	AverageMessageAge time.Duration
	Uptime            time.Duration

	PingBits           uint8
	PingsSent          uint64
	PingsResponded     uint64
	PingsTimeouted     uint64
	LastPingRoundTrip  time.Duration
	LastPingTimeout    time.Duration

	subscriptions map[wire.MessageID]bool
	pingInterval  time.Duration
	pingDeadline  time.Time
	changes       changeSet
}

func newNode(id ID) *Node {
	return &Node{
		ID:            id,
		subscriptions: make(map[wire.MessageID]bool),
		pingInterval:  defaultPingInterval,
	}
}

// Clear resets the node back to having no subscriptions or instance,
// preparing it for re-discovery under a new instance id.
func (n *Node) Clear() {
	n.InstanceID = InvalidID
	n.DisplayName = ""
	n.Description = ""
	n.Kind = KindUnknown
	n.subscriptions = make(map[wire.MessageID]bool)
	n.changes.add(ChangeKind | ChangeSubscriptions | ChangeEndpointInfo)
}

// Changes drains the accumulated change mask.
func (n *Node) Changes() Changes {
	return n.changes.drain()
}

// AssignKind records what role this node plays, once known.
func (n *Node) AssignKind(kind Kind) {
	if n.Kind != kind {
		n.Kind = kind
		n.changes.add(ChangeKind)
	}
}

// AssignEndpointInfo records a display name/description pair reported by
// the endpoint itself.
func (n *Node) AssignEndpointInfo(displayName, description string, cache *StringCache) {
	n.AssignKind(KindEndpoint)
	n.DisplayName = cache.Cached(displayName)
	n.Description = cache.Cached(description)
	n.changes.add(ChangeEndpointInfo)
}

// AssignStatistics records router/bridge/endpoint statistics reported for
// this node.
func (n *Node) AssignStatistics(sent, received, dropped uint64, messagesPerSecond float64, avgAge, uptime time.Duration) {
	n.SentMessages = sent
	n.ReceivedMessages = received
	n.DroppedMessages = dropped
	n.MessagesPerSecond = messagesPerSecond
	n.AverageMessageAge = avgAge
	n.Uptime = uptime
	n.changes.add(ChangeStatistics)
}

// AddSubscription records that the node subscribes to msgID, marking
// changed only if this is new information.
func (n *Node) AddSubscription(msgID wire.MessageID) {
	if sub, ok := n.subscriptions[msgID]; !ok || !sub {
		n.subscriptions[msgID] = true
		n.changes.add(ChangeSubscriptions)
	}
}

// RemoveSubscription records that the node does not subscribe to msgID,
// marking changed only if this is new information.
func (n *Node) RemoveSubscription(msgID wire.MessageID) {
	if sub, ok := n.subscriptions[msgID]; !ok || sub {
		n.subscriptions[msgID] = false
		n.changes.add(ChangeSubscriptions)
	}
}

// SubscribesTo reports whether the node is known to subscribe to msgID; an
// unknown subscription state reports false.
func (n *Node) SubscribesTo(msgID wire.MessageID) bool {
	return n.subscriptions[msgID]
}

// IsRouterNode reports whether this node's role is known to be a router.
func (n *Node) IsRouterNode() bool { return n.Kind == KindRouter }

// IsBridgeNode reports whether this node's role is known to be a bridge.
func (n *Node) IsBridgeNode() bool { return n.Kind == KindBridge }

// IsPingable reports whether this node can be usefully pinged: routers and
// bridges always accept pings, endpoints only if they subscribe to ping.
func (n *Node) IsPingable() bool {
	if n.Kind == KindRouter || n.Kind == KindBridge {
		return true
	}
	return n.SubscribesTo(wire.MethodPing)
}

// IsResponsive reports whether any bit in the rolling ping window is set.
func (n *Node) IsResponsive() bool {
	return n.PingBits != 0
}

// SetPingInterval overrides the default ping cadence.
func (n *Node) SetPingInterval(d time.Duration) {
	n.pingInterval = d
}

// ShouldPing reports whether it is time to ping this node again, and the
// timeout the caller should use for the request (twice the ping interval).
func (n *Node) ShouldPing(now time.Time) (bool, time.Duration) {
	return n.pingDeadline.IsZero() || now.After(n.pingDeadline), 2 * n.pingInterval
}

// Pinged records that a ping was just dispatched, rescheduling the next
// one.
func (n *Node) Pinged(now time.Time) {
	n.pingDeadline = now.Add(n.pingInterval)
}

// PingResponse records a pong received for a prior ping, round-trip time
// age.
func (n *Node) PingResponse(age time.Duration) {
	wasResponsive := n.IsResponsive()
	n.LastPingRoundTrip = age
	n.PingBits = n.PingBits<<1 | 1
	n.PingsSent++
	n.PingsResponded++
	if !wasResponsive {
		n.changes.add(ChangeStartedResponding)
	}
	n.changes.add(ChangeStatistics)
}

// PingTimeout records a ping that was never answered within its timeout.
func (n *Node) PingTimeout(elapsed time.Duration) {
	wasResponsive := n.IsResponsive()
	n.LastPingTimeout = elapsed
	n.PingBits <<= 1
	n.PingsSent++
	n.PingsTimeouted++
	if wasResponsive && !n.IsResponsive() {
		n.changes.add(ChangeStoppedResponding)
	}
	n.changes.add(ChangeStatistics)
}

// NoticeAlive records that any message at all arrived from this node,
// shifting a 1 into the ping window the same way a successful ping does.
func (n *Node) NoticeAlive() {
	wasResponsive := n.IsResponsive()
	n.PingBits = n.PingBits<<1 | 1
	if !wasResponsive {
		n.changes.add(ChangeStartedResponding)
	}
}
