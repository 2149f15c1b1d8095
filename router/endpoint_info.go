package router

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

// endpointOutdatedTimeout is how long an endpoint-info entry survives
// without a stillAlive refresh before it is evicted.
const endpointOutdatedTimeout = 30 * time.Second

// endpointInfo is a router's per-endpoint cache of instance id and
// subscription state, refreshed by subscribTo/notSubTo/stillAlive and
// evicted when its outdatedness timeout expires.
type endpointInfo struct {
	instanceID    wire.ID
	subscribed    map[wire.MessageID]struct{}
	unsubscribed  map[wire.MessageID]struct{}
	outdatedAt    time.Time
}

func newEndpointInfo(now time.Time) *endpointInfo {
	return &endpointInfo{
		subscribed:   make(map[wire.MessageID]struct{}),
		unsubscribed: make(map[wire.MessageID]struct{}),
		outdatedAt:   now.Add(endpointOutdatedTimeout),
	}
}

// setInstanceID resets subscription state if the instance id changed,
// matching router_endpoint_info::assign_instance_id.
func (e *endpointInfo) setInstanceID(now time.Time, instanceID wire.ID) {
	if e.instanceID != instanceID {
		e.instanceID = instanceID
		e.subscribed = make(map[wire.MessageID]struct{})
		e.unsubscribed = make(map[wire.MessageID]struct{})
	}
	e.refresh(now)
}

func (e *endpointInfo) refresh(now time.Time) {
	e.outdatedAt = now.Add(endpointOutdatedTimeout)
}

func (e *endpointInfo) isOutdated(now time.Time) bool {
	return now.After(e.outdatedAt)
}

func (e *endpointInfo) subscribeTo(msgID wire.MessageID) {
	e.subscribed[msgID] = struct{}{}
	delete(e.unsubscribed, msgID)
}

func (e *endpointInfo) notSubscribedTo(msgID wire.MessageID) {
	e.unsubscribed[msgID] = struct{}{}
	delete(e.subscribed, msgID)
}

func (e *endpointInfo) unsubscribeFrom(msgID wire.MessageID) {
	delete(e.subscribed, msgID)
}

// cachedSubscription reports whether this endpoint is known to subscribe
// to msgID, and whether that is known at all.
func (e *endpointInfo) cachedSubscription(msgID wire.MessageID) (subscribed, known bool) {
	if _, ok := e.subscribed[msgID]; ok {
		return true, true
	}
	if _, ok := e.unsubscribed[msgID]; ok {
		return false, true
	}
	return false, false
}
