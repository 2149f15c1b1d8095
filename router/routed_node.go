package router

import (
	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/wire"
)

// routedNode is a link a router owns to either an endpoint or a downstream
// router, with its own allow/block filter lists.
type routedNode struct {
	id           wire.ID
	conn         connection.Connection
	maybeRouter  bool
	doDisconnect bool
	allowList    map[wire.MessageID]struct{}
	blockList    map[wire.MessageID]struct{}
}

func newRoutedNode(id wire.ID, conn connection.Connection, maybeRouter bool) *routedNode {
	return &routedNode{
		id:          id,
		conn:        conn,
		maybeRouter: maybeRouter,
		allowList:   make(map[wire.MessageID]struct{}),
		blockList:   make(map[wire.MessageID]struct{}),
	}
}

// isAllowed reports whether msgID passes this link's filter: specials
// always pass; otherwise a non-empty allow-list must contain it, and
// absent that, the block-list must not.
func (n *routedNode) isAllowed(msgID wire.MessageID) bool {
	if msgID.IsSpecial() {
		return true
	}
	if len(n.allowList) > 0 {
		_, ok := n.allowList[msgID]
		return ok
	}
	_, blocked := n.blockList[msgID]
	return !blocked
}

func (n *routedNode) allow(msgID wire.MessageID) {
	n.allowList[msgID] = struct{}{}
}

func (n *routedNode) block(msgID wire.MessageID) {
	// A special id can never be blocked, matching msgBlkList's refusal.
	if msgID.IsSpecial() {
		return
	}
	n.blockList[msgID] = struct{}{}
}

func (n *routedNode) clearAllowList() {
	n.allowList = make(map[wire.MessageID]struct{})
}

func (n *routedNode) clearBlockList() {
	n.blockList = make(map[wire.MessageID]struct{})
}

// shouldDisconnect reports whether this link should be torn down on the
// next maintenance sweep: either it asked to (bye-bye from a non-router
// peer) or its connection became unusable.
func (n *routedNode) shouldDisconnect() bool {
	return n.doDisconnect || !n.conn.IsUsable()
}
