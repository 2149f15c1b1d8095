package tracker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/tracker"
	"github.com/outofforest/msgbus/wire"
)

func TestNoticeInstanceFirstSeen(t *testing.T) {
	tr := tracker.New()
	now := time.Now()

	node := tr.NoticeInstance(now, 100, 1)
	require.Equal(t, tracker.ID(1), node.InstanceID)
	require.True(t, node.IsResponsive())
}

func TestNoticeInstanceSameInstanceKeepsState(t *testing.T) {
	tr := tracker.New()
	now := time.Now()

	node := tr.NoticeInstance(now, 100, 1)
	node.AssignEndpointInfo("alice", "", tr.StringCache())

	node2 := tr.NoticeInstance(now, 100, 1)
	require.Equal(t, node, node2)
	require.Equal(t, "alice", node2.DisplayName)
}

func TestNoticeInstanceChangedInstanceClearsNode(t *testing.T) {
	tr := tracker.New()
	now := time.Now()

	node := tr.NoticeInstance(now, 100, 1)
	node.AssignEndpointInfo("alice", "", tr.StringCache())
	tr.SetNodeHostID(100, 9)

	node2 := tr.NoticeInstance(now, 100, 2)
	require.Equal(t, tracker.ID(2), node2.InstanceID)
	require.Empty(t, node2.DisplayName)
}

func TestNodeSubscriptionAddRemoveIsIdempotentOnChange(t *testing.T) {
	tr := tracker.New()
	node := tr.GetNode(1)

	node.AddSubscription(wire.MethodPing)
	require.True(t, node.SubscribesTo(wire.MethodPing))
	node.Changes() // drain

	node.AddSubscription(wire.MethodPing)
	require.Equal(t, tracker.Changes(0), node.Changes())

	node.RemoveSubscription(wire.MethodPing)
	require.False(t, node.SubscribesTo(wire.MethodPing))
}

func TestNodePingWindowTracksResponsiveness(t *testing.T) {
	node := tracker.New().GetNode(1)
	require.False(t, node.IsResponsive())

	node.PingResponse(10 * time.Millisecond)
	require.True(t, node.IsResponsive())

	for i := 0; i < 8; i++ {
		node.PingTimeout(time.Second)
	}
	require.False(t, node.IsResponsive())
}

func TestConnectionKeyIsUnordered(t *testing.T) {
	tr := tracker.New()
	c1 := tr.GetConnection(1, 2)
	c2 := tr.GetConnection(2, 1)
	require.Same(t, c1, c2)
}
