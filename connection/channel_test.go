package connection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/wire"
)

func TestChannelPairDeliversInOrder(t *testing.T) {
	a, b := connection.NewChannelPair(1, 4096)

	for seq := uint64(1); seq <= 3; seq++ {
		require.True(t, a.Send(wire.MethodPing, wire.Envelope{Sequence: seq}))
	}

	var got []uint64
	fetched := b.FetchMessages(func(_ wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		got = append(got, env.Sequence)
		return true
	})
	require.True(t, fetched)
	require.Equal(t, []uint64{1, 2, 3}, got)
}

func TestChannelFetchWithNothingQueuedReportsNoProgress(t *testing.T) {
	a, b := connection.NewChannelPair(1, 4096)
	_ = a

	fetched := b.FetchMessages(func(wire.MessageID, time.Duration, *wire.Envelope) bool { return true })
	require.False(t, fetched)
}

func TestChannelCleanupMakesItUnusable(t *testing.T) {
	a, _ := connection.NewChannelPair(1, 4096)
	require.True(t, a.IsUsable())
	a.Cleanup()
	require.False(t, a.IsUsable())
	require.False(t, a.Send(wire.MethodPing, wire.Envelope{}))
}

func TestChannelAcceptorOffersQueuedConnections(t *testing.T) {
	acc := connection.NewChannelAcceptor(1, 4)
	a, _ := connection.NewChannelPair(1, 4096)
	acc.Offer(a)

	var accepted []connection.Connection
	acc.ProcessAccepted(func(c connection.Connection) {
		accepted = append(accepted, c)
	})
	require.Len(t, accepted, 1)

	accepted = nil
	acc.ProcessAccepted(func(c connection.Connection) {
		accepted = append(accepted, c)
	})
	require.Empty(t, accepted)
}
