package wire_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/wire"
)

func TestNameRoundTrip(t *testing.T) {
	for _, s := range []string{"ping", "eagiMsgBus", "topoRutrCn", "a", ""} {
		n, err := wire.NewName(s)
		require.NoError(t, err)
		require.Equal(t, s, n.String())
	}
}

func TestNameRejectsOverlongOrInvalid(t *testing.T) {
	_, err := wire.NewName("muchTooLongAName")
	require.Error(t, err)

	_, err = wire.NewName("ping!")
	require.Error(t, err)
}

func TestMessageIDIsSpecial(t *testing.T) {
	require.True(t, wire.MethodPing.IsSpecial())

	other := wire.MessageID{Class: wire.MustName("eagiTest"), Method: wire.MustName("ping")}
	require.False(t, other.IsSpecial())
}

func TestIDWellKnownValues(t *testing.T) {
	require.False(t, wire.InvalidID.IsValid())
	require.False(t, wire.BroadcastID.IsValid())
	require.True(t, wire.ID(100).IsValid())
}

func TestEnvelopeHopAndAgeLimits(t *testing.T) {
	var e wire.Envelope
	require.False(t, e.AddHop(3))
	require.False(t, e.AddHop(3))
	require.False(t, e.AddHop(3))
	require.True(t, e.AddHop(3))
	require.Equal(t, uint32(4), e.HopCount)

	e = wire.Envelope{}
	require.False(t, e.AddAge(40*time.Millisecond, 100*time.Millisecond))
	require.True(t, e.AddAge(70*time.Millisecond, 100*time.Millisecond))
}

func TestReverseBytesIsInvolution(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x0102030405060708, 0x00FFFFFFFFFFFFFF} {
		require.Equal(t, v, wire.ReverseBytes(wire.ReverseBytes(v)))
	}
}
