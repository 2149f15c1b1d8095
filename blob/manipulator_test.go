package blob_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/blob"
	"github.com/outofforest/msgbus/wire"
)

type countingTargetIO struct {
	expectedSize int64
	doneSize     int64
	finishedN    int
	cancelledN   int
	lastMsgID    wire.MessageID
}

func (c *countingTargetIO) StoreFragment(offset int64, data []byte, _ blob.Info) bool {
	if offset < 0 || offset >= c.expectedSize {
		return false
	}
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	c.doneSize += int64(len(data))
	return true
}

func (c *countingTargetIO) CheckStored(offset int64, data []byte) bool {
	return c.StoreFragment(offset, data, blob.Info{})
}

func (c *countingTargetIO) HandleFinished(msgID wire.MessageID, _ time.Duration, _ blob.Info) {
	c.finishedN++
	c.lastMsgID = msgID
}

func (c *countingTargetIO) HandleCancelled() {
	c.cancelledN++
}

func roundtripZeroes(t *testing.T, size int64) {
	t.Helper()

	sendID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("send")}
	resendID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("resend")}
	busMsgID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("blob")}

	sender := blob.NewManipulator(sendID, resendID)
	receiver := blob.NewManipulator(sendID, resendID)

	sender.PushOutgoing(0, 1, wire.ID(7), blob.NewZeroesSourceIO(size), time.Hour, wire.PriorityNormal)

	target := &countingTargetIO{expectedSize: size}
	receiver.ExpectIncoming(busMsgID, 0, wire.ID(7), target, time.Hour)

	s2r := func(msgID wire.MessageID, env wire.Envelope) bool {
		receiver.ProcessIncoming(msgID, env)
		return true
	}

	for i := 0; i < 10_000 && target.finishedN == 0; i++ {
		if !sender.ProcessOutgoing(s2r, 2048, 2) {
			break
		}
	}

	require.Equal(t, 1, target.finishedN)
	require.Equal(t, size, target.doneSize)
	require.Equal(t, busMsgID, target.lastMsgID)
	require.False(t, sender.HasOutgoing())
	require.False(t, receiver.HasPending())
}

func TestBlobRoundTripZeroesVariousSizes(t *testing.T) {
	for _, size := range []int64{0, 1, 4 * 1024, 4 * 1024 * 1024} {
		t.Run("", func(t *testing.T) {
			roundtripZeroes(t, size)
		})
	}
}

func TestBlobCancelledOnDeadline(t *testing.T) {
	sendID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("send")}
	resendID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("resend")}
	busMsgID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("blob")}

	receiver := blob.NewManipulator(sendID, resendID)
	target := &countingTargetIO{expectedSize: 10}
	receiver.ExpectIncoming(busMsgID, 0, wire.ID(1), target, time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	receiver.Update(func(wire.MessageID, wire.Envelope) bool { return true })

	require.Equal(t, 1, target.cancelledN)
	require.Equal(t, 0, target.finishedN)
}
