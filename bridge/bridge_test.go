package bridge

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/wire"
)

func TestHeaderRoundTrip(t *testing.T) {
	msgID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("hdr")}
	env := wire.Envelope{
		MsgID:    msgID,
		Target:   wire.ID(7),
		Source:   wire.ID(9),
		Sequence: 42,
		Priority: wire.PriorityHigh,
		HopCount: 3,
		Age:      5 * time.Second,
		Verified: 1,
		Payload:  []byte("hello"),
	}

	raw := serializeHeader(msgID, env)
	raw = append(raw, env.Payload...)

	gotID, gotEnv, ok := deserializeHeader(raw)
	require.True(t, ok)
	require.Equal(t, msgID, gotID)
	require.Equal(t, env.Target, gotEnv.Target)
	require.Equal(t, env.Source, gotEnv.Source)
	require.Equal(t, env.Sequence, gotEnv.Sequence)
	require.Equal(t, env.Priority, gotEnv.Priority)
	require.Equal(t, env.HopCount, gotEnv.HopCount)
	require.Equal(t, env.Age, gotEnv.Age)
	require.Equal(t, env.Verified, gotEnv.Verified)
	require.Equal(t, env.Payload, gotEnv.Payload)
}

// TestBridgeFramingRoundTrip covers scenario E5: a 9-byte payload message
// is serialized, base64-encoded and newline-terminated; decoding the line
// on the peer side recovers the identical envelope and payload.
func TestBridgeFramingRoundTrip(t *testing.T) {
	msgID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("fr")}
	env := wire.Envelope{MsgID: msgID, Target: wire.ID(1), Source: wire.ID(2), Payload: []byte("ninebytes")}
	require.Len(t, env.Payload, 9)

	var out bytes.Buffer
	st := newState(bytes.NewReader(nil), &out, 0, 0)
	require.NoError(t, st.sendOne(queuedMsg{msgID: msgID, env: env}))

	line := out.String()
	require.True(t, len(line) > 0)
	require.Equal(t, byte('\n'), line[len(line)-1])
	body := line[:len(line)-1]
	for _, c := range body {
		require.True(t, isBase64Char(byte(c)), "non-base64 character %q in line", c)
	}

	decoded, err := base64.StdEncoding.DecodeString(body)
	require.NoError(t, err)
	gotID, gotEnv, ok := deserializeHeader(decoded)
	require.True(t, ok)
	require.Equal(t, msgID, gotID)
	require.Equal(t, env.Target, gotEnv.Target)
	require.Equal(t, env.Source, gotEnv.Source)
	require.Equal(t, env.Payload, gotEnv.Payload)
}

func isBase64Char(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/', c == '=':
		return true
	default:
		return false
	}
}

func TestDecodeLineFeedsIncomingQueue(t *testing.T) {
	msgID := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("in")}
	env := wire.Envelope{MsgID: msgID, Target: wire.ID(3), Payload: []byte("hi")}
	raw := serializeHeader(msgID, env)
	raw = append(raw, env.Payload...)
	line := base64.StdEncoding.EncodeToString(raw)

	st := newState(bytes.NewReader(nil), &bytes.Buffer{}, 0, 0)
	st.decodeLine([]byte(line))

	var got wire.Envelope
	var gotID wire.MessageID
	require.True(t, st.fetchMessages(func(id wire.MessageID, e wire.Envelope) {
		gotID = id
		got = e
	}))
	require.Equal(t, msgID, gotID)
	require.Equal(t, env.Payload, got.Payload)
}

func TestDecodeLineRejectsGarbageAsDecodeError(t *testing.T) {
	st := newState(bytes.NewReader(nil), &bytes.Buffer{}, 0, 0)
	st.decodeLine([]byte("not valid base64!!"))
	require.Equal(t, uint64(1), st.decodeErrors.Load())
	require.False(t, st.fetchMessages(func(wire.MessageID, wire.Envelope) {}))
}

func newTestBridge(now time.Time) (*Bridge, *connection.Channel) {
	conn, peer := connection.NewChannelPair(1, 0)
	b := New(DefaultConfig(), conn, bytes.NewReader(nil), &bytes.Buffer{}, wire.ID(99), now)
	return b, peer
}

func TestBridgeRequestsAndAdoptsAnID(t *testing.T) {
	now := time.Now()
	b, peer := newTestBridge(now)

	require.True(t, b.DoWork(now))
	var sawRequest bool
	peer.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool {
		sawRequest = sawRequest || msgID == wire.MethodRequestID
		return true
	})
	require.True(t, sawRequest)
	require.False(t, b.ID().IsValid())

	assigned := wire.ID(5)
	require.True(t, peer.Send(wire.MethodAssignID, wire.Envelope{MsgID: wire.MethodAssignID, Target: assigned}))
	require.True(t, b.DoWork(now))
	require.Equal(t, assigned, b.ID())

	var sawAnnounce bool
	peer.FetchMessages(func(msgID wire.MessageID, _ time.Duration, _ *wire.Envelope) bool {
		sawAnnounce = sawAnnounce || msgID == wire.MethodAnnounceID
		return true
	})
	require.True(t, sawAnnounce)
}

func TestBridgeAnswersPingFromConnectionSide(t *testing.T) {
	now := time.Now()
	b, peer := newTestBridge(now)

	require.True(t, peer.Send(wire.MethodAssignID, wire.Envelope{MsgID: wire.MethodAssignID, Target: wire.ID(5)}))
	require.True(t, b.DoWork(now))
	peer.FetchMessages(func(wire.MessageID, time.Duration, *wire.Envelope) bool { return true })

	require.True(t, peer.Send(wire.MethodPing, wire.Envelope{
		MsgID: wire.MethodPing, Target: b.ID(), Source: wire.ID(77), Sequence: 3,
	}))
	require.True(t, b.DoWork(now))

	var gotPong bool
	peer.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		if msgID == wire.MethodPong {
			gotPong = true
			require.Equal(t, wire.ID(77), env.Target)
			require.Equal(t, b.ID(), env.Source)
			require.Equal(t, uint64(3), env.Sequence)
		}
		return true
	})
	require.True(t, gotPong)
}

func TestBridgeForwardsStreamMessageToConnection(t *testing.T) {
	now := time.Now()
	b, peer := newTestBridge(now)

	require.True(t, peer.Send(wire.MethodAssignID, wire.Envelope{MsgID: wire.MethodAssignID, Target: wire.ID(5)}))
	require.True(t, b.DoWork(now))
	peer.FetchMessages(func(wire.MessageID, time.Duration, *wire.Envelope) bool { return true })

	custom := wire.MessageID{Class: wire.MustName("test"), Method: wire.MustName("fromstrm")}
	fromStream := wire.Envelope{MsgID: custom, Payload: []byte("x")}
	raw := append(serializeHeader(custom, fromStream), fromStream.Payload...)
	b.st.decodeLine([]byte(base64.StdEncoding.EncodeToString(raw)))
	require.True(t, b.DoWork(now))

	var gotHop uint32
	var gotPayload []byte
	peer.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
		if msgID == custom {
			gotHop = env.HopCount
			gotPayload = env.Payload
		}
		return true
	})
	require.Equal(t, uint32(1), gotHop)
	require.Equal(t, []byte("x"), gotPayload)
}
