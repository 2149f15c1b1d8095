package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/wire"
)

func TestPingerResolvesMatchingPong(t *testing.T) {
	now := time.Now()
	p := NewPinger()

	msgID, env := p.Ping(wire.ID(5), time.Second, now)
	require.Equal(t, wire.MethodPing, msgID)
	require.Equal(t, wire.ID(5), env.Target)
	require.Equal(t, uint64(1), env.Sequence)

	result, ok := p.HandlePong(wire.ID(5), env.Sequence, 3, now.Add(10*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, wire.ID(5), result.Target)
	require.Equal(t, uint32(3), result.Verified)
	require.False(t, p.HasPending())
}

func TestPingerIgnoresMismatchedPong(t *testing.T) {
	now := time.Now()
	p := NewPinger()
	_, env := p.Ping(wire.ID(5), time.Second, now)

	_, ok := p.HandlePong(wire.ID(6), env.Sequence, 0, now)
	require.False(t, ok)
	require.True(t, p.HasPending())
}

func TestPingerTimesOutExpiredPings(t *testing.T) {
	now := time.Now()
	p := NewPinger()
	p.Ping(wire.ID(5), time.Millisecond, now)

	timedOut := p.Update(now.Add(time.Second))
	require.Len(t, timedOut, 1)
	require.True(t, timedOut[0].TimedOut)
	require.False(t, p.HasPending())
}

func TestShutdownRequestRoundTrip(t *testing.T) {
	now := time.Now()
	payload := EncodeRequest(now)

	req, ok := DecodeRequest(wire.ID(1), payload, 5, 3, now.Add(50*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, wire.ID(1), req.Source)
	require.InDelta(t, 50*time.Millisecond, req.Age, float64(5*time.Millisecond))
}

func TestShutdownRequestIgnoredBelowVerificationThreshold(t *testing.T) {
	payload := EncodeRequest(time.Now())
	_, ok := DecodeRequest(wire.ID(1), payload, 2, 3, time.Now())
	require.False(t, ok)
}

func TestDiscoveryInfoRoundTrip(t *testing.T) {
	host := HostInfo{HostID: wire.ID(1), Hostname: "box-1"}
	_, env := AnnounceHost(host)
	got, ok := DecodeHostInfo(env.Payload)
	require.True(t, ok)
	require.Equal(t, host, got)

	inst := InstanceInfo{InstanceID: wire.ID(2), AppName: "msgbusd"}
	_, env = AnnounceInstance(inst)
	gotInst, ok := DecodeInstanceInfo(env.Payload)
	require.True(t, ok)
	require.Equal(t, inst, gotInst)

	ept := EndpointInfo{EndpointID: wire.ID(3), DisplayName: "logger"}
	_, env = AnnounceEndpoint(ept)
	gotEpt, ok := DecodeEndpointInfo(env.Payload)
	require.True(t, ok)
	require.Equal(t, ept, gotEpt)
}

func TestParseResourceURLSynthesized(t *testing.T) {
	u, err := ParseResourceURL("eagires:/random?count=1024")
	require.NoError(t, err)
	require.Equal(t, ResourceRandom, u.Kind)
	require.Equal(t, int64(1024), u.Count)
}

func TestParseResourceURLDefaultsCountToUnspecified(t *testing.T) {
	u, err := ParseResourceURL("eagires:/zeroes")
	require.NoError(t, err)
	require.Equal(t, ResourceZeroes, u.Kind)
	require.Equal(t, int64(-1), u.Count)
}

func TestParseResourceURLFile(t *testing.T) {
	u, err := ParseResourceURL("file:/data/model.bin")
	require.NoError(t, err)
	require.Equal(t, ResourceFile, u.Kind)
	require.Equal(t, "/data/model.bin", u.Path)
}

func TestParseResourceURLByEndpointID(t *testing.T) {
	u, err := ParseResourceURL("eagimbe://42/sequence?count=8")
	require.NoError(t, err)
	require.Equal(t, wire.ID(42), u.EndpointID)
	require.Equal(t, ResourceSequence, u.Kind)
	require.Equal(t, int64(8), u.Count)
}

func TestParseResourceURLByHost(t *testing.T) {
	u, err := ParseResourceURL("eagimbh://worker-3/ones")
	require.NoError(t, err)
	require.Equal(t, "worker-3", u.Host)
	require.Equal(t, ResourceOnes, u.Kind)
}

func TestParseResourceURLRejectsUnknownScheme(t *testing.T) {
	_, err := ParseResourceURL("http://example.com")
	require.Error(t, err)
}
