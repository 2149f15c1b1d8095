package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/msgbus/wire"
)

func TestDefaultProducesUsableRouterAndBridgeConfigs(t *testing.T) {
	cfg := Default()

	rc := cfg.RouterConfig()
	require.Equal(t, uint32(32), rc.MaxHops)
	require.Equal(t, 30*time.Second, rc.MaxAge)
	require.Equal(t, wire.MethodBlobFrgmnt, rc.BlobSendMsgID)

	bc := cfg.BridgeConfig()
	require.Equal(t, 2048, bc.MaxDataSize)
	require.Equal(t, 30*time.Second, bc.MaxAge)
}

func TestNewAppliesOptionsOverDefaults(t *testing.T) {
	called := false
	cfg := New(
		WithRouterID(7, 1, 1000),
		WithLimits(8, time.Minute),
		WithBlob(4096, 4),
		WithShutdown(2*time.Second, time.Minute, 3),
		WithBridgeMaxDataSize(512),
		WithCertificateProvider(func(wire.ID) []byte { called = true; return nil }),
	)

	require.Equal(t, uint32(7), cfg.RouterIDMajor)
	require.Equal(t, uint32(1000), cfg.RouterIDCount)
	require.Equal(t, uint32(8), cfg.MaxHops)
	require.Equal(t, time.Minute, cfg.MaxAge)
	require.Equal(t, 4096, cfg.BlobFragmentSize)
	require.Equal(t, uint32(3), cfg.ShutdownMinVerified)
	require.Equal(t, 512, cfg.BridgeMaxDataSize)

	cfg.CertificateProvider(wire.ID(1))
	require.True(t, called)

	rc := cfg.RouterConfig()
	require.Equal(t, uint32(7), rc.IDMajor)
	require.Equal(t, uint32(1000), rc.IDCount)
}
