// Package config collects the tunables router, bridge and service code in
// this repository accept, built and wired programmatically rather than
// from a command line or a file — out of scope per the connection/
// acceptor abstraction this repository stops at.
package config

import (
	"time"

	"github.com/outofforest/msgbus/bridge"
	"github.com/outofforest/msgbus/router"
	"github.com/outofforest/msgbus/wire"
)

// Config generalizes the teacher's ServerConfig/ClientConfig struct-literal
// style into one functional-option constructor covering every knob a
// router, a bridge and the shutdown service expose.
type Config struct {
	RouterIDMajor uint32
	RouterIDMinor uint16
	RouterIDCount uint32

	MaxHops uint32
	MaxAge  time.Duration

	BlobFragmentSize int
	BlobMaxMessages  int

	ShutdownDelay       time.Duration
	ShutdownMaxAge      time.Duration
	ShutdownMinVerified uint32

	BridgeMaxDataSize int

	CertificateProvider func(requesterID wire.ID) []byte
}

// Option configures a Config.
type Option func(*Config)

// Default returns a Config with reasonable defaults for a single-process
// deployment: a router id range of a million ids, a generous hop/age
// budget, and a shutdown service that trusts any verification level.
func Default() Config {
	return Config{
		RouterIDCount:     1 << 20,
		MaxHops:           32,
		MaxAge:            30 * time.Second,
		BlobFragmentSize:  2048,
		BlobMaxMessages:   2,
		ShutdownDelay:     time.Second,
		ShutdownMaxAge:    30 * time.Second,
		BridgeMaxDataSize: 2048,
	}
}

// New builds a Config from Default plus opts.
func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithRouterID sets the router's half-open id range.
func WithRouterID(major uint32, minor uint16, count uint32) Option {
	return func(c *Config) {
		c.RouterIDMajor = major
		c.RouterIDMinor = minor
		c.RouterIDCount = count
	}
}

// WithLimits sets the hop count and message age limits routers and bridges
// enforce.
func WithLimits(maxHops uint32, maxAge time.Duration) Option {
	return func(c *Config) {
		c.MaxHops = maxHops
		c.MaxAge = maxAge
	}
}

// WithBlob sets the blob engine's fragment size and per-tick send budget.
func WithBlob(fragmentSize, maxMessages int) Option {
	return func(c *Config) {
		c.BlobFragmentSize = fragmentSize
		c.BlobMaxMessages = maxMessages
	}
}

// WithShutdown sets the shutdown service's grace delay, request max age,
// and the verification level below which a request is ignored.
func WithShutdown(delay, maxAge time.Duration, minVerified uint32) Option {
	return func(c *Config) {
		c.ShutdownDelay = delay
		c.ShutdownMaxAge = maxAge
		c.ShutdownMinVerified = minVerified
	}
}

// WithBridgeMaxDataSize sets the byte-stream bridge's record size hint;
// its line-scan budget is twice this value.
func WithBridgeMaxDataSize(n int) Option {
	return func(c *Config) { c.BridgeMaxDataSize = n }
}

// WithCertificateProvider sets the router's pluggable certificate-query
// hook.
func WithCertificateProvider(f func(requesterID wire.ID) []byte) Option {
	return func(c *Config) { c.CertificateProvider = f }
}

// RouterConfig adapts Config into router.Config.
func (c Config) RouterConfig() router.Config {
	return router.Config{
		IDMajor:             c.RouterIDMajor,
		IDMinor:             c.RouterIDMinor,
		IDCount:             c.RouterIDCount,
		MaxHops:             c.MaxHops,
		MaxAge:              c.MaxAge,
		BlobFragmentSize:    c.BlobFragmentSize,
		BlobMaxMessages:     c.BlobMaxMessages,
		BlobSendMsgID:       wire.MethodBlobFrgmnt,
		BlobResendMsgID:     wire.MethodBlobResend,
		CertificateProvider: c.CertificateProvider,
	}
}

// BridgeConfig adapts Config into bridge.Config.
func (c Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		MaxDataSize: c.BridgeMaxDataSize,
		MaxAge:      c.MaxAge,
	}
}
