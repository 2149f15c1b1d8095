// Package connection defines the abstract duplex message link that routers,
// bridges and the blob engine are built against, and an in-process
// implementation used throughout this repository's own tests.
package connection

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

// Kind classifies the transport underlying a Connection.
type Kind int

// Connection kinds, least to most point-to-point.
const (
	KindUnknown Kind = iota
	KindInProcess
	KindLocalIPC
	KindNetworkStream
	KindNetworkDatagram
)

// String renders the connection kind name.
func (k Kind) String() string {
	switch k {
	case KindInProcess:
		return "in-process"
	case KindLocalIPC:
		return "local-ipc"
	case KindNetworkStream:
		return "network-stream"
	case KindNetworkDatagram:
		return "network-datagram"
	default:
		return "unknown"
	}
}

// Stats are the counters a Connection reports on query_statistics.
type Stats struct {
	BytesPerSecond   float64
	BlockUsageRatio  float64
}

// Handler is called for each message fetched off a Connection. It returns
// whether the message was consumed; the fetch loops in this repository do
// not act on the returned value.
type Handler func(msgID wire.MessageID, age time.Duration, env *wire.Envelope) bool

// Connection is a full-duplex message link between an endpoint and a
// router, or between two routers (directly, or via a bridge).
type Connection interface {
	// Kind reports the transport kind backing this connection.
	Kind() Kind
	// TypeID is an implementation-defined tag identifying the concrete
	// connection type, used in topology and statistics reporting.
	TypeID() wire.ID
	// MaxDataSize is the largest single-message payload this connection
	// can carry, or 0 if unbounded/unknown.
	MaxDataSize() uint64
	// IsUsable reports whether Send/Fetch are still expected to succeed.
	IsUsable() bool
	// Send enqueues msg for id msgID, reporting whether it was accepted.
	Send(msgID wire.MessageID, env wire.Envelope) bool
	// FetchMessages offers every message currently queued to handler and
	// always drains everything that is ready, whatever handler returns.
	// It reports whether any message was fetched.
	FetchMessages(handler Handler) bool
	// Update performs connection-local bookkeeping (e.g. flushing a
	// buffered transport) and reports whether it made progress.
	Update() bool
	// QueryStatistics fills stats and reports whether it could.
	QueryStatistics(stats *Stats) bool
	// Cleanup releases any resource owned by the connection.
	Cleanup()
}

// AcceptHandler is called once per newly accepted Connection.
type AcceptHandler func(Connection)

// Acceptor produces new Connections, e.g. a listening socket or an
// in-process connection factory.
type Acceptor interface {
	Kind() Kind
	TypeID() wire.ID
	// Update polls for new connections and reports whether it made
	// progress.
	Update() bool
	// ProcessAccepted offers every connection accepted since the last
	// call to cb.
	ProcessAccepted(cb AcceptHandler)
}
