package router

import (
	"time"

	"github.com/outofforest/msgbus/connection"
)

// pendingTimeout is how long a newly accepted connection can go without
// completing the id-negotiation handshake before it is dropped.
const pendingTimeout = 30 * time.Second

// pendingConnection is a newly accepted connection not yet associated with
// an endpoint id.
type pendingConnection struct {
	conn      connection.Connection
	createdAt time.Time
}

func newPendingConnection(conn connection.Connection, now time.Time) *pendingConnection {
	return &pendingConnection{conn: conn, createdAt: now}
}

func (p *pendingConnection) age(now time.Time) time.Duration {
	return now.Sub(p.createdAt)
}

func (p *pendingConnection) isTimedOut(now time.Time) bool {
	return p.age(now) > pendingTimeout
}
