package tracker

import "github.com/outofforest/msgbus/connection"

// connKey identifies a connection entry by its unordered pair of endpoint
// ids, matching the original tracker's unordered-pair keying so (a,b) and
// (b,a) refer to the same link.
type connKey struct {
	lo, hi ID
}

func newConnKey(a, b ID) connKey {
	if a <= b {
		return connKey{lo: a, hi: b}
	}
	return connKey{lo: b, hi: a}
}

// NodeConnection is one link between two nodes, as seen from the tracker's
// point of view (it does not own the underlying connection.Connection).
type NodeConnection struct {
	NodeA, NodeB    ID
	Kind            connection.Kind
	BlockUsageRatio float64
	BytesPerSecond  float64

	changes changeSet
}

// Changes drains the accumulated change mask.
func (c *NodeConnection) Changes() Changes {
	return c.changes.drain()
}

// SetKind records the transport kind backing this connection.
func (c *NodeConnection) SetKind(kind connection.Kind) {
	if c.Kind != kind {
		c.Kind = kind
		c.changes.add(ChangeConnectionInfo)
	}
}

// AssignStatistics records link-level rate/usage statistics.
func (c *NodeConnection) AssignStatistics(blockUsageRatio, bytesPerSecond float64) {
	c.BlockUsageRatio = blockUsageRatio
	c.BytesPerSecond = bytesPerSecond
	c.changes.add(ChangeConnectionInfo | ChangeStatistics)
}
