package tracker

import "time"

// InvalidID is the well-known "no id" value, re-exported from wire for
// tracker callers that otherwise have no reason to import it directly.
const InvalidID = ID(0)

// Tracker owns the maps of hosts, instances and nodes observed on the bus,
// plus the connections between nodes and the string cache they share.
// Every other package reaches nodes/instances/hosts only by id; Tracker is
// the sole owner of the entities themselves.
type Tracker struct {
	hosts     map[ID]*Host
	instances map[ID]*Instance
	nodes     map[ID]*Node
	conns     map[connKey]*NodeConnection
	cache     *StringCache
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		hosts:     make(map[ID]*Host),
		instances: make(map[ID]*Instance),
		nodes:     make(map[ID]*Node),
		conns:     make(map[connKey]*NodeConnection),
		cache:     NewStringCache(),
	}
}

// GetNode returns the node for id, creating it if this is the first time
// it has been observed.
func (t *Tracker) GetNode(id ID) *Node {
	n, ok := t.nodes[id]
	if !ok {
		n = newNode(id)
		t.nodes[id] = n
	}
	return n
}

// FindNode returns the node for id without creating it.
func (t *Tracker) FindNode(id ID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// GetInstance returns the instance for id, creating it if needed.
func (t *Tracker) GetInstance(id ID) *Instance {
	in, ok := t.instances[id]
	if !ok {
		in = newInstance(id)
		t.instances[id] = in
	}
	return in
}

// GetHost returns the host for id, creating it if needed.
func (t *Tracker) GetHost(id ID) *Host {
	h, ok := t.hosts[id]
	if !ok {
		h = newHost(id)
		t.hosts[id] = h
	}
	return h
}

// GetConnection returns the connection entry between a and b, creating it
// if needed.
func (t *Tracker) GetConnection(a, b ID) *NodeConnection {
	key := newConnKey(a, b)
	c, ok := t.conns[key]
	if !ok {
		c = &NodeConnection{NodeA: a, NodeB: b}
		t.conns[key] = c
	}
	return c
}

// ForEachConnection offers every connection entry touching node to fn.
func (t *Tracker) ForEachConnection(node ID, fn func(*NodeConnection)) {
	for key, c := range t.conns {
		if key.lo == node || key.hi == node {
			fn(c)
		}
	}
}

// removeConnectionsFor deletes every connection entry touching node, used
// when a node's instance changes and its prior link state is no longer
// meaningful.
func (t *Tracker) removeConnectionsFor(node ID) {
	for key := range t.conns {
		if key.lo == node || key.hi == node {
			delete(t.conns, key)
		}
	}
}

// NoticeInstance records that node's instance is instanceID, implementing
// the three-case semantics: a changed instance clears the node and its
// connections, a first-seen instance just sets it, and either way the node
// is always marked alive. It returns the node for further mutation.
func (t *Tracker) NoticeInstance(now time.Time, nodeID, instanceID ID) *Node {
	node := t.GetNode(nodeID)

	switch {
	case node.InstanceID != InvalidID && node.InstanceID != instanceID:
		node.Clear()
		t.removeConnectionsFor(nodeID)
		node.InstanceID = instanceID
		if node.HostID != InvalidID {
			t.GetInstance(instanceID).noticeAlive(now)
			t.GetInstance(instanceID).SetHostID(node.HostID)
		}
	case node.InstanceID == instanceID:
		t.GetInstance(instanceID).noticeAlive(now)
	default:
		node.InstanceID = instanceID
		if node.HostID != InvalidID {
			t.GetInstance(instanceID).SetHostID(node.HostID)
		}
	}

	node.NoticeAlive()
	return node
}

// SetNodeHostID records node's host id, cascading it to the node's instance
// if one is already known.
func (t *Tracker) SetNodeHostID(nodeID, hostID ID) {
	node := t.GetNode(nodeID)
	if node.HostID == hostID {
		return
	}
	node.HostID = hostID
	node.changes.add(ChangeEndpointInfo)
	if node.InstanceID != InvalidID {
		t.GetInstance(node.InstanceID).SetHostID(hostID)
	}
}

// StringCache exposes the shared string interning cache to callers
// assigning display names, app names and the like.
func (t *Tracker) StringCache() *StringCache {
	return t.cache
}

// Update re-evaluates every instance and host alive timeout against now,
// setting the stopped-responding change bit on each whose timeout expired.
func (t *Tracker) Update(now time.Time) {
	for _, in := range t.instances {
		in.update(now)
	}
	for _, h := range t.hosts {
		h.update(now)
	}
}
