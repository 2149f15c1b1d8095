// Package router implements the forwarding engine: endpoint-id allocation
// and confirmation, per-node connection state, the special-message
// protocol, targeted and broadcast dispatch with allow/block filtering,
// hop and age limits, and the maintenance/work scheduling loop.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/outofforest/logger"

	"github.com/outofforest/msgbus/blob"
	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/tracker"
	"github.com/outofforest/msgbus/wire"
)

// workerThreshold is the number of routed nodes above which per-node route
// and update steps are dispatched to a worker pool instead of running on
// the caller's goroutine.
const workerThreshold = 2

// Config configures a Router's id range, limits and blob engine.
type Config struct {
	// IDMajor/IDMinor/IDCount derive the router's half-open id range, as
	// documented in the configuration keys of §6.
	IDMajor uint32
	IDMinor uint16
	IDCount uint32

	MaxHops uint32
	MaxAge  time.Duration

	BlobFragmentSize    int
	BlobMaxMessages     int
	BlobSendMsgID       wire.MessageID
	BlobResendMsgID     wire.MessageID
	CertificateProvider func(requesterID wire.ID) []byte
}

// DefaultConfig returns sensible defaults for everything Config leaves
// unset.
func DefaultConfig() Config {
	return Config{
		MaxHops:          32,
		MaxAge:           30 * time.Second,
		BlobFragmentSize: 2048,
		BlobMaxMessages:  2,
		BlobSendMsgID:    wire.MethodBlobFrgmnt,
		BlobResendMsgID:  wire.MethodBlobResend,
	}
}

// Router is one router core: owner of a set of routed nodes, a pending
// adoption list, a blob engine and an endpoint-info cache.
type Router struct {
	cfg Config

	mu sync.Mutex

	ids          *idAllocator
	disconnected *disconnectedSet
	nodes        map[wire.ID]*routedNode
	index        map[wire.ID]*routedNode
	endpoints    map[wire.ID]*endpointInfo
	pending      map[connection.Connection]*pendingConnection
	acceptors    []connection.Acceptor

	parent   connection.Connection
	parentID wire.ID

	tr    *tracker.Tracker
	blobs *blob.Manipulator
	st    *stats

	selfID        wire.ID
	selfInstance  wire.ID
	prevRouteTime time.Time
}

// New creates a Router. now is used to seed its stats and timeout windows.
func New(cfg Config, now time.Time) *Router {
	if cfg.MaxHops == 0 && cfg.MaxAge == 0 && cfg.BlobFragmentSize == 0 {
		cfg = DefaultConfig()
	}
	if cfg.BlobSendMsgID == (wire.MessageID{}) {
		cfg.BlobSendMsgID = wire.MethodBlobFrgmnt
	}
	if cfg.BlobResendMsgID == (wire.MessageID{}) {
		cfg.BlobResendMsgID = wire.MethodBlobResend
	}

	r := &Router{
		cfg:           cfg,
		ids:           newIDAllocator(cfg.IDMajor, cfg.IDMinor, cfg.IDCount),
		disconnected:  newDisconnectedSet(),
		nodes:         make(map[wire.ID]*routedNode),
		index:         make(map[wire.ID]*routedNode),
		endpoints:     make(map[wire.ID]*endpointInfo),
		pending:       make(map[connection.Connection]*pendingConnection),
		tr:            tracker.New(),
		blobs:         blob.NewManipulator(cfg.BlobSendMsgID, cfg.BlobResendMsgID),
		st:            newStats(now),
		prevRouteTime: now,
	}
	r.selfID = r.ids.assign()
	r.selfInstance = r.selfID
	if cfg.CertificateProvider != nil {
		r.blobs.SetTargetIOFactory(func(wire.MessageID, blob.Info) blob.TargetIO {
			return newDiscardTargetIO()
		})
	}
	return r
}

// Tracker exposes the remote-node tracker accumulated from traffic this
// router has observed.
func (r *Router) Tracker() *tracker.Tracker {
	return r.tr
}

// SelfID returns the id this router assigned itself.
func (r *Router) SelfID() wire.ID {
	return r.selfID
}

// Attach registers an acceptor new connections are pulled from.
func (r *Router) Attach(acc connection.Acceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acceptors = append(r.acceptors, acc)
}

// SetParent installs conn as the link to this router's parent router.
func (r *Router) SetParent(conn connection.Connection, parentID wire.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = conn
	r.parentID = parentID
}

// AddPending manually offers a freshly accepted connection for adoption,
// bypassing an Acceptor; used by tests wiring connection.Channel pairs
// directly.
func (r *Router) AddPending(conn connection.Connection, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[conn] = newPendingConnection(conn, now)
}

// Stats is a point-in-time snapshot of a router's counters, used by
// statsQuery and by tests.
type Stats struct {
	Forwarded         uint64
	Dropped           uint64
	MessagesPerSecond float64
	AverageAge        time.Duration
	Uptime            time.Duration
}

// Snapshot returns the router's current statistics.
func (r *Router) Snapshot(now time.Time) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Forwarded:         r.st.forwarded,
		Dropped:           r.st.dropped,
		MessagesPerSecond: r.st.mps,
		AverageAge:        r.st.avgAge,
		Uptime:            r.st.uptime(now),
	}
}

// DoWork runs one maintenance pass followed by units of work (accept,
// advance pending, route, update connections) until nothing progresses. It
// reports whether any work was done, so Run can decide whether to sleep.
func (r *Router) DoWork(ctx context.Context, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maintenance(now)

	anyWork := false
	for {
		progressed := false
		progressed = r.acceptNew(now) || progressed
		progressed = r.advancePending(ctx, now) || progressed
		progressed = r.routeAll(ctx, now) || progressed
		progressed = r.processBlobs(now) || progressed
		progressed = r.updateConnections() || progressed
		if !progressed {
			break
		}
		anyWork = true
	}
	return anyWork
}

// Run drives DoWork in a loop until ctx is cancelled, backing off from 1µs
// up to 5ms on idle cycles.
func (r *Router) Run(ctx context.Context) error {
	idle := time.Microsecond
	const maxIdle = 5 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if r.DoWork(ctx, time.Now()) {
			idle = time.Microsecond
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idle):
		}
		if idle < maxIdle {
			idle *= 2
			if idle > maxIdle {
				idle = maxIdle
			}
		}
	}
}

func (r *Router) maintenance(now time.Time) {
	r.st.rollWindow(now)
	r.disconnected.sweep(now)
	r.tr.Update(now)

	for id, ei := range r.endpoints {
		if ei.isOutdated(now) {
			delete(r.endpoints, id)
			delete(r.index, id)
			r.disconnected.mark(now, id)
		}
	}

	for id, n := range r.nodes {
		if n.shouldDisconnect() {
			n.conn.Cleanup()
			delete(r.nodes, id)
			delete(r.index, id)
			r.ids.release(id)
			r.disconnected.mark(now, id)
		}
	}

	if r.st.shouldBroadcastFlowInfo() {
		env := wire.Envelope{
			MsgID:   wire.MethodMsgFlowInf,
			Target:  wire.BroadcastID,
			Source:  r.selfID,
			Payload: encodeMsgFlowInfo(uint64(r.st.avgAge.Milliseconds())),
		}
		r.routeBroadcast(now, r.selfID, wire.MethodMsgFlowInf, env)
	}
}

func (r *Router) acceptNew(now time.Time) bool {
	progressed := false
	for _, acc := range r.acceptors {
		acc.Update()
		acc.ProcessAccepted(func(conn connection.Connection) {
			r.pending[conn] = newPendingConnection(conn, now)
			progressed = true
		})
	}
	return progressed
}

func (r *Router) advancePending(ctx context.Context, now time.Time) bool {
	progressed := false
	for conn, p := range r.pending {
		if p.isTimedOut(now) {
			conn.Cleanup()
			delete(r.pending, conn)
			progressed = true
			continue
		}

		fetched := conn.FetchMessages(func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
			return r.handleProbe(ctx, now, conn, msgID, *env)
		})
		if fetched {
			progressed = true
		}
	}
	return progressed
}

func (r *Router) handleProbe(ctx context.Context, now time.Time, conn connection.Connection, msgID wire.MessageID, env wire.Envelope) bool {
	log := logger.Get(ctx)

	switch msgID {
	case wire.MethodRequestID:
		id := r.ids.assign()
		if id == wire.InvalidID {
			log.Warn("Router could not assign endpoint id: range exhausted")
			return true
		}
		conn.Send(wire.MethodAssignID, wire.Envelope{MsgID: wire.MethodAssignID, Target: id})
		return true

	case wire.MethodAnnEndptID:
		r.adopt(now, conn, env.Target, false)
		return true

	case wire.MethodAnnounceID:
		r.adopt(now, conn, env.Target, true)
		return true

	default:
		// Any other special arriving on a still-pending connection is
		// simply ignored until the handshake completes.
		return true
	}
}

// adopt installs conn as a routed node for id, idempotently: a duplicate
// announce of an id already adopted just re-confirms it.
func (r *Router) adopt(now time.Time, conn connection.Connection, id wire.ID, maybeRouter bool) {
	delete(r.pending, conn)

	if existing, ok := r.nodes[id]; ok {
		existing.conn.Send(wire.MethodConfirmID, wire.Envelope{MsgID: wire.MethodConfirmID, Target: id})
		return
	}

	node := newRoutedNode(id, conn, maybeRouter)
	r.nodes[id] = node
	if !maybeRouter {
		r.index[id] = node
	}
	r.disconnected.unmark(id)
	conn.Send(wire.MethodConfirmID, wire.Envelope{MsgID: wire.MethodConfirmID, Target: id})
}

func (r *Router) updateConnections() bool {
	if len(r.nodes) <= workerThreshold {
		progressed := false
		for _, n := range r.nodes {
			if n.conn.Update() {
				progressed = true
			}
		}
		return progressed
	}

	var wg sync.WaitGroup
	results := make([]bool, 0, len(r.nodes))
	var resMu sync.Mutex
	for _, n := range r.nodes {
		wg.Add(1)
		go func(n *routedNode) {
			defer wg.Done()
			progressed := n.conn.Update()
			resMu.Lock()
			results = append(results, progressed)
			resMu.Unlock()
		}(n)
	}
	wg.Wait()

	for _, p := range results {
		if p {
			return true
		}
	}
	return false
}

func (r *Router) routeAll(ctx context.Context, now time.Time) bool {
	elapsed := now.Sub(r.prevRouteTime)
	r.prevRouteTime = now

	type fetch struct {
		fromID wire.ID
		msgID  wire.MessageID
		env    wire.Envelope
	}

	var mu sync.Mutex
	var queued []fetch
	collect := func(fromID wire.ID) connection.Handler {
		return func(msgID wire.MessageID, _ time.Duration, env *wire.Envelope) bool {
			mu.Lock()
			queued = append(queued, fetch{fromID: fromID, msgID: msgID, env: env.Clone()})
			mu.Unlock()
			return true
		}
	}

	if len(r.nodes) <= workerThreshold {
		for id, n := range r.nodes {
			n.conn.FetchMessages(collect(id))
		}
	} else {
		var wg sync.WaitGroup
		for id, n := range r.nodes {
			wg.Add(1)
			go func(id wire.ID, n *routedNode) {
				defer wg.Done()
				n.conn.FetchMessages(collect(id))
			}(id, n)
		}
		wg.Wait()
	}
	if r.parent != nil {
		r.parent.FetchMessages(collect(r.parentID))
	}

	if len(queued) == 0 {
		return false
	}

	for _, f := range queued {
		r.handleIncoming(ctx, now, elapsed, f.fromID, f.msgID, f.env)
	}
	return true
}

func (r *Router) handleIncoming(ctx context.Context, now time.Time, elapsed time.Duration, fromID wire.ID, msgID wire.MessageID, env wire.Envelope) {
	env.AddAge(elapsed, r.cfg.MaxAge)

	if msgID.IsSpecial() {
		if r.handleSpecial(ctx, now, fromID, msgID, env) {
			return
		}
	}

	if env.TooOld(r.cfg.MaxAge) {
		r.st.recordDropped()
		return
	}

	r.routeMessage(ctx, now, fromID, msgID, env)
}

func (r *Router) routeMessage(ctx context.Context, now time.Time, fromID wire.ID, msgID wire.MessageID, env wire.Envelope) {
	if env.AddHop(r.cfg.MaxHops) {
		r.st.recordDropped()
		return
	}

	if env.Target == wire.BroadcastID {
		r.routeBroadcast(now, fromID, msgID, env)
		return
	}
	r.routeTargeted(now, fromID, msgID, env)
}

func (r *Router) routeTargeted(now time.Time, fromID wire.ID, msgID wire.MessageID, env wire.Envelope) {
	if n, ok := r.index[env.Target]; ok && n.isAllowed(msgID) {
		if n.conn.Send(msgID, env) {
			r.st.recordForwarded(now, env.Age)
			return
		}
	}

	if n, ok := r.nodes[env.Target]; ok && n.isAllowed(msgID) {
		if n.conn.Send(msgID, env) {
			r.st.recordForwarded(now, env.Age)
			return
		}
	}

	if r.parentID == env.Target && r.parent != nil {
		if r.parent.Send(msgID, env) {
			r.st.recordForwarded(now, env.Age)
			return
		}
	}

	if r.disconnected.contains(now, env.Target) {
		r.st.recordDropped()
		return
	}

	sent := false
	for id, n := range r.nodes {
		if id == fromID || !n.maybeRouter || !n.isAllowed(msgID) {
			continue
		}
		if n.conn.Send(msgID, env) {
			sent = true
		}
	}
	if r.parent != nil && fromID != r.parentID {
		if r.parent.Send(msgID, env) {
			sent = true
		}
	}
	if sent {
		r.st.recordForwarded(now, env.Age)
	} else {
		r.st.recordDropped()
	}
}

// processBlobs advances the blob engine: sending queued outgoing fragments
// and requesting resends for stalled incoming transfers.
func (r *Router) processBlobs(now time.Time) bool {
	send := func(msgID wire.MessageID, env wire.Envelope) bool {
		return r.sendDirect(now, msgID, env)
	}
	progressed := r.blobs.ProcessOutgoing(send, r.blobFragmentSize(), r.blobMaxMessages())
	if r.blobs.Update(send) {
		progressed = true
	}
	return progressed
}

func (r *Router) blobFragmentSize() int {
	if r.cfg.BlobFragmentSize > 0 {
		return r.cfg.BlobFragmentSize
	}
	return 2048
}

func (r *Router) blobMaxMessages() int {
	if r.cfg.BlobMaxMessages > 0 {
		return r.cfg.BlobMaxMessages
	}
	return 2
}

// sendDirect delivers env straight to the node named by its target,
// without the broadcast-fallback chain targeted application messages get:
// the blob engine always knows exactly which peer it is talking to.
func (r *Router) sendDirect(now time.Time, msgID wire.MessageID, env wire.Envelope) bool {
	if n, ok := r.nodes[env.Target]; ok {
		if n.conn.Send(msgID, env) {
			r.st.recordForwarded(now, env.Age)
			return true
		}
		return false
	}
	if r.parentID == env.Target && r.parent != nil {
		return r.parent.Send(msgID, env)
	}
	return false
}

func (r *Router) routeBroadcast(now time.Time, fromID wire.ID, msgID wire.MessageID, env wire.Envelope) {
	sent := false
	for id, n := range r.nodes {
		if id == fromID || !n.isAllowed(msgID) {
			continue
		}
		if n.conn.Send(msgID, env.Clone()) {
			sent = true
		}
	}
	if r.parent != nil && fromID != r.parentID {
		if r.parent.Send(msgID, env.Clone()) {
			sent = true
		}
	}
	if sent {
		r.st.recordForwarded(now, env.Age)
	} else {
		r.st.recordDropped()
	}
}

// PostLocal injects a message as if it originated from this router itself
// (fromID zero, so it is eligible for every link), used by Ping/Discovery
// style services embedded directly in a router process.
func (r *Router) PostLocal(ctx context.Context, msgID wire.MessageID, env wire.Envelope) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routeMessage(ctx, now, wire.InvalidID, msgID, env)
}
