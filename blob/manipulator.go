package blob

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

// SendHandler transmits a fragment or resend-request message and reports
// whether it was accepted, mirroring blob_manipulator::send_handler.
type SendHandler func(msgID wire.MessageID, env wire.Envelope) bool

// defaultGapAge is how stale a gap in an incoming transfer's coverage must
// be, discovered by a resend sweep, before a blobResend is emitted for it.
const defaultGapAge = 2 * time.Second

type outgoingTransfer struct {
	info       Info
	io         SourceIO
	priority   wire.Priority
	nextOffset int64
	sentAny    bool
	deadline   time.Time
	age        time.Duration
}

// done reports whether the transfer has nothing left to send. A zero-size
// blob still requires one (empty) fragment to be sent, so the receiver
// learns the total size and can complete immediately.
func (t *outgoingTransfer) done() bool {
	return t.sentAny && t.nextOffset >= t.info.TotalSize
}

type incomingKey struct {
	source   wire.ID
	sequence wire.ID
}

type incomingTransfer struct {
	msgID      wire.MessageID
	info       Info
	io         TargetIO
	cov        coverage
	totalKnown bool
	deadline   time.Time
	age        time.Duration
	finished   bool
	lastSeen   time.Time
}

// Manipulator is the blob transfer engine: one instance fragments outgoing
// blobs addressed with sendMsgID/resendMsgID, and reassembles incoming
// fragments delivered via ProcessIncoming.
type Manipulator struct {
	sendMsgID   wire.MessageID
	resendMsgID wire.MessageID
	factory     TargetIOFactory

	outgoing []*outgoingTransfer
	incoming map[incomingKey]*incomingTransfer
}

// NewManipulator creates an engine that fragments outgoing blobs as
// sendMsgID messages and expects blobResend-equivalent requests as
// resendMsgID messages.
func NewManipulator(sendMsgID, resendMsgID wire.MessageID) *Manipulator {
	return &Manipulator{
		sendMsgID:   sendMsgID,
		resendMsgID: resendMsgID,
		incoming:    make(map[incomingKey]*incomingTransfer),
	}
}

// SetTargetIOFactory installs a fallback factory used by ProcessIncoming
// when a fragment arrives for a blob with no prior ExpectIncoming call
// (e.g. certificate responses in the router).
func (m *Manipulator) SetTargetIOFactory(f TargetIOFactory) {
	m.factory = f
}

// PushOutgoing enqueues a new outgoing transfer.
func (m *Manipulator) PushOutgoing(
	source, target, blobID wire.ID,
	io SourceIO,
	maxTime time.Duration,
	priority wire.Priority,
) {
	m.outgoing = append(m.outgoing, &outgoingTransfer{
		info: Info{
			Source:    source,
			Target:    target,
			BlobID:    blobID,
			TotalSize: io.TotalSize(),
		},
		io:       io,
		priority: priority,
		deadline: deadlineFrom(maxTime),
	})
}

// ExpectIncoming installs a receiver for fragments from source identified
// by sequence (the sender's target-blob-id).
func (m *Manipulator) ExpectIncoming(
	msgID wire.MessageID,
	source, sequence wire.ID,
	io TargetIO,
	maxTime time.Duration,
) {
	m.incoming[incomingKey{source: source, sequence: sequence}] = &incomingTransfer{
		msgID:    msgID,
		info:     Info{Source: source, BlobID: sequence},
		io:       io,
		deadline: deadlineFrom(maxTime),
		lastSeen: time.Now(),
	}
}

func deadlineFrom(maxTime time.Duration) time.Time {
	if maxTime <= 0 {
		return time.Time{}
	}
	return time.Now().Add(maxTime)
}

// HasOutgoing reports whether any outgoing transfer still has unsent bytes.
func (m *Manipulator) HasOutgoing() bool {
	for _, t := range m.outgoing {
		if !t.done() {
			return true
		}
	}
	return false
}

// HasPending reports whether any incoming transfer is still awaiting bytes.
func (m *Manipulator) HasPending() bool {
	for _, t := range m.incoming {
		if !t.finished {
			return true
		}
	}
	return false
}

// ProcessOutgoing pops the highest-priority transfer with unsent bytes and
// sends up to maxMessages fragments of at most fragmentSize bytes via
// handler, reporting whether anything was sent.
func (m *Manipulator) ProcessOutgoing(handler SendHandler, fragmentSize, maxMessages int) bool {
	t := m.pickOutgoing()
	if t == nil {
		return false
	}

	sent := false
	for i := 0; i < maxMessages && !t.done(); i++ {
		n := fragmentSize
		if remaining := t.info.TotalSize - t.nextOffset; int64(n) > remaining {
			n = int(remaining)
		}
		buf := make([]byte, n)
		written := t.io.FetchFragment(t.nextOffset, buf)

		hdr := fragmentHeader{
			BlobID:    t.info.BlobID,
			Offset:    t.nextOffset,
			TotalSize: t.info.TotalSize,
			Age:       t.age,
			Priority:  t.priority,
		}
		env := wire.Envelope{
			MsgID:    m.sendMsgID,
			Target:   t.info.Target,
			Source:   t.info.Source,
			Priority: t.priority,
			Payload:  hdr.encode(buf[:written]),
		}
		if handler(m.sendMsgID, env) {
			sent = true
			t.sentAny = true
			t.nextOffset += written
		} else {
			break
		}
	}
	return sent
}

func (m *Manipulator) pickOutgoing() *outgoingTransfer {
	var best *outgoingTransfer
	for _, t := range m.outgoing {
		if t.done() {
			continue
		}
		if best == nil || t.priority < best.priority {
			best = t
		}
	}
	return best
}

// ProcessIncoming offers a single received message to the engine. It
// reports whether the message was a blob fragment or resend request it
// consumed.
func (m *Manipulator) ProcessIncoming(msgID wire.MessageID, env wire.Envelope) bool {
	switch msgID {
	case m.sendMsgID:
		return m.handleFragment(env)
	case m.resendMsgID:
		return true // resend requests are for the sender side; see ProcessResendRequest.
	default:
		return false
	}
}

func (m *Manipulator) handleFragment(env wire.Envelope) bool {
	hdr, payload, err := decodeFragmentHeader(env.Payload)
	if err != nil {
		return false
	}

	key := incomingKey{source: env.Source, sequence: hdr.BlobID}
	t, ok := m.incoming[key]
	if !ok {
		if m.factory == nil {
			return false
		}
		io := m.factory(m.sendMsgID, Info{Source: env.Source, BlobID: hdr.BlobID, TotalSize: hdr.TotalSize})
		t = &incomingTransfer{msgID: m.sendMsgID, info: Info{Source: env.Source, BlobID: hdr.BlobID}, io: io, lastSeen: time.Now()}
		m.incoming[key] = t
	}
	if t.finished {
		return true
	}

	t.info.TotalSize = hdr.TotalSize
	t.totalKnown = true
	t.age = hdr.Age
	t.lastSeen = time.Now()

	end := hdr.Offset + int64(len(payload))
	if len(payload) > 0 && !t.io.StoreFragment(hdr.Offset, payload, t.info) {
		return true
	}

	if t.cov.add(hdr.Offset, end, t.info.TotalSize) {
		t.finished = true
		t.io.HandleFinished(t.msgID, t.age, t.info)
		delete(m.incoming, key)
	}
	return true
}

// Update runs periodic housekeeping: expiring transfers past their
// deadline (calling HandleCancelled exactly once) and, via handler,
// requesting resends for gaps that have sat unfilled past the gap age.
// It reports whether anything changed.
func (m *Manipulator) Update(handler SendHandler) bool {
	now := time.Now()
	progressed := false

	remaining := m.outgoing[:0]
	for _, t := range m.outgoing {
		if !t.deadline.IsZero() && now.After(t.deadline) {
			progressed = true
			continue
		}
		remaining = append(remaining, t)
	}
	m.outgoing = remaining

	for key, t := range m.incoming {
		if t.finished {
			continue
		}
		if !t.deadline.IsZero() && now.After(t.deadline) {
			t.io.HandleCancelled()
			delete(m.incoming, key)
			progressed = true
			continue
		}
		if t.totalKnown && now.Sub(t.lastSeen) > defaultGapAge {
			for _, gap := range t.cov.missingRanges(t.info.TotalSize) {
				hdr := resendHeader{BlobID: t.info.BlobID, Offset: gap.start, Length: gap.end - gap.start}
				env := wire.Envelope{
					MsgID:  m.resendMsgID,
					Target: t.info.Source,
					Payload: hdr.encode(),
				}
				if handler(m.resendMsgID, env) {
					progressed = true
				}
			}
			t.lastSeen = now
		}
	}

	return progressed
}

// ProcessResendRequest is offered a blobResend-equivalent message on the
// sending side; it rewinds the matching outgoing transfer so the next
// ProcessOutgoing call re-sends the requested window.
func (m *Manipulator) ProcessResendRequest(env wire.Envelope) bool {
	hdr, err := decodeResendHeader(env.Payload)
	if err != nil {
		return false
	}
	for _, t := range m.outgoing {
		if t.info.BlobID == hdr.BlobID && t.info.Target == env.Source {
			if hdr.Offset < t.nextOffset {
				t.nextOffset = hdr.Offset
			}
			return true
		}
	}
	return false
}

// HandleComplete is a no-op hook kept for parity with the original engine's
// handle_complete; completion is detected inline as fragments arrive.
func (m *Manipulator) HandleComplete() {}
