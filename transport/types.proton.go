package transport

import (
	"unsafe"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	idHello uint64 = iota + 1
	idEnvelope
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates the proton marshaller for every message type
// exchanged over a router-to-router or router-to-endpoint resonance
// connection.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller marshals and unmarshals Hello and EnvelopeMsg.
//
// MakePatch/ApplyPatch are implemented as always-full marshal/unmarshal
// rather than the bit-per-field delta scheme proton normally generates:
// routed envelopes have no previous revision to diff against (unlike the
// namespace-keyed pub/sub content this pattern was written for), so a
// delta would never be smaller than the message itself.
type Marshaller struct{}

// Messages returns the message types this marshaller supports.
func (m Marshaller) Messages() []any {
	return []any{
		Hello{},
		EnvelopeMsg{},
	}
}

// ID returns the wire id of msg's type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *Hello:
		return idHello, nil
	case *EnvelopeMsg:
		return idEnvelope, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the marshalled size of msg.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *Hello:
		return sizeHello(msg2), nil
	case *EnvelopeMsg:
		return sizeEnvelope(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals msg into buf.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *Hello:
		return idHello, marshalHello(msg2, buf), nil
	case *EnvelopeMsg:
		return idEnvelope, marshalEnvelope(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal reconstructs a message of wire id id from buf.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case idHello:
		msg := &Hello{}
		return msg, unmarshalHello(msg, buf), nil
	case idEnvelope:
		msg := &EnvelopeMsg{}
		return msg, unmarshalEnvelope(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch produces a full marshal of msgDst; see the Marshaller doc
// comment for why no delta is computed against msgSrc.
func (m Marshaller) MakePatch(msgDst, _ any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)
	return m.Marshal(msgDst, buf)
}

// ApplyPatch is a full unmarshal, the counterpart of MakePatch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *Hello:
		return unmarshalHello(msg2, buf), nil
	case *EnvelopeMsg:
		return unmarshalEnvelope(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func sizeHello(*Hello) uint64 {
	return 16
}

func marshalHello(m *Hello, b []byte) uint64 {
	copy(b[0:16], unsafe.Slice(&m.Nonce[0], 16))
	return 16
}

func unmarshalHello(m *Hello, b []byte) uint64 {
	copy(unsafe.Slice(&m.Nonce[0], 16), b[0:16])
	return 16
}

func sizeEnvelope(m *EnvelopeMsg) uint64 {
	var n uint64 = 1 // Priority
	helpers.UInt64Size(m.MsgIDClass, &n)
	helpers.UInt64Size(m.MsgIDMethod, &n)
	helpers.UInt64Size(m.Target, &n)
	helpers.UInt64Size(m.Source, &n)
	helpers.UInt64Size(m.Sequence, &n)
	helpers.UInt64Size(uint64(m.HopCount), &n)
	helpers.UInt64Size(uint64(m.AgeNanos), &n)
	helpers.UInt64Size(uint64(m.Verified), &n)
	l := uint64(len(m.Payload))
	helpers.UInt64Size(l, &n)
	n += l
	return n
}

func marshalEnvelope(m *EnvelopeMsg, b []byte) uint64 {
	b[0] = m.Priority
	var o uint64 = 1
	helpers.UInt64Marshal(m.MsgIDClass, b, &o)
	helpers.UInt64Marshal(m.MsgIDMethod, b, &o)
	helpers.UInt64Marshal(m.Target, b, &o)
	helpers.UInt64Marshal(m.Source, b, &o)
	helpers.UInt64Marshal(m.Sequence, b, &o)
	helpers.UInt64Marshal(uint64(m.HopCount), b, &o)
	helpers.UInt64Marshal(uint64(m.AgeNanos), b, &o)
	helpers.UInt64Marshal(uint64(m.Verified), b, &o)
	l := uint64(len(m.Payload))
	helpers.UInt64Marshal(l, b, &o)
	if l > 0 {
		copy(b[o:o+l], m.Payload)
		o += l
	}
	return o
}

func unmarshalEnvelope(m *EnvelopeMsg, b []byte) uint64 {
	m.Priority = b[0]
	var o uint64 = 1
	helpers.UInt64Unmarshal(&m.MsgIDClass, b, &o)
	helpers.UInt64Unmarshal(&m.MsgIDMethod, b, &o)
	helpers.UInt64Unmarshal(&m.Target, b, &o)
	helpers.UInt64Unmarshal(&m.Source, b, &o)
	helpers.UInt64Unmarshal(&m.Sequence, b, &o)
	var hop, age, verified uint64
	helpers.UInt64Unmarshal(&hop, b, &o)
	helpers.UInt64Unmarshal(&age, b, &o)
	helpers.UInt64Unmarshal(&verified, b, &o)
	m.HopCount = uint32(hop)
	m.AgeNanos = int64(age)
	m.Verified = uint32(verified)
	var l uint64
	helpers.UInt64Unmarshal(&l, b, &o)
	if l > 0 {
		m.Payload = append([]byte(nil), b[o:o+l]...)
		o += l
	}
	return o
}
