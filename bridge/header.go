package bridge

import (
	"encoding/binary"
	"time"

	"github.com/outofforest/msgbus/wire"
)

// headerSize is the fixed-width encoding of a message id plus envelope
// routing fields (everything but the payload, which follows immediately
// after in the same record). A hand-rolled encoding/binary layout is used
// here rather than a generated marshaller, matching the small-fixed-field
// treatment router/payloads.go gives topology/stats records: this is a
// closed list of scalar fields, not a schema that evolves independently.
const headerSize = 8 + 8 + 8 + 8 + 8 + 1 + 4 + 8 + 4

func serializeHeader(msgID wire.MessageID, env wire.Envelope) []byte {
	b := make([]byte, headerSize, headerSize+len(env.Payload))
	binary.BigEndian.PutUint64(b[0:8], uint64(msgID.Class))
	binary.BigEndian.PutUint64(b[8:16], uint64(msgID.Method))
	binary.BigEndian.PutUint64(b[16:24], uint64(env.Target))
	binary.BigEndian.PutUint64(b[24:32], uint64(env.Source))
	binary.BigEndian.PutUint64(b[32:40], env.Sequence)
	b[40] = byte(env.Priority)
	binary.BigEndian.PutUint32(b[41:45], env.HopCount)
	binary.BigEndian.PutUint64(b[45:53], uint64(env.Age))
	binary.BigEndian.PutUint32(b[53:57], env.Verified)
	return b
}

func deserializeHeader(buf []byte) (wire.MessageID, wire.Envelope, bool) {
	if len(buf) < headerSize {
		return wire.MessageID{}, wire.Envelope{}, false
	}
	msgID := wire.MessageID{
		Class:  wire.Name(binary.BigEndian.Uint64(buf[0:8])),
		Method: wire.Name(binary.BigEndian.Uint64(buf[8:16])),
	}
	env := wire.Envelope{
		MsgID:    msgID,
		Target:   wire.ID(binary.BigEndian.Uint64(buf[16:24])),
		Source:   wire.ID(binary.BigEndian.Uint64(buf[24:32])),
		Sequence: binary.BigEndian.Uint64(buf[32:40]),
		Priority: wire.Priority(buf[40]),
		HopCount: binary.BigEndian.Uint32(buf[41:45]),
		Age:      time.Duration(binary.BigEndian.Uint64(buf[45:53])),
		Verified: binary.BigEndian.Uint32(buf[53:57]),
		Payload:  append([]byte(nil), buf[headerSize:]...),
	}
	return msgID, env, true
}
