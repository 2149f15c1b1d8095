package services

import (
	"encoding/binary"
	"time"

	"github.com/outofforest/msgbus/wire"
)

// MethodShutdown is the shutdown request message id. It is an ordinary
// (non-special) class so the generic router forwarding path carries it to
// its target like any other application message, grounded on
// shutdown_target_impl's plain message_map registration (class "Shutdown",
// method "shutdown") rather than the router's own eagiMsgBus vocabulary.
var MethodShutdown = wire.MessageID{Class: wire.MustName("Shutdown"), Method: wire.MustName("shutdown")}

// Request is a decoded shutdown request: how long ago it was issued, on
// the requester's clock, and the verification bits the tracker attached to
// the carrying envelope.
type Request struct {
	Source   wire.ID
	Age      time.Duration
	Verified uint32
}

// EncodeRequest serializes a shutdown request's issue time.
func EncodeRequest(now time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(now.UnixNano()))
	return b
}

// DecodeRequest decodes a shutdown request, ignoring it if verified falls
// below minVerified — the configured verification threshold below which a
// shutdown request is not trusted.
func DecodeRequest(source wire.ID, payload []byte, verified, minVerified uint32, now time.Time) (Request, bool) {
	if verified < minVerified || len(payload) < 8 {
		return Request{}, false
	}
	issuedAt := time.Unix(0, int64(binary.BigEndian.Uint64(payload)))
	return Request{Source: source, Age: now.Sub(issuedAt), Verified: verified}, true
}
