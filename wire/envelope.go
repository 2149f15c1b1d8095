package wire

import "time"

// Envelope is a message in flight: the typed, routed unit every connection,
// router and bridge passes around. Payload carries the method-specific
// serialized body; routers never interpret it except for special ids.
type Envelope struct {
	MsgID    MessageID
	Target   ID
	Source   ID
	Sequence uint64
	Priority Priority
	HopCount uint32
	Age      time.Duration
	Verified uint32
	Payload  []byte
}

// Clone returns a deep copy safe to mutate independently of the original,
// used when a message fans out to more than one outgoing link.
func (e Envelope) Clone() Envelope {
	c := e
	if e.Payload != nil {
		c.Payload = append([]byte(nil), e.Payload...)
	}
	return c
}

// AddHop increments the hop count and reports whether it now exceeds
// maxHops. A zero maxHops means unlimited.
func (e *Envelope) AddHop(maxHops uint32) bool {
	e.HopCount++
	return maxHops > 0 && e.HopCount > maxHops
}

// TooManyHops reports whether the current hop count already exceeds
// maxHops, without mutating it.
func (e Envelope) TooManyHops(maxHops uint32) bool {
	return maxHops > 0 && e.HopCount > maxHops
}

// AddAge accumulates elapsed since the message was last seen at a router
// and reports whether the result exceeds maxAge. A zero maxAge means
// unlimited.
func (e *Envelope) AddAge(elapsed, maxAge time.Duration) bool {
	e.Age += elapsed
	return maxAge > 0 && e.Age > maxAge
}

// TooOld reports whether the envelope's age already exceeds maxAge.
func (e Envelope) TooOld(maxAge time.Duration) bool {
	return maxAge > 0 && e.Age > maxAge
}
