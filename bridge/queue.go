package bridge

import "github.com/outofforest/msgbus/wire"

type queuedMsg struct {
	msgID wire.MessageID
	env   wire.Envelope
}

// doubleBuffer is a pair of slices played front/back: push appends to the
// back buffer, swap exchanges front and back, and drain empties whichever
// buffer is currently front. It generalizes the teacher's double_buffer of
// message_storage so input and output goroutines never block each other on
// a single shared slice.
type doubleBuffer struct {
	front, back []queuedMsg
}

func (d *doubleBuffer) push(m queuedMsg) {
	d.back = append(d.back, m)
}

func (d *doubleBuffer) swap() {
	d.front, d.back = d.back, d.front
	d.back = d.back[:0]
}

func (d *doubleBuffer) drain() []queuedMsg {
	out := d.front
	d.front = nil
	return out
}
