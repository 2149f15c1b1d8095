package bridge

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/msgbus/wire"
)

const defaultMaxDataSize = 2048

// state owns the byte-stream side of a Bridge: a buffered reader fed to an
// input loop, a writer drained by an output loop, and the double-buffered
// incoming/outgoing queues connecting them to Bridge's message-level logic.
// inputMu guards incoming, outputMu (plus outputReady) guards outgoing,
// mirroring the teacher's two-mutex/one-condition-variable bridge_state.
type state struct {
	maxRead int
	maxAge  time.Duration

	reader *bufio.Reader
	writer io.Writer

	inputMu  sync.Mutex
	incoming doubleBuffer

	outputMu    sync.Mutex
	outputReady *sync.Cond
	outgoing    doubleBuffer
	stopped     bool

	forwarded    atomic.Uint64
	dropped      atomic.Uint64
	decodeErrors atomic.Uint64

	readErr  atomic.Bool
	writeErr atomic.Bool
}

func newState(r io.Reader, w io.Writer, maxDataSize int, maxAge time.Duration) *state {
	if maxDataSize <= 0 {
		maxDataSize = defaultMaxDataSize
	}
	s := &state{
		maxRead: maxDataSize * 2,
		maxAge:  maxAge,
		reader:  bufio.NewReader(r),
		writer:  w,
	}
	s.outputReady = sync.NewCond(&s.outputMu)
	return s
}

func (s *state) isUsable() bool {
	return !s.readErr.Load() && !s.writeErr.Load()
}

// push enqueues a message-level send onto the outgoing buffer and wakes the
// output loop.
func (s *state) push(msgID wire.MessageID, env wire.Envelope) {
	s.outputMu.Lock()
	s.outgoing.push(queuedMsg{msgID: msgID, env: env})
	s.outputReady.Signal()
	s.outputMu.Unlock()
}

// fetchMessages drains every message the input loop decoded since the last
// call, offering each to handler. It reports whether anything was fetched.
func (s *state) fetchMessages(handler func(wire.MessageID, wire.Envelope)) bool {
	s.inputMu.Lock()
	s.incoming.swap()
	batch := s.incoming.drain()
	s.inputMu.Unlock()

	for _, m := range batch {
		handler(m.msgID, m.env)
	}
	return len(batch) > 0
}

// recvLoop scans the input stream for newline-terminated records until ctx
// is cancelled or the stream errors.
func (s *state) recvLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		if err := s.recvOne(); err != nil {
			s.readErr.Store(true)
			return err
		}
	}
}

func (s *state) recvOne() error {
	line := make([]byte, 0, 256)
	truncated := false
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return errors.WithStack(err)
		}
		if b == '\n' {
			break
		}
		if len(line) < s.maxRead {
			line = append(line, b)
		} else {
			truncated = true
		}
	}
	if truncated {
		s.decodeErrors.Add(1)
		return nil
	}
	s.decodeLine(line)
	return nil
}

func (s *state) decodeLine(line []byte) {
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(line)))
	n, err := base64.StdEncoding.Decode(buf, line)
	if err != nil {
		s.decodeErrors.Add(1)
		return
	}
	msgID, env, ok := deserializeHeader(buf[:n])
	if !ok {
		s.decodeErrors.Add(1)
		return
	}
	s.inputMu.Lock()
	s.incoming.push(queuedMsg{msgID: msgID, env: env})
	s.inputMu.Unlock()
}

// sendLoop waits for outgoing messages and writes them out, one
// base64-encoded, newline-terminated record at a time, until ctx is
// cancelled or the stream errors.
func (s *state) sendLoop(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.outputMu.Lock()
		s.stopped = true
		s.outputReady.Broadcast()
		s.outputMu.Unlock()
	}()

	for {
		s.outputMu.Lock()
		for len(s.outgoing.back) == 0 && !s.stopped {
			s.outputReady.Wait()
		}
		if s.stopped {
			s.outputMu.Unlock()
			return errors.WithStack(ctx.Err())
		}
		s.outgoing.swap()
		batch := s.outgoing.drain()
		s.outputMu.Unlock()

		for _, m := range batch {
			if err := s.sendOne(m); err != nil {
				s.writeErr.Store(true)
				return err
			}
		}
	}
}

func (s *state) sendOne(m queuedMsg) error {
	if m.env.TooOld(s.maxAge) {
		s.dropped.Add(1)
		return nil
	}

	raw := serializeHeader(m.msgID, m.env)
	raw = append(raw, m.env.Payload...)
	line := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(line, raw)
	line = append(line, '\n')

	if _, err := s.writer.Write(line); err != nil {
		return errors.WithStack(err)
	}
	if f, ok := s.writer.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return errors.WithStack(err)
		}
	}
	s.forwarded.Add(1)
	return nil
}
