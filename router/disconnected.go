package router

import (
	"time"

	"github.com/outofforest/msgbus/wire"
)

// recentlyDisconnectedTTL is how long an evicted endpoint id is remembered
// to suppress the multi-router fallback broadcast, per the glossary.
const recentlyDisconnectedTTL = 15 * time.Second

// disconnectedSet remembers ids evicted from the routing table for a TTL,
// so messages to them are dropped outright instead of triggering the
// multi-router fallback broadcast.
type disconnectedSet struct {
	expireAt map[wire.ID]time.Time
}

func newDisconnectedSet() *disconnectedSet {
	return &disconnectedSet{expireAt: make(map[wire.ID]time.Time)}
}

// mark records id as recently disconnected as of now.
func (s *disconnectedSet) mark(now time.Time, id wire.ID) {
	s.expireAt[id] = now.Add(recentlyDisconnectedTTL)
}

// unmark removes id, used when it is adopted again before its TTL expires.
func (s *disconnectedSet) unmark(id wire.ID) {
	delete(s.expireAt, id)
}

// contains reports whether id is still within its TTL as of now.
func (s *disconnectedSet) contains(now time.Time, id wire.ID) bool {
	exp, ok := s.expireAt[id]
	if !ok {
		return false
	}
	if now.After(exp) {
		delete(s.expireAt, id)
		return false
	}
	return true
}

// sweep removes every entry whose TTL has expired as of now.
func (s *disconnectedSet) sweep(now time.Time) {
	for id, exp := range s.expireAt {
		if now.After(exp) {
			delete(s.expireAt, id)
		}
	}
}
