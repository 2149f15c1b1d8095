package router

import (
	"encoding/binary"
	"math"

	"github.com/outofforest/msgbus/connection"
	"github.com/outofforest/msgbus/wire"
)

// The payload layouts below are hand-encoded with encoding/binary rather
// than run through the proton struct marshaller, for the same reason as
// the blob engine's fragment header: §6 specifies each of these as a small,
// fixed field list, not a general struct to be reflected over.

// topologyInfo is the payload of topoRutrCn/topoBrdgCn/topoEndpt.
type topologyInfo struct {
	RouterID   wire.ID
	RemoteID   wire.ID
	InstanceID wire.ID
	Kind       connection.Kind
}

const topologyInfoSize = 8 + 8 + 8 + 1

func (t topologyInfo) encode() []byte {
	buf := make([]byte, topologyInfoSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(t.RouterID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(t.RemoteID))
	binary.BigEndian.PutUint64(buf[16:24], uint64(t.InstanceID))
	buf[24] = byte(t.Kind)
	return buf
}

func decodeTopologyInfo(buf []byte) topologyInfo {
	if len(buf) < topologyInfoSize {
		return topologyInfo{}
	}
	return topologyInfo{
		RouterID:   wire.ID(binary.BigEndian.Uint64(buf[0:8])),
		RemoteID:   wire.ID(binary.BigEndian.Uint64(buf[8:16])),
		InstanceID: wire.ID(binary.BigEndian.Uint64(buf[16:24])),
		Kind:       connection.Kind(buf[24]),
	}
}

// routerStats is the payload of statsRutr.
type routerStats struct {
	Forwarded      uint64
	Dropped        uint64
	MessagesPerSec float64
	AvgAgeMillis   uint64
	UptimeSeconds  uint64
}

const routerStatsSize = 8 * 5

func (s routerStats) encode() []byte {
	buf := make([]byte, routerStatsSize)
	binary.BigEndian.PutUint64(buf[0:8], s.Forwarded)
	binary.BigEndian.PutUint64(buf[8:16], s.Dropped)
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(s.MessagesPerSec))
	binary.BigEndian.PutUint64(buf[24:32], s.AvgAgeMillis)
	binary.BigEndian.PutUint64(buf[32:40], s.UptimeSeconds)
	return buf
}

// connStats is the payload of one statsConn entry per link.
type connStats struct {
	RemoteID        wire.ID
	BlockUsageRatio float64
	BytesPerSecond  float64
}

const connStatsSize = 8 + 8 + 8

func (c connStats) encode() []byte {
	buf := make([]byte, connStatsSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(c.RemoteID))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(c.BlockUsageRatio))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(c.BytesPerSecond))
	return buf
}

// msgFlowInfo is the payload of msgFlowInf: average message age in
// milliseconds.
func encodeMsgFlowInfo(avgAgeMillis uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, avgAgeMillis)
	return buf
}

const messageIDSize = 16

// encodeMessageID is the payload shape for msgAlwList/msgBlkList: the
// single message id the link should allow or block.
func encodeMessageID(id wire.MessageID) []byte {
	buf := make([]byte, messageIDSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(id.Class))
	binary.BigEndian.PutUint64(buf[8:16], uint64(id.Method))
	return buf
}

func decodeMessageID(buf []byte) (wire.MessageID, bool) {
	if len(buf) < messageIDSize {
		return wire.MessageID{}, false
	}
	return wire.MessageID{
		Class:  wire.Name(binary.BigEndian.Uint64(buf[0:8])),
		Method: wire.Name(binary.BigEndian.Uint64(buf[8:16])),
	}, true
}

// subscriptionQuery is the payload of qrySubscrb/qrySubscrp: which endpoint,
// subscribed to which message id, is being asked about.
type subscriptionQuery struct {
	EndpointID wire.ID
	Query      wire.MessageID
}

const subscriptionQuerySize = 8 + 16

func (q subscriptionQuery) encode() []byte {
	buf := make([]byte, subscriptionQuerySize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(q.EndpointID))
	copy(buf[8:24], encodeMessageID(q.Query))
	return buf
}

func decodeSubscriptionQuery(buf []byte) (subscriptionQuery, bool) {
	if len(buf) < subscriptionQuerySize {
		return subscriptionQuery{}, false
	}
	msgID, _ := decodeMessageID(buf[8:24])
	return subscriptionQuery{
		EndpointID: wire.ID(binary.BigEndian.Uint64(buf[0:8])),
		Query:      msgID,
	}, true
}
