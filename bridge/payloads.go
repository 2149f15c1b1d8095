package bridge

import (
	"encoding/binary"

	"github.com/outofforest/msgbus/wire"
)

// bridgeTopologyInfo is the payload of topoBrdgCn: hand-rolled
// encoding/binary rather than a generated marshaller, the same small
// fixed-field treatment router/payloads.go gives its own topology record.
type bridgeTopologyInfo struct {
	BridgeID   wire.ID
	InstanceID wire.ID
	OppositeID wire.ID
}

const bridgeTopologyInfoSize = 24

func (info bridgeTopologyInfo) encode() []byte {
	b := make([]byte, bridgeTopologyInfoSize)
	binary.BigEndian.PutUint64(b[0:8], uint64(info.BridgeID))
	binary.BigEndian.PutUint64(b[8:16], uint64(info.InstanceID))
	binary.BigEndian.PutUint64(b[16:24], uint64(info.OppositeID))
	return b
}

func decodeBridgeTopologyInfo(buf []byte) (bridgeTopologyInfo, bool) {
	if len(buf) < bridgeTopologyInfoSize {
		return bridgeTopologyInfo{}, false
	}
	return bridgeTopologyInfo{
		BridgeID:   wire.ID(binary.BigEndian.Uint64(buf[0:8])),
		InstanceID: wire.ID(binary.BigEndian.Uint64(buf[8:16])),
		OppositeID: wire.ID(binary.BigEndian.Uint64(buf[16:24])),
	}, true
}

// bridgeStats is the payload of statsBrdg.
type bridgeStats struct {
	ForwardedMessages uint64
	DroppedMessages   uint64
	UptimeSeconds     int64
}

const bridgeStatsSize = 24

func (s bridgeStats) encode() []byte {
	b := make([]byte, bridgeStatsSize)
	binary.BigEndian.PutUint64(b[0:8], s.ForwardedMessages)
	binary.BigEndian.PutUint64(b[8:16], s.DroppedMessages)
	binary.BigEndian.PutUint64(b[16:24], uint64(s.UptimeSeconds))
	return b
}
