package services

import (
	"encoding/binary"

	"github.com/outofforest/msgbus/wire"
)

// Discovery message ids: broadcast announcements describing a host, a
// process instance, or an endpoint, grounded on the observer/announcer
// exchange discovery_test.cpp drives (an observer discovers pingable
// endpoints and the descriptive info each one publishes about itself).
var (
	MethodHostInfo     = wire.MessageID{Class: wire.MustName("eagiDiscvr"), Method: wire.MustName("hostInfo")}
	MethodInstanceInfo = wire.MessageID{Class: wire.MustName("eagiDiscvr"), Method: wire.MustName("instInfo")}
	MethodEndpointInfo = wire.MessageID{Class: wire.MustName("eagiDiscvr"), Method: wire.MustName("eptInfo")}
)

// HostInfo describes the machine an endpoint runs on.
type HostInfo struct {
	HostID   wire.ID
	Hostname string
}

// InstanceInfo describes the process instance an endpoint belongs to.
type InstanceInfo struct {
	InstanceID wire.ID
	AppName    string
}

// EndpointInfo describes a single endpoint for display purposes.
type EndpointInfo struct {
	EndpointID  wire.ID
	DisplayName string
}

func encodeIDString(id wire.ID, s string) []byte {
	b := make([]byte, 10+len(s))
	binary.BigEndian.PutUint64(b[0:8], uint64(id))
	binary.BigEndian.PutUint16(b[8:10], uint16(len(s)))
	copy(b[10:], s)
	return b
}

func decodeIDString(buf []byte) (wire.ID, string, bool) {
	if len(buf) < 10 {
		return 0, "", false
	}
	id := wire.ID(binary.BigEndian.Uint64(buf[0:8]))
	n := int(binary.BigEndian.Uint16(buf[8:10]))
	if len(buf) < 10+n {
		return 0, "", false
	}
	return id, string(buf[10 : 10+n]), true
}

// EncodeHostInfo serializes a HostInfo record.
func EncodeHostInfo(info HostInfo) []byte { return encodeIDString(info.HostID, info.Hostname) }

// DecodeHostInfo deserializes a HostInfo record.
func DecodeHostInfo(buf []byte) (HostInfo, bool) {
	id, s, ok := decodeIDString(buf)
	return HostInfo{HostID: id, Hostname: s}, ok
}

// EncodeInstanceInfo serializes an InstanceInfo record.
func EncodeInstanceInfo(info InstanceInfo) []byte {
	return encodeIDString(info.InstanceID, info.AppName)
}

// DecodeInstanceInfo deserializes an InstanceInfo record.
func DecodeInstanceInfo(buf []byte) (InstanceInfo, bool) {
	id, s, ok := decodeIDString(buf)
	return InstanceInfo{InstanceID: id, AppName: s}, ok
}

// EncodeEndpointInfo serializes an EndpointInfo record.
func EncodeEndpointInfo(info EndpointInfo) []byte {
	return encodeIDString(info.EndpointID, info.DisplayName)
}

// DecodeEndpointInfo deserializes an EndpointInfo record.
func DecodeEndpointInfo(buf []byte) (EndpointInfo, bool) {
	id, s, ok := decodeIDString(buf)
	return EndpointInfo{EndpointID: id, DisplayName: s}, ok
}

// AnnounceHost builds the broadcast envelope for a HostInfo record.
func AnnounceHost(info HostInfo) (wire.MessageID, wire.Envelope) {
	return MethodHostInfo, wire.Envelope{MsgID: MethodHostInfo, Target: wire.BroadcastID, Payload: EncodeHostInfo(info)}
}

// AnnounceInstance builds the broadcast envelope for an InstanceInfo record.
func AnnounceInstance(info InstanceInfo) (wire.MessageID, wire.Envelope) {
	return MethodInstanceInfo, wire.Envelope{
		MsgID: MethodInstanceInfo, Target: wire.BroadcastID, Payload: EncodeInstanceInfo(info),
	}
}

// AnnounceEndpoint builds the broadcast envelope for an EndpointInfo record.
func AnnounceEndpoint(info EndpointInfo) (wire.MessageID, wire.Envelope) {
	return MethodEndpointInfo, wire.Envelope{
		MsgID: MethodEndpointInfo, Target: wire.BroadcastID, Payload: EncodeEndpointInfo(info),
	}
}
