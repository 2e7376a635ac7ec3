package gateway

import (
	"errors"

	"go.uber.org/atomic"
)

// Status is the session state of a shard.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusResuming
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusResuming:
		return "resuming"
	case StatusReady:
		return "ready"
	}
	return "unknown status"
}

// Opcode is a gateway packet opcode.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpPresenceUpdate      Opcode = 3
	OpVoiceStateUpdate    Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
)

func (o Opcode) String() string {
	switch o {
	case OpDispatch:
		return "Dispatch"
	case OpHeartbeat:
		return "Heartbeat"
	case OpIdentify:
		return "Identify"
	case OpPresenceUpdate:
		return "PresenceUpdate"
	case OpVoiceStateUpdate:
		return "VoiceStateUpdate"
	case OpResume:
		return "Resume"
	case OpReconnect:
		return "Reconnect"
	case OpRequestGuildMembers:
		return "RequestGuildMembers"
	case OpInvalidSession:
		return "InvalidSession"
	case OpHello:
		return "Hello"
	case OpHeartbeatAck:
		return "HeartbeatAck"
	}
	return "Unknown"
}

// bypassesQueue reports whether packets with this opcode are written even
// before the session is ready.
func (o Opcode) bypassesQueue() bool {
	return o == OpIdentify || o == OpResume || o == OpHeartbeat
}

var (
	ErrShardStopped         = errors.New("gateway: shard stopped")
	ErrNotConnected         = errors.New("gateway: not connected")
	ErrWriteBufferFull      = errors.New("gateway: write buffer full")
	ErrOutboundQueueFull    = errors.New("gateway: outbound queue full")
	ErrMemberRequestTimeout = errors.New("gateway: member request timed out")
	ErrStaleConnection      = errors.New("gateway: stale connection")
)

type Statistics struct {
	InPackets  atomic.Uint64
	OutPackets atomic.Uint64
	InBytes    atomic.Uint64
	OutBytes   atomic.Uint64
	Reconnects atomic.Uint64
}
