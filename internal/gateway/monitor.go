package gateway

import "time"

// Monitor receives shard metrics.
type Monitor interface {
	PacketIn(shard int, op Opcode)
	PacketOut(shard int, op Opcode)
	Closed(shard int, code int)
	Reconnect(shard int)
	Latency(shard int, d time.Duration)
	QueueDepth(shard int, n int)
	StatusChanged(shard int, st Status)
}

type emptyMonitor struct {
}

func (e *emptyMonitor) PacketIn(shard int, op Opcode)      {}
func (e *emptyMonitor) PacketOut(shard int, op Opcode)     {}
func (e *emptyMonitor) Closed(shard int, code int)         {}
func (e *emptyMonitor) Reconnect(shard int)                {}
func (e *emptyMonitor) Latency(shard int, d time.Duration) {}
func (e *emptyMonitor) QueueDepth(shard int, n int)        {}
func (e *emptyMonitor) StatusChanged(shard int, st Status) {}
