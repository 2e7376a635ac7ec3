package monitor

import (
	"net/http"
	"time"

	"github.com/oxyl/shardgate/internal/gateway"
)

// IMonitor records shard metrics and exposes them over HTTP.
type IMonitor interface {
	gateway.Monitor
	Handler() http.Handler
}

func NewMonitor(on bool) IMonitor {
	if !on {
		return &monitorEmpty{}
	}
	return NewPrometheus()
}

type monitorEmpty struct {
}

func (m *monitorEmpty) PacketIn(shard int, op gateway.Opcode)      {}
func (m *monitorEmpty) PacketOut(shard int, op gateway.Opcode)     {}
func (m *monitorEmpty) Closed(shard int, code int)                 {}
func (m *monitorEmpty) Reconnect(shard int)                        {}
func (m *monitorEmpty) Latency(shard int, d time.Duration)         {}
func (m *monitorEmpty) QueueDepth(shard int, n int)                {}
func (m *monitorEmpty) StatusChanged(shard int, st gateway.Status) {}
func (m *monitorEmpty) Handler() http.Handler                      { return http.NotFoundHandler() }
