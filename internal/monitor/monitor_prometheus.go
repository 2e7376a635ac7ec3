package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Prometheus struct {
	registry *prometheus.Registry

	packetsInCounter  *prometheus.CounterVec
	packetsOutCounter *prometheus.CounterVec
	closeCounter      *prometheus.CounterVec
	reconnectCounter  *prometheus.CounterVec
	latencyGauge      *prometheus.GaugeVec
	queueDepthGauge   *prometheus.GaugeVec
	statusGauge       *prometheus.GaugeVec
}

func NewPrometheus() *Prometheus {
	namespace := "shardgate"
	subsystem := "shard"

	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		packetsInCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_in_total",
			Help:      "Packets received from the gateway",
		}, []string{"shard", "op"}),
		packetsOutCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_out_total",
			Help:      "Packets written to the gateway",
		}, []string{"shard", "op"}),
		closeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "closes_total",
			Help:      "Gateway closes by close code",
		}, []string{"shard", "code"}),
		reconnectCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnects_total",
			Help:      "Connection resets",
		}, []string{"shard"}),
		latencyGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "heartbeat_latency_seconds",
			Help:      "Time between the last heartbeat and its ack",
		}, []string{"shard"}),
		queueDepthGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbound_queue_depth",
			Help:      "Packets waiting for the session to become ready",
		}, []string{"shard"}),
		statusGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "status",
			Help:      "Session status (0 disconnected, 1 resuming, 2 ready)",
		}, []string{"shard"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.packetsInCounter,
		p.packetsOutCounter,
		p.closeCounter,
		p.reconnectCounter,
		p.latencyGauge,
		p.queueDepthGauge,
		p.statusGauge,
	)
	return p
}

func shardLabel(shard int) string {
	return strconv.Itoa(shard)
}

func (p *Prometheus) PacketIn(shard int, op gateway.Opcode) {
	p.packetsInCounter.WithLabelValues(shardLabel(shard), op.String()).Inc()
}

func (p *Prometheus) PacketOut(shard int, op gateway.Opcode) {
	p.packetsOutCounter.WithLabelValues(shardLabel(shard), op.String()).Inc()
}

func (p *Prometheus) Closed(shard int, code int) {
	p.closeCounter.WithLabelValues(shardLabel(shard), strconv.Itoa(code)).Inc()
}

func (p *Prometheus) Reconnect(shard int) {
	p.reconnectCounter.WithLabelValues(shardLabel(shard)).Inc()
}

func (p *Prometheus) Latency(shard int, d time.Duration) {
	p.latencyGauge.WithLabelValues(shardLabel(shard)).Set(d.Seconds())
}

func (p *Prometheus) QueueDepth(shard int, n int) {
	p.queueDepthGauge.WithLabelValues(shardLabel(shard)).Set(float64(n))
}

func (p *Prometheus) StatusChanged(shard int, st gateway.Status) {
	p.statusGauge.WithLabelValues(shardLabel(shard)).Set(float64(st))
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
