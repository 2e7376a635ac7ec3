package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus(t *testing.T) {
	p := NewPrometheus()
	p.PacketIn(3, gateway.OpDispatch)
	p.PacketIn(3, gateway.OpDispatch)
	p.PacketOut(3, gateway.OpHeartbeat)
	p.Closed(3, 4009)
	p.Reconnect(3)
	p.Latency(3, 250*time.Millisecond)
	p.QueueDepth(3, 7)
	p.StatusChanged(3, gateway.StatusReady)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.packetsInCounter.WithLabelValues("3", "Dispatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.packetsOutCounter.WithLabelValues("3", "Heartbeat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.closeCounter.WithLabelValues("3", "4009")))
	assert.Equal(t, 0.25, testutil.ToFloat64(p.latencyGauge.WithLabelValues("3")))
	assert.Equal(t, 7.0, testutil.ToFloat64(p.queueDepthGauge.WithLabelValues("3")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.statusGauge.WithLabelValues("3")))

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `shardgate_shard_reconnects_total{shard="3"} 1`)
}

func TestNewMonitorOff(t *testing.T) {
	m := NewMonitor(false)
	m.PacketIn(0, gateway.OpHello)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
