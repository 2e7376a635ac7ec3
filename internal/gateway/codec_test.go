package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecFor(t *testing.T) {
	c, ok := codecFor("etf")
	require.True(t, ok)
	assert.True(t, c.Binary())
	assert.Equal(t, "etf", c.Name())

	c, ok = codecFor("json")
	require.True(t, ok)
	assert.False(t, c.Binary())

	_, ok = codecFor("msgpack")
	assert.False(t, ok)
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Encode(Packet{Op: OpHeartbeat, D: int64(7)}.wire())
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":1,"d":7}`, string(data))

	v, err := c.Decode([]byte(`{"op":10,"d":{"heartbeat_interval":41250}}`))
	require.NoError(t, err)
	p, err := packetFromValue(v)
	require.NoError(t, err)
	assert.Equal(t, OpHello, p.Op)

	var h Hello
	require.NoError(t, decodePayload(p.D, &h))
	assert.Equal(t, int64(41250), h.HeartbeatInterval)
}

func TestGatewayURL(t *testing.T) {
	u, err := gatewayURL("wss://gateway.discord.gg", 10, "etf")
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg?compress=zlib-stream&encoding=etf&v=10", u)
}
