package options

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaults(t *testing.T) {
	o := New()
	o.ConfigureWithViper(viper.New())

	assert.Equal(t, "wss://gateway.discord.gg", o.Gateway.URL)
	assert.Equal(t, "etf", o.Gateway.Encoding)
	assert.Equal(t, 5*time.Second, o.Gateway.SettleDelay)
	assert.Equal(t, 500*time.Millisecond, o.Gateway.DrainInterval)
	assert.Equal(t, 4096, o.Gateway.OutboundQueueLimit)
	assert.Equal(t, 2, o.Gateway.MaxMissedAcks)
	assert.Equal(t, 10, o.Gateway.MemberQueryLimit)
	assert.Equal(t, 30*time.Second, o.Gateway.MemberRequestTimeout)
	assert.Equal(t, 5500*time.Millisecond, o.Shard.StartDelay)
	assert.Equal(t, []int{0}, o.LocalShards())
	assert.Equal(t, zapcore.InfoLevel, o.Logger.Level)
	assert.True(t, o.API.On)
	assert.False(t, o.KafkaOn())
	assert.False(t, o.RedisOn())
	assert.False(t, o.AdminAPIOn())

	assert.EqualError(t, o.Check(), "gateway.token must be set")
}

func TestConfigureWithViper(t *testing.T) {
	vp := viper.New()
	vp.Set("mode", "debug")
	vp.Set("gateway.token", "secret")
	vp.Set("gateway.encoding", "json")
	vp.Set("gateway.outboundQueueLimit", 0)
	vp.Set("gateway.maxMissedAcks", 0)
	vp.Set("gateway.settleDelay", "1s")
	vp.Set("shard.count", 4)
	vp.Set("shard.ids", []int{1, 3})
	vp.Set("kafka.brokers", []string{"k1:9092", "k2:9092"})
	vp.Set("api.on", "false")
	vp.Set("logger.dir", "/var/log/shardgate")

	o := New()
	o.ConfigureWithViper(vp)

	assert.Equal(t, DebugMode, o.Mode)
	assert.Equal(t, zapcore.DebugLevel, o.Logger.Level)
	assert.Equal(t, "/var/log/shardgate", o.Logger.Dir)
	assert.Equal(t, "json", o.Gateway.Encoding)
	assert.Equal(t, 0, o.Gateway.OutboundQueueLimit)
	assert.Equal(t, 0, o.Gateway.MaxMissedAcks)
	assert.Equal(t, time.Second, o.Gateway.SettleDelay)
	assert.Equal(t, []int{1, 3}, o.LocalShards())
	assert.True(t, o.KafkaOn())
	assert.False(t, o.API.On)
	require.NoError(t, o.Check())
	assert.Len(t, o.GatewayOptions(), 17)
}

func TestEnv(t *testing.T) {
	t.Setenv("GW_GATEWAY_TOKEN", "from-env")
	t.Setenv("GW_SHARD_COUNT", "8")
	t.Setenv("GW_SHARD_IDS", "0, 5")
	t.Setenv("GW_KAFKA_BROKERS", "a:1,b:2")

	vp := viper.New()
	vp.SetEnvPrefix("GW")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	o := New()
	o.ConfigureWithViper(vp)
	assert.Equal(t, "from-env", o.Gateway.Token)
	assert.Equal(t, 8, o.Shard.Count)
	assert.Equal(t, []int{0, 5}, o.Shard.IDs)
	assert.Equal(t, []string{"a:1", "b:2"}, o.Kafka.Brokers)
	require.NoError(t, o.Check())
}

func TestCheck(t *testing.T) {
	o := New()
	o.Gateway.Token = "t"
	o.Gateway.Encoding = "xml"
	assert.Error(t, o.Check())

	o.Gateway.Encoding = "etf"
	o.Shard.Count = 2
	o.Shard.IDs = []int{2}
	assert.EqualError(t, o.Check(), "shard id 2 out of range [0,2)")

	o.Orchestrator.URL = "http://orchestrator"
	assert.NoError(t, o.Check())
	assert.True(t, o.OrchestratorOn())
}
