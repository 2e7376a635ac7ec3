package options

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Mode string

const (
	DebugMode   Mode = "debug"
	ReleaseMode Mode = "release"
)

type Options struct {
	vp      *viper.Viper
	Mode    Mode
	RootDir string

	DeadlockCheck bool // go-deadlock detection on shard locks

	Logger struct {
		Dir     string
		Level   zapcore.Level
		LineNum bool
	}

	Gateway struct {
		Token          string
		URL            string
		Version        int
		Encoding       string
		Intents        int
		LargeThreshold int
		Browser        string
		Device         string
		Presence       struct {
			Status       string
			ActivityName string
			ActivityType int
		}
		SettleDelay          time.Duration
		DrainInterval        time.Duration
		OutboundQueueLimit   int
		MaxMissedAcks        int
		MemberQueryLimit     int
		MemberRequestTimeout time.Duration
		DialTimeout          time.Duration
		WriteBufferSize      int
		ChunkSize            int
	}

	Shard struct {
		Count      int   // total shards of the bot
		IDs        []int // shards run by this process, all when empty
		StartDelay time.Duration
	}

	// Orchestrator hands out shard assignments. Shard.Count and Shard.IDs
	// are ignored when it is set.
	Orchestrator struct {
		URL      string
		Hostname string
	}

	API struct {
		On              bool
		Addr            string
		Token           string
		Pprof           bool
		MemberCacheSize int
		MemberCacheTTL  time.Duration
		RequestTimeout  time.Duration
	}

	Metrics struct {
		On bool
	}

	Kafka struct {
		Brokers []string
		Topic   string
	}

	DiskQueue struct {
		On   bool
		Name string
		Dir  string
	}

	Redis struct {
		Addr         string
		Password     string
		DB           int
		Stream       string
		MaxLen       int64
		BufferSize   int
		WriteTimeout time.Duration
	}

	AdminAPI struct {
		URL      string
		Token    string
		PoolSize int
		Timeout  time.Duration
	}

	TimingWheel struct {
		Tick time.Duration
		Size int64
	}
}

func New() *Options {
	gw := gateway.NewOptions()
	o := &Options{
		Mode:    ReleaseMode,
		RootDir: defaultRootDir(),
	}
	o.Logger.Level = zapcore.InfoLevel
	o.Logger.Dir = "logs"

	o.Gateway.URL = gw.GatewayURL
	o.Gateway.Version = gw.Version
	o.Gateway.Encoding = gw.Encoding
	o.Gateway.Intents = gw.Intents
	o.Gateway.LargeThreshold = gw.LargeThreshold
	o.Gateway.Browser = gw.Browser
	o.Gateway.Device = gw.Device
	o.Gateway.Presence.Status = gw.Presence.Status
	o.Gateway.SettleDelay = gw.SettleDelay
	o.Gateway.DrainInterval = gw.DrainInterval
	o.Gateway.OutboundQueueLimit = gw.OutboundQueueLimit
	o.Gateway.MaxMissedAcks = gw.MaxMissedAcks
	o.Gateway.MemberQueryLimit = gw.MemberQueryLimit
	o.Gateway.MemberRequestTimeout = gw.MemberRequestTimeout
	o.Gateway.DialTimeout = gw.DialTimeout
	o.Gateway.WriteBufferSize = gw.WriteBufferSize
	o.Gateway.ChunkSize = gw.ChunkSize

	o.Shard.Count = 1
	o.Shard.StartDelay = 5500 * time.Millisecond

	o.API.On = true
	o.API.Addr = "0.0.0.0:5080"
	o.API.MemberCacheSize = 1024
	o.API.MemberCacheTTL = 10 * time.Second
	o.API.RequestTimeout = 15 * time.Second

	o.Metrics.On = true

	o.Kafka.Topic = "shardgate.messages"
	o.DiskQueue.Name = "messages"

	redisOpts := defaultRedis()
	o.Redis.Stream = redisOpts.stream
	o.Redis.MaxLen = redisOpts.maxLen
	o.Redis.BufferSize = redisOpts.bufferSize
	o.Redis.WriteTimeout = redisOpts.writeTimeout

	o.AdminAPI.PoolSize = 16
	o.AdminAPI.Timeout = 10 * time.Second

	o.TimingWheel.Tick = 10 * time.Millisecond
	o.TimingWheel.Size = 100
	return o
}

func defaultRootDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "shardgate"
	}
	return filepath.Join(home, "shardgate")
}

type redisDefaults struct {
	stream       string
	maxLen       int64
	bufferSize   int
	writeTimeout time.Duration
}

func defaultRedis() redisDefaults {
	return redisDefaults{
		stream:       "shardgate:cache",
		maxLen:       100000,
		bufferSize:   4096,
		writeTimeout: 2 * time.Second,
	}
}

// ConfigureWithViper loads every option from vp, keeping defaults for
// unset keys.
func (o *Options) ConfigureWithViper(vp *viper.Viper) {
	o.vp = vp

	o.RootDir = o.getString("rootDir", o.RootDir)
	modeStr := o.getString("mode", string(o.Mode))
	if strings.TrimSpace(modeStr) == "" {
		o.Mode = ReleaseMode
	} else {
		o.Mode = Mode(modeStr)
	}
	o.DeadlockCheck = o.getBool("deadlockCheck", o.DeadlockCheck)
	deadlock.Opts.Disable = !o.DeadlockCheck

	o.Gateway.Token = o.getString("gateway.token", o.Gateway.Token)
	o.Gateway.URL = o.getString("gateway.url", o.Gateway.URL)
	o.Gateway.Version = o.getInt("gateway.version", o.Gateway.Version)
	o.Gateway.Encoding = o.getString("gateway.encoding", o.Gateway.Encoding)
	o.Gateway.Intents = o.getInt("gateway.intents", o.Gateway.Intents)
	o.Gateway.LargeThreshold = o.getInt("gateway.largeThreshold", o.Gateway.LargeThreshold)
	o.Gateway.Browser = o.getString("gateway.browser", o.Gateway.Browser)
	o.Gateway.Device = o.getString("gateway.device", o.Gateway.Device)
	o.Gateway.Presence.Status = o.getString("gateway.presence.status", o.Gateway.Presence.Status)
	o.Gateway.Presence.ActivityName = o.getString("gateway.presence.activityName", o.Gateway.Presence.ActivityName)
	o.Gateway.Presence.ActivityType = o.getInt("gateway.presence.activityType", o.Gateway.Presence.ActivityType)
	o.Gateway.SettleDelay = o.getDuration("gateway.settleDelay", o.Gateway.SettleDelay)
	o.Gateway.DrainInterval = o.getDuration("gateway.drainInterval", o.Gateway.DrainInterval)
	o.Gateway.OutboundQueueLimit = o.getInt("gateway.outboundQueueLimit", o.Gateway.OutboundQueueLimit)
	o.Gateway.MaxMissedAcks = o.getInt("gateway.maxMissedAcks", o.Gateway.MaxMissedAcks)
	o.Gateway.MemberQueryLimit = o.getInt("gateway.memberQueryLimit", o.Gateway.MemberQueryLimit)
	o.Gateway.MemberRequestTimeout = o.getDuration("gateway.memberRequestTimeout", o.Gateway.MemberRequestTimeout)
	o.Gateway.DialTimeout = o.getDuration("gateway.dialTimeout", o.Gateway.DialTimeout)
	o.Gateway.WriteBufferSize = o.getInt("gateway.writeBufferSize", o.Gateway.WriteBufferSize)
	o.Gateway.ChunkSize = o.getInt("gateway.chunkSize", o.Gateway.ChunkSize)

	o.Shard.Count = o.getInt("shard.count", o.Shard.Count)
	o.Shard.IDs = o.getIntSlice("shard.ids", o.Shard.IDs)
	o.Shard.StartDelay = o.getDuration("shard.startDelay", o.Shard.StartDelay)

	o.Orchestrator.URL = o.getString("orchestrator.url", o.Orchestrator.URL)
	o.Orchestrator.Hostname = o.getString("orchestrator.hostname", o.Orchestrator.Hostname)
	if o.Orchestrator.URL != "" && o.Orchestrator.Hostname == "" {
		o.Orchestrator.Hostname, _ = os.Hostname()
	}

	o.API.On = o.getBool("api.on", o.API.On)
	o.API.Addr = o.getString("api.addr", o.API.Addr)
	o.API.Token = o.getString("api.token", o.API.Token)
	o.API.Pprof = o.getBool("api.pprof", o.API.Pprof)
	o.API.MemberCacheSize = o.getInt("api.memberCacheSize", o.API.MemberCacheSize)
	o.API.MemberCacheTTL = o.getDuration("api.memberCacheTTL", o.API.MemberCacheTTL)
	o.API.RequestTimeout = o.getDuration("api.requestTimeout", o.API.RequestTimeout)

	o.Metrics.On = o.getBool("metrics.on", o.Metrics.On)

	o.Kafka.Brokers = o.getStringSlice("kafka.brokers", o.Kafka.Brokers)
	o.Kafka.Topic = o.getString("kafka.topic", o.Kafka.Topic)

	o.DiskQueue.On = o.getBool("diskQueue.on", o.DiskQueue.On)
	o.DiskQueue.Name = o.getString("diskQueue.name", o.DiskQueue.Name)
	o.DiskQueue.Dir = o.getString("diskQueue.dir", filepath.Join(o.RootDir, "spool"))

	o.Redis.Addr = o.getString("redis.addr", o.Redis.Addr)
	o.Redis.Password = o.getString("redis.password", o.Redis.Password)
	o.Redis.DB = o.getInt("redis.db", o.Redis.DB)
	o.Redis.Stream = o.getString("redis.stream", o.Redis.Stream)
	o.Redis.MaxLen = o.getInt64("redis.maxLen", o.Redis.MaxLen)
	o.Redis.BufferSize = o.getInt("redis.bufferSize", o.Redis.BufferSize)
	o.Redis.WriteTimeout = o.getDuration("redis.writeTimeout", o.Redis.WriteTimeout)

	o.AdminAPI.URL = o.getString("adminAPI.url", o.AdminAPI.URL)
	o.AdminAPI.Token = o.getString("adminAPI.token", o.AdminAPI.Token)
	o.AdminAPI.PoolSize = o.getInt("adminAPI.poolSize", o.AdminAPI.PoolSize)
	o.AdminAPI.Timeout = o.getDuration("adminAPI.timeout", o.AdminAPI.Timeout)

	o.TimingWheel.Tick = o.getDuration("timingWheel.tick", o.TimingWheel.Tick)
	o.TimingWheel.Size = o.getInt64("timingWheel.size", o.TimingWheel.Size)

	o.configureLog()
}

func (o *Options) configureLog() {
	logLevel := o.getInt("logger.level", 0)
	if logLevel == 0 {
		if o.Mode == DebugMode {
			logLevel = int(zapcore.DebugLevel)
		} else {
			logLevel = int(zapcore.InfoLevel)
		}
	} else {
		// 1 debug, 2 info, 3 warn, 4 error
		logLevel = logLevel - 2
	}
	o.Logger.Level = zapcore.Level(logLevel)
	o.Logger.Dir = o.getString("logger.dir", o.Logger.Dir)
	if !filepath.IsAbs(o.Logger.Dir) {
		o.Logger.Dir = filepath.Join(o.RootDir, o.Logger.Dir)
	}
	o.Logger.LineNum = o.getBool("logger.lineNum", o.Logger.LineNum)
}

// Check reports the first invalid setting.
func (o *Options) Check() error {
	if strings.TrimSpace(o.Gateway.Token) == "" {
		return errors.New("gateway.token must be set")
	}
	if o.Gateway.Encoding != "etf" && o.Gateway.Encoding != "json" {
		return errors.Errorf("gateway.encoding must be etf or json, got %q", o.Gateway.Encoding)
	}
	if o.OrchestratorOn() {
		return nil
	}
	if o.Shard.Count <= 0 {
		return errors.New("shard.count must be positive")
	}
	for _, id := range o.Shard.IDs {
		if id < 0 || id >= o.Shard.Count {
			return errors.Errorf("shard id %d out of range [0,%d)", id, o.Shard.Count)
		}
	}
	return nil
}

func (o *Options) OrchestratorOn() bool {
	return strings.TrimSpace(o.Orchestrator.URL) != ""
}

func (o *Options) KafkaOn() bool {
	return len(o.Kafka.Brokers) > 0
}

func (o *Options) RedisOn() bool {
	return strings.TrimSpace(o.Redis.Addr) != ""
}

func (o *Options) AdminAPIOn() bool {
	return strings.TrimSpace(o.AdminAPI.URL) != ""
}

// LocalShards returns the shard ids this process runs when no orchestrator
// is configured.
func (o *Options) LocalShards() []int {
	if len(o.Shard.IDs) > 0 {
		return o.Shard.IDs
	}
	ids := make([]int, o.Shard.Count)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// GatewayOptions builds the per-shard options. The caller appends the
// clock, dialer and sinks.
func (o *Options) GatewayOptions() []gateway.Option {
	return []gateway.Option{
		gateway.WithToken(o.Gateway.Token),
		gateway.WithGatewayURL(o.Gateway.URL),
		gateway.WithVersion(o.Gateway.Version),
		gateway.WithEncoding(o.Gateway.Encoding),
		gateway.WithIntents(o.Gateway.Intents),
		gateway.WithLargeThreshold(o.Gateway.LargeThreshold),
		gateway.WithIdentity(o.Gateway.Browser, o.Gateway.Device),
		gateway.WithPresence(gateway.Presence{
			Status:       o.Gateway.Presence.Status,
			ActivityName: o.Gateway.Presence.ActivityName,
			ActivityType: o.Gateway.Presence.ActivityType,
		}),
		gateway.WithSettleDelay(o.Gateway.SettleDelay),
		gateway.WithDrainInterval(o.Gateway.DrainInterval),
		gateway.WithOutboundQueueLimit(o.Gateway.OutboundQueueLimit),
		gateway.WithMaxMissedAcks(o.Gateway.MaxMissedAcks),
		gateway.WithMemberQueryLimit(o.Gateway.MemberQueryLimit),
		gateway.WithMemberRequestTimeout(o.Gateway.MemberRequestTimeout),
		gateway.WithDialTimeout(o.Gateway.DialTimeout),
		gateway.WithWriteBufferSize(o.Gateway.WriteBufferSize),
		gateway.WithChunkSize(o.Gateway.ChunkSize),
	}
}

func (o *Options) ConfigFileUsed() string {
	if o.vp == nil {
		return ""
	}
	return o.vp.ConfigFileUsed()
}

func (o *Options) getString(key string, defaultValue string) string {
	v := o.vp.GetString(key)
	if v == "" {
		return defaultValue
	}
	return v
}

// getInt honours an explicit zero, which several limits use to mean
// "disabled".
func (o *Options) getInt(key string, defaultValue int) int {
	if !o.vp.IsSet(key) {
		return defaultValue
	}
	return cast.ToInt(o.vp.Get(key))
}

func (o *Options) getInt64(key string, defaultValue int64) int64 {
	if !o.vp.IsSet(key) {
		return defaultValue
	}
	return cast.ToInt64(o.vp.Get(key))
}

func (o *Options) getBool(key string, defaultValue bool) bool {
	objV := o.vp.Get(key)
	if objV == nil {
		return defaultValue
	}
	return cast.ToBool(objV)
}

func (o *Options) getDuration(key string, defaultValue time.Duration) time.Duration {
	v := o.vp.GetDuration(key)
	if v == 0 {
		return defaultValue
	}
	return v
}

// getStringSlice also accepts a comma separated string, the form
// environment variables arrive in.
func (o *Options) getStringSlice(key string, defaultValue []string) []string {
	objV := o.vp.Get(key)
	if objV == nil {
		return defaultValue
	}
	if s, ok := objV.(string); ok {
		return splitList(s)
	}
	return cast.ToStringSlice(objV)
}

func (o *Options) getIntSlice(key string, defaultValue []int) []int {
	objV := o.vp.Get(key)
	if objV == nil {
		return defaultValue
	}
	if s, ok := objV.(string); ok {
		return cast.ToIntSlice(splitList(s))
	}
	return cast.ToIntSlice(objV)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
