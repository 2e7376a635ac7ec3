package gateway

import (
	"time"
)

// Intents used when none are configured: guilds, members, voice states,
// guild messages and message content.
const DefaultIntents = 1<<0 | 1<<1 | 1<<7 | 1<<9 | 1<<15

type Presence struct {
	Status       string
	ActivityName string
	ActivityType int
}

type Options struct {
	Token      string
	GatewayURL string
	Version    int
	Encoding   string // etf or json
	Intents    int

	LargeThreshold int
	Browser        string
	Device         string
	Presence       Presence

	// SettleDelay is the wait between a reset and the next dial.
	SettleDelay time.Duration
	// DrainInterval paces packets leaving the outbound queue.
	DrainInterval      time.Duration
	OutboundQueueLimit int // 0 means unbounded
	// MaxMissedAcks is the number of unacknowledged heartbeats after which
	// the connection is considered stale. 0 disables the check.
	MaxMissedAcks        int
	MemberQueryLimit     int
	MemberRequestTimeout time.Duration
	DialTimeout          time.Duration
	WriteBufferSize      int // frames waiting for the writer goroutine
	ChunkSize            int // inflate output buffer

	Clock       Clock
	Dialer      Dialer
	Monitor     Monitor
	MessageSink MessageSink
	EntitySink  EntitySink
}

func NewOptions() *Options {
	return &Options{
		GatewayURL:           "wss://gateway.discord.gg",
		Version:              10,
		Encoding:             "etf",
		Intents:              DefaultIntents,
		LargeThreshold:       250,
		Browser:              "shardgate",
		Device:               "shardgate",
		Presence:             Presence{Status: "online"},
		SettleDelay:          5 * time.Second,
		DrainInterval:        500 * time.Millisecond,
		OutboundQueueLimit:   4096,
		MaxMissedAcks:        2,
		MemberQueryLimit:     10,
		MemberRequestTimeout: 30 * time.Second,
		DialTimeout:          10 * time.Second,
		WriteBufferSize:      256,
		ChunkSize:            128 * 1024,
		Clock:                SystemClock(),
		Dialer:               &WSDialer{},
		Monitor:              &emptyMonitor{},
	}
}

type Option func(*Options)

func WithToken(token string) Option {
	return func(o *Options) {
		o.Token = token
	}
}

func WithGatewayURL(u string) Option {
	return func(o *Options) {
		o.GatewayURL = u
	}
}

func WithVersion(v int) Option {
	return func(o *Options) {
		o.Version = v
	}
}

func WithEncoding(encoding string) Option {
	return func(o *Options) {
		o.Encoding = encoding
	}
}

func WithIntents(intents int) Option {
	return func(o *Options) {
		o.Intents = intents
	}
}

func WithLargeThreshold(n int) Option {
	return func(o *Options) {
		o.LargeThreshold = n
	}
}

// WithIdentity sets the browser and device names sent in Identify.
func WithIdentity(browser, device string) Option {
	return func(o *Options) {
		o.Browser = browser
		o.Device = device
	}
}

func WithPresence(p Presence) Option {
	return func(o *Options) {
		o.Presence = p
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(o *Options) {
		o.SettleDelay = d
	}
}

func WithDrainInterval(d time.Duration) Option {
	return func(o *Options) {
		o.DrainInterval = d
	}
}

func WithOutboundQueueLimit(n int) Option {
	return func(o *Options) {
		o.OutboundQueueLimit = n
	}
}

func WithMaxMissedAcks(n int) Option {
	return func(o *Options) {
		o.MaxMissedAcks = n
	}
}

func WithMemberQueryLimit(n int) Option {
	return func(o *Options) {
		o.MemberQueryLimit = n
	}
}

func WithMemberRequestTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.MemberRequestTimeout = d
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.DialTimeout = d
	}
}

func WithWriteBufferSize(n int) Option {
	return func(o *Options) {
		o.WriteBufferSize = n
	}
}

func WithChunkSize(n int) Option {
	return func(o *Options) {
		o.ChunkSize = n
	}
}

func WithClock(c Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithDialer(d Dialer) Option {
	return func(o *Options) {
		o.Dialer = d
	}
}

func WithMonitor(m Monitor) Option {
	return func(o *Options) {
		o.Monitor = m
	}
}

func WithMessageSink(s MessageSink) Option {
	return func(o *Options) {
		o.MessageSink = s
	}
}

func WithEntitySink(s EntitySink) Option {
	return func(o *Options) {
		o.EntitySink = s
	}
}
