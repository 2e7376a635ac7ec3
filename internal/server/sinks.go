package server

import (
	"github.com/oxyl/shardgate/internal/adminapi"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/internal/options"
	"github.com/oxyl/shardgate/internal/sink"
	"github.com/oxyl/shardgate/internal/translate"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sinks owns everything downstream of the shards.
type sinks struct {
	gwlog.Log
	messages   sink.MessageSinks
	translator *translate.Translator

	kafka  *sink.KafkaMessageSink
	spool  *sink.DiskQueueMessageSink
	redis  *redis.Client
	cache  *sink.RedisCacheSink
	admin  *adminapi.Client
	closer []func() error
}

func newSinks(opts *options.Options) (*sinks, error) {
	sk := &sinks{Log: gwlog.NewGWLog("Sinks")}
	if opts.KafkaOn() {
		k, err := sink.NewKafkaMessageSink(opts.Kafka.Brokers, opts.Kafka.Topic)
		if err != nil {
			sk.close()
			return nil, err
		}
		sk.kafka = k
		sk.messages = append(sk.messages, k)
		sk.closer = append(sk.closer, k.Close)
	}
	if opts.DiskQueue.On {
		d, err := sink.NewDiskQueueMessageSink(opts.DiskQueue.Name, opts.DiskQueue.Dir)
		if err != nil {
			sk.close()
			return nil, err
		}
		sk.spool = d
		sk.messages = append(sk.messages, d)
		sk.closer = append(sk.closer, d.Close)
	}
	if len(sk.messages) == 0 {
		sk.messages = append(sk.messages, discardMessages{})
	}

	var cache translate.CacheSink = discardUpdates{}
	if opts.RedisOn() {
		sk.redis = redis.NewClient(&redis.Options{
			Addr:     opts.Redis.Addr,
			Password: opts.Redis.Password,
			DB:       opts.Redis.DB,
		})
		sk.cache = sink.NewRedisCacheSink(sk.redis, &sink.RedisCacheOptions{
			Stream:       opts.Redis.Stream,
			MaxLen:       opts.Redis.MaxLen,
			BufferSize:   opts.Redis.BufferSize,
			WriteTimeout: opts.Redis.WriteTimeout,
		})
		cache = sk.cache
		// the stream writer flushes before the client goes away
		sk.closer = append(sk.closer, sk.cache.Close, sk.redis.Close)
	}

	var deleter translate.Deleter = discardDeletes{}
	if opts.AdminAPIOn() {
		a, err := adminapi.New(opts.AdminAPI.URL, opts.AdminAPI.Token, opts.AdminAPI.PoolSize, opts.AdminAPI.Timeout)
		if err != nil {
			sk.close()
			return nil, err
		}
		sk.admin = a
		deleter = a
		sk.closer = append(sk.closer, func() error { return a.Close(opts.AdminAPI.Timeout) })
	}
	sk.translator = translate.New(cache, deleter)
	return sk, nil
}

func (sk *sinks) close() {
	for _, c := range sk.closer {
		if err := c(); err != nil {
			sk.Warn("close sink failed", zap.Error(err))
		}
	}
	sk.closer = nil
}

type discardMessages struct{}

func (discardMessages) PushMessage(shard int, m *gateway.Message) {}

type discardUpdates struct{}

func (discardUpdates) PushUpdate(u *translate.CacheUpdate) {}

type discardDeletes struct{}

func (discardDeletes) DeleteGuild(guildID string)              {}
func (discardDeletes) DeleteChannel(guildID, channelID string) {}
func (discardDeletes) DeleteRole(guildID, roleID string)       {}
func (discardDeletes) DeleteMember(guildID, userID string)     {}
func (discardDeletes) DeleteVoiceState(guildID, userID string) {}
