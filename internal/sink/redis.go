package sink

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oxyl/shardgate/internal/translate"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// streamAdder is the part of a redis client the cache sink needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type RedisCacheOptions struct {
	Stream       string
	MaxLen       int64 // approximate stream cap, 0 for none
	BufferSize   int
	WriteTimeout time.Duration
}

func NewRedisCacheOptions() *RedisCacheOptions {
	return &RedisCacheOptions{
		Stream:       "shardgate:cache",
		MaxLen:       100000,
		BufferSize:   4096,
		WriteTimeout: 2 * time.Second,
	}
}

// RedisCacheSink appends cache updates to a Redis stream from a single
// writer goroutine. Updates arriving while the buffer is full are dropped.
type RedisCacheSink struct {
	gwlog.Log
	client  streamAdder
	opts    *RedisCacheOptions
	updates chan *translate.CacheUpdate
	stopped chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	Dropped atomic.Uint64
	Failed  atomic.Uint64
	Written atomic.Uint64
}

func NewRedisCacheSink(client *redis.Client, opts *RedisCacheOptions) *RedisCacheSink {
	return newRedisCacheSink(client, opts)
}

func newRedisCacheSink(client streamAdder, opts *RedisCacheOptions) *RedisCacheSink {
	if opts == nil {
		opts = NewRedisCacheOptions()
	}
	r := &RedisCacheSink{
		Log:     gwlog.NewGWLog("RedisCacheSink"),
		client:  client,
		opts:    opts,
		updates: make(chan *translate.CacheUpdate, opts.BufferSize),
		stopped: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// PushUpdate implements translate.CacheSink.
func (r *RedisCacheSink) PushUpdate(u *translate.CacheUpdate) {
	select {
	case <-r.stopped:
		return
	default:
	}
	select {
	case r.updates <- u:
	default:
		r.Dropped.Inc()
		r.Warn("cache buffer full, dropping update", zap.String("entityType", u.EntityType))
	}
}

func (r *RedisCacheSink) loop() {
	defer r.wg.Done()
	for {
		select {
		case u := <-r.updates:
			r.write(u)
		case <-r.stopped:
			for {
				select {
				case u := <-r.updates:
					r.write(u)
				default:
					return
				}
			}
		}
	}
}

func (r *RedisCacheSink) write(u *translate.CacheUpdate) {
	payload, err := json.Marshal(u.EntityPayload)
	if err != nil {
		r.Failed.Inc()
		r.Warn("marshal cache update failed", zap.String("entityType", u.EntityType), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
	defer cancel()
	args := &redis.XAddArgs{
		Stream: r.opts.Stream,
		Values: map[string]interface{}{
			"entityType":    u.EntityType,
			"entityPayload": payload,
		},
	}
	if r.opts.MaxLen > 0 {
		args.MaxLen = r.opts.MaxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		r.Failed.Inc()
		r.Warn("write cache update failed", zap.String("entityType", u.EntityType), zap.Error(err))
		return
	}
	r.Written.Inc()
}

// Close flushes buffered updates and stops the writer.
func (r *RedisCacheSink) Close() error {
	r.once.Do(func() {
		close(r.stopped)
	})
	r.wg.Wait()
	return nil
}
