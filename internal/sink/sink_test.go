package sink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/internal/translate"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func testMessage() *gateway.Message {
	return &gateway.Message{
		ID:        "500",
		ChannelID: "600",
		GuildID:   "42",
		Author:    gateway.User{ID: "700"},
		Content:   "o!help",
	}
}

func TestEncodeMessage(t *testing.T) {
	m := FromGateway(testMessage())
	data := EncodeMessage(m)

	num, typ, n := protowire.ConsumeTag(data)
	require.Greater(t, n, 0)
	assert.Equal(t, protowire.Number(1), num)
	assert.Equal(t, protowire.BytesType, typ)

	got, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeMessageOmitsEmpty(t *testing.T) {
	m := &Message{ID: "1", Content: "dm"}
	got, err := DecodeMessage(EncodeMessage(m))
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = DecodeMessage([]byte{0x0a, 0x05, 'a'})
	assert.Error(t, err)
}

func TestKafkaMessageSink(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewAsyncProducer(t, cfg)
	producer.ExpectInputAndSucceed()

	k := newKafkaMessageSink(producer, "messages")
	k.PushMessage(0, testMessage())

	select {
	case msg := <-producer.Successes():
		assert.Equal(t, "messages", msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "600", string(key))
		value, err := msg.Value.Encode()
		require.NoError(t, err)
		got, err := DecodeMessage(value)
		require.NoError(t, err)
		assert.Equal(t, "o!help", got.Content)
	case <-time.After(time.Second):
		t.Fatal("message not produced")
	}
	require.NoError(t, k.Close())
}

func TestKafkaMessageSinkCountsErrors(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	k := newKafkaMessageSink(producer, "messages")
	k.PushMessage(0, testMessage())
	require.Eventually(t, func() bool { return k.Failed.Load() == 1 }, time.Second, 5*time.Millisecond)
	_ = k.Close()
}

func TestDiskQueueMessageSink(t *testing.T) {
	d, err := NewDiskQueueMessageSink("messages", t.TempDir())
	require.NoError(t, err)
	defer d.Close()

	d.PushMessage(0, testMessage())
	second := testMessage()
	second.ID = "501"
	d.PushMessage(0, second)

	for _, id := range []string{"500", "501"} {
		select {
		case data := <-d.ReadChan():
			m, err := DecodeMessage(data)
			require.NoError(t, err)
			assert.Equal(t, id, m.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("nothing spooled")
		}
	}
}

type fakeStream struct {
	mu   sync.Mutex
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func (f *fakeStream) calls() []*redis.XAddArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*redis.XAddArgs(nil), f.args...)
}

func TestRedisCacheSink(t *testing.T) {
	stream := &fakeStream{}
	r := newRedisCacheSink(stream, nil)
	r.PushUpdate(&translate.CacheUpdate{
		EntityType:    translate.EntityRole,
		EntityPayload: translate.Role{ID: "800", GuildID: "42", Name: "mods"},
	})
	require.NoError(t, r.Close())

	calls := stream.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "shardgate:cache", calls[0].Stream)
	assert.True(t, calls[0].Approx)
	values := calls[0].Values.(map[string]interface{})
	assert.Equal(t, "role", values["entityType"])

	var role map[string]any
	require.NoError(t, json.Unmarshal(values["entityPayload"].([]byte), &role))
	assert.Equal(t, "42", role["guildId"])
	assert.Equal(t, uint64(1), r.Written.Load())

	r.PushUpdate(&translate.CacheUpdate{EntityType: translate.EntityUser})
	assert.Len(t, stream.calls(), 1)
}

func TestRedisCacheSinkDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	stream := &blockingStream{block: block}
	opts := NewRedisCacheOptions()
	opts.BufferSize = 1
	r := newRedisCacheSink(stream, opts)

	// the writer holds the first update, the buffer takes the second
	r.PushUpdate(&translate.CacheUpdate{EntityType: translate.EntityUser})
	require.Eventually(t, func() bool { return len(r.updates) == 0 }, time.Second, time.Millisecond)
	r.PushUpdate(&translate.CacheUpdate{EntityType: translate.EntityUser})
	r.PushUpdate(&translate.CacheUpdate{EntityType: translate.EntityUser})
	assert.Equal(t, uint64(1), r.Dropped.Load())

	close(block)
	require.NoError(t, r.Close())
	assert.Equal(t, uint64(2), r.Written.Load())
}

type blockingStream struct {
	block chan struct{}
}

func (b *blockingStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	<-b.block
	return redis.NewStringResult("1-0", nil)
}

type recordingSink struct {
	ids []string
}

func (r *recordingSink) PushMessage(shard int, m *gateway.Message) {
	r.ids = append(r.ids, m.ID)
}

func TestMessageSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	ms := MessageSinks{a, b}
	ms.PushMessage(0, &gateway.Message{ID: "1"})
	ms.PushMessage(0, &gateway.Message{ID: "2"})
	assert.Equal(t, []string{"1", "2"}, a.ids)
	assert.Equal(t, []string{"1", "2"}, b.ids)
}
