package sink

import (
	"sync"

	"github.com/IBM/sarama"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// KafkaMessageSink publishes messages to a topic keyed by channel id, so
// one channel's messages stay ordered within a partition.
type KafkaMessageSink struct {
	gwlog.Log
	producer sarama.AsyncProducer
	topic    string
	wg       sync.WaitGroup

	Dropped atomic.Uint64
	Failed  atomic.Uint64
}

func NewKafkaMessageSink(brokers []string, topic string) (*KafkaMessageSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Errors = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return newKafkaMessageSink(producer, topic), nil
}

func newKafkaMessageSink(producer sarama.AsyncProducer, topic string) *KafkaMessageSink {
	k := &KafkaMessageSink{
		Log:      gwlog.NewGWLog("KafkaMessageSink"),
		producer: producer,
		topic:    topic,
	}
	k.wg.Add(1)
	go k.loopErrors()
	return k
}

func (k *KafkaMessageSink) loopErrors() {
	defer k.wg.Done()
	for err := range k.producer.Errors() {
		k.Failed.Inc()
		k.Warn("produce message failed", zap.String("topic", k.topic), zap.Error(err.Err))
	}
}

// PushMessage implements gateway.MessageSink. A full producer buffer drops
// the message.
func (k *KafkaMessageSink) PushMessage(shard int, m *gateway.Message) {
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(m.ChannelID),
		Value: sarama.ByteEncoder(EncodeMessage(FromGateway(m))),
	}
	select {
	case k.producer.Input() <- msg:
	default:
		k.Dropped.Inc()
		k.Warn("kafka producer busy, dropping message", zap.String("id", m.ID), zap.Int("shard", shard))
	}
}

func (k *KafkaMessageSink) Close() error {
	err := k.producer.Close()
	k.wg.Wait()
	return err
}
