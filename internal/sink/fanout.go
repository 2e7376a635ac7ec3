package sink

import "github.com/oxyl/shardgate/internal/gateway"

// MessageSinks hands every message to each sink in order.
type MessageSinks []gateway.MessageSink

func (ms MessageSinks) PushMessage(shard int, m *gateway.Message) {
	for _, s := range ms {
		s.PushMessage(shard, m)
	}
}
