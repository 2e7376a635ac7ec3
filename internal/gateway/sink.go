package gateway

// MessageSink receives every MESSAGE_CREATE. Implementations must not block.
type MessageSink interface {
	PushMessage(shard int, m *Message)
}

// EntitySink receives entity-change dispatches for normalization.
// Implementations must not block.
type EntitySink interface {
	PushEvent(shard int, ev Event)
}
