package gateway

import (
	"fmt"

	"github.com/oxyl/shardgate/pkg/gwlog"
	"go.uber.org/zap"
)

// outboundQueue holds packets sent before the session is ready. Owned by
// the shard goroutine.
type outboundQueue struct {
	packets []Packet
	limit   int // 0 means unbounded
	gwlog.Log
}

func newOutboundQueue(prefix string, limit int) *outboundQueue {
	return &outboundQueue{
		limit: limit,
		Log:   gwlog.NewGWLog(fmt.Sprintf("OutboundQueue[%s]", prefix)),
	}
}

func (q *outboundQueue) push(p Packet) error {
	if q.limit > 0 && len(q.packets) >= q.limit {
		q.Warn("outbound queue full, rejecting packet", zap.Int("limit", q.limit), zap.String("op", p.Op.String()))
		return ErrOutboundQueueFull
	}
	q.packets = append(q.packets, p)
	return nil
}

func (q *outboundQueue) peek() (Packet, bool) {
	if len(q.packets) == 0 {
		return Packet{}, false
	}
	return q.packets[0], true
}

func (q *outboundQueue) pop() (Packet, bool) {
	if len(q.packets) == 0 {
		return Packet{}, false
	}
	p := q.packets[0]
	q.packets[0] = Packet{}
	q.packets = q.packets[1:]
	q.shrink()
	return p, true
}

func (q *outboundQueue) len() int {
	return len(q.packets)
}

func (q *outboundQueue) shrink() {
	const lenMultiple = 2
	if len(q.packets) == 0 {
		q.packets = nil
	} else if len(q.packets)*lenMultiple < cap(q.packets) {
		packets := make([]Packet, len(q.packets))
		copy(packets, q.packets)
		q.packets = packets
	}
}
