package gateway

import (
	"fmt"
)

// Packet is the gateway envelope. S and T are only set on dispatches.
type Packet struct {
	Op Opcode
	D  any
	S  *int64
	T  string
}

func (p Packet) wire() map[string]any {
	return map[string]any{
		"op": int64(p.Op),
		"d":  p.D,
	}
}

func packetFromValue(v any) (Packet, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Packet{}, fmt.Errorf("gateway: packet is %T, not a map", v)
	}
	op, ok := toInt64(m["op"])
	if !ok {
		return Packet{}, fmt.Errorf("gateway: packet has no opcode")
	}
	p := Packet{Op: Opcode(op), D: m["d"]}
	if s, ok := toInt64(m["s"]); ok {
		p.S = &s
	}
	if t, ok := m["t"].(string); ok {
		p.T = t
	}
	return p, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
