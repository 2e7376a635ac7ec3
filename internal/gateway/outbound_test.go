package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundQueue(t *testing.T) {
	q := newOutboundQueue("test", 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.push(Packet{Op: OpPresenceUpdate, D: i}))
	}
	assert.Equal(t, 100, q.len())

	for i := 0; i < 100; i++ {
		p, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, i, p.D)
	}
	_, ok := q.pop()
	assert.False(t, ok)
	assert.Nil(t, q.packets)
}

func TestOutboundQueueShrinks(t *testing.T) {
	q := newOutboundQueue("test", 0)
	for i := 0; i < 64; i++ {
		require.NoError(t, q.push(Packet{D: i}))
	}
	for i := 0; i < 60; i++ {
		q.pop()
	}
	assert.LessOrEqual(t, cap(q.packets), 2*q.len())
}

func TestOutboundQueueLimitRejects(t *testing.T) {
	q := newOutboundQueue("test", 2)
	require.NoError(t, q.push(Packet{D: 1}))
	require.NoError(t, q.push(Packet{D: 2}))
	assert.ErrorIs(t, q.push(Packet{D: 3}), ErrOutboundQueueFull)

	p, _ := q.pop()
	assert.Equal(t, 1, p.D)
	require.NoError(t, q.push(Packet{D: 3}))
}

func TestOutboundQueuePeekKeepsHead(t *testing.T) {
	q := newOutboundQueue("test", 0)
	_, ok := q.peek()
	assert.False(t, ok)

	require.NoError(t, q.push(Packet{D: 1}))
	require.NoError(t, q.push(Packet{D: 2}))
	p, ok := q.peek()
	require.True(t, ok)
	assert.Equal(t, 1, p.D)
	assert.Equal(t, 2, q.len())

	p, _ = q.pop()
	assert.Equal(t, 1, p.D)
}
