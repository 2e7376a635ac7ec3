package wait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTrigger(t *testing.T) {
	w := New[int]()
	ch, err := w.Register("a")
	require.NoError(t, err)
	assert.True(t, w.IsRegistered("a"))
	assert.Equal(t, 1, w.Len())

	assert.True(t, w.Trigger("a", 7))
	v, ok := <-ch
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	_, ok = <-ch
	assert.False(t, ok)

	assert.False(t, w.IsRegistered("a"))
	assert.False(t, w.Trigger("a", 8))
}

func TestRegisterDuplicate(t *testing.T) {
	w := New[string]()
	_, err := w.Register("dup")
	require.NoError(t, err)
	_, err = w.Register("dup")
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCancel(t *testing.T) {
	w := New[string]()
	_, err := w.Register("x")
	require.NoError(t, err)
	w.Cancel("x")
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Trigger("x", "late"))
}
