package etf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	values := []any{
		nil,
		true,
		false,
		int64(0),
		int64(255),
		int64(256),
		int64(-1),
		int64(math.MaxInt32),
		int64(math.MinInt32),
		int64(math.MaxInt32) + 1,
		int64(math.MinInt32) - 1,
		int64(math.MaxInt64),
		int64(math.MinInt64),
		uint64(math.MaxUint64),
		3.25,
		"",
		"hello",
		[]any{int64(1), "two", nil},
		map[string]any{
			"op": int64(0),
			"t":  "MESSAGE_CREATE",
			"s":  int64(42),
			"d": map[string]any{
				"id":         int64(1234567890123456789),
				"content":    "hi",
				"mentions":   []any{},
				"tts":        false,
				"embeds":     []any{map[string]any{"title": "x"}},
				"channel_id": "80351110224678912",
			},
		},
	}
	for _, v := range values {
		data, err := Encode(v)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestEncodeGoTypes(t *testing.T) {
	data, err := Encode(map[string]any{
		"shard":    []int{1, 4},
		"user_ids": []string{"a", "b"},
		"since":    nil,
		"limit":    uint8(10),
	})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"shard":    []any{int64(1), int64(4)},
		"user_ids": []any{"a", "b"},
		"since":    nil,
		"limit":    int64(10),
	}, got)
}

func TestDecodeKnownBytes(t *testing.T) {
	// {op: 11, d: nil} with atom keys, as produced by erlpack
	data := []byte{
		131, 116, 0, 0, 0, 2,
		100, 0, 2, 'o', 'p', 97, 11,
		100, 0, 1, 'd', 100, 0, 3, 'n', 'i', 'l',
	}
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"op": int64(11), "d": nil}, got)
}

func TestDecodeStringAndTuple(t *testing.T) {
	data := []byte{131, 104, 2, 107, 0, 2, 'h', 'i', 98, 255, 255, 255, 254}
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []any{"hi", int64(-2)}, got)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Decode([]byte{130, 97, 1})
	assert.ErrorIs(t, err, ErrVersion)

	_, err = Decode([]byte{131, 109, 0, 0, 0, 5, 'a'})
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Decode([]byte{131, 120})
	var tagErr *UnsupportedTagError
	assert.ErrorAs(t, err, &tagErr)

	_, err = Decode([]byte{131, 97, 1, 97, 2})
	assert.Error(t, err)
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(map[int]string{1: "x"})
	var typeErr *UnsupportedTypeError
	assert.ErrorAs(t, err, &typeErr)

	_, err = Encode(make(chan int))
	assert.ErrorAs(t, err, &typeErr)
}
