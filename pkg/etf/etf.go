// Package etf implements the subset of the Erlang External Term Format used
// by gateway payloads.
//
// Decoded values are built from nil, bool, int64, uint64 (only for integers
// above math.MaxInt64), float64, string, []any and map[string]any.
package etf

import (
	"errors"
	"fmt"
)

const (
	formatVersion = 131

	tagNewFloat    = 70
	tagSmallInt    = 97
	tagInteger     = 98
	tagFloat       = 99
	tagAtom        = 100
	tagSmallTuple  = 104
	tagLargeTuple  = 105
	tagNil         = 106
	tagString      = 107
	tagList        = 108
	tagBinary      = 109
	tagSmallBig    = 110
	tagLargeBig    = 111
	tagMap         = 116
	tagSmallAtom   = 115
	tagAtomUTF8    = 118
	tagSmallAtomU8 = 119
)

var (
	ErrVersion   = errors.New("etf: unsupported format version")
	ErrTruncated = errors.New("etf: truncated term")
)

// UnsupportedTagError is returned when the input carries a term type the
// decoder does not understand.
type UnsupportedTagError struct {
	Tag byte
}

func (e *UnsupportedTagError) Error() string {
	return fmt.Sprintf("etf: unsupported term tag %d", e.Tag)
}

// UnsupportedTypeError is returned by Encode for Go values with no term form.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return "etf: unsupported type " + e.Type
}

// Codec adapts Encode/Decode to the frame decoder's codec contract.
type Codec struct{}

func (Codec) Name() string { return "etf" }

func (Codec) Binary() bool { return true }

func (Codec) Encode(v any) ([]byte, error) { return Encode(v) }

func (Codec) Decode(b []byte) (any, error) { return Decode(b) }
