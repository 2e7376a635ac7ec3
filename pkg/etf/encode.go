package etf

import (
	"encoding/binary"
	"math"
	"reflect"
	"sort"

	"github.com/valyala/bytebufferpool"
)

const maxDepth = 256

// Encode serializes v as a versioned external term.
func Encode(v any) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	e := &encoder{buf: buf}
	_ = buf.WriteByte(formatVersion)
	if err := e.encode(reflect.ValueOf(v), 0); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return out, nil
}

type encoder struct {
	buf     *bytebufferpool.ByteBuffer
	scratch [8]byte
}

func (e *encoder) encode(v reflect.Value, depth int) error {
	if depth > maxDepth {
		return &UnsupportedTypeError{Type: "nesting too deep"}
	}
	if !v.IsValid() {
		e.atom("nil")
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			e.atom("nil")
			return nil
		}
		return e.encode(v.Elem(), depth+1)
	case reflect.Bool:
		if v.Bool() {
			e.atom("true")
		} else {
			e.atom("false")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.int(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u <= math.MaxInt64 {
			e.int(int64(u))
		} else {
			e.big(false, u)
		}
	case reflect.Float32, reflect.Float64:
		_ = e.buf.WriteByte(tagNewFloat)
		binary.BigEndian.PutUint64(e.scratch[:], math.Float64bits(v.Float()))
		_, _ = e.buf.Write(e.scratch[:8])
	case reflect.String:
		e.binary([]byte(v.String()))
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			e.binary(v.Bytes())
			return nil
		}
		n := v.Len()
		if n == 0 {
			_ = e.buf.WriteByte(tagNil)
			return nil
		}
		_ = e.buf.WriteByte(tagList)
		e.uint32(uint32(n))
		for i := 0; i < n; i++ {
			if err := e.encode(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		_ = e.buf.WriteByte(tagNil)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return &UnsupportedTypeError{Type: v.Type().String()}
		}
		keys := v.MapKeys()
		// keys in sorted order
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		_ = e.buf.WriteByte(tagMap)
		e.uint32(uint32(len(keys)))
		for _, k := range keys {
			e.binary([]byte(k.String()))
			if err := e.encode(v.MapIndex(k), depth+1); err != nil {
				return err
			}
		}
	default:
		return &UnsupportedTypeError{Type: v.Type().String()}
	}
	return nil
}

func (e *encoder) int(i int64) {
	switch {
	case i >= 0 && i <= math.MaxUint8:
		_ = e.buf.WriteByte(tagSmallInt)
		_ = e.buf.WriteByte(byte(i))
	case i >= math.MinInt32 && i <= math.MaxInt32:
		_ = e.buf.WriteByte(tagInteger)
		e.uint32(uint32(int32(i)))
	case i < 0:
		e.big(true, uint64(-(i+1))+1)
	default:
		e.big(false, uint64(i))
	}
}

// big writes SMALL_BIG_EXT: n, sign, little-endian magnitude.
func (e *encoder) big(negative bool, mag uint64) {
	binary.LittleEndian.PutUint64(e.scratch[:], mag)
	n := 8
	for n > 0 && e.scratch[n-1] == 0 {
		n--
	}
	_ = e.buf.WriteByte(tagSmallBig)
	_ = e.buf.WriteByte(byte(n))
	if negative {
		_ = e.buf.WriteByte(1)
	} else {
		_ = e.buf.WriteByte(0)
	}
	_, _ = e.buf.Write(e.scratch[:n])
}

func (e *encoder) atom(name string) {
	_ = e.buf.WriteByte(tagSmallAtomU8)
	_ = e.buf.WriteByte(byte(len(name)))
	_, _ = e.buf.WriteString(name)
}

func (e *encoder) binary(b []byte) {
	_ = e.buf.WriteByte(tagBinary)
	e.uint32(uint32(len(b)))
	_, _ = e.buf.Write(b)
}

func (e *encoder) uint32(n uint32) {
	binary.BigEndian.PutUint32(e.scratch[:4], n)
	_, _ = e.buf.Write(e.scratch[:4])
}
