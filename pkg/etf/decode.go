package etf

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decode parses one versioned external term.
func Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrTruncated
	}
	if data[0] != formatVersion {
		return nil, ErrVersion
	}
	d := &decoder{data: data, off: 1}
	v, err := d.term(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, fmt.Errorf("etf: %d trailing bytes", len(d.data)-d.off)
	}
	return v, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u8() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16() (int, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(b)), nil
}

func (d *decoder) u32() (int, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b)
	if int64(n) > int64(len(d.data)) {
		return 0, ErrTruncated
	}
	return int(n), nil
}

func (d *decoder) term(depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("etf: nesting deeper than %d", maxDepth)
	}
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagSmallInt:
		b, err := d.u8()
		return int64(b), err
	case tagInteger:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case tagNewFloat:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case tagFloat:
		b, err := d.take(31)
		if err != nil {
			return nil, err
		}
		return strconv.ParseFloat(strings.TrimRight(string(b), "\x00"), 64)
	case tagAtom, tagAtomUTF8:
		n, err := d.u16()
		if err != nil {
			return nil, err
		}
		return d.atom(n)
	case tagSmallAtom, tagSmallAtomU8:
		n, err := d.u8()
		if err != nil {
			return nil, err
		}
		return d.atom(int(n))
	case tagBinary:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		return string(b), err
	case tagString:
		n, err := d.u16()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		return string(b), err
	case tagNil:
		return []any{}, nil
	case tagList:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		list := make([]any, 0, n)
		for i := 0; i < n; i++ {
			v, err := d.term(depth + 1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		// proper lists end with NIL_EXT; improper tails are kept as a last element
		tail, err := d.term(depth + 1)
		if err != nil {
			return nil, err
		}
		if l, ok := tail.([]any); !ok || len(l) != 0 {
			list = append(list, tail)
		}
		return list, nil
	case tagSmallTuple, tagLargeTuple:
		var n int
		if tag == tagSmallTuple {
			b, err := d.u8()
			if err != nil {
				return nil, err
			}
			n = int(b)
		} else if n, err = d.u32(); err != nil {
			return nil, err
		}
		tuple := make([]any, 0, n)
		for i := 0; i < n; i++ {
			v, err := d.term(depth + 1)
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, v)
		}
		return tuple, nil
	case tagMap:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, n)
		for i := 0; i < n; i++ {
			k, err := d.term(depth + 1)
			if err != nil {
				return nil, err
			}
			v, err := d.term(depth + 1)
			if err != nil {
				return nil, err
			}
			m[mapKey(k)] = v
		}
		return m, nil
	case tagSmallBig:
		n, err := d.u8()
		if err != nil {
			return nil, err
		}
		return d.big(int(n))
	case tagLargeBig:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		return d.big(n)
	}
	return nil, &UnsupportedTagError{Tag: tag}
}

func (d *decoder) atom(n int) (any, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	switch s := string(b); s {
	case "nil", "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return s, nil
	}
}

func (d *decoder) big(n int) (any, error) {
	sign, err := d.u8()
	if err != nil {
		return nil, err
	}
	digits, err := d.take(n)
	if err != nil {
		return nil, err
	}
	for i := 8; i < len(digits); i++ {
		if digits[i] != 0 {
			return nil, fmt.Errorf("etf: integer wider than 64 bits")
		}
	}
	var mag uint64
	for i := min(n, 8) - 1; i >= 0; i-- {
		mag = mag<<8 | uint64(digits[i])
	}
	if sign == 0 {
		if mag > math.MaxInt64 {
			return mag, nil
		}
		return int64(mag), nil
	}
	if mag > uint64(math.MaxInt64)+1 {
		return nil, fmt.Errorf("etf: negative integer below int64 range")
	}
	return -int64(mag-1) - 1, nil
}

func mapKey(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case nil:
		return "nil"
	default:
		return fmt.Sprint(v)
	}
}
