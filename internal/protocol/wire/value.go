// Package wire implements the self-describing rndc value encoding: byte
// strings, ordered tables and lists, each carried as a type-tagged,
// length-prefixed record.
package wire

import (
	"bytes"
	"fmt"
	"strconv"
)

// Type tags from the isccc value record contract.
const (
	TypeString uint8 = 0
	TypeBinary uint8 = 1
	TypeTable  uint8 = 2
	TypeList   uint8 = 3
)

const (
	RecordHeaderLen = 5
	MaxKeyLen       = 255
)

// Value is one of Bytes, List or *Table.
type Value interface {
	wireType() uint8
}

// Bytes is a string or opaque binary value. Both wire tags decode to Bytes.
type Bytes []byte

func (Bytes) wireType() uint8 { return TypeBinary }

func (b Bytes) String() string { return string(b) }

// String builds a Bytes value from text.
func String(s string) Bytes {
	return Bytes(s)
}

// List is an ordered sequence of values.
type List []Value

func (List) wireType() uint8 { return TypeList }

// Scalar converts a caller-supplied scalar to its textual Bytes form. It is
// the only implicit coercion the codec allows; tables and lists are rejected.
func Scalar(v any) (Bytes, error) {
	switch x := v.(type) {
	case Bytes:
		return x, nil
	case []byte:
		return Bytes(x), nil
	case string:
		return Bytes(x), nil
	case int:
		return Bytes(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return Bytes(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return Bytes(strconv.FormatInt(x, 10)), nil
	case uint:
		return Bytes(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return Bytes(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return Bytes(strconv.FormatUint(x, 10)), nil
	case bool:
		return Bytes(strconv.FormatBool(x)), nil
	case fmt.Stringer:
		return Bytes(x.String()), nil
	default:
		return nil, fmt.Errorf("wire: cannot coerce %T to bytes", v)
	}
}

// Equal reports whether a and b hold the same tree. Table key order matters.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x, y)
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Table:
		y, ok := b.(*Table)
		if !ok {
			return false
		}
		if x == nil || y == nil {
			return x == y
		}
		if x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			if y.keys[i] != k || !Equal(x.vals[k], y.vals[k]) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}
