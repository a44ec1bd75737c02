package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/rndcctl/internal/protocol"
	"github.com/danmuck/rndcctl/internal/protocol/cursor"
)

// MaxDepth bounds table/list nesting on decode.
const MaxDepth = 64

var ErrNestingTooDeep = errors.New("wire: nesting too deep")

// EncodeRecord wraps payload as <type u8><length u32><payload>.
func EncodeRecord(typ uint8, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("wire: payload too large: %d", len(payload))
	}
	buf := make([]byte, RecordHeaderLen+len(payload))
	buf[0] = typ
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[RecordHeaderLen:], payload)
	return buf, nil
}

// Encode returns the tagged record for v.
func Encode(v Value) ([]byte, error) {
	switch x := v.(type) {
	case Bytes:
		return EncodeRecord(TypeBinary, x)
	case List:
		var payload bytes.Buffer
		for i, item := range x {
			rec, err := Encode(item)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			payload.Write(rec)
		}
		return EncodeRecord(TypeList, payload.Bytes())
	case *Table:
		payload, err := EncodeTableBody(x)
		if err != nil {
			return nil, err
		}
		return EncodeRecord(TypeTable, payload)
	case nil:
		return nil, errors.New("wire: cannot encode nil value")
	default:
		return nil, fmt.Errorf("wire: cannot encode %T", v)
	}
}

// EncodeTableBody returns the headerless table encoding: the key/value
// sequence without the outer type tag and length.
func EncodeTableBody(t *Table) ([]byte, error) {
	var out bytes.Buffer
	var err error
	t.Range(func(key string, v Value) bool {
		if err = writeKey(&out, key); err != nil {
			return false
		}
		var rec []byte
		rec, err = Encode(v)
		if err != nil {
			err = fmt.Errorf("key %q: %w", key, err)
			return false
		}
		out.Write(rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeKey(out *bytes.Buffer, key string) error {
	if len(key) > MaxKeyLen {
		return fmt.Errorf("%w: %d bytes", protocol.ErrKeyTooLong, len(key))
	}
	for i := 0; i < len(key); i++ {
		if key[i] > 0x7f {
			return fmt.Errorf("%w: %q", protocol.ErrNonASCIIKey, key)
		}
	}
	out.WriteByte(byte(len(key)))
	out.WriteString(key)
	return nil
}

// Decode reads one tagged record from c.
func Decode(c *cursor.Cursor) (Value, error) {
	return decodeValue(c, 0)
}

// DecodeTableBody reads key/value pairs until c is exhausted.
func DecodeTableBody(c *cursor.Cursor) (*Table, error) {
	return decodeTable(c, 0)
}

func decodeValue(c *cursor.Cursor, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, ErrNestingTooDeep
	}
	typ, err := c.ReadByte()
	if err != nil {
		return nil, err
	}
	n, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(c.Remaining()) {
		return nil, fmt.Errorf("%w: record length %d exceeds %d remaining", protocol.ErrBufferUnderrun, n, c.Remaining())
	}
	payload, err := c.Sub(int(n))
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeString, TypeBinary:
		b, err := payload.ReadBytes(payload.Remaining())
		if err != nil {
			return nil, err
		}
		return Bytes(b), nil
	case TypeTable:
		return decodeTable(payload, depth+1)
	case TypeList:
		return decodeList(payload, depth+1)
	default:
		return nil, protocol.UnknownWireTypeError{Tag: typ}
	}
}

func decodeTable(c *cursor.Cursor, depth int) (*Table, error) {
	t := NewTable()
	for !c.Exhausted() {
		klen, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		key, err := c.ReadString(int(klen))
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(c, depth)
		if err != nil {
			return nil, err
		}
		t.Set(key, v)
	}
	return t, nil
}

func decodeList(c *cursor.Cursor, depth int) (List, error) {
	out := List{}
	for !c.Exhausted() {
		v, err := decodeValue(c, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
