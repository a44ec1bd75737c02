package wire

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON renders the bytes as a JSON string.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(b))
}

// MarshalJSON renders the list as a JSON array.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON renders the table as a JSON object in key order.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	t.Range(func(key string, v Value) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var k []byte
		if k, err = json.Marshal(key); err != nil {
			return false
		}
		buf.Write(k)
		buf.WriteByte(':')
		err = writeJSON(&buf, v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(out)
	return nil
}
