// Package cursor is a forward-only reader over a fixed byte slice.
package cursor

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/rndcctl/internal/protocol"
)

// Cursor tracks a read offset into buf. Reads past the end fail with
// protocol.ErrBufferUnderrun and leave the offset unchanged.
type Cursor struct {
	buf []byte
	off int
}

func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

func (c *Cursor) ReadByte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.buf[c.off]
	c.off++
	return b, nil
}

func (c *Cursor) ReadUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v, nil
}

// ReadString returns the next n bytes as a string. It takes no encoding
// argument: bytes pass through unchanged and callers decode if they need to.
func (c *Cursor) ReadString(n int) (string, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes returns a copy of the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out, nil
}

// Sub returns a cursor scoped to the next n bytes and advances past them.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	sub := New(c.buf[c.off : c.off+n : c.off+n])
	c.off += n
	return sub, nil
}

func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

func (c *Cursor) Exhausted() bool {
	return c.Remaining() <= 0
}

func (c *Cursor) Offset() int {
	return c.off
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", protocol.ErrBufferUnderrun, n, c.off, c.Remaining())
	}
	return nil
}
