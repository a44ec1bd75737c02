package session

import (
	"github.com/danmuck/rndcctl/internal/protocol/frame"
)

// inbox holds received bytes that do not yet form a complete packet.
// Only the read loop touches it.
type inbox struct {
	buf    []byte
	limits frame.Limits
}

func (b *inbox) append(p []byte) {
	b.buf = append(b.buf, p...)
}

// next slices one complete packet off the front of the buffer. It reports
// false when more bytes are needed, and fails as soon as a declared length
// exceeds the pending-frame limit.
func (b *inbox) next() ([]byte, bool, error) {
	length, ok := frame.DeclaredLength(b.buf)
	if !ok {
		return nil, false, nil
	}
	if err := b.limits.Check(length); err != nil {
		return nil, false, err
	}
	total := uint64(frame.LengthPrefixLen) + uint64(length)
	if uint64(len(b.buf)) < total {
		return nil, false, nil
	}
	packet := make([]byte, total)
	copy(packet, b.buf[:total])
	rest := copy(b.buf, b.buf[total:])
	b.buf = b.buf[:rest]
	return packet, true, nil
}

func (b *inbox) len() int {
	return len(b.buf)
}
