package frame

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/rndcctl/internal/auth"
	"github.com/danmuck/rndcctl/internal/protocol"
	"github.com/danmuck/rndcctl/internal/protocol/cursor"
	"github.com/danmuck/rndcctl/internal/protocol/schema"
	"github.com/danmuck/rndcctl/internal/protocol/wire"
)

const (
	LengthPrefixLen        = 4
	HeaderLen              = 8
	Version         uint32 = 1
)

var ErrShortPacket = errors.New("frame: short packet")

// Limits constrains how large a pending frame may grow.
type Limits struct {
	MaxFrameBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 4 * 1024 * 1024,
	}
}

// Check rejects a declared body length whose full frame exceeds the limit.
func (l Limits) Check(declared uint32) error {
	if l.MaxFrameBytes == 0 {
		return nil
	}
	if uint64(declared)+LengthPrefixLen > uint64(l.MaxFrameBytes) {
		return fmt.Errorf("%w: %d > %d", protocol.ErrFrameTooLarge, uint64(declared)+LengthPrefixLen, l.MaxFrameBytes)
	}
	return nil
}

// Codec signs and verifies packets for one key/algorithm pair.
type Codec struct {
	alg auth.Algorithm
	key []byte
}

func NewCodec(alg auth.Algorithm, key []byte) *Codec {
	k := make([]byte, len(key))
	copy(k, key)
	return &Codec{alg: alg, key: k}
}

func (c *Codec) Algorithm() auth.Algorithm {
	return c.alg
}

// Encode removes any _auth entry from env, signs the remaining body and
// returns header ‖ signature ‖ body.
func (c *Codec) Encode(env *wire.Table) ([]byte, error) {
	env.Delete(schema.KeyAuth)
	body, err := wire.EncodeTableBody(env)
	if err != nil {
		return nil, err
	}
	sig, err := auth.Sign(c.alg, c.key, body)
	if err != nil {
		return nil, err
	}
	total := HeaderLen + len(sig) + len(body)
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total-LengthPrefixLen))
	binary.BigEndian.PutUint32(buf[4:8], Version)
	copy(buf[HeaderLen:], sig)
	copy(buf[HeaderLen+len(sig):], body)
	return buf, nil
}

// Decode parses packet and verifies it by re-encoding the decoded envelope
// and comparing the bytes. The returned envelope carries no _auth entry.
func (c *Codec) Decode(packet []byte) (*wire.Table, error) {
	cur := cursor.New(packet)
	length, err := cur.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint64(length) != uint64(len(packet))-LengthPrefixLen {
		return nil, fmt.Errorf("%w: declared %d, have %d", protocol.ErrLengthMismatch, length, len(packet)-LengthPrefixLen)
	}
	version, err := cur.ReadUint32()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", protocol.ErrUnsupportedVersion, version)
	}

	env, err := wire.DecodeTableBody(cur)
	if err != nil {
		return nil, err
	}
	check, err := c.Encode(env)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encode: %v", protocol.ErrSignatureMismatch, err)
	}
	if len(check) != len(packet) || subtle.ConstantTimeCompare(check, packet) != 1 {
		return nil, protocol.ErrSignatureMismatch
	}
	return env, nil
}

// DeclaredLength reads the body length prefix from b.
func DeclaredLength(b []byte) (uint32, bool) {
	if len(b) < LengthPrefixLen {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[:LengthPrefixLen]), true
}

// ReadPacket reads one complete packet, length prefix included, from r.
func ReadPacket(r io.Reader, limits Limits) ([]byte, error) {
	var prefix [LengthPrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortPacket
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if err := limits.Check(length); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(LengthPrefixLen + int(length))
	buf.Write(prefix[:])
	if _, err := io.CopyN(&buf, r, int64(length)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrShortPacket
		}
		return nil, err
	}
	return buf.Bytes(), nil
}
