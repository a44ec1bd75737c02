package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/rndcctl/internal/auth"
	"github.com/danmuck/rndcctl/internal/protocol"
	"github.com/danmuck/rndcctl/internal/protocol/schema"
	"github.com/danmuck/rndcctl/internal/protocol/wire"
	"github.com/danmuck/rndcctl/internal/testutil/testlog"
)

func testCodec(t *testing.T, name string) *Codec {
	t.Helper()
	alg, err := auth.ParseAlgorithm(name)
	if err != nil {
		t.Fatalf("parse algorithm: %v", err)
	}
	return NewCodec(alg, []byte("shared-secret-key"))
}

func testEnvelope() *wire.Table {
	ctrl := schema.Control{Serial: 100, Time: time.Unix(1700000000, 0), Nonce: wire.String("4242")}
	return schema.Request(ctrl, "status")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	for _, name := range auth.Names() {
		c := testCodec(t, name)
		packet, err := c.Encode(testEnvelope())
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		if got := binary.BigEndian.Uint32(packet[0:4]); int(got) != len(packet)-4 {
			t.Fatalf("%s length prefix=%d packet=%d", name, got, len(packet))
		}
		if got := binary.BigEndian.Uint32(packet[4:8]); got != Version {
			t.Fatalf("%s version=%d", name, got)
		}
		env, err := c.Decode(packet)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if _, ok := env.Get(schema.KeyAuth); ok {
			t.Fatalf("%s decoded envelope must not expose _auth", name)
		}
		if !wire.Equal(env, testEnvelope()) {
			t.Fatalf("%s envelope mismatch", name)
		}
	}
}

func TestEncodeIsIdempotentOverAuth(t *testing.T) {
	testlog.Start(t)
	c := testCodec(t, "sha256")
	env := testEnvelope()
	first, err := c.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env.Set(schema.KeyAuth, wire.NewTable().SetString("hsha", "stale"))
	second, err := c.Encode(env)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("re-signing must drop the stale _auth entry")
	}
}

func TestDecodeDetectsBodyMutation(t *testing.T) {
	testlog.Start(t)
	c := testCodec(t, "sha512")
	packet, err := c.Encode(testEnvelope())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body := len(packet) - 1
	for _, idx := range []int{body, body - 3} {
		mutated := append([]byte(nil), packet...)
		mutated[idx] ^= 0x01
		if _, err := c.Decode(mutated); !errors.Is(err, protocol.ErrSignatureMismatch) {
			t.Fatalf("idx=%d expected ErrSignatureMismatch, got %v", idx, err)
		}
	}
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	testlog.Start(t)
	alg, _ := auth.ParseAlgorithm("sha256")
	packet, err := NewCodec(alg, []byte("key-one")).Encode(testEnvelope())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := NewCodec(alg, []byte("key-two")).Decode(packet); !errors.Is(err, protocol.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	testlog.Start(t)
	c := testCodec(t, "md5")
	packet, err := c.Encode(testEnvelope())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(append(packet, 0)); !errors.Is(err, protocol.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	testlog.Start(t)
	c := testCodec(t, "sha1")
	packet, err := c.Encode(testEnvelope())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	binary.BigEndian.PutUint32(packet[4:8], 2)
	if _, err := c.Decode(packet); !errors.Is(err, protocol.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeShortPacket(t *testing.T) {
	testlog.Start(t)
	c := testCodec(t, "sha1")
	if _, err := c.Decode([]byte{0, 0}); !errors.Is(err, protocol.ErrBufferUnderrun) {
		t.Fatalf("expected ErrBufferUnderrun, got %v", err)
	}
	if _, err := c.Decode([]byte{0, 0, 0, 2, 0, 1}); !errors.Is(err, protocol.ErrBufferUnderrun) {
		t.Fatalf("expected ErrBufferUnderrun, got %v", err)
	}
}

func TestReadPacket(t *testing.T) {
	testlog.Start(t)
	c := testCodec(t, "sha256")
	one, _ := c.Encode(testEnvelope())
	two, _ := c.Encode(schema.Request(schema.Control{Serial: 2, Time: time.Unix(5, 0)}, "reload"))
	stream := bytes.NewReader(append(append([]byte(nil), one...), two...))

	got, err := ReadPacket(stream, DefaultLimits())
	if err != nil || !bytes.Equal(got, one) {
		t.Fatalf("first packet err=%v", err)
	}
	got, err = ReadPacket(stream, DefaultLimits())
	if err != nil || !bytes.Equal(got, two) {
		t.Fatalf("second packet err=%v", err)
	}
	if _, err := ReadPacket(stream, DefaultLimits()); err == nil {
		t.Fatalf("expected EOF")
	}
	if _, err := ReadPacket(bytes.NewReader(one[:len(one)-1]), DefaultLimits()); !errors.Is(err, ErrShortPacket) {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

func TestReadPacketEnforcesLimit(t *testing.T) {
	testlog.Start(t)
	prefix := []byte{0, 0, 1, 0}
	_, err := ReadPacket(bytes.NewReader(prefix), Limits{MaxFrameBytes: 64})
	if !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if err := (Limits{}).Check(1 << 30); err != nil {
		t.Fatalf("zero limit must disable the check: %v", err)
	}
}
