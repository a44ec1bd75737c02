package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/rndcctl/internal/protocol"
	"github.com/danmuck/rndcctl/internal/protocol/cursor"
	"github.com/danmuck/rndcctl/internal/testutil/testlog"
)

func mustEncode(t *testing.T, v Value) []byte {
	t.Helper()
	out, err := Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func TestEncodeRecord(t *testing.T) {
	testlog.Start(t)
	got, err := EncodeRecord(TypeTable, nil)
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	if !bytes.Equal(got, []byte{2, 0, 0, 0, 0}) {
		t.Fatalf("empty record: %v", got)
	}
	got, err = EncodeRecord(TypeBinary, []byte("abc"))
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 0, 0, 0, 3, 97, 98, 99}) {
		t.Fatalf("string record: %v", got)
	}
}

func TestEncodeBytes(t *testing.T) {
	testlog.Start(t)
	if got := mustEncode(t, String("")); !bytes.Equal(got, []byte{1, 0, 0, 0, 0}) {
		t.Fatalf("empty bytes: %v", got)
	}
	if got := mustEncode(t, String("abc")); !bytes.Equal(got, []byte{1, 0, 0, 0, 3, 97, 98, 99}) {
		t.Fatalf("abc: %v", got)
	}
}

func TestEncodeList(t *testing.T) {
	testlog.Start(t)
	if got := mustEncode(t, List{}); !bytes.Equal(got, []byte{3, 0, 0, 0, 0}) {
		t.Fatalf("empty list: %v", got)
	}
	want := []byte{
		3, 0, 0, 0, 16,
		1, 0, 0, 0, 3, 97, 98, 99,
		1, 0, 0, 0, 3, 65, 66, 67,
	}
	if got := mustEncode(t, List{String("abc"), String("ABC")}); !bytes.Equal(got, want) {
		t.Fatalf("list: %v", got)
	}
}

func TestEncodeTable(t *testing.T) {
	testlog.Start(t)
	if got := mustEncode(t, NewTable()); !bytes.Equal(got, []byte{2, 0, 0, 0, 0}) {
		t.Fatalf("empty table: %v", got)
	}
	want := []byte{
		2, 0, 0, 0, 22,
		2, 75, 49,
		1, 0, 0, 0, 3, 97, 98, 99,
		2, 75, 50,
		1, 0, 0, 0, 3, 65, 66, 67,
	}
	tbl := NewTable().SetString("K1", "abc").SetString("K2", "ABC")
	if got := mustEncode(t, tbl); !bytes.Equal(got, want) {
		t.Fatalf("table: %v", got)
	}
	body, err := EncodeTableBody(tbl)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	if !bytes.Equal(body, want[RecordHeaderLen:]) {
		t.Fatalf("headerless body: %v", body)
	}
}

func TestTableOverwriteKeepsPosition(t *testing.T) {
	testlog.Start(t)
	tbl := NewTable().SetString("a", "1").SetString("b", "2").SetString("a", "3")
	if keys := tbl.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if tbl.Text("a") != "3" {
		t.Fatalf("overwrite lost: %q", tbl.Text("a"))
	}
	tbl.Delete("a")
	if keys := tbl.Keys(); len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("unexpected keys after delete: %v", keys)
	}
}

func TestRoundTripNested(t *testing.T) {
	testlog.Start(t)
	inner := NewTable().
		SetString("type", "status").
		Set("blob", Bytes{0, 1, 2, 0xff}).
		Set("list", List{String("x"), NewTable().SetString("k", "v"), List{}})
	in := NewTable().
		Set("_ctrl", NewTable().SetString("_ser", "42")).
		Set("_data", inner).
		SetString(strings.Repeat("k", MaxKeyLen), "long key")

	rec := mustEncode(t, in)
	out, err := Decode(cursor.New(rec))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !Equal(in, out) {
		t.Fatalf("round trip mismatch")
	}

	body, err := EncodeTableBody(in)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	outBody, err := DecodeTableBody(cursor.New(body))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !Equal(in, outBody) {
		t.Fatalf("headerless round trip mismatch")
	}
}

func TestDecodeStringTagAsBytes(t *testing.T) {
	testlog.Start(t)
	v, err := Decode(cursor.New([]byte{0, 0, 0, 0, 2, 'o', 'k'}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !Equal(v, String("ok")) {
		t.Fatalf("unexpected value: %#v", v)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	testlog.Start(t)
	_, err := Decode(cursor.New([]byte{7, 0, 0, 0, 0}))
	if !errors.Is(err, protocol.ErrUnknownWireType) {
		t.Fatalf("expected ErrUnknownWireType, got %v", err)
	}
	var typed protocol.UnknownWireTypeError
	if !errors.As(err, &typed) || typed.Tag != 7 {
		t.Fatalf("expected tag 7, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	testlog.Start(t)
	cases := [][]byte{
		{1, 0, 0},
		{1, 0, 0, 0, 5, 'a'},
		{2, 0, 0, 0, 3, 5, 'a', 'b'},
	}
	for _, raw := range cases {
		if _, err := Decode(cursor.New(raw)); !errors.Is(err, protocol.ErrBufferUnderrun) {
			t.Fatalf("raw=%v expected ErrBufferUnderrun, got %v", raw, err)
		}
	}
}

func TestDecodeNestingLimit(t *testing.T) {
	testlog.Start(t)
	var v Value = String("leaf")
	for i := 0; i < MaxDepth+2; i++ {
		v = List{v}
	}
	rec := mustEncode(t, v)
	if _, err := Decode(cursor.New(rec)); !errors.Is(err, ErrNestingTooDeep) {
		t.Fatalf("expected ErrNestingTooDeep, got %v", err)
	}
}

func TestEncodeRejectsBadKeys(t *testing.T) {
	testlog.Start(t)
	long := NewTable().SetString(strings.Repeat("k", MaxKeyLen+1), "v")
	if _, err := Encode(long); !errors.Is(err, protocol.ErrKeyTooLong) {
		t.Fatalf("expected ErrKeyTooLong, got %v", err)
	}
	nonASCII := NewTable().SetString("clé", "v")
	if _, err := Encode(nonASCII); !errors.Is(err, protocol.ErrNonASCIIKey) {
		t.Fatalf("expected ErrNonASCIIKey, got %v", err)
	}
	if _, err := Encode(List{nil}); err == nil {
		t.Fatalf("expected nil element to be rejected")
	}
}

func TestScalarCoercion(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{uint32(4294967295), "4294967295"},
		{int64(-7), "-7"},
		{true, "true"},
	}
	for _, tc := range cases {
		got, err := Scalar(tc.in)
		if err != nil {
			t.Fatalf("scalar %v: %v", tc.in, err)
		}
		if string(got) != tc.want {
			t.Fatalf("scalar %v = %q want %q", tc.in, got, tc.want)
		}
	}
	if _, err := Scalar(map[string]string{}); err == nil {
		t.Fatalf("expected maps to be rejected")
	}
	if _, err := Scalar(List{}); err == nil {
		t.Fatalf("expected lists to be rejected")
	}
}

func TestTableJSONKeepsOrder(t *testing.T) {
	testlog.Start(t)
	tbl := NewTable().
		SetString("type", "status").
		Set("zones", List{String("a."), String("b.")}).
		Set("nested", NewTable().SetString("z", "1").SetString("a", "2"))
	out, err := json.Marshal(tbl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"status","zones":["a.","b."],"nested":{"z":"1","a":"2"}}`
	if string(out) != want {
		t.Fatalf("json=%s want %s", out, want)
	}
}
