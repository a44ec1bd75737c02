package schema

import (
	"testing"
	"time"

	"github.com/danmuck/rndcctl/internal/protocol/wire"
	"github.com/danmuck/rndcctl/internal/testutil/testlog"
)

func TestRequestShape(t *testing.T) {
	testlog.Start(t)
	now := time.Unix(1700000000, 0)
	env := Request(Control{Serial: 7, Time: now, Nonce: wire.String("12345")}, "status")

	if keys := env.Keys(); len(keys) != 2 || keys[0] != KeyCtrl || keys[1] != KeyData {
		t.Fatalf("unexpected envelope keys: %v", keys)
	}
	ctrl, _ := env.Table(KeyCtrl)
	if keys := ctrl.Keys(); len(keys) != 4 || keys[0] != KeyNonce {
		t.Fatalf("unexpected ctrl keys: %v", keys)
	}
	if ctrl.Text(KeySerial) != "7" || ctrl.Text(KeyTime) != "1700000000" || ctrl.Text(KeyExpires) != "1700000060" {
		t.Fatalf("unexpected ctrl values: ser=%q tim=%q exp=%q", ctrl.Text(KeySerial), ctrl.Text(KeyTime), ctrl.Text(KeyExpires))
	}
	if Data(env).Text(KeyType) != "status" {
		t.Fatalf("unexpected command type")
	}
	if err := ValidateRequest(env); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ser, ok := Serial(env); !ok || ser != 7 {
		t.Fatalf("serial=%d ok=%v", ser, ok)
	}
}

func TestRequestWithoutNonce(t *testing.T) {
	testlog.Start(t)
	env := Request(Control{Serial: 1, Time: time.Unix(10, 0)}, NullCommand)
	if _, ok := Nonce(env); ok {
		t.Fatalf("probe must not carry a nonce")
	}
	ctrl, _ := env.Table(KeyCtrl)
	if _, ok := ctrl.Get(KeyNonce); ok {
		t.Fatalf("nonce key must be absent")
	}
}

func TestHandshakeLeadsWithData(t *testing.T) {
	testlog.Start(t)
	env := Handshake(Control{Serial: 3, Time: time.Unix(10, 0)})

	if keys := env.Keys(); len(keys) != 2 || keys[0] != KeyData || keys[1] != KeyCtrl {
		t.Fatalf("unexpected envelope keys: %v", keys)
	}
	if Data(env).Text(KeyType) != NullCommand {
		t.Fatalf("type=%q", Data(env).Text(KeyType))
	}
	if _, ok := Nonce(env); ok {
		t.Fatalf("handshake must not carry a nonce")
	}
	if err := ValidateRequest(env); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNonceExtraction(t *testing.T) {
	testlog.Start(t)
	env := wire.NewTable().Set(KeyCtrl, wire.NewTable().SetString(KeyNonce, "99"))
	v, ok := Nonce(env)
	if !ok || !wire.Equal(v, wire.String("99")) {
		t.Fatalf("nonce=%v ok=%v", v, ok)
	}
	empty := wire.NewTable().Set(KeyCtrl, wire.NewTable().SetString(KeyNonce, ""))
	if _, ok := Nonce(empty); ok {
		t.Fatalf("empty nonce must count as absent")
	}
	if _, ok := Nonce(wire.NewTable()); ok {
		t.Fatalf("missing ctrl must count as absent")
	}
}

func TestDataDefaultsToEmpty(t *testing.T) {
	testlog.Start(t)
	if Data(wire.NewTable()).Len() != 0 {
		t.Fatalf("expected empty data")
	}
}

func TestValidateRequestMissingType(t *testing.T) {
	testlog.Start(t)
	env := Request(Control{Serial: 1, Time: time.Unix(10, 0)}, "")
	err := ValidateRequest(env)
	ve, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Key != KeyData+"."+KeyType {
		t.Fatalf("unexpected validation error: %+v", ve)
	}
}

func TestValidateRequestMissingCtrl(t *testing.T) {
	testlog.Start(t)
	env := wire.NewTable().Set(KeyData, wire.NewTable().SetString(KeyType, "status"))
	ve, ok := ValidateRequest(env).(ValidationError)
	if !ok || ve.Key != KeyCtrl {
		t.Fatalf("unexpected validation result: %+v", ve)
	}
}
