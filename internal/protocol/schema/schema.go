package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/danmuck/rndcctl/internal/auth"
	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/protocol/wire"
)

// Reserved envelope keys.
const (
	KeyCtrl = "_ctrl"
	KeyData = "_data"
	KeyAuth = auth.AuthKey

	KeySerial  = "_ser"
	KeyTime    = "_tim"
	KeyExpires = "_exp"
	KeyNonce   = "_nonce"
	KeyReply   = "_rpl"

	KeyType   = "type"
	KeyResult = "result"
	KeyText   = "text"
	KeyErr    = "err"
)

const (
	// NullCommand is the handshake probe that elicits a nonce.
	NullCommand = "null"

	DefaultExpiry = 60 * time.Second
)

// Control is the _ctrl metadata stamped on every outbound request.
type Control struct {
	Serial uint32
	Time   time.Time
	Expiry time.Duration
	Nonce  wire.Value
}

// Table renders the control block. The nonce leads when present.
func (c Control) Table() *wire.Table {
	expiry := c.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	now := c.Time.Unix()
	t := wire.NewTable()
	if c.Nonce != nil {
		t.Set(KeyNonce, c.Nonce)
	}
	t.Set(KeySerial, wire.String(strconv.FormatUint(uint64(c.Serial), 10)))
	t.Set(KeyTime, wire.String(strconv.FormatInt(now, 10)))
	t.Set(KeyExpires, wire.String(strconv.FormatInt(now+int64(expiry/time.Second), 10)))
	return t
}

// Request builds {_ctrl: ctrl, _data: {type: command}}.
func Request(ctrl Control, command string) *wire.Table {
	return wire.NewTable().
		Set(KeyCtrl, ctrl.Table()).
		Set(KeyData, wire.NewTable().SetString(KeyType, command))
}

// Handshake builds the opening request {_data: {type: "null"}, _ctrl: ctrl}.
// Unlike Request, _data leads.
func Handshake(ctrl Control) *wire.Table {
	return wire.NewTable().
		Set(KeyData, wire.NewTable().SetString(KeyType, NullCommand)).
		Set(KeyCtrl, ctrl.Table())
}

// Nonce returns _ctrl._nonce when the server supplied one.
func Nonce(env *wire.Table) (wire.Value, bool) {
	ctrl, ok := env.Table(KeyCtrl)
	if !ok {
		return nil, false
	}
	v, ok := ctrl.Get(KeyNonce)
	if !ok || v == nil {
		return nil, false
	}
	if b, isBytes := v.(wire.Bytes); isBytes && len(b) == 0 {
		return nil, false
	}
	return v, true
}

// Data returns the _data payload, or an empty table when absent.
func Data(env *wire.Table) *wire.Table {
	if data, ok := env.Table(KeyData); ok {
		return data
	}
	return wire.NewTable()
}

// Serial parses _ctrl._ser.
func Serial(env *wire.Table) (uint32, bool) {
	ctrl, ok := env.Table(KeyCtrl)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(ctrl.Text(KeySerial), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

type ValidationError struct {
	Key    string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("schema: key=%s: %s", e.Key, e.Reason)
}

// ValidateRequest enforces the reserved request shape. Unknown keys are ignored.
func ValidateRequest(env *wire.Table) error {
	logs.Debugf("schema.ValidateRequest keys=%d", env.Len())
	ctrl, ok := env.Table(KeyCtrl)
	if !ok {
		logs.Errf("schema.ValidateRequest missing key=%s", KeyCtrl)
		return ValidationError{Key: KeyCtrl, Reason: "missing table"}
	}
	for _, key := range []string{KeySerial, KeyTime, KeyExpires} {
		if _, ok := ctrl.Bytes(key); !ok {
			logs.Errf("schema.ValidateRequest missing key=%s.%s", KeyCtrl, key)
			return ValidationError{Key: KeyCtrl + "." + key, Reason: "missing value"}
		}
	}
	data, ok := env.Table(KeyData)
	if !ok {
		logs.Errf("schema.ValidateRequest missing key=%s", KeyData)
		return ValidationError{Key: KeyData, Reason: "missing table"}
	}
	if data.Text(KeyType) == "" {
		logs.Errf("schema.ValidateRequest missing key=%s.%s", KeyData, KeyType)
		return ValidationError{Key: KeyData + "." + KeyType, Reason: "missing command type"}
	}
	return nil
}
