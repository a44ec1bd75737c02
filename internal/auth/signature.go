package auth

import (
	"crypto/hmac"
	"encoding/base64"
	"strings"

	"github.com/danmuck/rndcctl/internal/protocol/wire"
)

const (
	// AuthKey is the reserved envelope key holding the signature table.
	AuthKey = "_auth"

	// SignatureLen is the fixed size of a non-md5 signature value.
	SignatureLen = 89
)

// Digest returns the raw HMAC of body.
func Digest(alg Algorithm, key, body []byte) []byte {
	mac := hmac.New(alg.New, key)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureValue formats digest the way the wire expects for alg.
//
// md5: unpadded base64 text.
// others: 89 bytes, id byte then base64 text, zero filled.
func SignatureValue(alg Algorithm, digest []byte) wire.Bytes {
	text := base64.StdEncoding.EncodeToString(digest)
	if AuthType(alg.Name) == "hmd5" {
		return wire.String(strings.TrimRight(text, "="))
	}
	buf := make([]byte, SignatureLen)
	buf[0] = AlgorithmID(alg.Name)
	copy(buf[1:], text)
	return wire.Bytes(buf)
}

// Sign builds the headerless {"_auth": {authType: signature}} record over body.
func Sign(alg Algorithm, key, body []byte) ([]byte, error) {
	sig := SignatureValue(alg, Digest(alg, key, body))
	record := wire.NewTable().Set(AuthKey, wire.NewTable().Set(AuthType(alg.Name), sig))
	return wire.EncodeTableBody(record)
}
