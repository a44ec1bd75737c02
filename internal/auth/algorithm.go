// Package auth computes the keyed-hash signature record carried in every
// rndc packet.
//
// It intentionally avoids key storage and session policy.
package auth

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"strings"
)

var ErrUnsupportedAlgorithm = errors.New("auth: unsupported algorithm")

// Algorithm ids from the isccc HMAC registry.
const (
	IDUnknown uint8 = 0
	IDMD5     uint8 = 157
	IDSHA1    uint8 = 161
	IDSHA224  uint8 = 162
	IDSHA256  uint8 = 163
	IDSHA384  uint8 = 164
	IDSHA512  uint8 = 165
)

// Algorithm is one supported HMAC digest.
type Algorithm struct {
	Name string
	ID   uint8
	New  func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"md5":    {Name: "md5", ID: IDMD5, New: md5.New},
	"sha1":   {Name: "sha1", ID: IDSHA1, New: sha1.New},
	"sha224": {Name: "sha224", ID: IDSHA224, New: sha256.New224},
	"sha256": {Name: "sha256", ID: IDSHA256, New: sha256.New},
	"sha384": {Name: "sha384", ID: IDSHA384, New: sha512.New384},
	"sha512": {Name: "sha512", ID: IDSHA512, New: sha512.New},
}

// ParseAlgorithm resolves a digest name. Case is ignored and the "hmac-"
// prefix used in BIND key files is accepted.
func ParseAlgorithm(name string) (Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "hmac-")
	alg, ok := algorithms[key]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return alg, nil
}

// AlgorithmID returns the registry id for name, or IDUnknown.
func AlgorithmID(name string) uint8 {
	alg, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return IDUnknown
	}
	return alg.ID
}

// AuthType is "h" plus the first three lowercase characters of the name.
// Every sha variant collapses to "hsha"; only the id byte tells them apart.
func AuthType(name string) string {
	n := strings.ToLower(name)
	if len(n) > 3 {
		n = n[:3]
	}
	return "h" + n
}

// Names lists the supported digest names.
func Names() []string {
	return []string{"md5", "sha1", "sha224", "sha256", "sha384", "sha512"}
}
