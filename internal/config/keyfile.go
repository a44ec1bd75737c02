package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

var (
	ErrKeyNotFound = errors.New("config: key not found")
	ErrKeySyntax   = errors.New("config: key file syntax")
)

// Key is one `key "name" { algorithm ...; secret "..."; };` clause.
type Key struct {
	Name      string
	Algorithm string
	Secret    string
}

// LoadKey reads a BIND key file and returns the clause called name, or the
// first clause when name is empty.
func LoadKey(path, name string) (Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return Key{}, fmt.Errorf("load key file (%s): %w", path, err)
	}
	defer f.Close()

	keys, err := ParseKeys(f)
	if err != nil {
		return Key{}, fmt.Errorf("load key file (%s): %w", path, err)
	}
	return FindKey(keys, name)
}

func FindKey(keys []Key, name string) (Key, error) {
	for _, k := range keys {
		if name == "" || k.Name == name {
			return k, nil
		}
	}
	if name == "" {
		return Key{}, ErrKeyNotFound
	}
	return Key{}, fmt.Errorf("%w: %q", ErrKeyNotFound, name)
}

// ParseKeys extracts key clauses from named.conf-style text. Other
// top-level statements are skipped.
func ParseKeys(r io.Reader) ([]Key, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	toks, err := tokenize(string(src))
	if err != nil {
		return nil, err
	}

	var keys []Key
	for i := 0; i < len(toks); {
		if toks[i] != "key" {
			i = skipStatement(toks, i)
			continue
		}
		if i+2 >= len(toks) || toks[i+2] != "{" {
			return nil, fmt.Errorf("%w: key clause needs a name and a block", ErrKeySyntax)
		}
		key := Key{Name: unquote(toks[i+1])}
		i += 3
		for i < len(toks) && toks[i] != "}" {
			if i+2 >= len(toks) || toks[i+2] != ";" {
				return nil, fmt.Errorf("%w: key %q: expected `option value;`", ErrKeySyntax, key.Name)
			}
			switch toks[i] {
			case "algorithm":
				key.Algorithm = unquote(toks[i+1])
			case "secret":
				key.Secret = unquote(toks[i+1])
			}
			i += 3
		}
		if i >= len(toks) {
			return nil, fmt.Errorf("%w: key %q: unterminated block", ErrKeySyntax, key.Name)
		}
		i++
		if i < len(toks) && toks[i] == ";" {
			i++
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func skipStatement(toks []string, i int) int {
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i] {
		case "{":
			depth++
		case "}":
			depth--
		case ";":
			if depth <= 0 {
				return i + 1
			}
		}
	}
	return i
}

// tokenize splits on whitespace and the `{ } ;` punctuation, keeps quoted
// strings whole, and drops `#`, `//` and `/* */` comments.
func tokenize(src string) ([]string, error) {
	var toks []string
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '#' || strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated comment", ErrKeySyntax)
			}
			i += end + 4
		case c == '{' || c == '}' || c == ';':
			toks = append(toks, string(c))
			i++
		case c == '"':
			end := strings.IndexByte(src[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated string", ErrKeySyntax)
			}
			toks = append(toks, src[i:i+end+2])
			i += end + 2
		default:
			start := i
			for i < len(src) && !unicode.IsSpace(rune(src[i])) && !strings.ContainsRune("{};\"", rune(src[i])) {
				i++
			}
			toks = append(toks, src[start:i])
		}
	}
	return toks, nil
}

func unquote(tok string) string {
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		return tok[1 : len(tok)-1]
	}
	return tok
}
