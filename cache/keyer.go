package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Key modes accepted by NewKeyer.
const (
	KeyModeHash      = "sha256"
	KeyModeTruncated = "truncated"
)

// DefaultTruncatedLength is the key length used by TruncatedKeyer when
// Length is zero.
const DefaultTruncatedLength = 32

// Keyer derives deterministic cache keys from a request target and body.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a body that cannot be serialized returns an error wrapping ErrUnserializableBody.
type Keyer interface {
	Key(target string, body any) (string, error)
}

// NewKeyer returns the Keyer for mode. An empty mode selects the hash keyer.
func NewKeyer(mode string) (Keyer, error) {
	switch mode {
	case "", KeyModeHash:
		return NewDefaultKeyer(), nil
	case KeyModeTruncated:
		return &TruncatedKeyer{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown key mode %q", mode)
	}
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key returns the first 128 bits of SHA-256(target NUL canonical(body)) as
// 32 lowercase hex characters.
func (k *DefaultKeyer) Key(target string, body any) (string, error) {
	canonical, err := canonicalBody(body)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write(canonical)
	sum := h.Sum(nil)

	return hex.EncodeToString(sum[:16]), nil
}

// TruncatedKeyer encodes target+body as standard base64 and keeps the first
// Length characters. Distinct requests that share a long common prefix map to
// the same key, so a hit may return another request's response. Use it only
// when keys must match an existing store built with this encoding.
type TruncatedKeyer struct {
	Length int
}

// Key implements Keyer.
func (k *TruncatedKeyer) Key(target string, body any) (string, error) {
	canonical, err := canonicalBody(body)
	if err != nil {
		return "", err
	}

	n := k.Length
	if n <= 0 {
		n = DefaultTruncatedLength
	}

	encoded := base64.StdEncoding.EncodeToString(append([]byte(target), canonical...))
	if len(encoded) > n {
		encoded = encoded[:n]
	}
	return encoded, nil
}

// canonicalBody returns the bytes hashed for body. A nil body is empty.
// Raw bytes and strings are used as is.
func canonicalBody(body any) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		out, err = canonicalize(b)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializableBody, err)
	}
	return out, nil
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

var (
	_ Keyer = (*DefaultKeyer)(nil)
	_ Keyer = (*TruncatedKeyer)(nil)
)
