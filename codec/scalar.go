package codec

import (
	"encoding/binary"
	"errors"
)

// Bytes is the identity codec for []byte values.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores a string as its UTF-8 bytes.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

var errVarint = errors.New("codec: malformed varint")

// Int stores counts (product totals, onboarding counters) as a signed varint.
type Int struct{}

func (Int) Encode(n int) ([]byte, error) {
	return binary.AppendVarint(nil, int64(n)), nil
}

func (Int) Decode(b []byte) (int, error) {
	n, k := binary.Varint(b)
	if k <= 0 || k != len(b) {
		return 0, errVarint
	}
	return int(n), nil
}
