package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned when a payload exceeds a Limit bound.
var ErrTooLarge = errors.New("codec: payload too large")

// Limit wraps a codec with size bounds. MaxDecode guards against oversized
// snapshots read from a shared store; MaxEncode keeps one huge query result
// from being persisted. A bound <= 0 is disabled.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.MaxEncode)
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
