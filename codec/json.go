package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON encodes values with encoding/json. The zero value is ready to use.
// Strict rejects payloads with fields V does not declare, which catches
// snapshots written by an older build with a different shape.
type JSON[V any] struct {
	Strict bool
}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (c JSON[V]) Decode(b []byte) (V, error) {
	var v V
	if !c.Strict {
		err := json.Unmarshal(b, &v)
		return v, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if dec.More() {
		return v, fmt.Errorf("codec: trailing data after JSON value")
	}
	return v, nil
}
