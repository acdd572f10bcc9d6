package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes proto messages. Deterministic marshaling keeps equal
// messages byte-identical, which matters when snapshots are compared.
type Protobuf[T proto.Message] struct {
	new func() T
}

// NewProtobuf takes a constructor for an empty message,
// e.g. func() *wrapperspb.Int64Value { return &wrapperspb.Int64Value{} }.
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
