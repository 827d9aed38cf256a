package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	herrors "github.com/xtxerr/hivestore/internal/errors"
)

// Proto encodes protobuf messages. New allocates the message Decode fills.
type Proto[T proto.Message] struct {
	New func() T
}

// NewProto creates a protobuf codec.
func NewProto[T proto.Message](newMessage func() T) Proto[T] {
	return Proto[T]{New: newMessage}
}

// Extension implements Codec.
func (Proto[T]) Extension() string {
	return "pb"
}

// Encode implements Codec.
func (Proto[T]) Encode(m T) ([]byte, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
	if err != nil {
		return nil, herrors.NewSerialization(fmt.Sprintf("proto encode %T", m), err)
	}
	return data, nil
}

// Decode implements Codec.
func (p Proto[T]) Decode(data []byte) (T, error) {
	m := p.New()
	if err := proto.Unmarshal(data, m); err != nil {
		var zero T
		return zero, herrors.NewSerialization(fmt.Sprintf("proto decode %T", m), err)
	}
	return m, nil
}
