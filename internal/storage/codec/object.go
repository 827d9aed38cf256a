package codec

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	herrors "github.com/xtxerr/hivestore/internal/errors"
)

// MsgPack encodes whole objects with msgpack. Map keys are sorted so equal
// objects produce equal files.
type MsgPack[T any] struct{}

// Extension implements Codec.
func (MsgPack[T]) Extension() string {
	return "msgpack"
}

// Encode implements Codec.
func (MsgPack[T]) Encode(v T) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, herrors.NewSerialization(fmt.Sprintf("msgpack encode %T", v), err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (MsgPack[T]) Decode(data []byte) (T, error) {
	var v T
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	err := dec.Decode(&v)
	msgpack.PutDecoder(dec)
	if err != nil {
		var zero T
		return zero, herrors.NewSerialization(fmt.Sprintf("msgpack decode %T", v), err)
	}
	return v, nil
}

// encMode is the CBOR encoder: Core Deterministic Encoding with
// nanosecond RFC 3339 timestamps.
var encMode cbor.EncMode

// decMode decodes standard CBOR; unknown fields are ignored.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBOR encodes whole objects with deterministic CBOR.
type CBOR[T any] struct{}

// Extension implements Codec.
func (CBOR[T]) Extension() string {
	return "cbor"
}

// Encode implements Codec.
func (CBOR[T]) Encode(v T) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, herrors.NewSerialization(fmt.Sprintf("cbor encode %T", v), err)
	}
	return data, nil
}

// Decode implements Codec.
func (CBOR[T]) Decode(data []byte) (T, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, herrors.NewSerialization(fmt.Sprintf("cbor decode %T", v), err)
	}
	return v, nil
}
