package protocol

import (
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Frame layout on the wire: [1 byte opcode][msgpack body]. Framing (length
// prefixes) belongs to the transport layer; this package only sees payloads.

var handle = &codec.MsgpackHandle{}

// Marshal encodes v as msgpack.
func Marshal(v any) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, handle).Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return b, nil
}

// Unmarshal decodes msgpack data into v.
func Unmarshal(data []byte, v any) error {
	if err := codec.NewDecoderBytes(data, handle).Decode(v); err != nil {
		return fmt.Errorf("msgpack decode: %w", err)
	}
	return nil
}

// Encode builds a complete opcode-prefixed frame payload.
func Encode(op byte, v any) ([]byte, error) {
	body, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, op)
	out = append(out, body...)
	return out, nil
}

// MustEncode is Encode for messages built from internal state, where an
// encode failure is a programmer error.
func MustEncode(op byte, v any) []byte {
	data, err := Encode(op, v)
	if err != nil {
		panic(fmt.Sprintf("encode opcode %d: %v", op, err))
	}
	return data
}
