package protocol

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes the body of an envelope frame. Both ends of a connection
// must agree on the codec; the parent passes its choice to the plugin host
// on the command line.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// DefaultCodec is used when no codec is configured.
const DefaultCodec = "msgpack"

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return MsgpackCodec{}, nil
	case "cbor":
		return newCBORCodec()
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// MsgpackCodec encodes envelopes as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string                       { return "msgpack" }
func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// CBORCodec encodes envelopes as CBOR. Nested maps decode to
// map[string]any so structured values keep string keys.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor dec mode: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (c *CBORCodec) Name() string                       { return "cbor" }
func (c *CBORCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c *CBORCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
