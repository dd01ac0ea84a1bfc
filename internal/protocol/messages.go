package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chronologos/mediaplug/internal/envelope"
)

var (
	ErrPayloadTooLarge   = errors.New("payload exceeds maximum size")
	ErrUnknownMessage    = errors.New("unknown message type")
	ErrShortPayload      = errors.New("payload too short for message type")
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// --- Message types ---

type AuthRequest struct {
	Token [32]byte
}

type AuthResponse struct {
	Status AuthStatus
}

// wireEnvelope is the codec-level shape of an envelope frame.
type wireEnvelope struct {
	Class  string         `msgpack:"class" cbor:"class"`
	Name   string         `msgpack:"name" cbor:"name"`
	Params map[string]any `msgpack:"params" cbor:"params"`
}

// --- Encoding ---

// WriteMessage writes a framed message (header + payload) to w.
// msg is *AuthRequest, *AuthResponse or *envelope.Envelope; the codec is
// only consulted for envelopes.
func WriteMessage(w io.Writer, codec Codec, msg any) error {
	var msgType MessageType
	var payload []byte

	// Stack buffer for fixed-size message payloads (max 32 bytes for AuthRequest).
	var scratch [32]byte

	switch m := msg.(type) {
	case *AuthRequest:
		msgType = MsgAuthRequest
		payload = m.Token[:]
	case *AuthResponse:
		msgType = MsgAuthResponse
		scratch[0] = byte(m.Status)
		payload = scratch[:1]
	case *envelope.Envelope:
		msgType = MsgEnvelope
		b, err := EncodeEnvelope(codec, m)
		if err != nil {
			return err
		}
		payload = b
	default:
		return fmt.Errorf("unsupported message type: %T", msg)
	}

	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	header[4] = byte(msgType)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// EncodeEnvelope encodes an envelope body with codec.
func EncodeEnvelope(codec Codec, e *envelope.Envelope) ([]byte, error) {
	if codec == nil {
		return nil, fmt.Errorf("encode %s/%s: no codec", e.Class(), e.Name())
	}
	b, err := codec.Marshal(&wireEnvelope{
		Class:  e.Class(),
		Name:   e.Name(),
		Params: e.Params(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", e.Class(), e.Name(), err)
	}
	return b, nil
}

// --- Decoding ---

// ReadMessage reads a framed message from r.
func ReadMessage(r io.Reader, codec Codec) (any, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	payloadLen := binary.BigEndian.Uint32(header[0:4])
	msgType := MessageType(header[4])

	if payloadLen > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return DecodePayload(codec, msgType, payload)
}

// DecodePayload decodes a raw payload given its message type.
func DecodePayload(codec Codec, msgType MessageType, payload []byte) (any, error) {
	switch msgType {
	case MsgAuthRequest:
		if len(payload) < AuthRequestSize {
			return nil, ErrShortPayload
		}
		msg := &AuthRequest{}
		copy(msg.Token[:], payload[:32])
		return msg, nil

	case MsgAuthResponse:
		if len(payload) < AuthResponseSize {
			return nil, ErrShortPayload
		}
		return &AuthResponse{Status: AuthStatus(payload[0])}, nil

	case MsgEnvelope:
		return DecodeEnvelope(codec, payload)

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownMessage, byte(msgType))
	}
}

// DecodeEnvelope decodes an envelope body with codec.
func DecodeEnvelope(codec Codec, payload []byte) (*envelope.Envelope, error) {
	if codec == nil {
		return nil, fmt.Errorf("%w: no codec", ErrMalformedEnvelope)
	}
	if len(payload) == 0 {
		return nil, ErrShortPayload
	}
	var w wireEnvelope
	if err := codec.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if w.Class == "" || w.Name == "" {
		return nil, fmt.Errorf("%w: empty class or name", ErrMalformedEnvelope)
	}
	e, err := envelope.FromParams(w.Class, w.Name, w.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return e, nil
}
