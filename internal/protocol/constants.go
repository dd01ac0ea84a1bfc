package protocol

// Wire format version.
const Version = 1

// Header: [4B payload_length big-endian][1B message_type]
const HeaderSize = 5

// Maximum payload size (16 MB).
const MaxPayloadSize = 16 * 1024 * 1024

// MessageType identifies the type of a framed message.
type MessageType byte

const (
	// Handshake
	MsgAuthRequest  MessageType = 0x01
	MsgAuthResponse MessageType = 0x02

	// Codec-encoded envelope (class, name, params)
	MsgEnvelope MessageType = 0x20
)

// AuthStatus is the result of an authentication attempt.
type AuthStatus byte

const (
	AuthOK     AuthStatus = 0
	AuthFailed AuthStatus = 1
)

// Fixed message sizes (excluding header).
const (
	AuthRequestSize  = 32 // derived token
	AuthResponseSize = 1  // status byte
)
