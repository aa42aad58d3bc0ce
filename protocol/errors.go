package protocol

import "errors"

// Sentinel errors reported by the frame codecs. Callers match them with
// errors.Is; most are wrapped with additional context at the failure site.
var (
	// ErrFrameTooLarge reports a frame whose declared payload length
	// exceeds the codec's configured maximum. The payload is not read.
	ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

	// ErrMalformedVarint reports a length or type varint that is overlong
	// or overflows 64 bits.
	ErrMalformedVarint = errors.New("protocol: malformed varint")

	// ErrInvalidMarker reports a frame that does not begin with the marker
	// byte expected by the active codec.
	ErrInvalidMarker = errors.New("protocol: invalid frame marker")

	// ErrEncryptionRequired reports a peer that answered a plaintext frame
	// with the encrypted-transport marker. The connection must be retried
	// with a pre-shared key.
	ErrEncryptionRequired = errors.New("protocol: peer requires an encrypted connection")

	// ErrInvalidFrame reports a structurally invalid frame, such as a type
	// tag that overflows the tag space or an inner length mismatch.
	ErrInvalidFrame = errors.New("protocol: invalid frame")

	// ErrHandshake reports a failed encryption handshake. The wrapped
	// message carries the peer's reason when one was sent.
	ErrHandshake = errors.New("protocol: encryption handshake failed")

	// ErrUnsupportedProtocol reports a peer that selected an encryption
	// protocol this codec does not implement.
	ErrUnsupportedProtocol = errors.New("protocol: peer selected an unsupported encryption protocol")

	// ErrDecryptionFailed reports a post-handshake frame that failed
	// message authentication.
	ErrDecryptionFailed = errors.New("protocol: message authentication failed")

	// ErrInvalidKey reports a pre-shared key that is not valid base64 or
	// does not decode to the required length.
	ErrInvalidKey = errors.New("protocol: invalid pre-shared key")
)
