// Package protocol implements the frame codecs for the esplink native API.
//
// This package handles the byte-level transport framing used by ESPHome-style
// device firmware. It knows nothing about message contents; payloads move as
// opaque byte slices tagged with a numeric message type. Payload field layouts
// live in the api package.
//
// # Plaintext Frames
//
// The default variant frames each message as:
//   - Marker byte: 0x00
//   - Payload length: base-128 varint
//   - Message type tag: base-128 varint
//   - Payload: length bytes
//
// The payload length is validated against a configured maximum before the
// payload is read, so a corrupt length cannot trigger an unbounded
// allocation. A device configured for encryption answers plaintext traffic
// with an 0x01 marker; the codec reports that as ErrEncryptionRequired so
// callers can retry with a key.
//
// # Encrypted Frames
//
// The encrypted variant wraps messages in Noise NNpsk0 (Curve25519,
// ChaCha20-Poly1305, SHA-256) keyed by a 32-byte pre-shared key:
//   - Marker byte: 0x01
//   - Frame length: 2 bytes (big-endian)
//   - Frame body: handshake message or AEAD ciphertext
//
// After the handshake each decrypted frame body carries a big-endian u16
// type tag and u16 data length followed by the payload. Nonces are
// per-direction 64-bit counters.
//
// # Usage Example
//
//	framer := protocol.NewPlainFramer(conn, 0)
//	if err := framer.Handshake(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Write a message
//	err := framer.WriteMessage(1, payload)
//
//	// Read the reply
//	tag, payload, err := framer.ReadMessage()
//
// For an encrypted device, decode the key and swap the framer:
//
//	psk, err := protocol.ParsePSK("bO+l1WtTK0n4gHnnYQ2CnTs3dGU1DbSZbyxO1TwAgFU=")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	framer, err := protocol.NewNoiseFramer(conn, psk, 0)
//
// # Concurrency
//
// Framers are not safe for concurrent use. The session layer serializes
// writes behind a lock and dedicates one goroutine to reads; standalone
// users must arrange the same.
package protocol
