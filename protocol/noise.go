package protocol

import (
	"bufio"
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Encrypted-variant parameters. The handshake is Noise NNpsk0 over
// Curve25519 with ChaCha20-Poly1305 and SHA-256; both sides mix the fixed
// prologue before the first handshake message. Frames are
// [0x01 marker][u16be length][bytes]; once the handshake completes each
// frame body is an AEAD ciphertext whose plaintext starts with a u16be
// type tag and u16be data length.
const (
	noiseProtocolName = "Noise_NNpsk0_25519_ChaChaPoly_SHA256"
	noisePrologue     = "NoiseAPIInit\x00\x00"

	// PSKSize is the decoded length of a valid pre-shared key.
	PSKSize = 32

	// noiseTagSize is the AEAD authentication tag length.
	noiseTagSize = 16

	// noiseMaxFrame is the hard ceiling imposed by the u16 frame length.
	noiseMaxFrame = 0xffff
)

// ParsePSK decodes a base64 pre-shared key and validates its length.
func ParsePSK(key string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != PSKSize {
		return nil, fmt.Errorf("%w: decoded to %d bytes, want %d", ErrInvalidKey, len(raw), PSKSize)
	}
	return raw, nil
}

// NoiseFramer implements the encrypted frame variant. It must complete
// Handshake before messages can move; the zero of everything else follows
// from that exchange.
type NoiseFramer struct {
	w   io.Writer
	br  *bufio.Reader
	max uint32
	psk []byte

	enc *cipherState
	dec *cipherState

	serverName string
	serverMAC  string
}

// NewNoiseFramer wraps stream in an encrypted framer keyed with the
// decoded pre-shared key (see ParsePSK). A maxFrame of zero selects
// DefaultMaxFrameSize; values above the u16 frame ceiling are clamped.
func NewNoiseFramer(stream io.ReadWriter, psk []byte, maxFrame uint32) (*NoiseFramer, error) {
	if len(psk) != PSKSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKey, len(psk), PSKSize)
	}
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrameSize
	}
	if maxFrame > noiseMaxFrame {
		maxFrame = noiseMaxFrame
	}
	return &NoiseFramer{
		w:   stream,
		br:  bufio.NewReader(stream),
		max: maxFrame,
		psk: append([]byte(nil), psk...),
	}, nil
}

// ServerName returns the name the peer announced in its hello frame.
// Empty until Handshake completes, or for firmware that predates the field.
func (f *NoiseFramer) ServerName() string { return f.serverName }

// ServerMAC returns the MAC address announced in the peer's hello frame,
// when present.
func (f *NoiseFramer) ServerMAC() string { return f.serverMAC }

// Handshake runs the key exchange: client hello, NNpsk0 message one, the
// server's hello and protocol choice, NNpsk0 message two, then the
// transport key split. A wrong key surfaces as ErrHandshake carrying the
// peer's reason (typically a MAC failure).
func (f *NoiseFramer) Handshake(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	hs, err := newHandshakeState()
	if err != nil {
		return err
	}
	if err := hs.mixKeyAndHash(f.psk); err != nil {
		return err
	}

	// Client hello: an empty frame announcing the encrypted variant.
	if err := f.writeRaw(nil); err != nil {
		return fmt.Errorf("send client hello: %w", err)
	}

	// Message one: "psk, e". The ephemeral public key travels in the
	// clear followed by an authenticated empty payload.
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return fmt.Errorf("generate ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return fmt.Errorf("generate ephemeral key: %w", err)
	}
	hs.mixHash(pub)
	if err := hs.mixKey(pub); err != nil {
		return err
	}
	sealed, err := hs.encryptAndHash(nil)
	if err != nil {
		return err
	}
	msg1 := make([]byte, 0, 1+len(pub)+len(sealed))
	msg1 = append(msg1, 0x00)
	msg1 = append(msg1, pub...)
	msg1 = append(msg1, sealed...)
	if err := f.writeRaw(msg1); err != nil {
		return fmt.Errorf("send handshake message: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Server hello: chosen protocol, then NUL-terminated name and MAC.
	hello, err := f.readRaw()
	if err != nil {
		return fmt.Errorf("read server hello: %w", err)
	}
	if len(hello) < 1 {
		return fmt.Errorf("%w: empty server hello", ErrHandshake)
	}
	if hello[0] != 0x01 {
		return fmt.Errorf("%w: 0x%02x", ErrUnsupportedProtocol, hello[0])
	}
	if fields := bytes.Split(hello[1:], []byte{0}); len(fields) > 0 {
		f.serverName = string(fields[0])
		if len(fields) > 1 {
			f.serverMAC = string(fields[1])
		}
	}

	// Message two: "e, ee" behind a status byte.
	resp, err := f.readRaw()
	if err != nil {
		return fmt.Errorf("read handshake message: %w", err)
	}
	if len(resp) < 1 {
		return fmt.Errorf("%w: empty handshake message", ErrHandshake)
	}
	if resp[0] != 0x00 {
		return fmt.Errorf("%w: %s", ErrHandshake, string(resp[1:]))
	}
	msg2 := resp[1:]
	if len(msg2) < curve25519.PointSize+noiseTagSize {
		return fmt.Errorf("%w: handshake message truncated", ErrHandshake)
	}
	remotePub := msg2[:curve25519.PointSize]
	hs.mixHash(remotePub)
	if err := hs.mixKey(remotePub); err != nil {
		return err
	}
	shared, err := curve25519.X25519(priv, remotePub)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if err := hs.mixKey(shared); err != nil {
		return err
	}
	if _, err := hs.decryptAndHash(msg2[curve25519.PointSize:]); err != nil {
		return fmt.Errorf("%w: message authentication failed", ErrHandshake)
	}

	send, recv, err := hs.split()
	if err != nil {
		return err
	}
	f.enc, f.dec = send, recv
	return nil
}

// ReadMessage reads and decrypts one frame.
func (f *NoiseFramer) ReadMessage() (Type, []byte, error) {
	if f.dec == nil {
		return 0, nil, fmt.Errorf("%w: handshake not complete", ErrHandshake)
	}
	ct, err := f.readRaw()
	if err != nil {
		return 0, nil, err
	}
	pt, err := f.dec.decrypt(ct)
	if err != nil {
		return 0, nil, err
	}
	if len(pt) < 4 {
		return 0, nil, fmt.Errorf("%w: inner frame truncated", ErrInvalidFrame)
	}
	tag := binary.BigEndian.Uint16(pt[0:2])
	size := binary.BigEndian.Uint16(pt[2:4])
	if int(size) != len(pt)-4 {
		return 0, nil, fmt.Errorf("%w: inner length %d, have %d", ErrInvalidFrame, size, len(pt)-4)
	}
	return Type(tag), pt[4:], nil
}

// WriteMessage encrypts one message and writes it as a single frame.
func (f *NoiseFramer) WriteMessage(t Type, payload []byte) error {
	if f.enc == nil {
		return fmt.Errorf("%w: handshake not complete", ErrHandshake)
	}
	if t > noiseMaxFrame {
		return fmt.Errorf("%w: type tag %d overflows tag space", ErrInvalidFrame, t)
	}
	limit := int(f.max)
	if ceiling := noiseMaxFrame - 4 - noiseTagSize; limit > ceiling {
		limit = ceiling
	}
	if len(payload) > limit {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, len(payload), limit)
	}
	pt := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint16(pt[0:2], uint16(t))
	binary.BigEndian.PutUint16(pt[2:4], uint16(len(payload)))
	copy(pt[4:], payload)
	return f.writeRaw(f.enc.encrypt(pt))
}

// writeRaw frames payload with the encrypted-variant marker and u16
// length, assembled into a single Write.
func (f *NoiseFramer) writeRaw(payload []byte) error {
	if len(payload) > noiseMaxFrame {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, 3+len(payload))
	buf[0] = markerEncrypted
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[3:], payload)
	if _, err := f.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readRaw reads one raw frame body.
func (f *NoiseFramer) readRaw() ([]byte, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(f.br, hdr[:]); err != nil {
		return nil, err
	}
	switch hdr[0] {
	case markerEncrypted:
	case markerPlaintext:
		return nil, fmt.Errorf("%w: peer answered in plaintext", ErrInvalidMarker)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidMarker, hdr[0])
	}
	size := binary.BigEndian.Uint16(hdr[1:3])
	if uint32(size) > f.max+4+noiseTagSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, size, f.max)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(f.br, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// cipherState is one direction of the post-handshake transport: an AEAD
// keyed by the split plus a 64-bit little-endian nonce counter.
type cipherState struct {
	aead cipher.AEAD
	n    uint64
}

func newCipherState(key [32]byte) (*cipherState, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	return &cipherState{aead: aead}, nil
}

func noiseNonce(n uint64) []byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[4:], n)
	return nonce[:]
}

func (c *cipherState) encrypt(pt []byte) []byte {
	ct := c.aead.Seal(nil, noiseNonce(c.n), pt, nil)
	c.n++
	return ct
}

func (c *cipherState) decrypt(ct []byte) ([]byte, error) {
	pt, err := c.aead.Open(nil, noiseNonce(c.n), ct, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	c.n++
	return pt, nil
}

// handshakeState carries the Noise symmetric state for the NNpsk0 pattern:
// the running handshake hash, the chaining key, and the current handshake
// cipher key once one is mixed.
type handshakeState struct {
	h      [32]byte
	ck     [32]byte
	k      [32]byte
	hasKey bool
	n      uint64
}

func newHandshakeState() (*handshakeState, error) {
	hs := &handshakeState{}
	// Protocol names longer than the hash size are hashed to seed h.
	hs.h = sha256.Sum256([]byte(noiseProtocolName))
	hs.ck = hs.h
	hs.mixHash([]byte(noisePrologue))
	return hs, nil
}

func (hs *handshakeState) mixHash(data []byte) {
	d := sha256.New()
	d.Write(hs.h[:])
	d.Write(data)
	copy(hs.h[:], d.Sum(nil))
}

func (hs *handshakeState) mixKey(ikm []byte) error {
	out, err := noiseHKDF(hs.ck, ikm, 2)
	if err != nil {
		return err
	}
	hs.ck = out[0]
	hs.k = out[1]
	hs.hasKey = true
	hs.n = 0
	return nil
}

func (hs *handshakeState) mixKeyAndHash(ikm []byte) error {
	out, err := noiseHKDF(hs.ck, ikm, 3)
	if err != nil {
		return err
	}
	hs.ck = out[0]
	hs.mixHash(out[1][:])
	hs.k = out[2]
	hs.hasKey = true
	hs.n = 0
	return nil
}

func (hs *handshakeState) encryptAndHash(pt []byte) ([]byte, error) {
	if !hs.hasKey {
		hs.mixHash(pt)
		return pt, nil
	}
	aead, err := chacha20poly1305.New(hs.k[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	ct := aead.Seal(nil, noiseNonce(hs.n), pt, hs.h[:])
	hs.n++
	hs.mixHash(ct)
	return ct, nil
}

func (hs *handshakeState) decryptAndHash(ct []byte) ([]byte, error) {
	if !hs.hasKey {
		hs.mixHash(ct)
		return ct, nil
	}
	aead, err := chacha20poly1305.New(hs.k[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	pt, err := aead.Open(nil, noiseNonce(hs.n), ct, hs.h[:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	hs.n++
	hs.mixHash(ct)
	return pt, nil
}

// split derives the two transport keys; the initiator sends with the
// first and receives with the second.
func (hs *handshakeState) split() (*cipherState, *cipherState, error) {
	out, err := noiseHKDF(hs.ck, nil, 2)
	if err != nil {
		return nil, nil, err
	}
	send, err := newCipherState(out[0])
	if err != nil {
		return nil, nil, err
	}
	recv, err := newCipherState(out[1])
	if err != nil {
		return nil, nil, err
	}
	return send, recv, nil
}

// noiseHKDF is the Noise key-derivation step: HKDF-SHA256 with the
// chaining key as salt and no info, read n 32-byte outputs.
func noiseHKDF(ck [32]byte, ikm []byte, n int) ([][32]byte, error) {
	r := hkdf.New(sha256.New, ikm, ck[:], nil)
	out := make([][32]byte, n)
	for i := range out {
		if _, err := io.ReadFull(r, out[i][:]); err != nil {
			return nil, fmt.Errorf("%w: key derivation: %v", ErrHandshake, err)
		}
	}
	return out, nil
}
