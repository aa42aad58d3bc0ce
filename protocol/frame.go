package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
)

// Type identifies a message on the wire. Tags are assigned by the message
// catalogue; the framing layer treats them as opaque.
type Type uint32

// Frame markers. The first byte of every frame declares the transport
// variant: 0x00 for plaintext varint framing, 0x01 for the encrypted
// variant. A device configured for encryption answers plaintext traffic
// with an 0x01 marker, which the plaintext codec reports as
// ErrEncryptionRequired.
const (
	markerPlaintext = 0x00
	markerEncrypted = 0x01
)

// DefaultMaxFrameSize bounds the payload length accepted from a peer when
// no explicit limit is configured. Device firmware never sends frames
// anywhere near this size; the bound exists so a corrupt length varint
// cannot trigger an unbounded allocation.
const DefaultMaxFrameSize = 64 * 1024

// Framer moves whole messages across an already-connected duplex byte
// stream. Implementations are not safe for concurrent use; callers
// serialize writes and dedicate a single goroutine to reads.
type Framer interface {
	// Handshake performs the transport-level setup for the variant, such
	// as the encryption key exchange. It must be called once before any
	// message is read or written. The plaintext variant has no setup.
	Handshake(ctx context.Context) error

	// ReadMessage blocks for the next frame and returns its type tag and
	// payload. A clean peer close before any byte is read surfaces as
	// io.EOF; a close mid-frame as io.ErrUnexpectedEOF.
	ReadMessage() (Type, []byte, error)

	// WriteMessage encodes one message as a single frame and writes it
	// with one Write call on the underlying stream.
	WriteMessage(t Type, payload []byte) error
}

// PlainFramer implements the plaintext frame layout:
//
//	[0x00 marker][uvarint payload_len][uvarint type_tag][payload]
//
// Reads are buffered internally; the framer owns the read side of the
// stream once in use.
type PlainFramer struct {
	w   io.Writer
	br  *bufio.Reader
	max uint32
}

// NewPlainFramer wraps stream in a plaintext framer. A maxFrame of zero
// selects DefaultMaxFrameSize.
func NewPlainFramer(stream io.ReadWriter, maxFrame uint32) *PlainFramer {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &PlainFramer{
		w:   stream,
		br:  bufio.NewReader(stream),
		max: maxFrame,
	}
}

// Handshake is a no-op for the plaintext variant.
func (f *PlainFramer) Handshake(ctx context.Context) error { return nil }

// ReadMessage reads one frame. The payload length is validated against the
// configured maximum before any payload byte is read.
func (f *PlainFramer) ReadMessage() (Type, []byte, error) {
	marker, err := f.br.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	switch marker {
	case markerPlaintext:
	case markerEncrypted:
		return 0, nil, ErrEncryptionRequired
	default:
		return 0, nil, fmt.Errorf("%w: 0x%02x", ErrInvalidMarker, marker)
	}

	size, err := readUvarint(f.br)
	if err != nil {
		return 0, nil, fmt.Errorf("read payload length: %w", err)
	}
	if size > uint64(f.max) {
		return 0, nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, size, f.max)
	}

	tag, err := readUvarint(f.br)
	if err != nil {
		return 0, nil, fmt.Errorf("read type tag: %w", err)
	}
	if tag > math.MaxUint32 {
		return 0, nil, fmt.Errorf("%w: type tag %d overflows tag space", ErrInvalidFrame, tag)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(f.br, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}
	return Type(tag), payload, nil
}

// WriteMessage writes one frame. The frame is assembled into a single
// buffer so the stream sees exactly one Write per message.
func (f *PlainFramer) WriteMessage(t Type, payload []byte) error {
	if uint64(len(payload)) > uint64(f.max) {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, len(payload), f.max)
	}
	buf := make([]byte, 0, 1+2*maxVarintLen+len(payload))
	buf = append(buf, markerPlaintext)
	buf = AppendUvarint(buf, uint64(len(payload)))
	buf = AppendUvarint(buf, uint64(t))
	buf = append(buf, payload...)
	if _, err := f.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
