package api

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/muurk/esplink/protocol"
)

// Field wire encodings used by the device's payload layouts. These are the
// standard protobuf wire types; group encodings are rejected as malformed.
const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

func appendKey(b []byte, field, wire int) []byte {
	return protocol.AppendUvarint(b, uint64(field)<<3|uint64(wire))
}

// Zero values are omitted on the wire, matching how the firmware encodes
// its own messages.

func appendUvarintField(b []byte, field int, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = appendKey(b, field, wireVarint)
	return protocol.AppendUvarint(b, v)
}

func appendInt32Field(b []byte, field int, v int32) []byte {
	if v == 0 {
		return b
	}
	b = appendKey(b, field, wireVarint)
	return protocol.AppendUvarint(b, uint64(int64(v)))
}

func appendBoolField(b []byte, field int, v bool) []byte {
	if !v {
		return b
	}
	b = appendKey(b, field, wireVarint)
	return append(b, 1)
}

func appendStringField(b []byte, field int, s string) []byte {
	if s == "" {
		return b
	}
	b = appendKey(b, field, wireBytes)
	b = protocol.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

// appendRepeatedString emits every element, including empty strings, since
// omission would change the element count.
func appendRepeatedString(b []byte, field int, vals []string) []byte {
	for _, s := range vals {
		b = appendKey(b, field, wireBytes)
		b = protocol.AppendUvarint(b, uint64(len(s)))
		b = append(b, s...)
	}
	return b
}

func appendFixed32Field(b []byte, field int, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = appendKey(b, field, wireFixed32)
	return binary.LittleEndian.AppendUint32(b, v)
}

func appendFloatField(b []byte, field int, v float32) []byte {
	if v == 0 {
		return b
	}
	b = appendKey(b, field, wireFixed32)
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

// fieldDecoder walks a payload one field at a time. Unknown fields are
// skipped by simply not reading the decoded value; wire-level damage stops
// the walk with an ErrMalformedPayload-wrapped error.
type fieldDecoder struct {
	buf   []byte
	field int
	wire  int

	varint  uint64
	fixed   uint64
	bytes   []byte
	lastErr error
}

func newFieldDecoder(payload []byte) fieldDecoder {
	return fieldDecoder{buf: payload}
}

func (d *fieldDecoder) fail(format string, args ...any) {
	if d.lastErr == nil {
		d.lastErr = fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
	}
}

// next advances to the following field. It returns false at the end of the
// payload or on the first error.
func (d *fieldDecoder) next() bool {
	if d.lastErr != nil || len(d.buf) == 0 {
		return false
	}
	key, n, err := protocol.Uvarint(d.buf)
	if err != nil {
		d.fail("field key: %v", err)
		return false
	}
	d.buf = d.buf[n:]
	d.field = int(key >> 3)
	d.wire = int(key & 7)

	switch d.wire {
	case wireVarint:
		v, n, err := protocol.Uvarint(d.buf)
		if err != nil {
			d.fail("field %d: %v", d.field, err)
			return false
		}
		d.varint = v
		d.buf = d.buf[n:]
	case wireFixed32:
		if len(d.buf) < 4 {
			d.fail("field %d: truncated fixed32", d.field)
			return false
		}
		d.fixed = uint64(binary.LittleEndian.Uint32(d.buf))
		d.buf = d.buf[4:]
	case wireFixed64:
		if len(d.buf) < 8 {
			d.fail("field %d: truncated fixed64", d.field)
			return false
		}
		d.fixed = binary.LittleEndian.Uint64(d.buf)
		d.buf = d.buf[8:]
	case wireBytes:
		size, n, err := protocol.Uvarint(d.buf)
		if err != nil {
			d.fail("field %d: %v", d.field, err)
			return false
		}
		d.buf = d.buf[n:]
		if size > uint64(len(d.buf)) {
			d.fail("field %d: declared %d bytes, have %d", d.field, size, len(d.buf))
			return false
		}
		d.bytes = d.buf[:size]
		d.buf = d.buf[size:]
	default:
		d.fail("field %d: unsupported wire type %d", d.field, d.wire)
		return false
	}
	return true
}

func (d *fieldDecoder) err() error { return d.lastErr }

func (d *fieldDecoder) stringVal() string {
	if d.wire != wireBytes {
		d.fail("field %d: expected length-delimited, got wire type %d", d.field, d.wire)
		return ""
	}
	return string(d.bytes)
}

func (d *fieldDecoder) boolVal() bool {
	if d.wire != wireVarint {
		d.fail("field %d: expected varint, got wire type %d", d.field, d.wire)
		return false
	}
	return d.varint != 0
}

func (d *fieldDecoder) uint32Val() uint32 {
	if d.wire != wireVarint {
		d.fail("field %d: expected varint, got wire type %d", d.field, d.wire)
		return 0
	}
	return uint32(d.varint)
}

func (d *fieldDecoder) int32Val() int32 {
	if d.wire != wireVarint {
		d.fail("field %d: expected varint, got wire type %d", d.field, d.wire)
		return 0
	}
	return int32(int64(d.varint))
}

func (d *fieldDecoder) fixed32Val() uint32 {
	if d.wire != wireFixed32 {
		d.fail("field %d: expected fixed32, got wire type %d", d.field, d.wire)
		return 0
	}
	return uint32(d.fixed)
}

func (d *fieldDecoder) floatVal() float32 {
	return math.Float32frombits(d.fixed32Val())
}
