package protocol

import (
	"fmt"
	"io"
)

// maxVarintLen is the longest legal encoding of a 64-bit varint.
const maxVarintLen = 10

// AppendUvarint appends v to b using base-128 varint encoding (seven bits
// per byte, least significant group first, high bit set on continuation
// bytes) and returns the extended slice.
func AppendUvarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// Uvarint decodes a varint from the start of b and returns the value and
// the number of bytes consumed. It fails with ErrMalformedVarint when the
// encoding is longer than ten bytes or overflows 64 bits, and with
// io.ErrUnexpectedEOF when b ends mid-varint.
func Uvarint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range b {
		if i >= maxVarintLen {
			return 0, 0, fmt.Errorf("%w: longer than %d bytes", ErrMalformedVarint, maxVarintLen)
		}
		if c < 0x80 {
			if i == maxVarintLen-1 && c > 1 {
				return 0, 0, fmt.Errorf("%w: overflows 64 bits", ErrMalformedVarint)
			}
			return v | uint64(c)<<shift, i + 1, nil
		}
		v |= uint64(c&0x7f) << shift
		shift += 7
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// readUvarint decodes a varint from r one byte at a time. An io.EOF after
// at least one byte is reported as io.ErrUnexpectedEOF so that a stream
// that dies mid-frame is distinguishable from a clean close.
func readUvarint(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= maxVarintLen {
			return 0, fmt.Errorf("%w: longer than %d bytes", ErrMalformedVarint, maxVarintLen)
		}
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if c < 0x80 {
			if i == maxVarintLen-1 && c > 1 {
				return 0, fmt.Errorf("%w: overflows 64 bits", ErrMalformedVarint)
			}
			return v | uint64(c)<<shift, nil
		}
		v |= uint64(c&0x7f) << shift
		shift += 7
	}
}
