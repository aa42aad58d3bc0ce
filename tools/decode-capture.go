//go:build ignore

// Decode-capture pretty-prints a capture of plaintext API frames.
//
// The input is either a raw binary capture of one direction of a
// conversation, or whitespace-separated hex (for example a Wireshark
// "follow stream" export). Each frame is parsed, looked up in the
// message registry and printed with its decoded payload.
//
// Usage:
//
//	go run tools/decode-capture.go capture.bin
//	go run tools/decode-capture.go --hex frames.txt
//
// Encrypted captures cannot be decoded without the session keys; the tool
// stops at the first 0x01 marker it sees.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/muurk/esplink/api"
	"github.com/muurk/esplink/protocol"
)

func main() {
	hexInput := flag.Bool("hex", false, "input is whitespace-separated hex instead of raw bytes")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: decode-capture [--hex] <capture-file>")
		fmt.Println("Example: decode-capture --hex analysis/session-frames.txt")
		os.Exit(1)
	}

	filename := flag.Arg(0)
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	if *hexInput {
		data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			fmt.Printf("Error decoding hex: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("=== Frame Capture Decoder ===\n")
	fmt.Printf("File: %s (%d bytes)\n\n", filename, len(data))

	reg := api.NewRegistry()
	counts := make(map[protocol.Type]int)

	offset := 0
	frameNum := 0
	for offset < len(data) {
		consumed, tag, err := decodeFrame(reg, data[offset:], frameNum)
		if err != nil {
			fmt.Printf("frame %d at offset %d: %v\n", frameNum, offset, err)
			os.Exit(1)
		}
		counts[tag]++
		offset += consumed
		frameNum++
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Frames: %d\n", frameNum)
	for tag, n := range counts {
		fmt.Printf("  %-32s %d\n", api.TypeName(tag), n)
	}
}

// decodeFrame consumes one plaintext frame from buf and prints it.
// Returns the number of bytes consumed and the frame's type tag.
func decodeFrame(reg *api.Registry, buf []byte, num int) (int, protocol.Type, error) {
	if buf[0] != 0x00 {
		return 0, 0, fmt.Errorf("marker 0x%02x, want 0x00 (encrypted captures are not supported)", buf[0])
	}
	rest := buf[1:]

	size, n, err := protocol.Uvarint(rest)
	if err != nil {
		return 0, 0, fmt.Errorf("frame length: %v", err)
	}
	rest = rest[n:]

	rawType, tn, err := protocol.Uvarint(rest)
	if err != nil {
		return 0, 0, fmt.Errorf("frame type: %v", err)
	}
	rest = rest[tn:]

	if uint64(len(rest)) < size {
		return 0, 0, fmt.Errorf("truncated: payload is %d bytes, only %d left", size, len(rest))
	}
	payload := rest[:size]
	tag := protocol.Type(rawType)

	fmt.Printf("[%4d] %-32s %5d bytes", num, api.TypeName(tag), size)

	msg, err := reg.Decode(tag, payload)
	switch {
	case err != nil:
		fmt.Printf("  (%v)\n", err)
	case size == 0:
		fmt.Println()
	default:
		fmt.Printf("  %+v\n", msg)
	}
	if size > 0 {
		fmt.Printf("       % x\n", payload)
	}

	return 1 + n + tn + int(size), tag, nil
}
