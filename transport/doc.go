// Package transport bridges alternative byte carriers to the stream
// interface the esplink client consumes.
//
// The client itself never dials: callers hand it an io.ReadWriter and own
// the connection lifecycle. For devices reached directly over TCP that is
// a plain net.Conn and this package is not needed. Devices behind a
// WebSocket bridge present the same framed protocol inside binary
// WebSocket messages, and Stream adapts that back to a byte stream:
//
//	stream, err := transport.Dial(ctx, "ws://bridge.local:8080/device")
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//
//	conn := esplink.NewConn(stream)
//
// # Deadlines
//
// Stream forwards SetDeadline, SetReadDeadline and SetWriteDeadline to the
// underlying WebSocket connection, so the client's context handling and
// its read-loop shutdown poke work the same way they do over TCP.
//
// # Message Boundaries
//
// WebSocket message boundaries carry no protocol meaning. Write sends each
// buffer as one binary message for convenience, but Read treats the
// incoming messages as a contiguous byte stream. Non-binary messages are
// skipped, and a clean peer close surfaces as io.EOF.
package transport
