package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// handshakeTimeout bounds the WebSocket upgrade when the caller's context
// carries no deadline of its own.
const handshakeTimeout = 10 * time.Second

// Stream adapts a WebSocket connection to the byte-stream interface the
// client consumes. Protocol frames travel inside binary WebSocket messages;
// message boundaries carry no protocol meaning, so one Read may span
// messages and one message may satisfy many Reads.
//
// Reads and writes follow the underlying connection's rules: at most one
// concurrent reader and one concurrent writer. The client already
// serializes both sides, so a Stream needs no locking of its own.
type Stream struct {
	conn *websocket.Conn

	// current is the unfinished reader for the most recent binary
	// message. Reads drain it fully before asking for the next message.
	current io.Reader
}

// NewStream wraps an already-established WebSocket connection, e.g. one
// accepted server-side or dialed with custom headers.
func NewStream(conn *websocket.Conn) *Stream {
	return &Stream{conn: conn}
}

// Dial opens a WebSocket connection to rawURL (ws:// or wss://) and wraps
// it in a Stream ready to hand to the client.
func Dial(ctx context.Context, rawURL string) (*Stream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", rawURL, err)
	}
	return &Stream{conn: conn}, nil
}

// Read returns bytes from the stream of binary messages. Text and other
// non-binary messages are skipped; a clean peer close reads as io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	for {
		if s.current != nil {
			n, err := s.current.Read(p)
			if err == io.EOF {
				s.current = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}

		msgType, r, err := s.conn.NextReader()
		if err != nil {
			return 0, mapCloseError(err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		s.current = r
	}
}

// Write sends p as a single binary message.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, mapCloseError(err)
	}
	return len(p), nil
}

// Close sends a normal-closure message best effort, then closes the
// underlying connection.
func (s *Stream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

// SetDeadline applies t to both the read and the write side.
func (s *Stream) SetDeadline(t time.Time) error {
	if err := s.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return s.conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the deadline for future and in-flight Reads.
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the deadline for future Writes.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

// mapCloseError converts a clean peer close into io.EOF so callers treat
// it like the end of any other byte stream.
func mapCloseError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return err
}
