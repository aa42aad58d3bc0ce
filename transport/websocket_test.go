package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/esplink/protocol"
)

// wsServer starts an httptest server that upgrades each request and hands
// the WebSocket connection to handler. It returns the ws:// URL.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialStream(t *testing.T, url string) *Stream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial(%s): %v", url, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStreamEcho(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	})

	s := dialStream(t, url)
	payload := []byte("hello device")
	if n, err := s.Write(payload); err != nil || n != len(payload) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(payload))
	}

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(s, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("echoed %q, want %q", got, payload)
	}
}

func TestStreamReadSpansMessages(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for _, msg := range [][]byte{[]byte("abc"), []byte("defg")} {
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		}
		// Hold the connection open while the client drains the messages.
		conn.ReadMessage()
	})

	s := dialStream(t, url)
	var collected []byte
	buf := make([]byte, 2)
	for len(collected) < 7 {
		n, err := s.Read(buf)
		if err != nil {
			t.Fatalf("Read after %d bytes: %v", len(collected), err)
		}
		collected = append(collected, buf[:n]...)
	}
	if got, want := string(collected), "abcdefg"; got != want {
		t.Errorf("collected %q, want %q", got, want)
	}
}

func TestStreamSkipsTextMessages(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("status: ok")); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02, 0x03}); err != nil {
			return
		}
		conn.ReadMessage()
	})

	s := dialStream(t, url)
	got := make([]byte, 3)
	if _, err := io.ReadFull(s, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if want := []byte{0x01, 0x02, 0x03}; !bytes.Equal(got, want) {
		t.Errorf("read % x, want % x", got, want)
	}
}

func TestStreamPeerCloseReadsAsEOF(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		// Wait for the client's close response before tearing down.
		conn.ReadMessage()
	})

	s := dialStream(t, url)
	buf := make([]byte, 8)
	if _, err := s.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Read after peer close = %v, want io.EOF", err)
	}
}

func TestStreamReadDeadline(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		// Send nothing; the client read must fail on its own deadline.
		conn.ReadMessage()
	})

	s := dialStream(t, url)
	if err := s.SetReadDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}

	buf := make([]byte, 8)
	_, err := s.Read(buf)
	if err == nil {
		t.Fatal("Read returned nil error, want deadline failure")
	}
	if !os.IsTimeout(err) {
		t.Errorf("Read error %v is not a timeout", err)
	}
}

func TestStreamCarriesProtocolFrames(t *testing.T) {
	const (
		reqType  = protocol.Type(1)
		respType = protocol.Type(2)
	)

	url := wsServer(t, func(conn *websocket.Conn) {
		framer := protocol.NewPlainFramer(NewStream(conn), protocol.DefaultMaxFrameSize)
		typ, payload, err := framer.ReadMessage()
		if err != nil {
			t.Errorf("device ReadMessage: %v", err)
			return
		}
		if typ != reqType {
			t.Errorf("device saw type %d, want %d", typ, reqType)
			return
		}
		if err := framer.WriteMessage(respType, append([]byte("ack "), payload...)); err != nil {
			t.Errorf("device WriteMessage: %v", err)
		}
	})

	s := dialStream(t, url)
	framer := protocol.NewPlainFramer(s, protocol.DefaultMaxFrameSize)
	if err := framer.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if err := framer.WriteMessage(reqType, []byte("ping")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	typ, payload, err := framer.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if typ != respType {
		t.Errorf("response type = %d, want %d", typ, respType)
	}
	if got, want := string(payload), "ack ping"; got != want {
		t.Errorf("response payload = %q, want %q", got, want)
	}
}

func TestDialRejectsBadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/nope"); err == nil {
		t.Fatal("Dial to closed port succeeded, want error")
	}
}
