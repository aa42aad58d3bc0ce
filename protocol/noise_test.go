package protocol

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"golang.org/x/crypto/curve25519"
)

// noiseResponder speaks the device side of the encrypted handshake so the
// initiator code can be exercised end to end over a pipe.
type noiseResponder struct {
	rw   io.ReadWriter
	br   *bufio.Reader
	psk  []byte
	name string
	mac  string

	enc *cipherState // responder -> initiator
	dec *cipherState // initiator -> responder
}

func newNoiseResponder(rw io.ReadWriter, psk []byte) *noiseResponder {
	return &noiseResponder{
		rw:   rw,
		br:   bufio.NewReader(rw),
		psk:  psk,
		name: "test-device",
		mac:  "aa:bb:cc:dd:ee:ff",
	}
}

func (r *noiseResponder) readFrame() ([]byte, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != markerEncrypted {
		return nil, fmt.Errorf("responder: marker 0x%02x", hdr[0])
	}
	payload := make([]byte, binary.BigEndian.Uint16(hdr[1:3]))
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *noiseResponder) writeFrame(payload []byte) error {
	buf := make([]byte, 3+len(payload))
	buf[0] = markerEncrypted
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[3:], payload)
	_, err := r.rw.Write(buf)
	return err
}

// serve runs one handshake. With a mismatched key it reports the MAC
// failure to the peer the way device firmware does and returns nil.
func (r *noiseResponder) serve() error {
	hello, err := r.readFrame()
	if err != nil {
		return fmt.Errorf("read client hello: %w", err)
	}
	if len(hello) != 0 {
		return fmt.Errorf("responder: client hello payload %x", hello)
	}

	msg1Frame, err := r.readFrame()
	if err != nil {
		return fmt.Errorf("read handshake message: %w", err)
	}
	if len(msg1Frame) < 1 || msg1Frame[0] != 0x00 {
		return fmt.Errorf("responder: bad handshake status in %x", msg1Frame)
	}
	msg1 := msg1Frame[1:]
	if len(msg1) < curve25519.PointSize+noiseTagSize {
		return fmt.Errorf("responder: short handshake message")
	}

	serverHello := append([]byte{0x01}, []byte(r.name+"\x00"+r.mac+"\x00")...)
	if err := r.writeFrame(serverHello); err != nil {
		return fmt.Errorf("write server hello: %w", err)
	}

	hs, err := newHandshakeState()
	if err != nil {
		return err
	}
	if err := hs.mixKeyAndHash(r.psk); err != nil {
		return err
	}
	clientPub := msg1[:curve25519.PointSize]
	hs.mixHash(clientPub)
	if err := hs.mixKey(clientPub); err != nil {
		return err
	}
	if _, err := hs.decryptAndHash(msg1[curve25519.PointSize:]); err != nil {
		return r.writeFrame(append([]byte{0x01}, []byte("Handshake MAC failure")...))
	}

	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return err
	}
	hs.mixHash(pub)
	if err := hs.mixKey(pub); err != nil {
		return err
	}
	shared, err := curve25519.X25519(priv, clientPub)
	if err != nil {
		return err
	}
	if err := hs.mixKey(shared); err != nil {
		return err
	}
	sealed, err := hs.encryptAndHash(nil)
	if err != nil {
		return err
	}
	msg2 := append([]byte{0x00}, pub...)
	msg2 = append(msg2, sealed...)
	if err := r.writeFrame(msg2); err != nil {
		return fmt.Errorf("write handshake message: %w", err)
	}

	out, err := noiseHKDF(hs.ck, nil, 2)
	if err != nil {
		return err
	}
	if r.dec, err = newCipherState(out[0]); err != nil {
		return err
	}
	if r.enc, err = newCipherState(out[1]); err != nil {
		return err
	}
	return nil
}

// echo reads one encrypted message and writes it back with the tag
// incremented by one.
func (r *noiseResponder) echo() error {
	ct, err := r.readFrame()
	if err != nil {
		return err
	}
	pt, err := r.dec.decrypt(ct)
	if err != nil {
		return err
	}
	if len(pt) < 4 {
		return fmt.Errorf("responder: inner frame truncated")
	}
	tag := binary.BigEndian.Uint16(pt[0:2])
	binary.BigEndian.PutUint16(pt[0:2], tag+1)
	return r.writeFrame(r.enc.encrypt(pt))
}

func testPSK(t *testing.T) []byte {
	t.Helper()
	psk := make([]byte, PSKSize)
	if _, err := rand.Read(psk); err != nil {
		t.Fatalf("generate psk: %v", err)
	}
	return psk
}

func TestNoiseFramerHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	psk := testPSK(t)
	responder := newNoiseResponder(server, psk)
	serveErr := make(chan error, 1)
	go func() {
		if err := responder.serve(); err != nil {
			serveErr <- err
			return
		}
		serveErr <- responder.echo()
	}()

	f, err := NewNoiseFramer(client, psk, 0)
	if err != nil {
		t.Fatalf("NewNoiseFramer(): %v", err)
	}
	if err := f.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake(): %v", err)
	}
	if got := f.ServerName(); got != "test-device" {
		t.Errorf("ServerName() = %q, want %q", got, "test-device")
	}
	if got := f.ServerMAC(); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("ServerMAC() = %q, want %q", got, "aa:bb:cc:dd:ee:ff")
	}

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := f.WriteMessage(7, payload); err != nil {
		t.Fatalf("WriteMessage(): %v", err)
	}
	tag, got, err := f.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage(): %v", err)
	}
	if tag != 8 {
		t.Errorf("tag = %d, want 8", tag)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %x, want %x", got, payload)
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("responder: %v", err)
	}
}

func TestNoiseFramerWrongKey(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	responder := newNoiseResponder(server, testPSK(t))
	serveErr := make(chan error, 1)
	go func() { serveErr <- responder.serve() }()

	f, err := NewNoiseFramer(client, testPSK(t), 0)
	if err != nil {
		t.Fatalf("NewNoiseFramer(): %v", err)
	}
	err = f.Handshake(context.Background())
	if !errors.Is(err, ErrHandshake) {
		t.Fatalf("Handshake() err = %v, want %v", err, ErrHandshake)
	}
	if want := "Handshake MAC failure"; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("Handshake() err = %q, want the peer's %q reason", err, want)
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("responder: %v", err)
	}
}

func TestNoiseFramerUnsupportedProtocol(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	responder := newNoiseResponder(server, testPSK(t))
	go func() {
		// Drain the client's opening frames, then refuse the protocol.
		if _, err := responder.readFrame(); err != nil {
			return
		}
		if _, err := responder.readFrame(); err != nil {
			return
		}
		_ = responder.writeFrame([]byte{0x00})
	}()

	f, err := NewNoiseFramer(client, responder.psk, 0)
	if err != nil {
		t.Fatalf("NewNoiseFramer(): %v", err)
	}
	if err := f.Handshake(context.Background()); !errors.Is(err, ErrUnsupportedProtocol) {
		t.Fatalf("Handshake() err = %v, want %v", err, ErrUnsupportedProtocol)
	}
}

func TestNoiseFramerBeforeHandshake(t *testing.T) {
	f, err := NewNoiseFramer(readWriter{bytes.NewReader(nil), io.Discard}, testPSK(t), 0)
	if err != nil {
		t.Fatalf("NewNoiseFramer(): %v", err)
	}
	if _, _, err := f.ReadMessage(); !errors.Is(err, ErrHandshake) {
		t.Errorf("ReadMessage() err = %v, want %v", err, ErrHandshake)
	}
	if err := f.WriteMessage(1, nil); !errors.Is(err, ErrHandshake) {
		t.Errorf("WriteMessage() err = %v, want %v", err, ErrHandshake)
	}
}

func TestParsePSK(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid", key: base64.StdEncoding.EncodeToString(make([]byte, 32))},
		{name: "not base64", key: "not base64!!", wantErr: true},
		{name: "wrong length", key: base64.StdEncoding.EncodeToString(make([]byte, 16)), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParsePSK(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("ParsePSK() err = %v, want %v", err, ErrInvalidKey)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePSK(): %v", err)
			}
			if len(raw) != PSKSize {
				t.Errorf("key length = %d, want %d", len(raw), PSKSize)
			}
		})
	}
}
