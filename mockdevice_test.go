package esplink

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/muurk/esplink/api"
	"github.com/muurk/esplink/protocol"
)

// deviceConn is the device end of a test connection: a plaintext framer
// plus the stock catalogue, driven by a per-test script.
type deviceConn struct {
	stream io.ReadWriter
	framer protocol.Framer
	reg    *api.Registry
}

// startDevice runs a device script on its own goroutine. The returned
// channel yields the script's error once it finishes.
func startDevice(stream io.ReadWriter, script func(d *deviceConn) error) <-chan error {
	errc := make(chan error, 1)
	go func() {
		d := &deviceConn{
			stream: stream,
			framer: protocol.NewPlainFramer(stream, 0),
			reg:    api.NewRegistry(),
		}
		errc <- script(d)
	}()
	return errc
}

func (d *deviceConn) send(msg api.Message) error {
	tag, payload, err := d.reg.Encode(msg)
	if err != nil {
		return err
	}
	return d.framer.WriteMessage(tag, payload)
}

func (d *deviceConn) recv() (api.Message, error) {
	tag, payload, err := d.framer.ReadMessage()
	if err != nil {
		return nil, err
	}
	return d.reg.Decode(tag, payload)
}

func (d *deviceConn) expect(want protocol.Type) (api.Message, error) {
	msg, err := d.recv()
	if err != nil {
		return nil, fmt.Errorf("awaiting %s: %w", api.TypeName(want), err)
	}
	if msg.MessageType() != want {
		return nil, fmt.Errorf("device received %s, want %s",
			api.TypeName(msg.MessageType()), api.TypeName(want))
	}
	return msg, nil
}

// serveHello answers the client handshake: hello exchange followed by
// the device info exchange.
func (d *deviceConn) serveHello(usesPassword bool) error {
	if _, err := d.expect(api.TypeHelloRequest); err != nil {
		return err
	}
	err := d.send(&api.HelloResponse{
		APIVersionMajor: 1,
		APIVersionMinor: 9,
		ServerInfo:      "ESPHome v2025.6.0",
		Name:            "test-device",
	})
	if err != nil {
		return err
	}
	if _, err := d.expect(api.TypeDeviceInfoRequest); err != nil {
		return err
	}
	return d.send(&api.DeviceInfoResponse{
		UsesPassword:   usesPassword,
		Name:           "test-device",
		MACAddress:     "AA:BB:CC:DD:EE:FF",
		EsphomeVersion: "2025.6.0",
		Model:          "esp32dev",
	})
}

// serveLogin answers one login attempt, accepting exactly password.
func (d *deviceConn) serveLogin(password string) error {
	msg, err := d.expect(api.TypeConnectRequest)
	if err != nil {
		return err
	}
	req := msg.(*api.ConnectRequest)
	return d.send(&api.ConnectResponse{InvalidPassword: req.Password != password})
}

// waitDevice fails the test if the device script errored or never ended.
func waitDevice(t *testing.T, errc <-chan error) {
	t.Helper()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("device script: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("device script did not finish")
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
