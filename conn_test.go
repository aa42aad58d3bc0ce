package esplink

import (
	"errors"
	"net"
	"testing"

	"github.com/muurk/esplink/api"
	"github.com/muurk/esplink/protocol"
)

func TestConnectSuccess(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		return d.serveHello(false)
	})

	conn := NewConn(client)
	device, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest", Version: "1.0"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitDevice(t, errc)

	if got := conn.State(); got != StateConnected {
		t.Errorf("State() = %v, want %v", got, StateConnected)
	}

	info := device.Info()
	if info.Name != "test-device" {
		t.Errorf("Name = %q, want test-device", info.Name)
	}
	if info.ServerInfo != "ESPHome v2025.6.0" {
		t.Errorf("ServerInfo = %q, want ESPHome v2025.6.0", info.ServerInfo)
	}
	if info.MACAddress != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("MACAddress = %q", info.MACAddress)
	}
	if info.Model != "esp32dev" {
		t.Errorf("Model = %q, want esp32dev", info.Model)
	}
	if info.APIVersion != (APIVersion{Major: 1, Minor: 9}) {
		t.Errorf("APIVersion = %v, want 1.9", info.APIVersion)
	}
	if info.AuthRequired {
		t.Error("AuthRequired = true, want false")
	}
}

func TestConnectUnexpectedMessage(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeHelloRequest); err != nil {
			return err
		}
		// Answer the hello with an unrelated message.
		return d.send(&api.PingResponse{})
	})

	conn := NewConn(client)
	_, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"})
	if !errors.Is(err, ErrUnexpectedMessage) {
		t.Errorf("Connect() error = %v, want ErrUnexpectedMessage", err)
	}
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Errorf("Connect() error = %v, want ErrHandshakeFailed", err)
	}
	waitDevice(t, errc)

	if got := conn.State(); got != StateClosed {
		t.Errorf("State() = %v, want %v", got, StateClosed)
	}
}

func TestConnectVersionMismatch(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeHelloRequest); err != nil {
			return err
		}
		return d.send(&api.HelloResponse{APIVersionMajor: 2, APIVersionMinor: 0})
	})

	conn := NewConn(client)
	_, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"})
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("Connect() error = %v, want ErrUnsupportedFeature", err)
	}
	waitDevice(t, errc)
}

func TestConnectTwice(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		return d.serveHello(false)
	})

	conn := NewConn(client)
	if _, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitDevice(t, errc)

	if _, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Connect() error = %v, want ErrInvalidState", err)
	}
}

func TestConnectEncryptionRequired(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeHelloRequest); err != nil {
			return err
		}
		// A device configured for the encrypted transport leads every
		// frame with 0x01.
		_, err := d.stream.Write([]byte{0x01, 0x00, 0x00})
		return err
	})

	conn := NewConn(client)
	_, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"})
	if !errors.Is(err, protocol.ErrEncryptionRequired) {
		t.Errorf("Connect() error = %v, want protocol.ErrEncryptionRequired", err)
	}
	waitDevice(t, errc)
}

func TestConnectInvalidPSK(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	conn := NewConn(client, WithEncryption("not base64!"))
	_, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"})
	if !errors.Is(err, protocol.ErrInvalidKey) {
		t.Errorf("Connect() error = %v, want protocol.ErrInvalidKey", err)
	}
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Errorf("Connect() error = %v, want ErrHandshakeFailed", err)
	}
}

func TestAuthenticateNotRequired(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		return d.serveHello(false)
	})

	conn := NewConn(client)
	device, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitDevice(t, errc)

	if _, err := device.Authenticate(testCtx(t), "secret"); !errors.Is(err, ErrAuthNotRequired) {
		t.Errorf("Authenticate() error = %v, want ErrAuthNotRequired", err)
	}
}

func TestSessionNeedsAuth(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		return d.serveHello(true)
	})

	conn := NewConn(client)
	device, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitDevice(t, errc)

	if _, err := device.Session(testCtx(t)); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("Session() error = %v, want ErrAuthRequired", err)
	}
}

func TestAuthenticateRejectThenRetry(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		if err := d.serveHello(true); err != nil {
			return err
		}
		// First attempt carries the wrong password, second the right one.
		if err := d.serveLogin("hunter2"); err != nil {
			return err
		}
		return d.serveLogin("hunter2")
	})

	conn := NewConn(client)
	device, err := conn.Connect(testCtx(t), ClientInfo{Name: "conntest"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if _, err := device.Authenticate(testCtx(t), "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("Authenticate(wrong) error = %v, want ErrInvalidPassword", err)
	}
	if got := conn.State(); got != StateConnected {
		t.Fatalf("State() after rejection = %v, want %v", got, StateConnected)
	}

	sess, err := device.Authenticate(testCtx(t), "hunter2")
	if err != nil {
		t.Fatalf("Authenticate(correct) error = %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	waitDevice(t, errc)

	if got := conn.State(); got != StateAuthenticated {
		t.Errorf("State() = %v, want %v", got, StateAuthenticated)
	}
}

func TestClientInfoString(t *testing.T) {
	tests := []struct {
		name string
		info ClientInfo
		want string
	}{
		{"name and version", ClientInfo{Name: "myapp", Version: "1.0"}, "myapp 1.0"},
		{"name only", ClientInfo{Name: "myapp"}, "myapp"},
		{"empty falls back", ClientInfo{}, "esplink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIVersionAtLeast(t *testing.T) {
	v := APIVersion{Major: 1, Minor: 7}
	tests := []struct {
		major, minor uint32
		want         bool
	}{
		{1, 5, true},
		{1, 7, true},
		{1, 8, false},
		{0, 9, true},
		{2, 0, false},
	}

	for _, tt := range tests {
		if got := v.AtLeast(tt.major, tt.minor); got != tt.want {
			t.Errorf("AtLeast(%d, %d) = %v, want %v", tt.major, tt.minor, got, tt.want)
		}
	}
}
