package esplink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/esplink/api"
)

// APIVersion is the protocol version the device negotiated.
type APIVersion struct {
	Major uint32
	Minor uint32
}

func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether the negotiated version is major.minor or newer
// within the same major.
func (v APIVersion) AtLeast(major, minor uint32) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// DeviceInfo is the snapshot captured during the handshake. It merges
// the hello response (version, server identity) with the device info
// response (hardware and firmware description, password policy).
type DeviceInfo struct {
	Name            string
	ServerInfo      string
	MACAddress      string
	Model           string
	EsphomeVersion  string
	CompilationTime string
	APIVersion      APIVersion
	AuthRequired    bool
	HasDeepSleep    bool
}

// Device is a connected endpoint that has not started its session yet.
// Depending on the snapshot it proceeds through Authenticate or Session,
// each of which may be called once.
type Device struct {
	conn *Conn
	info DeviceInfo
}

// Info returns the handshake snapshot.
func (d *Device) Info() DeviceInfo { return d.info }

// Authenticate presents the password and starts the session. A rejected
// password fails with ErrInvalidPassword and leaves the connection
// usable for another attempt. Devices with no password configured fail
// with ErrAuthNotRequired.
func (d *Device) Authenticate(ctx context.Context, password string) (*Session, error) {
	if !d.info.AuthRequired {
		return nil, fmt.Errorf("%w: device %q has no password configured", ErrAuthNotRequired, d.info.Name)
	}
	return d.login(ctx, password, StateAuthenticated)
}

// Session starts the session on a device that does not require
// authentication. The protocol still expects a login exchange, so an
// empty-password request is sent under the hood. Devices that demand a
// password fail with ErrAuthRequired.
func (d *Device) Session(ctx context.Context) (*Session, error) {
	if d.info.AuthRequired {
		return nil, fmt.Errorf("%w: device %q expects a password", ErrAuthRequired, d.info.Name)
	}
	return d.login(ctx, "", StateConnected)
}

func (d *Device) login(ctx context.Context, password string, next State) (*Session, error) {
	c := d.conn

	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	case c.sessionStarted:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: session already started", ErrInvalidState)
	case c.state != StateConnected && c.state != StateAuthenticated:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: login while %s", ErrInvalidState, c.state)
	}
	framer := c.framer
	c.mu.Unlock()

	restore := c.applyDeadline(ctx)
	defer restore()

	msg, err := c.exchange(framer, &api.ConnectRequest{Password: password}, api.TypeConnectResponse)
	if err != nil {
		// The stream is out of step after a failed login exchange.
		c.close()
		return nil, fmt.Errorf("login: %w", ctxPreferred(ctx, err))
	}
	resp, ok := msg.(*api.ConnectResponse)
	if !ok {
		c.close()
		return nil, fmt.Errorf("login: catalogue decoded ConnectResponse as %T", msg)
	}
	if resp.InvalidPassword {
		return nil, fmt.Errorf("%w: device %q rejected the password", ErrInvalidPassword, d.info.Name)
	}

	c.mu.Lock()
	c.state = next
	c.sessionStarted = true
	c.mu.Unlock()

	c.log.Info("session started", zap.String("device", d.info.Name))

	return newSession(c, d.info), nil
}
