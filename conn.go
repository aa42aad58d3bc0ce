package esplink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/esplink/api"
	"github.com/muurk/esplink/protocol"
)

// Protocol version this client implements. Devices must agree on the
// major version; the minor version only gates optional features.
const (
	supportedMajor = 1
	supportedMinor = 7
)

// State is the protocol phase of a connection.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Catalogue encodes and decodes message payloads. api.Registry is the
// stock implementation; a custom Catalogue may extend the message set,
// but the session-control tags (hello, connect, ping, disconnect, device
// info, time) must keep decoding to the stock api types because the core
// inspects those.
type Catalogue interface {
	Encode(msg api.Message) (protocol.Type, []byte, error)
	Decode(t protocol.Type, payload []byte) (api.Message, error)
}

// ClientInfo identifies this client to the device during the handshake.
// Devices show it in their logs and web UI.
type ClientInfo struct {
	Name    string
	Version string
}

func (ci ClientInfo) String() string {
	s := strings.TrimSpace(ci.Name + " " + ci.Version)
	if s == "" {
		return "esplink"
	}
	return s
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger for connection and session events. The
// default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Conn) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCatalogue replaces the stock message catalogue.
func WithCatalogue(cat Catalogue) Option {
	return func(c *Conn) {
		if cat != nil {
			c.cat = cat
		}
	}
}

// WithMaxFrameSize bounds incoming frame payloads. Zero keeps the
// protocol default.
func WithMaxFrameSize(n uint32) Option {
	return func(c *Conn) { c.maxFrame = n }
}

// WithEncryption switches the connection to the encrypted transport
// using the device's base64-encoded 32-byte pre-shared key.
func WithEncryption(psk string) Option {
	return func(c *Conn) {
		c.psk = psk
		c.encrypted = true
	}
}

// Conn is a client endpoint over a caller-supplied duplex stream. The
// core never dials and never closes the stream; both stay with the
// caller. A Conn is single use: Connect runs the handshake once, and a
// failed handshake leaves it closed.
type Conn struct {
	stream    io.ReadWriter
	log       *zap.Logger
	cat       Catalogue
	maxFrame  uint32
	psk       string
	encrypted bool

	mu             sync.Mutex
	state          State
	framer         protocol.Framer
	sessionStarted bool
}

// NewConn wraps an already-connected stream. The stream must be fresh:
// no bytes read or written yet.
func NewConn(stream io.ReadWriter, opts ...Option) *Conn {
	c := &Conn{
		stream: stream,
		log:    zap.NewNop(),
		cat:    api.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current protocol phase.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect runs the handshake: the transport handshake when encryption is
// on, the hello exchange, and a device info exchange. On success the
// returned Device holds the merged snapshot and the connection is
// Connected. The context deadline is mapped onto the stream when it
// supports deadlines.
func (c *Conn) Connect(ctx context.Context, info ClientInfo) (*Device, error) {
	c.mu.Lock()
	if c.state != StateUnconnected {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: connect while %s", ErrInvalidState, c.state)
	}
	c.mu.Unlock()

	framer, err := c.buildFramer()
	if err != nil {
		c.close()
		return nil, handshakeErr(err)
	}

	restore := c.applyDeadline(ctx)
	defer restore()

	if err := framer.Handshake(ctx); err != nil {
		c.close()
		return nil, handshakeErr(ctxPreferred(ctx, err))
	}

	hello := &api.HelloRequest{
		ClientInfo:      info.String(),
		APIVersionMajor: supportedMajor,
		APIVersionMinor: supportedMinor,
	}
	msg, err := c.exchange(framer, hello, api.TypeHelloResponse)
	if err != nil {
		c.close()
		return nil, handshakeErr(ctxPreferred(ctx, err))
	}
	helloResp, ok := msg.(*api.HelloResponse)
	if !ok {
		c.close()
		return nil, handshakeErr(fmt.Errorf("catalogue decoded HelloResponse as %T", msg))
	}

	if helloResp.APIVersionMajor != supportedMajor {
		c.close()
		return nil, handshakeErr(fmt.Errorf("%w: device speaks api %d.%d, client speaks %d.%d",
			ErrUnsupportedFeature,
			helloResp.APIVersionMajor, helloResp.APIVersionMinor,
			supportedMajor, supportedMinor))
	}

	// Device info is allowed before login and completes the snapshot,
	// in particular whether a password is expected at all.
	msg, err = c.exchange(framer, &api.DeviceInfoRequest{}, api.TypeDeviceInfoResponse)
	if err != nil {
		c.close()
		return nil, handshakeErr(ctxPreferred(ctx, err))
	}
	infoResp, ok := msg.(*api.DeviceInfoResponse)
	if !ok {
		c.close()
		return nil, handshakeErr(fmt.Errorf("catalogue decoded DeviceInfoResponse as %T", msg))
	}

	snapshot := DeviceInfo{
		Name:            infoResp.Name,
		ServerInfo:      helloResp.ServerInfo,
		MACAddress:      infoResp.MACAddress,
		Model:           infoResp.Model,
		EsphomeVersion:  infoResp.EsphomeVersion,
		CompilationTime: infoResp.CompilationTime,
		APIVersion:      APIVersion{Major: helloResp.APIVersionMajor, Minor: helloResp.APIVersionMinor},
		AuthRequired:    infoResp.UsesPassword,
		HasDeepSleep:    infoResp.HasDeepSleep,
	}
	if snapshot.Name == "" {
		snapshot.Name = helloResp.Name
	}

	c.mu.Lock()
	c.state = StateConnected
	c.framer = framer
	c.mu.Unlock()

	c.log.Info("connected to device",
		zap.String("device", snapshot.Name),
		zap.String("api_version", snapshot.APIVersion.String()),
		zap.Bool("auth_required", snapshot.AuthRequired))

	return &Device{conn: c, info: snapshot}, nil
}

func (c *Conn) buildFramer() (protocol.Framer, error) {
	if !c.encrypted {
		return protocol.NewPlainFramer(c.stream, c.maxFrame), nil
	}
	key, err := protocol.ParsePSK(c.psk)
	if err != nil {
		return nil, err
	}
	return protocol.NewNoiseFramer(c.stream, key, c.maxFrame)
}

// exchange writes one message and reads the single expected reply. Used
// only before the session read loop exists.
func (c *Conn) exchange(framer protocol.Framer, req api.Message, want protocol.Type) (api.Message, error) {
	tag, payload, err := c.cat.Encode(req)
	if err != nil {
		return nil, err
	}
	if err := framer.WriteMessage(tag, payload); err != nil {
		return nil, fmt.Errorf("send %s: %w", api.TypeName(tag), err)
	}

	gotTag, gotPayload, err := framer.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("await %s: %w", api.TypeName(want), err)
	}
	if gotTag != want {
		return nil, fmt.Errorf("%w: want %s, got %s",
			ErrUnexpectedMessage, api.TypeName(want), api.TypeName(gotTag))
	}
	return c.cat.Decode(gotTag, gotPayload)
}

func (c *Conn) close() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}

type deadlineStream interface {
	SetDeadline(t time.Time) error
}

type readDeadlineStream interface {
	SetReadDeadline(t time.Time) error
}

// applyDeadline maps the context deadline onto the stream when both
// sides can. The returned func clears it again.
func (c *Conn) applyDeadline(ctx context.Context) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}
	ds, ok := c.stream.(deadlineStream)
	if !ok {
		return func() {}
	}
	if err := ds.SetDeadline(deadline); err != nil {
		return func() {}
	}
	return func() { _ = ds.SetDeadline(time.Time{}) }
}

// ctxPreferred swaps a stream deadline error for the context's own error
// so callers see the cancellation they caused.
func ctxPreferred(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func handshakeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
}
