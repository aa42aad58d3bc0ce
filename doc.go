// Package esplink is a client session core for the ESPHome-style native
// device API.
//
// The caller supplies an already-connected duplex byte stream (TCP,
// WebSocket bridge, serial, an in-memory pipe in tests); the package
// never dials and never closes the stream. On top of that stream it runs
// the handshake, the frame codec, the login sub-protocol, and a session
// layer with request/response correlation, keepalive housekeeping, and
// an unsolicited-message sink.
//
// # Connection Phases
//
// A connection advances through typed handles that mirror the protocol
// phases:
//
//	Conn (unconnected)
//	  └─ Connect(ctx, ClientInfo) → Device (connected, holds DeviceInfo)
//	       ├─ Authenticate(ctx, password) → Session (password devices)
//	       └─ Session(ctx)               → Session (open devices)
//
// Connect performs the hello exchange plus a device info exchange, so
// the Device snapshot already tells whether a password is needed. Any
// phase violation is rejected at runtime with ErrInvalidState.
//
// # Usage Example
//
//	stream, err := net.Dial("tcp", "kitchen-light.local:6053")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//
//	conn := esplink.NewConn(stream)
//	device, err := conn.Connect(ctx, esplink.ClientInfo{Name: "myapp", Version: "1.0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := device.Session(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	entities, err := session.ListEntities(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range entities {
//	    fmt.Printf("%s %q key=%d\n", e.Kind, e.Name, e.Key)
//	}
//
//	session.OnMessage(func(msg api.Message) {
//	    if st, ok := msg.(*api.SensorStateResponse); ok {
//	        fmt.Printf("key %d reads %f\n", st.Key, st.State)
//	    }
//	})
//	if err := session.SubscribeStates(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Request Correlation
//
// The wire protocol carries no request IDs. A reply is matched to its
// request purely by type tag, so Request registers the expected tag in a
// pending table and at most one request per tag may be outstanding.
// Frames matching no pending entry flow to the OnMessage sink in wire
// order. The device's own pings, time queries and disconnect notices are
// answered by the session itself and never surface.
//
// # Encryption
//
// Devices configured for the encrypted transport are reached with
// WithEncryption(psk): Connect then runs the Noise handshake before the
// hello exchange. Connecting in plaintext to such a device fails with an
// error matching protocol.ErrEncryptionRequired.
//
// # Errors
//
// All failures wrap package sentinels checkable with errors.Is:
// ErrHandshakeFailed, ErrInvalidPassword, ErrTimeout,
// ErrConnectionClosed and friends. Transport faults are fatal and fail
// every pending request; a frame the catalogue cannot decode only fails
// its own request or is reported through OnError.
//
// # Concurrency
//
// Session methods are safe for concurrent use. Frame writes are
// serialized internally; a single goroutine owns all reads. Close is
// idempotent and unblocks every pending request with ErrConnectionClosed.
// When the stream supports read deadlines the read loop is unblocked
// during Close; otherwise it exits when the caller closes the stream.
package esplink
