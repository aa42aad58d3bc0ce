package esplink

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/muurk/esplink/api"
)

// startSession brings up a full client/device pair over an in-memory
// pipe: handshake and passwordless login served by the harness, then the
// per-test script.
func startSession(t *testing.T, script func(d *deviceConn) error) (*Session, <-chan error) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	errc := startDevice(server, func(d *deviceConn) error {
		if err := d.serveHello(false); err != nil {
			return err
		}
		if err := d.serveLogin(""); err != nil {
			return err
		}
		if script != nil {
			return script(d)
		}
		return nil
	})

	conn := NewConn(client)
	device, err := conn.Connect(testCtx(t), ClientInfo{Name: "sesstest"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	sess, err := device.Session(testCtx(t))
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	t.Cleanup(func() { sess.Close() })

	return sess, errc
}

func TestSessionPing(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypePingRequest); err != nil {
			return err
		}
		return d.send(&api.PingResponse{})
	})

	if err := sess.Ping(testCtx(t)); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	waitDevice(t, errc)
}

func TestRequestInterleavedWithUnsolicited(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeGetTimeRequest); err != nil {
			return err
		}
		// An unsolicited state report squeezes in ahead of the reply.
		if err := d.send(&api.SensorStateResponse{Key: 9, State: 3.5}); err != nil {
			return err
		}
		return d.send(&api.GetTimeResponse{EpochSeconds: 1000})
	})

	var mu sync.Mutex
	var seen []api.Message
	sess.OnMessage(func(msg api.Message) {
		mu.Lock()
		seen = append(seen, msg)
		mu.Unlock()
	})

	got, err := sess.DeviceTime(testCtx(t))
	if err != nil {
		t.Fatalf("DeviceTime() error = %v", err)
	}
	if !got.Equal(time.Unix(1000, 0)) {
		t.Errorf("DeviceTime() = %v, want %v", got, time.Unix(1000, 0))
	}
	waitDevice(t, errc)

	// The state frame preceded the reply on the wire, so the sink must
	// have seen it before the request completed.
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("sink saw %d messages, want 1", len(seen))
	}
	state, ok := seen[0].(*api.SensorStateResponse)
	if !ok || state.Key != 9 {
		t.Errorf("sink saw %T %+v, want SensorStateResponse key 9", seen[0], seen[0])
	}
	if cached, ok := sess.LastState(9); !ok || cached.(*api.SensorStateResponse).State != 3.5 {
		t.Errorf("LastState(9) = %v, %v; want the 3.5 reading", cached, ok)
	}
}

func TestServerPingAnsweredTransparently(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		// Device-initiated keepalive; the session must answer on its own.
		if err := d.send(&api.PingRequest{}); err != nil {
			return err
		}
		if _, err := d.expect(api.TypePingResponse); err != nil {
			return err
		}
		// Then serve one client-initiated ping.
		if _, err := d.expect(api.TypePingRequest); err != nil {
			return err
		}
		return d.send(&api.PingResponse{})
	})

	var mu sync.Mutex
	var seen int
	sess.OnMessage(func(api.Message) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	if err := sess.Ping(testCtx(t)); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	waitDevice(t, errc)

	mu.Lock()
	defer mu.Unlock()
	if seen != 0 {
		t.Errorf("sink saw %d housekeeping messages, want 0", seen)
	}
}

func TestRequestTimeoutThenRetry(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		// Swallow the first time request, answer only the second.
		if _, err := d.expect(api.TypeGetTimeRequest); err != nil {
			return err
		}
		if _, err := d.expect(api.TypeGetTimeRequest); err != nil {
			return err
		}
		return d.send(&api.GetTimeResponse{EpochSeconds: 42})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := sess.DeviceTime(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("DeviceTime() error = %v, want ErrTimeout", err)
	}

	// The timed-out entry is gone, so the same kind can be requested again.
	got, err := sess.DeviceTime(testCtx(t))
	if err != nil {
		t.Fatalf("retry DeviceTime() error = %v", err)
	}
	if !got.Equal(time.Unix(42, 0)) {
		t.Errorf("DeviceTime() = %v, want %v", got, time.Unix(42, 0))
	}
	waitDevice(t, errc)
}

func TestRequestPendingConflict(t *testing.T) {
	received := make(chan struct{})
	release := make(chan struct{})
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeGetTimeRequest); err != nil {
			return err
		}
		close(received)
		<-release
		return d.send(&api.GetTimeResponse{EpochSeconds: 7})
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := sess.DeviceTime(testCtx(t))
		firstErr <- err
	}()
	<-received

	if _, err := sess.DeviceTime(testCtx(t)); !errors.Is(err, ErrRequestPending) {
		t.Errorf("concurrent DeviceTime() error = %v, want ErrRequestPending", err)
	}

	close(release)
	if err := <-firstErr; err != nil {
		t.Errorf("first DeviceTime() error = %v", err)
	}
	waitDevice(t, errc)
}

func TestCloseIdempotentAndFailsPending(t *testing.T) {
	received := make(chan struct{})
	release := make(chan struct{})
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeGetTimeRequest); err != nil {
			return err
		}
		close(received)
		<-release
		return nil
	})

	pendingErr := make(chan error, 1)
	go func() {
		_, err := sess.DeviceTime(context.Background())
		pendingErr <- err
	}()
	<-received

	if err := sess.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case err := <-pendingErr:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("pending request error = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending request not unblocked by Close")
	}

	select {
	case <-sess.Done():
	default:
		t.Error("Done() not closed after Close")
	}
	if err := sess.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after caller close", err)
	}

	if err := sess.Ping(testCtx(t)); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Ping() after close error = %v, want ErrConnectionClosed", err)
	}
	if err := sess.Send(&api.PingRequest{}); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send() after close error = %v, want ErrConnectionClosed", err)
	}

	close(release)
	waitDevice(t, errc)
}

func TestListEntities(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeListEntitiesRequest); err != nil {
			return err
		}
		msgs := []api.Message{
			&api.ListEntitiesBinarySensorResponse{
				EntityInfo:  api.EntityInfo{ObjectID: "door", Key: 1, Name: "Door"},
				DeviceClass: "door",
			},
			// A state report interleaved mid-listing must not disturb it.
			&api.SensorStateResponse{Key: 50, State: 19.5},
			&api.ListEntitiesLightResponse{
				EntityInfo:         api.EntityInfo{ObjectID: "porch", Key: 2, Name: "Porch"},
				SupportsBrightness: true,
			},
			&api.ListEntitiesServicesResponse{Name: "reboot", Key: 3},
			&api.ListEntitiesDoneResponse{},
		}
		for _, m := range msgs {
			if err := d.send(m); err != nil {
				return err
			}
		}
		return nil
	})

	var mu sync.Mutex
	var unsolicited []api.Message
	sess.OnMessage(func(msg api.Message) {
		mu.Lock()
		unsolicited = append(unsolicited, msg)
		mu.Unlock()
	})

	entities, err := sess.ListEntities(testCtx(t))
	if err != nil {
		t.Fatalf("ListEntities() error = %v", err)
	}
	waitDevice(t, errc)

	want := []Entity{
		{Kind: KindBinarySensor, Key: 1, ObjectID: "door", Name: "Door"},
		{Kind: KindLight, Key: 2, ObjectID: "porch", Name: "Porch"},
		{Kind: KindService, Key: 3, Name: "reboot"},
	}
	if len(entities) != len(want) {
		t.Fatalf("ListEntities() returned %d entities, want %d", len(entities), len(want))
	}
	for i, e := range entities {
		if e != want[i] {
			t.Errorf("entity[%d] = %+v, want %+v", i, e, want[i])
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(unsolicited) != 1 {
		t.Fatalf("sink saw %d messages, want the interleaved state only", len(unsolicited))
	}
	if st, ok := unsolicited[0].(*api.SensorStateResponse); !ok || st.Key != 50 {
		t.Errorf("sink saw %T, want SensorStateResponse key 50", unsolicited[0])
	}
}

func TestStateCacheTracksLatest(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeSubscribeStatesRequest); err != nil {
			return err
		}
		states := []api.Message{
			&api.SensorStateResponse{Key: 1, State: 21.5},
			&api.SensorStateResponse{Key: 1, State: 22.0},
			&api.SwitchStateResponse{Key: 2, State: true},
			&api.TextSensorStateResponse{Key: 3, State: "idle"},
		}
		for _, m := range states {
			if err := d.send(m); err != nil {
				return err
			}
		}
		// Serve a ping so the client can tell the states are in.
		if _, err := d.expect(api.TypePingRequest); err != nil {
			return err
		}
		return d.send(&api.PingResponse{})
	})

	if err := sess.SubscribeStates(); err != nil {
		t.Fatalf("SubscribeStates() error = %v", err)
	}
	if err := sess.Ping(testCtx(t)); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	waitDevice(t, errc)

	if msg, ok := sess.LastState(1); !ok {
		t.Error("LastState(1) missing")
	} else if st := msg.(*api.SensorStateResponse); st.State != 22.0 {
		t.Errorf("LastState(1) = %v, want the later 22.0 reading", st.State)
	}
	if msg, ok := sess.LastState(2); !ok {
		t.Error("LastState(2) missing")
	} else if st := msg.(*api.SwitchStateResponse); !st.State {
		t.Error("LastState(2) = off, want on")
	}
	if msg, ok := sess.LastState(3); !ok {
		t.Error("LastState(3) missing")
	} else if st := msg.(*api.TextSensorStateResponse); st.State != "idle" {
		t.Errorf("LastState(3) = %q, want idle", st.State)
	}
	if _, ok := sess.LastState(99); ok {
		t.Error("LastState(99) = ok, want missing")
	}
}

func TestServerTimeRequestAnswered(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		if err := d.send(&api.GetTimeRequest{}); err != nil {
			return err
		}
		msg, err := d.expect(api.TypeGetTimeResponse)
		if err != nil {
			return err
		}
		if msg.(*api.GetTimeResponse).EpochSeconds == 0 {
			return errors.New("client answered with zero epoch")
		}
		return nil
	})

	waitDevice(t, errc)

	// Housekeeping only; the session must still be alive.
	select {
	case <-sess.Done():
		t.Error("session closed by a time request")
	default:
	}
}

func TestServerDisconnect(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		if err := d.send(&api.DisconnectRequest{}); err != nil {
			return err
		}
		_, err := d.expect(api.TypeDisconnectResponse)
		return err
	})

	waitDevice(t, errc)

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session not closed after device disconnect")
	}
	if err := sess.Err(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Err() = %v, want ErrConnectionClosed", err)
	}
}

func TestDisconnectGraceful(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeDisconnectRequest); err != nil {
			return err
		}
		return d.send(&api.DisconnectResponse{})
	})

	if err := sess.Disconnect(testCtx(t)); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
	waitDevice(t, errc)

	select {
	case <-sess.Done():
	default:
		t.Error("Done() not closed after Disconnect")
	}
	if err := sess.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after graceful disconnect", err)
	}
}

func TestSendCommand(t *testing.T) {
	sess, errc := startSession(t, func(d *deviceConn) error {
		msg, err := d.expect(api.TypeSwitchCommandRequest)
		if err != nil {
			return err
		}
		cmd := msg.(*api.SwitchCommandRequest)
		if cmd.Key != 3 || !cmd.State {
			return errors.New("command fields lost in transit")
		}
		return nil
	})

	if err := sess.Send(&api.SwitchCommandRequest{Key: 3, State: true}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitDevice(t, errc)
}

func TestTransportErrorFailsPending(t *testing.T) {
	received := make(chan struct{})
	sess, errc := startSession(t, func(d *deviceConn) error {
		if _, err := d.expect(api.TypeGetTimeRequest); err != nil {
			return err
		}
		close(received)
		// Drop the connection without answering.
		if c, ok := d.stream.(io.Closer); ok {
			return c.Close()
		}
		return nil
	})

	pendingErr := make(chan error, 1)
	go func() {
		_, err := sess.DeviceTime(context.Background())
		pendingErr <- err
	}()
	<-received
	waitDevice(t, errc)

	select {
	case err := <-pendingErr:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("pending request error = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending request not unblocked by transport error")
	}

	if err := sess.Err(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Err() = %v, want ErrConnectionClosed", err)
	}
}
