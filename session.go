package esplink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/esplink/api"
	"github.com/muurk/esplink/protocol"
)

// pendingReply is what the read loop hands a waiting request.
type pendingReply struct {
	msg api.Message
	err error
}

// pendingRequest is one entry in the correlation table. Single-shot
// entries are removed by the read loop before delivery; stream entries
// stay registered across many frames until the waiter unregisters them.
// gone is closed when the waiter stops listening so an in-flight
// delivery never blocks the loop.
type pendingRequest struct {
	stream   bool
	tags     map[protocol.Type]struct{}
	ch       chan pendingReply
	gone     chan struct{}
	goneOnce sync.Once
}

func (p *pendingRequest) abandon() {
	p.goneOnce.Do(func() { close(p.gone) })
}

// Session is the operational phase of a connection. One goroutine reads
// frames continuously and routes each to housekeeping, to the pending
// request awaiting its type tag, or to the unsolicited sink. Writes from
// any goroutine are serialized. All methods are safe for concurrent use.
type Session struct {
	conn *Conn
	info DeviceInfo
	log  *zap.Logger
	cat  Catalogue

	writeMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	pending   map[protocol.Type]*pendingRequest
	states    map[uint32]api.Message
	onMessage func(api.Message)
	onError   func(error)

	closeOnce sync.Once
	doneCh    chan struct{}
	closeErr  error
}

func newSession(c *Conn, info DeviceInfo) *Session {
	s := &Session{
		conn:    c,
		info:    info,
		log:     c.log,
		cat:     c.cat,
		pending: make(map[protocol.Type]*pendingRequest),
		states:  make(map[uint32]api.Message),
		doneCh:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Info returns the handshake snapshot of the device this session talks to.
func (s *Session) Info() DeviceInfo { return s.info }

// OnMessage sets the sink for unsolicited messages: every decoded frame
// that matches no pending request. The sink runs synchronously on the
// read loop goroutine in wire order; a slow sink delays frame handling.
func (s *Session) OnMessage(fn func(api.Message)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OnError sets the sink for non-fatal faults: frames the catalogue
// cannot decode. The session keeps running after each report.
func (s *Session) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// LastState returns the most recent state report seen for an entity key.
func (s *Session) LastState(key uint32) (api.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.states[key]
	return msg, ok
}

// Send encodes and writes one message without awaiting any reply. A
// write failure is fatal to the session.
func (s *Session) Send(msg api.Message) error {
	select {
	case <-s.doneCh:
		return ErrConnectionClosed
	default:
	}

	tag, payload, err := s.cat.Encode(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	err = s.conn.framer.WriteMessage(tag, payload)
	s.writeMu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w: send %s: %w", ErrConnectionClosed, api.TypeName(tag), err)
		s.teardown(err)
		return err
	}

	s.log.Debug("sent message",
		zap.String("type", api.TypeName(tag)),
		zap.Int("payload_bytes", len(payload)))
	return nil
}

// Request writes msg and blocks until the read loop delivers the reply
// carrying the want type tag. The protocol has no request IDs, so the
// expected tag is the correlation key and only one request per tag may
// be outstanding (ErrRequestPending otherwise). The call ends when the
// reply arrives, the context fires (ErrTimeout on a deadline; a reply
// that raced the deadline is still returned), or the session closes.
func (s *Session) Request(ctx context.Context, msg api.Message, want protocol.Type) (api.Message, error) {
	entry, err := s.register(false, want)
	if err != nil {
		return nil, err
	}
	if err := s.Send(msg); err != nil {
		s.unregister(entry)
		return nil, err
	}

	select {
	case r := <-entry.ch:
		return r.msg, r.err
	case <-ctx.Done():
		if r, delivered := s.giveUp(entry, want); delivered {
			return r.msg, r.err
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no %s before deadline", ErrTimeout, api.TypeName(want))
		}
		return nil, ctx.Err()
	case <-s.doneCh:
		// Teardown deposits into every registered entry, so a reply
		// is guaranteed here.
		r := <-entry.ch
		return r.msg, r.err
	}
}

// register claims the given response tags for one waiter.
func (s *Session) register(stream bool, tags ...protocol.Type) (*pendingRequest, error) {
	entry := &pendingRequest{
		stream: stream,
		tags:   make(map[protocol.Type]struct{}, len(tags)),
		ch:     make(chan pendingReply, 1),
		gone:   make(chan struct{}),
	}
	for _, t := range tags {
		entry.tags[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The closed flag and the pending table change under the same lock,
	// so an entry is either cleared by teardown or never admitted.
	if s.closed {
		return nil, ErrConnectionClosed
	}
	for _, t := range tags {
		if _, exists := s.pending[t]; exists {
			return nil, fmt.Errorf("%w: already awaiting %s", ErrRequestPending, api.TypeName(t))
		}
	}
	for _, t := range tags {
		s.pending[t] = entry
	}
	return entry, nil
}

func (s *Session) unregister(entry *pendingRequest) {
	s.mu.Lock()
	for t := range entry.tags {
		if s.pending[t] == entry {
			delete(s.pending, t)
		}
	}
	s.mu.Unlock()
	entry.abandon()
}

// giveUp resolves the race between a context firing and the reply
// arriving. If the entry is still registered nothing was delivered and
// the claim is withdrawn; if the read loop already removed it, the reply
// is on its way and is returned instead of the timeout.
func (s *Session) giveUp(entry *pendingRequest, want protocol.Type) (pendingReply, bool) {
	s.mu.Lock()
	if s.pending[want] == entry {
		for t := range entry.tags {
			delete(s.pending, t)
		}
		s.mu.Unlock()
		entry.abandon()
		return pendingReply{}, false
	}
	s.mu.Unlock()
	return <-entry.ch, true
}

// Ping round-trips a keepalive probe.
func (s *Session) Ping(ctx context.Context) error {
	_, err := s.Request(ctx, &api.PingRequest{}, api.TypePingResponse)
	return err
}

// DeviceTime asks the device for its wall-clock time.
func (s *Session) DeviceTime(ctx context.Context) (time.Time, error) {
	msg, err := s.Request(ctx, &api.GetTimeRequest{}, api.TypeGetTimeResponse)
	if err != nil {
		return time.Time{}, err
	}
	resp, ok := msg.(*api.GetTimeResponse)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %T in place of GetTimeResponse", ErrUnexpectedMessage, msg)
	}
	return time.Unix(int64(resp.EpochSeconds), 0), nil
}

var listEntitiesTags = []protocol.Type{
	api.TypeListEntitiesDoneResponse,
	api.TypeListEntitiesBinarySensorResponse,
	api.TypeListEntitiesCoverResponse,
	api.TypeListEntitiesFanResponse,
	api.TypeListEntitiesLightResponse,
	api.TypeListEntitiesSensorResponse,
	api.TypeListEntitiesSwitchResponse,
	api.TypeListEntitiesTextSensorResponse,
	api.TypeListEntitiesServicesResponse,
	api.TypeListEntitiesCameraResponse,
	api.TypeListEntitiesClimateResponse,
	api.TypeListEntitiesNumberResponse,
	api.TypeListEntitiesSelectResponse,
}

// ListEntities asks the device for its entity inventory. Descriptions of
// every kind stream in until the done marker; the collected list is
// returned in wire order.
func (s *Session) ListEntities(ctx context.Context) ([]Entity, error) {
	entry, err := s.register(true, listEntitiesTags...)
	if err != nil {
		return nil, err
	}
	if err := s.Send(&api.ListEntitiesRequest{}); err != nil {
		s.unregister(entry)
		return nil, err
	}

	var entities []Entity
	for {
		select {
		case r := <-entry.ch:
			if r.err != nil {
				s.unregister(entry)
				return nil, r.err
			}
			if _, done := r.msg.(*api.ListEntitiesDoneResponse); done {
				s.unregister(entry)
				return entities, nil
			}
			if em, ok := r.msg.(api.EntityMessage); ok {
				entities = append(entities, newEntity(em))
			}
		case <-ctx.Done():
			s.unregister(entry)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: entity listing incomplete", ErrTimeout)
			}
			return nil, ctx.Err()
		case <-s.doneCh:
			s.unregister(entry)
			return nil, ErrConnectionClosed
		}
	}
}

// SubscribeStates asks the device to push entity state updates. The
// device answers with a snapshot of every entity and keeps pushing on
// change; updates arrive through OnMessage and LastState.
func (s *Session) SubscribeStates() error {
	return s.Send(&api.SubscribeStatesRequest{})
}

// SubscribeLogs asks the device to stream its log output at the given
// level. Lines arrive through OnMessage as SubscribeLogsResponse.
func (s *Session) SubscribeLogs(level api.LogLevel, dumpConfig bool) error {
	return s.Send(&api.SubscribeLogsRequest{Level: level, DumpConfig: dumpConfig})
}

// Disconnect performs the orderly shutdown exchange and closes the
// session. The session is closed even when the exchange fails.
func (s *Session) Disconnect(ctx context.Context) error {
	_, err := s.Request(ctx, &api.DisconnectRequest{}, api.TypeDisconnectResponse)
	s.teardown(nil)
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		return err
	}
	return nil
}

// Close tears the session down: pending requests fail with
// ErrConnectionClosed and later operations are rejected. Close never
// touches the caller's stream and may be called any number of times.
func (s *Session) Close() error {
	s.teardown(nil)
	return nil
}

// Done is closed when the session has torn down for any reason.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Err reports why the session ended: nil while running and after a
// caller-initiated Close, otherwise the fatal error.
func (s *Session) Err() error {
	select {
	case <-s.doneCh:
		return s.closeErr
	default:
		return nil
	}
}

func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		entries := make(map[*pendingRequest]struct{}, len(s.pending))
		for _, e := range s.pending {
			entries[e] = struct{}{}
		}
		s.pending = make(map[protocol.Type]*pendingRequest)
		s.mu.Unlock()

		for e := range entries {
			e.abandon()
			select {
			case e.ch <- pendingReply{err: ErrConnectionClosed}:
			default:
			}
		}

		s.closeErr = cause
		close(s.doneCh)

		s.conn.close()

		// Unblock the read loop where the stream supports deadlines.
		// Otherwise the loop exits when the caller closes the stream.
		if rd, ok := s.conn.stream.(readDeadlineStream); ok {
			_ = rd.SetReadDeadline(time.Now())
		}

		if cause != nil {
			s.log.Info("session closed", zap.Error(cause))
		} else {
			s.log.Info("session closed")
		}
	})
}

func (s *Session) readLoop() {
	for {
		tag, payload, err := s.conn.framer.ReadMessage()
		if err != nil {
			select {
			case <-s.doneCh:
				// Teardown poked the reader; nothing to report.
			default:
				s.teardown(fmt.Errorf("%w: read: %w", ErrConnectionClosed, err))
			}
			return
		}

		s.handle(tag, payload)

		select {
		case <-s.doneCh:
			return
		default:
		}
	}
}

// handle routes one frame: housekeeping first, then the pending table,
// then the unsolicited sink.
func (s *Session) handle(tag protocol.Type, payload []byte) {
	switch tag {
	case api.TypePingRequest:
		s.answer(&api.PingResponse{})
		return
	case api.TypeGetTimeRequest:
		s.answer(&api.GetTimeResponse{EpochSeconds: uint32(time.Now().Unix())})
		return
	case api.TypeDisconnectRequest:
		s.answer(&api.DisconnectResponse{})
		s.teardown(fmt.Errorf("%w: device requested disconnect", ErrConnectionClosed))
		return
	}

	s.mu.Lock()
	entry := s.pending[tag]
	if entry != nil && !entry.stream {
		for t := range entry.tags {
			delete(s.pending, t)
		}
	}
	sink, errSink := s.onMessage, s.onError
	s.mu.Unlock()

	msg, err := s.cat.Decode(tag, payload)

	if entry != nil {
		select {
		case entry.ch <- pendingReply{msg: msg, err: err}:
		case <-entry.gone:
		}
		return
	}

	if err != nil {
		// Catalogue unfamiliarity never kills the session.
		s.log.Debug("dropping undecodable frame",
			zap.Uint32("type", uint32(tag)), zap.Error(err))
		if errSink != nil {
			errSink(err)
		}
		return
	}

	if st, ok := msg.(api.StateMessage); ok {
		s.mu.Lock()
		s.states[st.EntityKey()] = msg
		s.mu.Unlock()
	}
	if sink != nil {
		sink(msg)
	}
}

// answer sends a housekeeping reply from the read loop.
func (s *Session) answer(msg api.Message) {
	if err := s.Send(msg); err != nil && !errors.Is(err, ErrConnectionClosed) {
		s.log.Debug("housekeeping reply failed", zap.Error(err))
	}
}
