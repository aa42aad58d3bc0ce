package api

import (
	"errors"
	"fmt"

	"github.com/muurk/esplink/protocol"
)

var (
	// ErrUnknownType reports a type tag with no registered message.
	ErrUnknownType = errors.New("api: unknown message type")

	// ErrMalformedPayload reports a payload that does not parse as the
	// message it claims to be.
	ErrMalformedPayload = errors.New("api: malformed message payload")
)

// Registry maps type tags to message constructors. It is the codec
// boundary between raw frames and typed messages: Encode turns a message
// into its tag and payload, Decode turns a tag and payload back into a
// fresh message value.
//
// A Registry is immutable after construction and safe for concurrent
// use. Register must not be called once the Registry is shared.
type Registry struct {
	types map[protocol.Type]func() Message
}

// NewRegistry returns a Registry with every stock message registered.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[protocol.Type]func() Message)}
	for _, ctor := range []func() Message{
		func() Message { return &HelloRequest{} },
		func() Message { return &HelloResponse{} },
		func() Message { return &ConnectRequest{} },
		func() Message { return &ConnectResponse{} },
		func() Message { return &DisconnectRequest{} },
		func() Message { return &DisconnectResponse{} },
		func() Message { return &PingRequest{} },
		func() Message { return &PingResponse{} },
		func() Message { return &DeviceInfoRequest{} },
		func() Message { return &DeviceInfoResponse{} },
		func() Message { return &ListEntitiesRequest{} },
		func() Message { return &ListEntitiesDoneResponse{} },
		func() Message { return &ListEntitiesBinarySensorResponse{} },
		func() Message { return &ListEntitiesCoverResponse{} },
		func() Message { return &ListEntitiesFanResponse{} },
		func() Message { return &ListEntitiesLightResponse{} },
		func() Message { return &ListEntitiesSensorResponse{} },
		func() Message { return &ListEntitiesSwitchResponse{} },
		func() Message { return &ListEntitiesTextSensorResponse{} },
		func() Message { return &ListEntitiesServicesResponse{} },
		func() Message { return &ListEntitiesCameraResponse{} },
		func() Message { return &ListEntitiesClimateResponse{} },
		func() Message { return &ListEntitiesNumberResponse{} },
		func() Message { return &ListEntitiesSelectResponse{} },
		func() Message { return &SubscribeStatesRequest{} },
		func() Message { return &BinarySensorStateResponse{} },
		func() Message { return &CoverStateResponse{} },
		func() Message { return &FanStateResponse{} },
		func() Message { return &LightStateResponse{} },
		func() Message { return &SensorStateResponse{} },
		func() Message { return &SwitchStateResponse{} },
		func() Message { return &TextSensorStateResponse{} },
		func() Message { return &ClimateStateResponse{} },
		func() Message { return &NumberStateResponse{} },
		func() Message { return &SelectStateResponse{} },
		func() Message { return &SubscribeLogsRequest{} },
		func() Message { return &SubscribeLogsResponse{} },
		func() Message { return &GetTimeRequest{} },
		func() Message { return &GetTimeResponse{} },
		func() Message { return &LightCommandRequest{} },
		func() Message { return &SwitchCommandRequest{} },
	} {
		r.Register(ctor().MessageType(), ctor)
	}
	return r
}

// Register adds a constructor for the given type tag, replacing any
// previous registration. It allows callers to extend the catalogue with
// vendor messages or override a stock decoding.
func (r *Registry) Register(t protocol.Type, ctor func() Message) {
	r.types[t] = ctor
}

// Encode serializes a message into its type tag and payload.
func (r *Registry) Encode(m Message) (protocol.Type, []byte, error) {
	payload, err := m.MarshalBinary()
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s: %w", TypeName(m.MessageType()), err)
	}
	return m.MessageType(), payload, nil
}

// Decode constructs the message registered for the tag and parses the
// payload into it. An unregistered tag yields ErrUnknownType.
func (r *Registry) Decode(t protocol.Type, payload []byte) (Message, error) {
	ctor, ok := r.types[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, TypeName(t))
	}
	m := ctor()
	if err := m.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TypeName(t), err)
	}
	return m, nil
}
