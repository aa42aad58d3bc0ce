package api

import "github.com/muurk/esplink/protocol"

// LightCommandRequest changes a light's state. Each value travels with a
// Has flag so the device can tell "turn off" apart from "leave alone".
// Commands are fire-and-forget; the device confirms by pushing the
// resulting LightStateResponse to state subscribers.
type LightCommandRequest struct {
	Key           uint32
	HasState      bool
	State         bool
	HasBrightness bool
	Brightness    float32
}

func (*LightCommandRequest) MessageType() protocol.Type { return TypeLightCommandRequest }

func (m *LightCommandRequest) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendBoolField(b, 2, m.HasState)
	b = appendBoolField(b, 3, m.State)
	b = appendBoolField(b, 4, m.HasBrightness)
	b = appendFloatField(b, 5, m.Brightness)
	return b, nil
}

func (m *LightCommandRequest) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.HasState = d.boolVal()
		case 3:
			m.State = d.boolVal()
		case 4:
			m.HasBrightness = d.boolVal()
		case 5:
			m.Brightness = d.floatVal()
		}
	}
	return d.err()
}

// SwitchCommandRequest sets a switch on or off.
type SwitchCommandRequest struct {
	Key   uint32
	State bool
}

func (*SwitchCommandRequest) MessageType() protocol.Type { return TypeSwitchCommandRequest }

func (m *SwitchCommandRequest) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendBoolField(b, 2, m.State)
	return b, nil
}

func (m *SwitchCommandRequest) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.boolVal()
		}
	}
	return d.err()
}
