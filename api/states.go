package api

import "github.com/muurk/esplink/protocol"

// SubscribeStatesRequest asks the device to push entity state updates.
// The device answers with an initial snapshot of every entity's state
// and sends further updates as they happen.
type SubscribeStatesRequest struct{ emptyPayload }

func (*SubscribeStatesRequest) MessageType() protocol.Type { return TypeSubscribeStatesRequest }

// BinarySensorStateResponse reports a binary sensor state.
type BinarySensorStateResponse struct {
	Key          uint32
	State        bool
	MissingState bool
}

func (*BinarySensorStateResponse) MessageType() protocol.Type { return TypeBinarySensorStateResponse }

// EntityKey returns the key of the entity this state belongs to.
func (m *BinarySensorStateResponse) EntityKey() uint32 { return m.Key }

func (m *BinarySensorStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendBoolField(b, 2, m.State)
	b = appendBoolField(b, 3, m.MissingState)
	return b, nil
}

func (m *BinarySensorStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.boolVal()
		case 3:
			m.MissingState = d.boolVal()
		}
	}
	return d.err()
}

// CoverStateResponse reports a cover position.
type CoverStateResponse struct {
	Key              uint32
	Position         float32
	Tilt             float32
	CurrentOperation uint32
}

func (*CoverStateResponse) MessageType() protocol.Type { return TypeCoverStateResponse }

func (m *CoverStateResponse) EntityKey() uint32 { return m.Key }

func (m *CoverStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendFloatField(b, 3, m.Position)
	b = appendFloatField(b, 4, m.Tilt)
	b = appendUvarintField(b, 5, uint64(m.CurrentOperation))
	return b, nil
}

func (m *CoverStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 3:
			m.Position = d.floatVal()
		case 4:
			m.Tilt = d.floatVal()
		case 5:
			m.CurrentOperation = d.uint32Val()
		}
	}
	return d.err()
}

// FanStateResponse reports a fan state.
type FanStateResponse struct {
	Key         uint32
	State       bool
	Oscillating bool
	Direction   uint32
	SpeedLevel  int32
}

func (*FanStateResponse) MessageType() protocol.Type { return TypeFanStateResponse }

func (m *FanStateResponse) EntityKey() uint32 { return m.Key }

func (m *FanStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendBoolField(b, 2, m.State)
	b = appendBoolField(b, 3, m.Oscillating)
	b = appendUvarintField(b, 5, uint64(m.Direction))
	b = appendInt32Field(b, 6, m.SpeedLevel)
	return b, nil
}

func (m *FanStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.boolVal()
		case 3:
			m.Oscillating = d.boolVal()
		case 5:
			m.Direction = d.uint32Val()
		case 6:
			m.SpeedLevel = d.int32Val()
		}
	}
	return d.err()
}

// LightStateResponse reports a light state including color channels.
type LightStateResponse struct {
	Key              uint32
	State            bool
	Brightness       float32
	Red              float32
	Green            float32
	Blue             float32
	White            float32
	ColorTemperature float32
	Effect           string
}

func (*LightStateResponse) MessageType() protocol.Type { return TypeLightStateResponse }

func (m *LightStateResponse) EntityKey() uint32 { return m.Key }

func (m *LightStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendBoolField(b, 2, m.State)
	b = appendFloatField(b, 3, m.Brightness)
	b = appendFloatField(b, 4, m.Red)
	b = appendFloatField(b, 5, m.Green)
	b = appendFloatField(b, 6, m.Blue)
	b = appendFloatField(b, 7, m.White)
	b = appendFloatField(b, 8, m.ColorTemperature)
	b = appendStringField(b, 9, m.Effect)
	return b, nil
}

func (m *LightStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.boolVal()
		case 3:
			m.Brightness = d.floatVal()
		case 4:
			m.Red = d.floatVal()
		case 5:
			m.Green = d.floatVal()
		case 6:
			m.Blue = d.floatVal()
		case 7:
			m.White = d.floatVal()
		case 8:
			m.ColorTemperature = d.floatVal()
		case 9:
			m.Effect = d.stringVal()
		}
	}
	return d.err()
}

// SensorStateResponse reports a numeric sensor reading.
type SensorStateResponse struct {
	Key          uint32
	State        float32
	MissingState bool
}

func (*SensorStateResponse) MessageType() protocol.Type { return TypeSensorStateResponse }

func (m *SensorStateResponse) EntityKey() uint32 { return m.Key }

func (m *SensorStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendFloatField(b, 2, m.State)
	b = appendBoolField(b, 3, m.MissingState)
	return b, nil
}

func (m *SensorStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.floatVal()
		case 3:
			m.MissingState = d.boolVal()
		}
	}
	return d.err()
}

// SwitchStateResponse reports a switch state.
type SwitchStateResponse struct {
	Key   uint32
	State bool
}

func (*SwitchStateResponse) MessageType() protocol.Type { return TypeSwitchStateResponse }

func (m *SwitchStateResponse) EntityKey() uint32 { return m.Key }

func (m *SwitchStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendBoolField(b, 2, m.State)
	return b, nil
}

func (m *SwitchStateResponse) UnmarshalBinary(payload []byte) error {
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

// TextSensorStateResponse reports a text sensor value.
type TextSensorStateResponse struct {
	Key          uint32
	State        string
	MissingState bool
}

func (*TextSensorStateResponse) MessageType() protocol.Type { return TypeTextSensorStateResponse }

func (m *TextSensorStateResponse) EntityKey() uint32 { return m.Key }

func (m *TextSensorStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendStringField(b, 2, m.State)
	b = appendBoolField(b, 3, m.MissingState)
	return b, nil
}

func (m *TextSensorStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.stringVal()
		case 3:
			m.MissingState = d.boolVal()
		}
	}
	return d.err()
}

// ClimateStateResponse reports a climate controller state.
type ClimateStateResponse struct {
	Key                   uint32
	Mode                  uint32
	CurrentTemperature    float32
	TargetTemperature     float32
	TargetTemperatureLow  float32
	TargetTemperatureHigh float32
	Action                uint32
}

func (*ClimateStateResponse) MessageType() protocol.Type { return TypeClimateStateResponse }

func (m *ClimateStateResponse) EntityKey() uint32 { return m.Key }

func (m *ClimateStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendUvarintField(b, 2, uint64(m.Mode))
	b = appendFloatField(b, 3, m.CurrentTemperature)
	b = appendFloatField(b, 4, m.TargetTemperature)
	b = appendFloatField(b, 5, m.TargetTemperatureLow)
	b = appendFloatField(b, 6, m.TargetTemperatureHigh)
	b = appendUvarintField(b, 8, uint64(m.Action))
	return b, nil
}

func (m *ClimateStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.Mode = d.uint32Val()
		case 3:
			m.CurrentTemperature = d.floatVal()
		case 4:
			m.TargetTemperature = d.floatVal()
		case 5:
			m.TargetTemperatureLow = d.floatVal()
		case 6:
			m.TargetTemperatureHigh = d.floatVal()
		case 8:
			m.Action = d.uint32Val()
		}
	}
	return d.err()
}

// NumberStateResponse reports a number entity value.
type NumberStateResponse struct {
	Key          uint32
	State        float32
	MissingState bool
}

func (*NumberStateResponse) MessageType() protocol.Type { return TypeNumberStateResponse }

func (m *NumberStateResponse) EntityKey() uint32 { return m.Key }

func (m *NumberStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendFloatField(b, 2, m.State)
	b = appendBoolField(b, 3, m.MissingState)
	return b, nil
}

func (m *NumberStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.floatVal()
		case 3:
			m.MissingState = d.boolVal()
		}
	}
	return d.err()
}

// SelectStateResponse reports a select entity value.
type SelectStateResponse struct {
	Key          uint32
	State        string
	MissingState bool
}

func (*SelectStateResponse) MessageType() protocol.Type { return TypeSelectStateResponse }

func (m *SelectStateResponse) EntityKey() uint32 { return m.Key }

func (m *SelectStateResponse) MarshalBinary() ([]byte, error) {
	b := appendFixed32Field(nil, 1, m.Key)
	b = appendStringField(b, 2, m.State)
	b = appendBoolField(b, 3, m.MissingState)
	return b, nil
}

func (m *SelectStateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Key = d.fixed32Val()
		case 2:
			m.State = d.stringVal()
		case 3:
			m.MissingState = d.boolVal()
		}
	}
	return d.err()
}

// SubscribeLogsRequest asks the device to stream its log output at the
// given level. DumpConfig additionally requests a one-time dump of the
// device configuration through the log stream.
type SubscribeLogsRequest struct {
	Level      LogLevel
	DumpConfig bool
}

func (*SubscribeLogsRequest) MessageType() protocol.Type { return TypeSubscribeLogsRequest }

func (m *SubscribeLogsRequest) MarshalBinary() ([]byte, error) {
	b := appendUvarintField(nil, 1, uint64(m.Level))
	b = appendBoolField(b, 2, m.DumpConfig)
	return b, nil
}

func (m *SubscribeLogsRequest) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Level = LogLevel(d.uint32Val())
		case 2:
			m.DumpConfig = d.boolVal()
		}
	}
	return d.err()
}

// SubscribeLogsResponse carries one log line from the device.
type SubscribeLogsResponse struct {
	Level   LogLevel
	Message string
}

func (*SubscribeLogsResponse) MessageType() protocol.Type { return TypeSubscribeLogsResponse }

func (m *SubscribeLogsResponse) MarshalBinary() ([]byte, error) {
	b := appendUvarintField(nil, 1, uint64(m.Level))
	b = appendStringField(b, 3, m.Message)
	return b, nil
}

func (m *SubscribeLogsResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Level = LogLevel(d.uint32Val())
		case 3:
			m.Message = d.stringVal()
		}
	}
	return d.err()
}
