package api

import "github.com/muurk/esplink/protocol"

// EntityInfo carries the identification fields shared by every entity
// description. Embedding it gives a message the common field layout
// (object_id, key, name, unique_id in fields 1 through 4) and the
// EntityMessage interface.
type EntityInfo struct {
	ObjectID string
	Key      uint32
	Name     string
	UniqueID string
}

// Entity returns the common identification fields.
func (e EntityInfo) Entity() EntityInfo { return e }

func (e EntityInfo) appendTo(b []byte) []byte {
	b = appendStringField(b, 1, e.ObjectID)
	b = appendFixed32Field(b, 2, e.Key)
	b = appendStringField(b, 3, e.Name)
	b = appendStringField(b, 4, e.UniqueID)
	return b
}

// consume claims the common fields, leaving the rest to the embedder.
func (e *EntityInfo) consume(d *fieldDecoder) bool {
	switch d.field {
	case 1:
		e.ObjectID = d.stringVal()
	case 2:
		e.Key = d.fixed32Val()
	case 3:
		e.Name = d.stringVal()
	case 4:
		e.UniqueID = d.stringVal()
	default:
		return false
	}
	return true
}

// ListEntitiesRequest starts an entity listing. The device answers with
// one description per entity and a ListEntitiesDoneResponse terminator.
type ListEntitiesRequest struct{ emptyPayload }

func (*ListEntitiesRequest) MessageType() protocol.Type { return TypeListEntitiesRequest }

// ListEntitiesDoneResponse terminates an entity listing.
type ListEntitiesDoneResponse struct{ emptyPayload }

func (*ListEntitiesDoneResponse) MessageType() protocol.Type { return TypeListEntitiesDoneResponse }

// ListEntitiesBinarySensorResponse describes a binary sensor.
type ListEntitiesBinarySensorResponse struct {
	EntityInfo
	DeviceClass          string
	IsStatusBinarySensor bool
}

func (*ListEntitiesBinarySensorResponse) MessageType() protocol.Type {
	return TypeListEntitiesBinarySensorResponse
}

func (m *ListEntitiesBinarySensorResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendStringField(b, 5, m.DeviceClass)
	b = appendBoolField(b, 6, m.IsStatusBinarySensor)
	return b, nil
}

func (m *ListEntitiesBinarySensorResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.DeviceClass = d.stringVal()
		case 6:
			m.IsStatusBinarySensor = d.boolVal()
		}
	}
	return d.err()
}

// ListEntitiesCoverResponse describes a cover.
type ListEntitiesCoverResponse struct {
	EntityInfo
	AssumedState     bool
	SupportsPosition bool
	SupportsTilt     bool
	DeviceClass      string
}

func (*ListEntitiesCoverResponse) MessageType() protocol.Type { return TypeListEntitiesCoverResponse }

func (m *ListEntitiesCoverResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendBoolField(b, 5, m.AssumedState)
	b = appendBoolField(b, 6, m.SupportsPosition)
	b = appendBoolField(b, 7, m.SupportsTilt)
	b = appendStringField(b, 8, m.DeviceClass)
	return b, nil
}

func (m *ListEntitiesCoverResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.AssumedState = d.boolVal()
		case 6:
			m.SupportsPosition = d.boolVal()
		case 7:
			m.SupportsTilt = d.boolVal()
		case 8:
			m.DeviceClass = d.stringVal()
		}
	}
	return d.err()
}

// ListEntitiesFanResponse describes a fan.
type ListEntitiesFanResponse struct {
	EntityInfo
	SupportsOscillation bool
	SupportsSpeed       bool
	SupportsDirection   bool
	SupportedSpeedCount int32
}

func (*ListEntitiesFanResponse) MessageType() protocol.Type { return TypeListEntitiesFanResponse }

func (m *ListEntitiesFanResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendBoolField(b, 5, m.SupportsOscillation)
	b = appendBoolField(b, 6, m.SupportsSpeed)
	b = appendBoolField(b, 7, m.SupportsDirection)
	b = appendInt32Field(b, 8, m.SupportedSpeedCount)
	return b, nil
}

func (m *ListEntitiesFanResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.SupportsOscillation = d.boolVal()
		case 6:
			m.SupportsSpeed = d.boolVal()
		case 7:
			m.SupportsDirection = d.boolVal()
		case 8:
			m.SupportedSpeedCount = d.int32Val()
		}
	}
	return d.err()
}

// ListEntitiesLightResponse describes a light and its color capabilities.
type ListEntitiesLightResponse struct {
	EntityInfo
	SupportsBrightness       bool
	SupportsRGB              bool
	SupportsWhiteValue       bool
	SupportsColorTemperature bool
	MinMireds                float32
	MaxMireds                float32
	Effects                  []string
}

func (*ListEntitiesLightResponse) MessageType() protocol.Type { return TypeListEntitiesLightResponse }

func (m *ListEntitiesLightResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendBoolField(b, 5, m.SupportsBrightness)
	b = appendBoolField(b, 6, m.SupportsRGB)
	b = appendBoolField(b, 7, m.SupportsWhiteValue)
	b = appendBoolField(b, 8, m.SupportsColorTemperature)
	b = appendFloatField(b, 9, m.MinMireds)
	b = appendFloatField(b, 10, m.MaxMireds)
	b = appendRepeatedString(b, 11, m.Effects)
	return b, nil
}

func (m *ListEntitiesLightResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.SupportsBrightness = d.boolVal()
		case 6:
			m.SupportsRGB = d.boolVal()
		case 7:
			m.SupportsWhiteValue = d.boolVal()
		case 8:
			m.SupportsColorTemperature = d.boolVal()
		case 9:
			m.MinMireds = d.floatVal()
		case 10:
			m.MaxMireds = d.floatVal()
		case 11:
			m.Effects = append(m.Effects, d.stringVal())
		}
	}
	return d.err()
}

// ListEntitiesSensorResponse describes a numeric sensor.
type ListEntitiesSensorResponse struct {
	EntityInfo
	Icon              string
	UnitOfMeasurement string
	AccuracyDecimals  int32
	ForceUpdate       bool
	DeviceClass       string
}

func (*ListEntitiesSensorResponse) MessageType() protocol.Type { return TypeListEntitiesSensorResponse }

func (m *ListEntitiesSensorResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendStringField(b, 5, m.Icon)
	b = appendStringField(b, 6, m.UnitOfMeasurement)
	b = appendInt32Field(b, 7, m.AccuracyDecimals)
	b = appendBoolField(b, 8, m.ForceUpdate)
	b = appendStringField(b, 9, m.DeviceClass)
	return b, nil
}

func (m *ListEntitiesSensorResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.Icon = d.stringVal()
		case 6:
			m.UnitOfMeasurement = d.stringVal()
		case 7:
			m.AccuracyDecimals = d.int32Val()
		case 8:
			m.ForceUpdate = d.boolVal()
		case 9:
			m.DeviceClass = d.stringVal()
		}
	}
	return d.err()
}

// ListEntitiesSwitchResponse describes a switch.
type ListEntitiesSwitchResponse struct {
	EntityInfo
	Icon         string
	AssumedState bool
}

func (*ListEntitiesSwitchResponse) MessageType() protocol.Type { return TypeListEntitiesSwitchResponse }

func (m *ListEntitiesSwitchResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendStringField(b, 5, m.Icon)
	b = appendBoolField(b, 6, m.AssumedState)
	return b, nil
}

func (m *ListEntitiesSwitchResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.Icon = d.stringVal()
		case 6:
			m.AssumedState = d.boolVal()
		}
	}
	return d.err()
}

// ListEntitiesTextSensorResponse describes a text sensor.
type ListEntitiesTextSensorResponse struct {
	EntityInfo
	Icon string
}

func (*ListEntitiesTextSensorResponse) MessageType() protocol.Type {
	return TypeListEntitiesTextSensorResponse
}

func (m *ListEntitiesTextSensorResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	return appendStringField(b, 5, m.Icon), nil
}

func (m *ListEntitiesTextSensorResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		if d.field == 5 {
			m.Icon = d.stringVal()
		}
	}
	return d.err()
}

// ListEntitiesServicesResponse describes a user-defined service. Services
// use their own layout: name in field 1, key in field 2.
type ListEntitiesServicesResponse struct {
	Name string
	Key  uint32
}

func (*ListEntitiesServicesResponse) MessageType() protocol.Type {
	return TypeListEntitiesServicesResponse
}

// Entity adapts the service layout to the common identification shape.
func (m *ListEntitiesServicesResponse) Entity() EntityInfo {
	return EntityInfo{Name: m.Name, Key: m.Key}
}

func (m *ListEntitiesServicesResponse) MarshalBinary() ([]byte, error) {
	b := appendStringField(nil, 1, m.Name)
	return appendFixed32Field(b, 2, m.Key), nil
}

func (m *ListEntitiesServicesResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.Name = d.stringVal()
		case 2:
			m.Key = d.fixed32Val()
		}
	}
	return d.err()
}

// ListEntitiesCameraResponse describes a camera.
type ListEntitiesCameraResponse struct {
	EntityInfo
}

func (*ListEntitiesCameraResponse) MessageType() protocol.Type { return TypeListEntitiesCameraResponse }

func (m *ListEntitiesCameraResponse) MarshalBinary() ([]byte, error) {
	return m.EntityInfo.appendTo(nil), nil
}

func (m *ListEntitiesCameraResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		m.EntityInfo.consume(&d)
	}
	return d.err()
}

// ListEntitiesClimateResponse describes a climate controller.
type ListEntitiesClimateResponse struct {
	EntityInfo
	SupportsCurrentTemperature        bool
	SupportsTwoPointTargetTemperature bool
	VisualMinTemperature              float32
	VisualMaxTemperature              float32
	VisualTargetTemperatureStep       float32
}

func (*ListEntitiesClimateResponse) MessageType() protocol.Type {
	return TypeListEntitiesClimateResponse
}

func (m *ListEntitiesClimateResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendBoolField(b, 5, m.SupportsCurrentTemperature)
	b = appendBoolField(b, 6, m.SupportsTwoPointTargetTemperature)
	b = appendFloatField(b, 8, m.VisualMinTemperature)
	b = appendFloatField(b, 9, m.VisualMaxTemperature)
	b = appendFloatField(b, 10, m.VisualTargetTemperatureStep)
	return b, nil
}

func (m *ListEntitiesClimateResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.SupportsCurrentTemperature = d.boolVal()
		case 6:
			m.SupportsTwoPointTargetTemperature = d.boolVal()
		case 8:
			m.VisualMinTemperature = d.floatVal()
		case 9:
			m.VisualMaxTemperature = d.floatVal()
		case 10:
			m.VisualTargetTemperatureStep = d.floatVal()
		}
	}
	return d.err()
}

// ListEntitiesNumberResponse describes an adjustable number.
type ListEntitiesNumberResponse struct {
	EntityInfo
	Icon     string
	MinValue float32
	MaxValue float32
	Step     float32
}

func (*ListEntitiesNumberResponse) MessageType() protocol.Type { return TypeListEntitiesNumberResponse }

func (m *ListEntitiesNumberResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendStringField(b, 5, m.Icon)
	b = appendFloatField(b, 6, m.MinValue)
	b = appendFloatField(b, 7, m.MaxValue)
	b = appendFloatField(b, 8, m.Step)
	return b, nil
}

func (m *ListEntitiesNumberResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.Icon = d.stringVal()
		case 6:
			m.MinValue = d.floatVal()
		case 7:
			m.MaxValue = d.floatVal()
		case 8:
			m.Step = d.floatVal()
		}
	}
	return d.err()
}

// ListEntitiesSelectResponse describes a select with its option list.
type ListEntitiesSelectResponse struct {
	EntityInfo
	Icon    string
	Options []string
}

func (*ListEntitiesSelectResponse) MessageType() protocol.Type { return TypeListEntitiesSelectResponse }

func (m *ListEntitiesSelectResponse) MarshalBinary() ([]byte, error) {
	b := m.EntityInfo.appendTo(nil)
	b = appendStringField(b, 5, m.Icon)
	b = appendRepeatedString(b, 6, m.Options)
	return b, nil
}

func (m *ListEntitiesSelectResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if m.EntityInfo.consume(&d) {
			continue
		}
		switch d.field {
		case 5:
			m.Icon = d.stringVal()
		case 6:
			m.Options = append(m.Options, d.stringVal())
		}
	}
	return d.err()
}
