package api

import (
	"encoding"
	"fmt"

	"github.com/muurk/esplink/protocol"
)

// Message is one native-API message. Concrete messages carry their wire
// type tag and marshal their payload in the device's field layout.
type Message interface {
	MessageType() protocol.Type
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// StateMessage is implemented by every entity state report; the key ties
// the report back to the entity description it belongs to.
type StateMessage interface {
	Message
	EntityKey() uint32
}

// EntityMessage is implemented by every entity description response sent
// while a listing is in progress.
type EntityMessage interface {
	Message
	Entity() EntityInfo
}

// Wire type tags. The numbering is fixed by the device firmware and must
// not be reordered.
const (
	TypeHelloRequest                     protocol.Type = 1
	TypeHelloResponse                    protocol.Type = 2
	TypeConnectRequest                   protocol.Type = 3
	TypeConnectResponse                  protocol.Type = 4
	TypeDisconnectRequest                protocol.Type = 5
	TypeDisconnectResponse               protocol.Type = 6
	TypePingRequest                      protocol.Type = 7
	TypePingResponse                     protocol.Type = 8
	TypeDeviceInfoRequest                protocol.Type = 9
	TypeDeviceInfoResponse               protocol.Type = 10
	TypeListEntitiesRequest              protocol.Type = 11
	TypeListEntitiesBinarySensorResponse protocol.Type = 12
	TypeListEntitiesCoverResponse        protocol.Type = 13
	TypeListEntitiesFanResponse          protocol.Type = 14
	TypeListEntitiesLightResponse        protocol.Type = 15
	TypeListEntitiesSensorResponse       protocol.Type = 16
	TypeListEntitiesSwitchResponse       protocol.Type = 17
	TypeListEntitiesTextSensorResponse   protocol.Type = 18
	TypeListEntitiesDoneResponse         protocol.Type = 19
	TypeSubscribeStatesRequest           protocol.Type = 20
	TypeBinarySensorStateResponse        protocol.Type = 21
	TypeCoverStateResponse               protocol.Type = 22
	TypeFanStateResponse                 protocol.Type = 23
	TypeLightStateResponse               protocol.Type = 24
	TypeSensorStateResponse              protocol.Type = 25
	TypeSwitchStateResponse              protocol.Type = 26
	TypeTextSensorStateResponse          protocol.Type = 27
	TypeSubscribeLogsRequest             protocol.Type = 28
	TypeSubscribeLogsResponse            protocol.Type = 29
	TypeLightCommandRequest              protocol.Type = 32
	TypeSwitchCommandRequest             protocol.Type = 33
	TypeGetTimeRequest                   protocol.Type = 36
	TypeGetTimeResponse                  protocol.Type = 37
	TypeListEntitiesServicesResponse     protocol.Type = 41
	TypeListEntitiesCameraResponse       protocol.Type = 43
	TypeListEntitiesClimateResponse      protocol.Type = 46
	TypeClimateStateResponse             protocol.Type = 47
	TypeListEntitiesNumberResponse       protocol.Type = 49
	TypeNumberStateResponse              protocol.Type = 50
	TypeListEntitiesSelectResponse       protocol.Type = 52
	TypeSelectStateResponse              protocol.Type = 53
)

var typeNames = map[protocol.Type]string{
	TypeHelloRequest:                     "HelloRequest",
	TypeHelloResponse:                    "HelloResponse",
	TypeConnectRequest:                   "ConnectRequest",
	TypeConnectResponse:                  "ConnectResponse",
	TypeDisconnectRequest:                "DisconnectRequest",
	TypeDisconnectResponse:               "DisconnectResponse",
	TypePingRequest:                      "PingRequest",
	TypePingResponse:                     "PingResponse",
	TypeDeviceInfoRequest:                "DeviceInfoRequest",
	TypeDeviceInfoResponse:               "DeviceInfoResponse",
	TypeListEntitiesRequest:              "ListEntitiesRequest",
	TypeListEntitiesBinarySensorResponse: "ListEntitiesBinarySensorResponse",
	TypeListEntitiesCoverResponse:        "ListEntitiesCoverResponse",
	TypeListEntitiesFanResponse:          "ListEntitiesFanResponse",
	TypeListEntitiesLightResponse:        "ListEntitiesLightResponse",
	TypeListEntitiesSensorResponse:       "ListEntitiesSensorResponse",
	TypeListEntitiesSwitchResponse:       "ListEntitiesSwitchResponse",
	TypeListEntitiesTextSensorResponse:   "ListEntitiesTextSensorResponse",
	TypeListEntitiesDoneResponse:         "ListEntitiesDoneResponse",
	TypeSubscribeStatesRequest:           "SubscribeStatesRequest",
	TypeBinarySensorStateResponse:        "BinarySensorStateResponse",
	TypeCoverStateResponse:               "CoverStateResponse",
	TypeFanStateResponse:                 "FanStateResponse",
	TypeLightStateResponse:               "LightStateResponse",
	TypeSensorStateResponse:              "SensorStateResponse",
	TypeSwitchStateResponse:              "SwitchStateResponse",
	TypeTextSensorStateResponse:          "TextSensorStateResponse",
	TypeSubscribeLogsRequest:             "SubscribeLogsRequest",
	TypeSubscribeLogsResponse:            "SubscribeLogsResponse",
	TypeLightCommandRequest:              "LightCommandRequest",
	TypeSwitchCommandRequest:             "SwitchCommandRequest",
	TypeGetTimeRequest:                   "GetTimeRequest",
	TypeGetTimeResponse:                  "GetTimeResponse",
	TypeListEntitiesServicesResponse:     "ListEntitiesServicesResponse",
	TypeListEntitiesCameraResponse:       "ListEntitiesCameraResponse",
	TypeListEntitiesClimateResponse:      "ListEntitiesClimateResponse",
	TypeClimateStateResponse:             "ClimateStateResponse",
	TypeListEntitiesNumberResponse:       "ListEntitiesNumberResponse",
	TypeNumberStateResponse:              "NumberStateResponse",
	TypeListEntitiesSelectResponse:       "ListEntitiesSelectResponse",
	TypeSelectStateResponse:              "SelectStateResponse",
}

// TypeName returns a readable name for a type tag, for logs and errors.
// Unknown tags render as "type(N)".
func TypeName(t protocol.Type) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", t)
}

// LogLevel selects how much the device sends on a log subscription.
type LogLevel uint32

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelConfig
	LogLevelDebug
	LogLevelVerbose
	LogLevelVeryVerbose
)

// String returns the level name as device firmware spells it.
func (l LogLevel) String() string {
	switch l {
	case LogLevelNone:
		return "NONE"
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelConfig:
		return "CONFIG"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelVerbose:
		return "VERBOSE"
	case LogLevelVeryVerbose:
		return "VERY_VERBOSE"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint32(l))
	}
}
