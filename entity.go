package esplink

import "github.com/muurk/esplink/api"

// EntityKind classifies an entity by the message kind that described it.
type EntityKind int

const (
	KindUnknown EntityKind = iota
	KindBinarySensor
	KindCover
	KindFan
	KindLight
	KindSensor
	KindSwitch
	KindTextSensor
	KindService
	KindCamera
	KindClimate
	KindNumber
	KindSelect
)

func (k EntityKind) String() string {
	switch k {
	case KindBinarySensor:
		return "binary_sensor"
	case KindCover:
		return "cover"
	case KindFan:
		return "fan"
	case KindLight:
		return "light"
	case KindSensor:
		return "sensor"
	case KindSwitch:
		return "switch"
	case KindTextSensor:
		return "text_sensor"
	case KindService:
		return "service"
	case KindCamera:
		return "camera"
	case KindClimate:
		return "climate"
	case KindNumber:
		return "number"
	case KindSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Entity is one row of the device's inventory: the identification shared
// by every kind. The full kind-specific description remains available on
// the underlying api message.
type Entity struct {
	Kind     EntityKind
	Key      uint32
	ObjectID string
	Name     string
	UniqueID string
}

func newEntity(m api.EntityMessage) Entity {
	info := m.Entity()
	return Entity{
		Kind:     kindOf(m),
		Key:      info.Key,
		ObjectID: info.ObjectID,
		Name:     info.Name,
		UniqueID: info.UniqueID,
	}
}

func kindOf(m api.Message) EntityKind {
	switch m.(type) {
	case *api.ListEntitiesBinarySensorResponse:
		return KindBinarySensor
	case *api.ListEntitiesCoverResponse:
		return KindCover
	case *api.ListEntitiesFanResponse:
		return KindFan
	case *api.ListEntitiesLightResponse:
		return KindLight
	case *api.ListEntitiesSensorResponse:
		return KindSensor
	case *api.ListEntitiesSwitchResponse:
		return KindSwitch
	case *api.ListEntitiesTextSensorResponse:
		return KindTextSensor
	case *api.ListEntitiesServicesResponse:
		return KindService
	case *api.ListEntitiesCameraResponse:
		return KindCamera
	case *api.ListEntitiesClimateResponse:
		return KindClimate
	case *api.ListEntitiesNumberResponse:
		return KindNumber
	case *api.ListEntitiesSelectResponse:
		return KindSelect
	default:
		return KindUnknown
	}
}
