package sensor

// Bluetooth Service and Characteristic UUIDs for the supported sensors
const (
	// Heart Rate Service
	ServiceUUIDHeartRate         = "0000180d-0000-1000-8000-00805f9b34fb"
	CharUUIDHeartRateMeasurement = "00002a37-0000-1000-8000-00805f9b34fb"

	// Cycling Power Service
	ServiceUUIDCyclingPower         = "00001818-0000-1000-8000-00805f9b34fb"
	CharUUIDCyclingPowerMeasurement = "00002a63-0000-1000-8000-00805f9b34fb"

	// Fitness Machine Service (FTMS)
	ServiceUUIDFTMS          = "00001826-0000-1000-8000-00805f9b34fb"
	CharUUIDIndoorBikeData   = "00002ad2-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSControlPoint = "00002ad9-0000-1000-8000-00805f9b34fb"
)

// MessageType tags an inbound notification buffer with its wire layout.
type MessageType int

const (
	MessageIndoorBikeData MessageType = iota
	MessageCyclingPowerMeasurement
	MessageHeartRateMeasurement
)

func (m MessageType) String() string {
	switch m {
	case MessageIndoorBikeData:
		return "IndoorBikeData"
	case MessageCyclingPowerMeasurement:
		return "CyclingPowerMeasurement"
	case MessageHeartRateMeasurement:
		return "HeartRateMeasurement"
	default:
		return "Unknown"
	}
}

// CharacteristicMode defines how we interact with a characteristic
type CharacteristicMode int

const (
	ModeNotify CharacteristicMode = iota // Subscribe to notifications
	ModeWrite                            // Write commands
)

// DataStream is a service/characteristic pair used for one purpose.
type DataStream struct {
	DisplayName        string
	ServiceUUID        string
	CharacteristicUUID string
	Mode               CharacteristicMode
}

var (
	DataStreamIndoorBikeData = DataStream{
		DisplayName:        "Indoor Bike Data",
		ServiceUUID:        ServiceUUIDFTMS,
		CharacteristicUUID: CharUUIDIndoorBikeData,
		Mode:               ModeNotify,
	}
	DataStreamFTMSControl = DataStream{
		DisplayName:        "Trainer Control",
		ServiceUUID:        ServiceUUIDFTMS,
		CharacteristicUUID: CharUUIDFTMSControlPoint,
		Mode:               ModeWrite,
	}
	DataStreamCyclingPower = DataStream{
		DisplayName:        "Cycling Power",
		ServiceUUID:        ServiceUUIDCyclingPower,
		CharacteristicUUID: CharUUIDCyclingPowerMeasurement,
		Mode:               ModeNotify,
	}
	DataStreamHeartRate = DataStream{
		DisplayName:        "Heart Rate",
		ServiceUUID:        ServiceUUIDHeartRate,
		CharacteristicUUID: CharUUIDHeartRateMeasurement,
		Mode:               ModeNotify,
	}
)
