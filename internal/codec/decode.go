package codec

import (
	"fmt"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// Decode decodes buf according to its message type.
func Decode(mt sensor.MessageType, buf []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch mt {
	case sensor.MessageIndoorBikeData:
		rec, err = DecodeIndoorBikeData(buf)
	case sensor.MessageCyclingPowerMeasurement:
		rec, err = DecodeCyclingPowerMeasurement(buf)
	case sensor.MessageHeartRateMeasurement:
		rec, err = DecodeHeartRateMeasurement(buf)
	default:
		return nil, fmt.Errorf("no decoder for message type %v", mt)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
