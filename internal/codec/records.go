package codec

import (
	"time"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// Record is any decoded telemetry message.
type Record interface {
	MessageType() sensor.MessageType
}

// IndoorBikeRecord is a decoded FTMS Indoor Bike Data notification.
// A nil field was not present in the message.
type IndoorBikeRecord struct {
	SpeedKmh             *float64
	AverageSpeedKmh      *float64
	CadenceRpm           *float64
	AverageCadenceRpm    *float64
	TotalDistanceMeters  *uint32
	ResistanceLevel      *int16
	PowerWatts           *int16
	AveragePowerWatts    *int16
	TotalEnergyKcal      *uint16
	EnergyPerHourKcal    *uint16
	EnergyPerMinuteKcal  *uint8
	HeartRateBpm         *uint8
	MetabolicEquivalent  *float64
	ElapsedTimeSeconds   *uint16
	RemainingTimeSeconds *uint16
}

func (*IndoorBikeRecord) MessageType() sensor.MessageType {
	return sensor.MessageIndoorBikeData
}

// PowerRecord is a decoded Cycling Power Measurement notification.
type PowerRecord struct {
	PowerWatts int16

	PedalPowerBalanceHalfPercent *uint8
	AccumulatedTorque            *uint16
	CumulativeWheelRevolutions   *uint32
	LastWheelEventTime           *uint16
	CumulativeCrankRevolutions   *uint16
	LastCrankEventTime           *uint16
	MaxForceNewtons              *int16
	MinForceNewtons              *int16
	MaxTorque                    *int16
	MinTorque                    *int16
	MaxAngleDegrees              *uint16
	MinAngleDegrees              *uint16
	TopDeadSpotDegrees           *uint16
	BottomDeadSpotDegrees        *uint16
	AccumulatedEnergyKj          *uint16

	// EstimatedCadenceRpm is never set by the decoder. Cadence needs two
	// crank samples; the aggregator fills it in.
	EstimatedCadenceRpm *float64
}

func (*PowerRecord) MessageType() sensor.MessageType {
	return sensor.MessageCyclingPowerMeasurement
}

type SensorContact int

const (
	ContactNotSupported SensorContact = iota
	ContactNotDetected
	ContactDetected
)

func (c SensorContact) String() string {
	switch c {
	case ContactNotDetected:
		return "not detected"
	case ContactDetected:
		return "detected"
	default:
		return "not supported"
	}
}

// HeartRateRecord is a decoded Heart Rate Measurement notification.
type HeartRateRecord struct {
	HeartRateBpm     uint16
	SensorContact    SensorContact
	EnergyExpendedKj *uint16
	// RRIntervals is nil when the message carries no RR field, and empty but
	// non-nil when the field is flagged with no values. Units are 1/1024 s.
	RRIntervals []uint16
}

func (*HeartRateRecord) MessageType() sensor.MessageType {
	return sensor.MessageHeartRateMeasurement
}

// RRDurations converts RRIntervals to durations.
func (r *HeartRateRecord) RRDurations() []time.Duration {
	if r.RRIntervals == nil {
		return nil
	}
	out := make([]time.Duration, len(r.RRIntervals))
	for i, rr := range r.RRIntervals {
		out[i] = time.Duration(rr) * time.Second / 1024
	}
	return out
}
