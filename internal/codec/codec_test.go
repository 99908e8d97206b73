package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

func TestDecodeIndoorBikeData_SpeedAndPower(t *testing.T) {
	rec, err := DecodeIndoorBikeData([]byte{0x41, 0x00, 0x88, 0x13, 0x2C, 0x01})
	require.NoError(t, err)

	want := &IndoorBikeRecord{
		SpeedKmh:   ptr(50.0),
		PowerWatts: ptr(int16(300)),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("DecodeIndoorBikeData mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIndoorBikeData_AllBaseFields(t *testing.T) {
	buf := []byte{
		0xFF, 0x00, // flags: bits 0-7
		0xC4, 0x09, // speed 25.00
		0xB8, 0x0B, // avg speed 30.00
		0xB4, 0x00, // cadence 90.0
		0xA1, 0x00, // avg cadence 80.5
		0x40, 0xE2, 0x01, // distance 123456
		0xF6, 0xFF, // resistance -10
		0xFA, 0x00, // power 250
		0xC8, 0x00, // avg power 200
	}
	rec, err := DecodeIndoorBikeData(buf)
	require.NoError(t, err)

	want := &IndoorBikeRecord{
		SpeedKmh:            ptr(25.0),
		AverageSpeedKmh:     ptr(30.0),
		CadenceRpm:          ptr(90.0),
		AverageCadenceRpm:   ptr(80.5),
		TotalDistanceMeters: ptr(uint32(123456)),
		ResistanceLevel:     ptr(int16(-10)),
		PowerWatts:          ptr(int16(250)),
		AveragePowerWatts:   ptr(int16(200)),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIndoorBikeData_DistanceIsThreeBytes(t *testing.T) {
	// distance followed by power: a 4-byte read of the distance would pull
	// in the power's low byte
	buf := []byte{0x50, 0x00, 0xFF, 0xFF, 0xFF, 0x2C, 0x01}
	rec, err := DecodeIndoorBikeData(buf)
	require.NoError(t, err)
	require.NotNil(t, rec.TotalDistanceMeters)
	assert.Equal(t, uint32(0xFFFFFF), *rec.TotalDistanceMeters)
	require.NotNil(t, rec.PowerWatts)
	assert.Equal(t, int16(300), *rec.PowerWatts)
}

func TestDecodeIndoorBikeData_ExtendedFields(t *testing.T) {
	buf := []byte{
		0x00, 0x1F, // flags: bits 8-12
		0x2C, 0x01, 0x58, 0x02, 0x0A, // energy 300 kcal, 600 kcal/h, 10 kcal/min
		0x8C,       // heart rate 140
		0x4B,       // MET 7.5
		0x10, 0x0E, // elapsed 3600
		0x2C, 0x01, // remaining 300
	}
	rec, err := DecodeIndoorBikeData(buf)
	require.NoError(t, err)

	want := &IndoorBikeRecord{
		TotalEnergyKcal:      ptr(uint16(300)),
		EnergyPerHourKcal:    ptr(uint16(600)),
		EnergyPerMinuteKcal:  ptr(uint8(10)),
		HeartRateBpm:         ptr(uint8(140)),
		MetabolicEquivalent:  ptr(7.5),
		ElapsedTimeSeconds:   ptr(uint16(3600)),
		RemainingTimeSeconds: ptr(uint16(300)),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIndoorBikeData_ZeroIsNotAbsent(t *testing.T) {
	rec, err := DecodeIndoorBikeData([]byte{0x40, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	require.NotNil(t, rec.PowerWatts)
	assert.Equal(t, int16(0), *rec.PowerWatts)
	assert.Nil(t, rec.SpeedKmh)
	assert.Nil(t, rec.CadenceRpm)
}

func TestDecodeIndoorBikeData_IgnoresTrailingBytes(t *testing.T) {
	rec, err := DecodeIndoorBikeData([]byte{0x40, 0x00, 0x64, 0x00, 0xAA, 0xBB})
	require.NoError(t, err)
	assert.Equal(t, int16(100), *rec.PowerWatts)
}

func TestDecodeIndoorBikeData_Truncated(t *testing.T) {
	_, err := DecodeIndoorBikeData([]byte{0x41, 0x00, 0x88, 0x13, 0x2C})
	require.ErrorIs(t, err, ErrTruncatedBuffer)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "IndoorBikeData", decodeErr.Message)
	assert.Equal(t, "power", decodeErr.Field)
	assert.Equal(t, 4, decodeErr.Offset)
	assert.Equal(t, 2, decodeErr.Need)
	assert.Contains(t, err.Error(), "buffer too short for power at offset 4")

	_, err = DecodeIndoorBikeData([]byte{0x41})
	assert.ErrorIs(t, err, ErrTruncatedBuffer)

	_, err = DecodeIndoorBikeData(nil)
	assert.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestDecodeIndoorBikeData_UnsupportedBits(t *testing.T) {
	for _, bit := range []uint{13, 14, 15} {
		flags := uint16(1) << bit
		buf := []byte{byte(flags), byte(flags >> 8), 0, 0, 0, 0}
		rec, err := DecodeIndoorBikeData(buf)
		assert.Nil(t, rec)
		require.ErrorIs(t, err, ErrUnsupportedField, "bit %d", bit)
		assert.NotErrorIs(t, err, ErrTruncatedBuffer)

		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, int(bit), decodeErr.Bit)
	}
}

func TestDecodeCyclingPowerMeasurement_MandatoryOnly(t *testing.T) {
	rec, err := DecodeCyclingPowerMeasurement([]byte{0x00, 0x00, 0x2C, 0x01})
	require.NoError(t, err)
	if diff := cmp.Diff(&PowerRecord{PowerWatts: 300}, rec); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCyclingPowerMeasurement_OptionalFields(t *testing.T) {
	buf := []byte{
		0x35, 0x00, // flags: balance, torque, wheel, crank
		0xC8, 0x00, // power 200
		0x64,       // balance 50%
		0x20, 0x03, // torque 800
		0x10, 0x27, 0x00, 0x00, 0x00, 0x04, // wheel revs 10000, time 1024
		0x2A, 0x00, 0x00, 0xF0, // crank revs 42, time 0xF000
	}
	rec, err := DecodeCyclingPowerMeasurement(buf)
	require.NoError(t, err)

	want := &PowerRecord{
		PowerWatts:                   200,
		PedalPowerBalanceHalfPercent: ptr(uint8(100)),
		AccumulatedTorque:            ptr(uint16(800)),
		CumulativeWheelRevolutions:   ptr(uint32(10000)),
		LastWheelEventTime:           ptr(uint16(1024)),
		CumulativeCrankRevolutions:   ptr(uint16(42)),
		LastCrankEventTime:           ptr(uint16(0xF000)),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, rec.EstimatedCadenceRpm)
}

func TestDecodeCyclingPowerMeasurement_PayloadlessBits(t *testing.T) {
	// reference, torque source and offset compensation bits add no bytes
	flags := CPSPedalPowerBalanceReference | CPSAccumulatedTorqueSource | CPSOffsetCompensationIndicator
	rec, err := DecodeCyclingPowerMeasurement([]byte{byte(flags), byte(flags >> 8), 0x10, 0x00})
	require.NoError(t, err)
	assert.Equal(t, int16(16), rec.PowerWatts)
}

func TestDecodeCyclingPowerMeasurement_ExtremeAngles(t *testing.T) {
	// max 0x123, min 0x456 packed as 0x456123
	flags := CPSExtremeAngles
	buf := []byte{byte(flags), byte(flags >> 8), 0x00, 0x00, 0x23, 0x61, 0x45}
	rec, err := DecodeCyclingPowerMeasurement(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x123), *rec.MaxAngleDegrees)
	assert.Equal(t, uint16(0x456), *rec.MinAngleDegrees)

	assert.Equal(t, buf, EncodeCyclingPowerMeasurement(rec))
}

func TestDecodeCyclingPowerMeasurement_Errors(t *testing.T) {
	_, err := DecodeCyclingPowerMeasurement([]byte{0x00, 0x00, 0x2C})
	assert.ErrorIs(t, err, ErrTruncatedBuffer)

	// crank flag set but only the count is present
	_, err = DecodeCyclingPowerMeasurement([]byte{0x20, 0x00, 0x2C, 0x01, 0x2A, 0x00})
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "crank revolution data", decodeErr.Field)

	_, err = DecodeCyclingPowerMeasurement([]byte{0x00, 0x80, 0x2C, 0x01})
	assert.ErrorIs(t, err, ErrUnsupportedField)
}

func TestDecodeHeartRateMeasurement_Uint8(t *testing.T) {
	rec, err := DecodeHeartRateMeasurement([]byte{0x00, 0x46})
	require.NoError(t, err)
	assert.Equal(t, uint16(70), rec.HeartRateBpm)
	assert.Nil(t, rec.RRIntervals)
	assert.Nil(t, rec.EnergyExpendedKj)
	assert.Equal(t, ContactNotSupported, rec.SensorContact)
}

func TestDecodeHeartRateMeasurement_RRIntervals(t *testing.T) {
	rec, err := DecodeHeartRateMeasurement([]byte{0x10, 0x46, 0x01, 0x00, 0x02, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint16(70), rec.HeartRateBpm)
	assert.Equal(t, []uint16{1, 2}, rec.RRIntervals)
}

func TestDecodeHeartRateMeasurement_EmptyRRIntervals(t *testing.T) {
	rec, err := DecodeHeartRateMeasurement([]byte{0x10, 0x46})
	require.NoError(t, err)
	require.NotNil(t, rec.RRIntervals)
	assert.Empty(t, rec.RRIntervals)
}

func TestDecodeHeartRateMeasurement_Uint16EnergyAndContact(t *testing.T) {
	buf := []byte{
		0x0F,       // uint16 value, contact supported + detected, energy
		0x2C, 0x01, // 300 bpm
		0xE8, 0x03, // 1000 kJ
	}
	rec, err := DecodeHeartRateMeasurement(buf)
	require.NoError(t, err)

	want := &HeartRateRecord{
		HeartRateBpm:     300,
		SensorContact:    ContactDetected,
		EnergyExpendedKj: ptr(uint16(1000)),
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, buf, EncodeHeartRateMeasurement(rec))
}

func TestDecodeHeartRateMeasurement_ContactNotDetected(t *testing.T) {
	rec, err := DecodeHeartRateMeasurement([]byte{0x04, 0x3C})
	require.NoError(t, err)
	assert.Equal(t, ContactNotDetected, rec.SensorContact)
}

func TestDecodeHeartRateMeasurement_OddRRByte(t *testing.T) {
	rec, err := DecodeHeartRateMeasurement([]byte{0x10, 0x46, 0x01, 0x00, 0x02})
	assert.Nil(t, rec)
	require.ErrorIs(t, err, ErrTruncatedBuffer)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "rr interval", decodeErr.Field)
	assert.Equal(t, 4, decodeErr.Offset)
}

func TestDecodeHeartRateMeasurement_Errors(t *testing.T) {
	_, err := DecodeHeartRateMeasurement([]byte{0x01, 0x46})
	assert.ErrorIs(t, err, ErrTruncatedBuffer)

	_, err = DecodeHeartRateMeasurement([]byte{0x08, 0x46, 0x01})
	assert.ErrorIs(t, err, ErrTruncatedBuffer)

	_, err = DecodeHeartRateMeasurement([]byte{})
	assert.ErrorIs(t, err, ErrTruncatedBuffer)

	for _, flags := range []byte{0x20, 0x40, 0x80} {
		_, err = DecodeHeartRateMeasurement([]byte{flags, 0x46})
		assert.ErrorIs(t, err, ErrUnsupportedField)
	}
}

func TestHeartRateRecord_RRDurations(t *testing.T) {
	rec := &HeartRateRecord{RRIntervals: []uint16{1024, 512, 0}}
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond, 0}, rec.RRDurations())

	assert.Nil(t, (&HeartRateRecord{}).RRDurations())
}

func TestEncodeCommands(t *testing.T) {
	assert.Equal(t, []byte{0x04, 0x0A, 0x00}, EncodeSetResistance(10))
	assert.Equal(t, []byte{0x05, 0xFA, 0x00}, EncodeSetTargetPower(250))
	assert.Equal(t, []byte{0x04, 0xFF, 0xFF}, EncodeSetResistance(-1))
	assert.Equal(t, []byte{0x05, 0xD0, 0x07}, EncodeSetTargetPower(2000))
	assert.Equal(t, []byte{0x00}, EncodeRequestControl())
	assert.Equal(t, []byte{0x07}, EncodeStartOrResume())
}

func TestDescribeCommand(t *testing.T) {
	assert.Equal(t, "Set Target Power: 250W", DescribeCommand(EncodeSetTargetPower(250)))
	assert.Equal(t, "Set Target Resistance: 10", DescribeCommand(EncodeSetResistance(10)))
	assert.Equal(t, "Request Control", DescribeCommand(EncodeRequestControl()))
	assert.Equal(t, "Set Target Power (malformed)", DescribeCommand([]byte{0x05, 0x01}))
	assert.Equal(t, "Unknown opcode: 0x42", DescribeCommand([]byte{0x42}))
	assert.Equal(t, "empty", DescribeCommand(nil))
}

func TestDecode_Dispatch(t *testing.T) {
	rec, err := Decode(sensor.MessageHeartRateMeasurement, []byte{0x00, 0x50})
	require.NoError(t, err)
	hr, ok := rec.(*HeartRateRecord)
	require.True(t, ok)
	assert.Equal(t, uint16(80), hr.HeartRateBpm)
	assert.Equal(t, sensor.MessageHeartRateMeasurement, rec.MessageType())

	rec, err = Decode(sensor.MessageIndoorBikeData, []byte{0x40})
	assert.ErrorIs(t, err, ErrTruncatedBuffer)
	assert.Nil(t, rec)

	_, err = Decode(sensor.MessageType(42), []byte{0x00})
	assert.Error(t, err)
}

func TestEncodeIndoorBikeData_RoundTrip(t *testing.T) {
	in := &IndoorBikeRecord{
		SpeedKmh:            ptr(32.5),
		CadenceRpm:          ptr(87.5),
		TotalDistanceMeters: ptr(uint32(42195)),
		PowerWatts:          ptr(int16(275)),
		HeartRateBpm:        ptr(uint8(151)),
	}
	buf := EncodeIndoorBikeData(in)
	assert.Equal(t, uint16(IBDSpeed|IBDCadence|IBDTotalDistance|IBDPower|IBDHeartRate), u16(buf))

	out, err := DecodeIndoorBikeData(buf)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-in +out):\n%s", diff)
	}
}
