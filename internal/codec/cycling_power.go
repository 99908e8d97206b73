package codec

// Cycling Power Measurement flag bits
const (
	CPSPedalPowerBalance uint32 = 1 << iota
	CPSPedalPowerBalanceReference
	CPSAccumulatedTorque
	CPSAccumulatedTorqueSource
	CPSWheelRevolutions
	CPSCrankRevolutions
	CPSExtremeForceMagnitudes
	CPSExtremeTorqueMagnitudes
	CPSExtremeAngles
	CPSTopDeadSpotAngle
	CPSBottomDeadSpotAngle
	CPSAccumulatedEnergy
	CPSOffsetCompensationIndicator
)

// Bits 1, 3 and 12 qualify other fields and carry no payload of their own.
var cyclingPowerLayout = layout[PowerRecord]{
	message:   "CyclingPowerMeasurement",
	flagWidth: 2,
	known:     CPSOffsetCompensationIndicator<<1 - 1,
	fields: []field[PowerRecord]{
		{
			name: "power", when: always, width: 2,
			get: func(r *PowerRecord, b []byte) { r.PowerWatts = i16(b) },
			put: func(r *PowerRecord, b []byte) { putI16(b, r.PowerWatts) },
		},
		{
			name: "pedal power balance", bit: 0, width: 1,
			get: func(r *PowerRecord, b []byte) { r.PedalPowerBalanceHalfPercent = ptr(b[0]) },
			put: func(r *PowerRecord, b []byte) { b[0] = val(r.PedalPowerBalanceHalfPercent) },
			has: func(r *PowerRecord) bool { return r.PedalPowerBalanceHalfPercent != nil },
		},
		{
			name: "accumulated torque", bit: 2, width: 2,
			get: func(r *PowerRecord, b []byte) { r.AccumulatedTorque = ptr(u16(b)) },
			put: func(r *PowerRecord, b []byte) { putU16(b, val(r.AccumulatedTorque)) },
			has: func(r *PowerRecord) bool { return r.AccumulatedTorque != nil },
		},
		{
			name: "wheel revolution data", bit: 4, width: 6,
			get: func(r *PowerRecord, b []byte) {
				r.CumulativeWheelRevolutions = ptr(u32(b[0:4]))
				r.LastWheelEventTime = ptr(u16(b[4:6]))
			},
			put: func(r *PowerRecord, b []byte) {
				putU32(b[0:4], val(r.CumulativeWheelRevolutions))
				putU16(b[4:6], val(r.LastWheelEventTime))
			},
			has: func(r *PowerRecord) bool { return r.CumulativeWheelRevolutions != nil },
		},
		{
			name: "crank revolution data", bit: 5, width: 4,
			get: func(r *PowerRecord, b []byte) {
				r.CumulativeCrankRevolutions = ptr(u16(b[0:2]))
				r.LastCrankEventTime = ptr(u16(b[2:4]))
			},
			put: func(r *PowerRecord, b []byte) {
				putU16(b[0:2], val(r.CumulativeCrankRevolutions))
				putU16(b[2:4], val(r.LastCrankEventTime))
			},
			has: func(r *PowerRecord) bool { return r.CumulativeCrankRevolutions != nil },
		},
		{
			name: "extreme force magnitudes", bit: 6, width: 4,
			get: func(r *PowerRecord, b []byte) {
				r.MaxForceNewtons = ptr(i16(b[0:2]))
				r.MinForceNewtons = ptr(i16(b[2:4]))
			},
			put: func(r *PowerRecord, b []byte) {
				putI16(b[0:2], val(r.MaxForceNewtons))
				putI16(b[2:4], val(r.MinForceNewtons))
			},
			has: func(r *PowerRecord) bool { return r.MaxForceNewtons != nil },
		},
		{
			name: "extreme torque magnitudes", bit: 7, width: 4,
			get: func(r *PowerRecord, b []byte) {
				r.MaxTorque = ptr(i16(b[0:2]))
				r.MinTorque = ptr(i16(b[2:4]))
			},
			put: func(r *PowerRecord, b []byte) {
				putI16(b[0:2], val(r.MaxTorque))
				putI16(b[2:4], val(r.MinTorque))
			},
			has: func(r *PowerRecord) bool { return r.MaxTorque != nil },
		},
		{
			// two 12-bit angles packed into three bytes, maximum first
			name: "extreme angles", bit: 8, width: 3,
			get: func(r *PowerRecord, b []byte) {
				packed := u24(b)
				r.MaxAngleDegrees = ptr(uint16(packed & 0x0FFF))
				r.MinAngleDegrees = ptr(uint16(packed >> 12))
			},
			put: func(r *PowerRecord, b []byte) {
				packed := uint32(val(r.MaxAngleDegrees)&0x0FFF) | uint32(val(r.MinAngleDegrees)&0x0FFF)<<12
				putU24(b, packed)
			},
			has: func(r *PowerRecord) bool { return r.MaxAngleDegrees != nil },
		},
		{
			name: "top dead spot angle", bit: 9, width: 2,
			get: func(r *PowerRecord, b []byte) { r.TopDeadSpotDegrees = ptr(u16(b)) },
			put: func(r *PowerRecord, b []byte) { putU16(b, val(r.TopDeadSpotDegrees)) },
			has: func(r *PowerRecord) bool { return r.TopDeadSpotDegrees != nil },
		},
		{
			name: "bottom dead spot angle", bit: 10, width: 2,
			get: func(r *PowerRecord, b []byte) { r.BottomDeadSpotDegrees = ptr(u16(b)) },
			put: func(r *PowerRecord, b []byte) { putU16(b, val(r.BottomDeadSpotDegrees)) },
			has: func(r *PowerRecord) bool { return r.BottomDeadSpotDegrees != nil },
		},
		{
			name: "accumulated energy", bit: 11, width: 2,
			get: func(r *PowerRecord, b []byte) { r.AccumulatedEnergyKj = ptr(u16(b)) },
			put: func(r *PowerRecord, b []byte) { putU16(b, val(r.AccumulatedEnergyKj)) },
			has: func(r *PowerRecord) bool { return r.AccumulatedEnergyKj != nil },
		},
	},
}

// DecodeCyclingPowerMeasurement decodes a Cycling Power Measurement
// notification. Crank data is returned raw; no cadence is computed here.
func DecodeCyclingPowerMeasurement(buf []byte) (*PowerRecord, error) {
	rec := &PowerRecord{}
	if _, _, err := cyclingPowerLayout.decode(buf, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// EncodeCyclingPowerMeasurement is the inverse of DecodeCyclingPowerMeasurement.
// EstimatedCadenceRpm is not part of the wire format.
func EncodeCyclingPowerMeasurement(rec *PowerRecord) []byte {
	return cyclingPowerLayout.encode(cyclingPowerLayout.flagsFor(rec), rec, 0)
}
