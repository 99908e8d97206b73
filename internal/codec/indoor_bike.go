package codec

import "math"

// Indoor Bike Data flag bits
const (
	IBDSpeed uint32 = 1 << iota
	IBDAverageSpeed
	IBDCadence
	IBDAverageCadence
	IBDTotalDistance
	IBDResistance
	IBDPower
	IBDAveragePower
	IBDExpendedEnergy
	IBDHeartRate
	IBDMetabolicEquivalent
	IBDElapsedTime
	IBDRemainingTime
)

var indoorBikeLayout = layout[IndoorBikeRecord]{
	message:   "IndoorBikeData",
	flagWidth: 2,
	known:     IBDRemainingTime<<1 - 1,
	fields: []field[IndoorBikeRecord]{
		{
			name: "speed", bit: 0, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.SpeedKmh = ptr(float64(u16(b)) / 100) },
			put: func(r *IndoorBikeRecord, b []byte) { putU16(b, hundredths(val(r.SpeedKmh))) },
			has: func(r *IndoorBikeRecord) bool { return r.SpeedKmh != nil },
		},
		{
			name: "average speed", bit: 1, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.AverageSpeedKmh = ptr(float64(u16(b)) / 100) },
			put: func(r *IndoorBikeRecord, b []byte) { putU16(b, hundredths(val(r.AverageSpeedKmh))) },
			has: func(r *IndoorBikeRecord) bool { return r.AverageSpeedKmh != nil },
		},
		{
			name: "cadence", bit: 2, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.CadenceRpm = ptr(float64(u16(b)) / 2) },
			put: func(r *IndoorBikeRecord, b []byte) { putU16(b, halves(val(r.CadenceRpm))) },
			has: func(r *IndoorBikeRecord) bool { return r.CadenceRpm != nil },
		},
		{
			name: "average cadence", bit: 3, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.AverageCadenceRpm = ptr(float64(u16(b)) / 2) },
			put: func(r *IndoorBikeRecord, b []byte) { putU16(b, halves(val(r.AverageCadenceRpm))) },
			has: func(r *IndoorBikeRecord) bool { return r.AverageCadenceRpm != nil },
		},
		{
			name: "total distance", bit: 4, width: 3,
			get: func(r *IndoorBikeRecord, b []byte) { r.TotalDistanceMeters = ptr(u24(b)) },
			put: func(r *IndoorBikeRecord, b []byte) { putU24(b, val(r.TotalDistanceMeters)) },
			has: func(r *IndoorBikeRecord) bool { return r.TotalDistanceMeters != nil },
		},
		{
			name: "resistance level", bit: 5, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.ResistanceLevel = ptr(i16(b)) },
			put: func(r *IndoorBikeRecord, b []byte) { putI16(b, val(r.ResistanceLevel)) },
			has: func(r *IndoorBikeRecord) bool { return r.ResistanceLevel != nil },
		},
		{
			name: "power", bit: 6, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.PowerWatts = ptr(i16(b)) },
			put: func(r *IndoorBikeRecord, b []byte) { putI16(b, val(r.PowerWatts)) },
			has: func(r *IndoorBikeRecord) bool { return r.PowerWatts != nil },
		},
		{
			name: "average power", bit: 7, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.AveragePowerWatts = ptr(i16(b)) },
			put: func(r *IndoorBikeRecord, b []byte) { putI16(b, val(r.AveragePowerWatts)) },
			has: func(r *IndoorBikeRecord) bool { return r.AveragePowerWatts != nil },
		},
		{
			// total (u16), per hour (u16), per minute (u8)
			name: "expended energy", bit: 8, width: 5,
			get: func(r *IndoorBikeRecord, b []byte) {
				r.TotalEnergyKcal = ptr(u16(b[0:2]))
				r.EnergyPerHourKcal = ptr(u16(b[2:4]))
				r.EnergyPerMinuteKcal = ptr(b[4])
			},
			put: func(r *IndoorBikeRecord, b []byte) {
				putU16(b[0:2], val(r.TotalEnergyKcal))
				putU16(b[2:4], val(r.EnergyPerHourKcal))
				b[4] = val(r.EnergyPerMinuteKcal)
			},
			has: func(r *IndoorBikeRecord) bool {
				return r.TotalEnergyKcal != nil || r.EnergyPerHourKcal != nil || r.EnergyPerMinuteKcal != nil
			},
		},
		{
			name: "heart rate", bit: 9, width: 1,
			get: func(r *IndoorBikeRecord, b []byte) { r.HeartRateBpm = ptr(b[0]) },
			put: func(r *IndoorBikeRecord, b []byte) { b[0] = val(r.HeartRateBpm) },
			has: func(r *IndoorBikeRecord) bool { return r.HeartRateBpm != nil },
		},
		{
			name: "metabolic equivalent", bit: 10, width: 1,
			get: func(r *IndoorBikeRecord, b []byte) { r.MetabolicEquivalent = ptr(float64(b[0]) / 10) },
			put: func(r *IndoorBikeRecord, b []byte) { b[0] = uint8(math.Round(val(r.MetabolicEquivalent) * 10)) },
			has: func(r *IndoorBikeRecord) bool { return r.MetabolicEquivalent != nil },
		},
		{
			name: "elapsed time", bit: 11, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.ElapsedTimeSeconds = ptr(u16(b)) },
			put: func(r *IndoorBikeRecord, b []byte) { putU16(b, val(r.ElapsedTimeSeconds)) },
			has: func(r *IndoorBikeRecord) bool { return r.ElapsedTimeSeconds != nil },
		},
		{
			name: "remaining time", bit: 12, width: 2,
			get: func(r *IndoorBikeRecord, b []byte) { r.RemainingTimeSeconds = ptr(u16(b)) },
			put: func(r *IndoorBikeRecord, b []byte) { putU16(b, val(r.RemainingTimeSeconds)) },
			has: func(r *IndoorBikeRecord) bool { return r.RemainingTimeSeconds != nil },
		},
	},
}

// DecodeIndoorBikeData decodes an Indoor Bike Data notification. Bytes after
// the last flagged field are ignored.
func DecodeIndoorBikeData(buf []byte) (*IndoorBikeRecord, error) {
	rec := &IndoorBikeRecord{}
	if _, _, err := indoorBikeLayout.decode(buf, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// EncodeIndoorBikeData is the inverse of DecodeIndoorBikeData. Flags are
// derived from the non-nil fields of rec.
func EncodeIndoorBikeData(rec *IndoorBikeRecord) []byte {
	return indoorBikeLayout.encode(indoorBikeLayout.flagsFor(rec), rec, 0)
}

func hundredths(v float64) uint16 {
	return uint16(math.Round(v * 100))
}

func halves(v float64) uint16 {
	return uint16(math.Round(v * 2))
}
