package codec

// Heart Rate Measurement flag bits
const (
	HRValueUint16 uint32 = 1 << iota
	HRSensorContactDetected
	HRSensorContactSupported
	HREnergyExpended
	HRRRIntervals
)

// The heart rate value is structural: bit 0 picks one of two widths.
var heartRateLayout = layout[HeartRateRecord]{
	message:   "HeartRateMeasurement",
	flagWidth: 1,
	known:     HRRRIntervals<<1 - 1,
	fields: []field[HeartRateRecord]{
		{
			name: "heart rate (uint8)", bit: 0, when: whenClear, width: 1,
			get: func(r *HeartRateRecord, b []byte) { r.HeartRateBpm = uint16(b[0]) },
			put: func(r *HeartRateRecord, b []byte) { b[0] = uint8(r.HeartRateBpm) },
		},
		{
			name: "heart rate (uint16)", bit: 0, width: 2,
			get: func(r *HeartRateRecord, b []byte) { r.HeartRateBpm = u16(b) },
			put: func(r *HeartRateRecord, b []byte) { putU16(b, r.HeartRateBpm) },
		},
		{
			name: "energy expended", bit: 3, width: 2,
			get: func(r *HeartRateRecord, b []byte) { r.EnergyExpendedKj = ptr(u16(b)) },
			put: func(r *HeartRateRecord, b []byte) { putU16(b, val(r.EnergyExpendedKj)) },
			has: func(r *HeartRateRecord) bool { return r.EnergyExpendedKj != nil },
		},
	},
}

// DecodeHeartRateMeasurement decodes a Heart Rate Measurement notification.
// RR intervals fill the rest of the buffer; an odd trailing byte is rejected.
func DecodeHeartRateMeasurement(buf []byte) (*HeartRateRecord, error) {
	rec := &HeartRateRecord{}
	offset, flags, err := heartRateLayout.decode(buf, rec)
	if err != nil {
		return nil, err
	}

	if flags&HRSensorContactSupported != 0 {
		rec.SensorContact = ContactNotDetected
		if flags&HRSensorContactDetected != 0 {
			rec.SensorContact = ContactDetected
		}
	}

	if flags&HRRRIntervals != 0 {
		remaining := len(buf) - offset
		if remaining%2 != 0 {
			return nil, truncated(heartRateLayout.message, "rr interval", len(buf)-1, 2, len(buf))
		}
		rec.RRIntervals = make([]uint16, 0, remaining/2)
		for ; offset < len(buf); offset += 2 {
			rec.RRIntervals = append(rec.RRIntervals, u16(buf[offset:offset+2]))
		}
	}
	return rec, nil
}

// EncodeHeartRateMeasurement is the inverse of DecodeHeartRateMeasurement.
// The 16-bit value format is used only when the rate does not fit a byte.
func EncodeHeartRateMeasurement(rec *HeartRateRecord) []byte {
	flags := heartRateLayout.flagsFor(rec)
	if rec.HeartRateBpm > 0xFF {
		flags |= HRValueUint16
	}
	switch rec.SensorContact {
	case ContactNotDetected:
		flags |= HRSensorContactSupported
	case ContactDetected:
		flags |= HRSensorContactSupported | HRSensorContactDetected
	}
	if rec.RRIntervals != nil {
		flags |= HRRRIntervals
	}

	buf := heartRateLayout.encode(flags, rec, 2*len(rec.RRIntervals))
	offset := heartRateLayout.size(flags)
	for _, rr := range rec.RRIntervals {
		putU16(buf[offset:offset+2], rr)
		offset += 2
	}
	return buf
}
