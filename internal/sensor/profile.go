package sensor

// ScanFilter selects which advertising devices may be bound to a role.
// A device matches when it is Address (if set), or advertises any of
// ServiceUUIDs, or its local name starts with any of NamePrefixes.
type ScanFilter struct {
	Address      string
	ServiceUUIDs []string
	NamePrefixes []string
}

// Profile describes what a role needs from its device.
type Profile struct {
	Role        Role
	Notify      DataStream
	MessageType MessageType
	// Control is the optional write stream for commands. Devices without it
	// are bound but refuse commands.
	Control *DataStream
	Filter  ScanFilter
}

// HasControl reports whether the role ever accepts commands.
func (p Profile) HasControl() bool {
	return p.Control != nil
}

// WithAddress returns a copy of p that only matches address.
func (p Profile) WithAddress(address string) Profile {
	p.Filter.Address = address
	return p
}

// DefaultProfiles returns the profile for every role.
func DefaultProfiles() map[Role]Profile {
	control := DataStreamFTMSControl
	return map[Role]Profile{
		RoleTrainer: {
			Role:        RoleTrainer,
			Notify:      DataStreamIndoorBikeData,
			MessageType: MessageIndoorBikeData,
			Control:     &control,
			Filter: ScanFilter{
				ServiceUUIDs: []string{ServiceUUIDFTMS},
				NamePrefixes: []string{"KICKR", "Wahoo"},
			},
		},
		RolePowerMeter: {
			Role:        RolePowerMeter,
			Notify:      DataStreamCyclingPower,
			MessageType: MessageCyclingPowerMeasurement,
			Filter: ScanFilter{
				ServiceUUIDs: []string{ServiceUUIDCyclingPower},
			},
		},
		RoleHeartRate: {
			Role:        RoleHeartRate,
			Notify:      DataStreamHeartRate,
			MessageType: MessageHeartRateMeasurement,
			Filter: ScanFilter{
				ServiceUUIDs: []string{ServiceUUIDHeartRate},
			},
		},
	}
}
