package sensor

import "fmt"

// Role is the slot a physical device is bound to. At most one device per role.
type Role int

const (
	RoleTrainer Role = iota
	RolePowerMeter
	RoleHeartRate
)

// AllRoles in display order.
var AllRoles = []Role{RoleTrainer, RolePowerMeter, RoleHeartRate}

func (r Role) String() string {
	switch r {
	case RoleTrainer:
		return "trainer"
	case RolePowerMeter:
		return "power_meter"
	case RoleHeartRate:
		return "heart_rate"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func (r Role) DisplayName() string {
	switch r {
	case RoleTrainer:
		return "Smart Trainer"
	case RolePowerMeter:
		return "Power Meter"
	case RoleHeartRate:
		return "Heart Rate Monitor"
	default:
		return r.String()
	}
}

func (r Role) Valid() bool {
	return r >= RoleTrainer && r <= RoleHeartRate
}

// ParseRole accepts the String() form of a role.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		// This shouldn't happen...
		return "Unknown"
	}
}
