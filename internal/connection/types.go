package connection

import (
	"time"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/codec"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// RoleRecord is a decoded notification tagged with the role it came from.
type RoleRecord struct {
	Role       sensor.Role
	Record     codec.Record
	ReceivedAt time.Time
}

// StateChange is published on every connection state transition.
type StateChange struct {
	Role    sensor.Role
	State   sensor.ConnectionState
	Address string
	Name    string
}

// RoleError carries a decode or connection error scoped to one role.
type RoleError struct {
	Role sensor.Role
	Err  error
	At   time.Time
}

// RoleStatus is a point-in-time view of one role.
type RoleStatus struct {
	Role           sensor.Role
	State          sensor.ConnectionState
	Address        string
	Name           string
	AcceptsCommand bool
	LastError      error
}
