package command

import "fmt"

const (
	DefaultMinPowerWatts int16 = 25
	DefaultMaxPowerWatts int16 = 2000
	DefaultMinResistance int16 = 0
	DefaultMaxResistance int16 = 1000
)

// Limits bounds the values the dispatcher will send.
type Limits struct {
	MinPowerWatts int16
	MaxPowerWatts int16
	MinResistance int16
	MaxResistance int16
}

func DefaultLimits() Limits {
	return Limits{
		MinPowerWatts: DefaultMinPowerWatts,
		MaxPowerWatts: DefaultMaxPowerWatts,
		MinResistance: DefaultMinResistance,
		MaxResistance: DefaultMaxResistance,
	}
}

func (l Limits) Validate() error {
	if l.MinPowerWatts < 0 || l.MinPowerWatts > l.MaxPowerWatts {
		return fmt.Errorf("invalid power limits %d..%d", l.MinPowerWatts, l.MaxPowerWatts)
	}
	if l.MinResistance > l.MaxResistance {
		return fmt.Errorf("invalid resistance limits %d..%d", l.MinResistance, l.MaxResistance)
	}
	return nil
}

// ClampPower returns watts limited to the power range.
func (l Limits) ClampPower(watts int) int16 {
	return int16(max(int(l.MinPowerWatts), min(watts, int(l.MaxPowerWatts))))
}

// ClampResistance returns level limited to the resistance range.
func (l Limits) ClampResistance(level int) int16 {
	return int16(max(int(l.MinResistance), min(level, int(l.MaxResistance))))
}
