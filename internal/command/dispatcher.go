package command

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/codec"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/connection"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

var (
	ErrNoTrainerConnected = errors.New("no trainer connected")
	ErrOutOfRange         = errors.New("value out of range")
)

// Target is the trainer side of the dispatcher. *connection.Manager
// satisfies it.
type Target interface {
	AcceptsCommands(role sensor.Role) bool
	Write(role sensor.Role, data []byte) error
	ListenStates(fn func(connection.StateChange)) func()
}

// Dispatcher validates control intents and writes them to the trainer's
// control point. Writes are fire-and-forget.
type Dispatcher struct {
	logger *log.Logger
	target Target
	limits Limits

	// mu serializes commands so RequestControl goes out once per session
	// ahead of the first target.
	mu               sync.Mutex
	controlRequested bool
	removeListener   func()
}

func NewDispatcher(logger *log.Logger, target Target, limits Limits) (*Dispatcher, error) {
	if logger == nil {
		panic("Dispatcher: logger cannot be nil")
	}
	if target == nil {
		panic("Dispatcher: target cannot be nil")
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		logger: logger,
		target: target,
		limits: limits,
	}
	d.removeListener = target.ListenStates(d.handleState)
	return d, nil
}

// handleState forgets the control grant whenever the trainer session
// changes.
func (d *Dispatcher) handleState(sc connection.StateChange) {
	if sc.Role != sensor.RoleTrainer || sc.State == sensor.Connecting {
		return
	}
	d.mu.Lock()
	d.controlRequested = false
	d.mu.Unlock()
}

func (d *Dispatcher) Limits() Limits {
	return d.limits
}

// SetResistance sets the trainer's target resistance level.
func (d *Dispatcher) SetResistance(level int16) error {
	return d.sendTarget(codec.EncodeSetResistance(level), "set resistance", func() error {
		if level < d.limits.MinResistance || level > d.limits.MaxResistance {
			return fmt.Errorf("%w: resistance %d outside %d..%d",
				ErrOutOfRange, level, d.limits.MinResistance, d.limits.MaxResistance)
		}
		return nil
	})
}

// SetTargetPower sets the trainer's ERG target in watts.
func (d *Dispatcher) SetTargetPower(watts int16) error {
	return d.sendTarget(codec.EncodeSetTargetPower(watts), "set target power", func() error {
		if watts < d.limits.MinPowerWatts || watts > d.limits.MaxPowerWatts {
			return fmt.Errorf("%w: target power %d W outside %d..%d",
				ErrOutOfRange, watts, d.limits.MinPowerWatts, d.limits.MaxPowerWatts)
		}
		return nil
	})
}

// RequestControl asks the trainer for control and starts it. It is sent
// automatically before the first target of a session; calling it again
// re-requests control.
func (d *Dispatcher) RequestControl() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.target.AcceptsCommands(sensor.RoleTrainer) {
		return ErrNoTrainerConnected
	}
	return d.requestControlLocked()
}

func (d *Dispatcher) requestControlLocked() error {
	if err := d.write(codec.EncodeRequestControl(), "request control"); err != nil {
		return err
	}
	// some trainers ignore targets until started; others reject Start
	if err := d.write(codec.EncodeStartOrResume(), "start"); err != nil {
		d.logger.Printf("Dispatcher: start command failed (may not be required): %v", err)
	}
	d.controlRequested = true
	d.logger.Println("Dispatcher: trainer control requested")
	return nil
}

// sendTarget writes data to the trainer. A missing trainer is reported
// before inRange is consulted.
func (d *Dispatcher) sendTarget(data []byte, action string, inRange func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.target.AcceptsCommands(sensor.RoleTrainer) {
		return ErrNoTrainerConnected
	}
	if err := inRange(); err != nil {
		return err
	}
	if !d.controlRequested {
		if err := d.requestControlLocked(); err != nil {
			return err
		}
	}
	if err := d.write(data, action); err != nil {
		return err
	}
	d.logger.Printf("Dispatcher: %s", codec.DescribeCommand(data))
	return nil
}

func (d *Dispatcher) write(data []byte, action string) error {
	err := d.target.Write(sensor.RoleTrainer, data)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, connection.ErrNotConnected), errors.Is(err, connection.ErrNotSupported):
		// the trainer went away between the capability check and the write
		return fmt.Errorf("%w: %v", ErrNoTrainerConnected, err)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}

// Close stops tracking trainer sessions.
func (d *Dispatcher) Close() {
	if d.removeListener != nil {
		d.removeListener()
	}
}
