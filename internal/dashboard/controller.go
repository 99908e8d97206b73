package dashboard

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/command"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/connection"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

const (
	DefaultPowerStepWatts   = 10
	DefaultResistanceStep   = 10
	DefaultTargetPowerWatts = 100
)

// RoleConnector is satisfied by *connection.Manager.
type RoleConnector interface {
	Connect(ctx context.Context, role sensor.Role) error
	Disconnect(role sensor.Role) error
	State(role sensor.Role) sensor.ConnectionState
	Roles() []sensor.Role
}

// CommandSender is satisfied by *command.Dispatcher.
type CommandSender interface {
	SetTargetPower(watts int16) error
	SetResistance(level int16) error
	RequestControl() error
	Limits() command.Limits
}

// Controller turns dashboard actions into connection and trainer commands.
type Controller struct {
	logger         *log.Logger
	model          *Model
	connector      RoleConnector
	commands       CommandSender
	powerStep      int
	resistanceStep int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type NewControllerArgs struct {
	Logger         *log.Logger
	Model          *Model
	Connector      RoleConnector
	Commands       CommandSender
	PowerStep      int
	ResistanceStep int
}

func NewController(args NewControllerArgs) *Controller {
	if args.Logger == nil {
		panic("DashboardController: logger cannot be nil")
	}
	if args.Model == nil || args.Connector == nil || args.Commands == nil {
		panic("DashboardController: model, connector and commands are required")
	}
	if args.PowerStep <= 0 {
		args.PowerStep = DefaultPowerStepWatts
	}
	if args.ResistanceStep <= 0 {
		args.ResistanceStep = DefaultResistanceStep
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		logger:         args.Logger,
		model:          args.Model,
		connector:      args.Connector,
		commands:       args.Commands,
		powerStep:      args.PowerStep,
		resistanceStep: args.ResistanceStep,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ConnectRole starts a connection attempt in the background. Failures are
// reported through the connection manager's error events.
func (c *Controller) ConnectRole(role sensor.Role) {
	c.logger.Printf("DashboardController: connecting %s", role)
	go_func_utils.SafeGoGroup(c.logger, &c.wg, func() {
		err := c.connector.Connect(c.ctx, role)
		switch {
		case err == nil:
		case errors.Is(err, connection.ErrAlreadyConnecting), errors.Is(err, connection.ErrAlreadyConnected):
			c.logger.Printf("DashboardController: %s: %v", role, err)
		case errors.Is(err, context.Canceled):
			c.logger.Printf("DashboardController: %s connection cancelled", role)
		default:
			c.logger.Printf("DashboardController: %v", err)
		}
	})
}

func (c *Controller) DisconnectRole(role sensor.Role) {
	c.logger.Printf("DashboardController: disconnecting %s", role)
	if err := c.connector.Disconnect(role); err != nil {
		c.logger.Printf("DashboardController: failed to disconnect %s: %v", role, err)
	}
}

// ToggleRole connects a disconnected role and disconnects it otherwise.
func (c *Controller) ToggleRole(role sensor.Role) {
	if c.connector.State(role) == sensor.Disconnected {
		c.ConnectRole(role)
		return
	}
	c.DisconnectRole(role)
}

func (c *Controller) ConnectAll() {
	for _, role := range c.connector.Roles() {
		if c.connector.State(role) == sensor.Disconnected {
			c.ConnectRole(role)
		}
	}
}

func (c *Controller) IncreaseTargetPower() {
	c.adjustTargetPower(c.powerStep)
}

func (c *Controller) DecreaseTargetPower() {
	c.adjustTargetPower(-c.powerStep)
}

func (c *Controller) adjustTargetPower(delta int) {
	current := int(c.model.Control().TargetPowerWatts)
	if current == 0 {
		// nothing set yet this session
		c.SetTargetPower(DefaultTargetPowerWatts)
		return
	}
	c.SetTargetPower(current + delta)
}

// SetTargetPower clamps watts to the configured limits and sends it.
func (c *Controller) SetTargetPower(watts int) {
	target := c.commands.Limits().ClampPower(watts)
	if err := c.commands.SetTargetPower(target); err != nil {
		c.logger.Printf("DashboardController: failed to set target power %dW: %v", target, err)
		c.model.SetControlError(err)
		return
	}
	c.logger.Printf("DashboardController: target power %dW", target)
	c.model.SetTargetPower(target)
}

func (c *Controller) IncreaseResistance() {
	c.SetResistance(int(c.model.Control().ResistanceLevel) + c.resistanceStep)
}

func (c *Controller) DecreaseResistance() {
	c.SetResistance(int(c.model.Control().ResistanceLevel) - c.resistanceStep)
}

func (c *Controller) SetResistance(level int) {
	target := c.commands.Limits().ClampResistance(level)
	if err := c.commands.SetResistance(target); err != nil {
		c.logger.Printf("DashboardController: failed to set resistance %d: %v", target, err)
		c.model.SetControlError(err)
		return
	}
	c.logger.Printf("DashboardController: resistance %d", target)
	c.model.SetResistance(target)
}

func (c *Controller) RequestControl() {
	if err := c.commands.RequestControl(); err != nil {
		c.logger.Printf("DashboardController: failed to request control: %v", err)
		c.model.SetControlError(err)
		return
	}
	c.logger.Println("DashboardController: control requested")
}

func (c *Controller) Limits() command.Limits {
	return c.commands.Limits()
}

func (c *Controller) Quit() {
	c.model.RequestCloseApplication()
}

// Shutdown cancels outstanding connection attempts and waits for them.
func (c *Controller) Shutdown() {
	c.logger.Println("DashboardController: shutting down")
	c.cancel()
	c.wg.Wait()
	c.logger.Println("DashboardController: shutdown complete")
}
