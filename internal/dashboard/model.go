package dashboard

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/aggregator"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/connection"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/events"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

type ControlMode int

const (
	ControlModeNone ControlMode = iota
	ControlModeERG
	ControlModeResistance
)

func (m ControlMode) String() string {
	switch m {
	case ControlModeERG:
		return "ERG"
	case ControlModeResistance:
		return "Resistance"
	default:
		return "None"
	}
}

// ControlState is what the dashboard last asked the trainer for.
type ControlState struct {
	Mode             ControlMode
	TargetPowerWatts int16
	ResistanceLevel  int16
	LastError        string
}

// RoleView is one role as rendered in the roles panel.
type RoleView struct {
	Role           sensor.Role
	State          sensor.ConnectionState
	Address        string
	Name           string
	AcceptsCommand bool
	LastError      string
}

// StatusSource is the connection side of the model. *connection.Manager
// satisfies it.
type StatusSource interface {
	Roles() []sensor.Role
	Status(role sensor.Role) connection.RoleStatus
	ListenStates(fn func(connection.StateChange)) func()
	ListenErrors(fn func(connection.RoleError)) func()
}

// SnapshotSource is satisfied by *aggregator.Aggregator.
type SnapshotSource interface {
	Snapshot() aggregator.Snapshot
	ListenSnapshots(ch chan<- aggregator.Snapshot) func()
}

// Model holds everything the dashboard renders and fans changes out to the
// view.
type Model struct {
	logger    *log.Logger
	source    StatusSource
	snapshots SnapshotSource
	logs      *LogBuffer

	mu       sync.RWMutex
	order    []sensor.Role
	roles    map[sensor.Role]RoleView
	snapshot aggregator.Snapshot
	control  ControlState

	rolesEvent    *events.ChannelEvent[[]RoleView]
	snapshotEvent *events.ChannelEvent[aggregator.Snapshot]
	controlEvent  *events.ChannelEvent[ControlState]
	closeEvent    *events.ChannelEvent[struct{}]

	removers []func()
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type NewModelArgs struct {
	Logger    *log.Logger
	Source    StatusSource
	Snapshots SnapshotSource
	Logs      *LogBuffer
	Control   ControlState
}

func NewModel(args NewModelArgs) *Model {
	if args.Logger == nil {
		panic("DashboardModel: logger cannot be nil")
	}
	if args.Source == nil {
		panic("DashboardModel: source cannot be nil")
	}
	if args.Logs == nil {
		args.Logs = NewLogBuffer()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		logger:        args.Logger,
		source:        args.Source,
		snapshots:     args.Snapshots,
		logs:          args.Logs,
		order:         args.Source.Roles(),
		roles:         make(map[sensor.Role]RoleView),
		control:       args.Control,
		rolesEvent:    events.NewChannelEvent[[]RoleView](true),
		snapshotEvent: events.NewChannelEvent[aggregator.Snapshot](true),
		controlEvent:  events.NewChannelEvent[ControlState](true),
		closeEvent:    events.NewChannelEvent[struct{}](true),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, role := range m.order {
		m.roles[role] = roleViewFromStatus(args.Source.Status(role))
	}
	m.rolesEvent.Notify(m.Roles())
	m.controlEvent.Notify(m.control)

	m.removers = append(m.removers,
		args.Source.ListenStates(m.handleState),
		args.Source.ListenErrors(m.handleError),
	)

	if args.Snapshots != nil {
		snapshots := make(chan aggregator.Snapshot, 1)
		m.removers = append(m.removers, args.Snapshots.ListenSnapshots(snapshots))
		go_func_utils.SafeGoGroup(m.logger, &m.wg, func() { m.followSnapshots(snapshots) })
	}
	return m
}

func roleViewFromStatus(status connection.RoleStatus) RoleView {
	v := RoleView{
		Role:           status.Role,
		State:          status.State,
		Address:        status.Address,
		Name:           status.Name,
		AcceptsCommand: status.AcceptsCommand,
	}
	if status.LastError != nil {
		v.LastError = status.LastError.Error()
	}
	return v
}

// handleState runs on the manager's goroutine and must not block.
func (m *Model) handleState(sc connection.StateChange) {
	m.mu.Lock()
	v, ok := m.roles[sc.Role]
	if !ok {
		m.mu.Unlock()
		return
	}
	v.State = sc.State
	switch sc.State {
	case sensor.Connecting:
		v.LastError = ""
		v.Address, v.Name = "", ""
	case sensor.Connected:
		v.Address, v.Name = sc.Address, sc.Name
	}
	v.AcceptsCommand = sc.State == sensor.Connected && m.source.Status(sc.Role).AcceptsCommand
	m.roles[sc.Role] = v
	roles := m.rolesLocked()
	m.mu.Unlock()

	m.rolesEvent.Notify(roles)
}

func (m *Model) handleError(e connection.RoleError) {
	m.mu.Lock()
	v, ok := m.roles[e.Role]
	if !ok {
		m.mu.Unlock()
		return
	}
	if errors.Is(e.Err, context.Canceled) {
		// cancelled attempts are user intent, not failures
		m.mu.Unlock()
		return
	}
	v.LastError = e.Err.Error()
	m.roles[e.Role] = v
	roles := m.rolesLocked()
	m.mu.Unlock()

	m.rolesEvent.Notify(roles)
}

// followSnapshots copies the aggregator's snapshot whenever it signals a
// change. The channel may have dropped values, so the value received is
// ignored in favour of the current one.
func (m *Model) followSnapshots(ch <-chan aggregator.Snapshot) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ch:
			s := m.snapshots.Snapshot()
			m.mu.Lock()
			m.snapshot = s
			m.mu.Unlock()
			m.snapshotEvent.Notify(s)
		}
	}
}

func (m *Model) rolesLocked() []RoleView {
	out := make([]RoleView, 0, len(m.order))
	for _, role := range m.order {
		out = append(out, m.roles[role])
	}
	return out
}

// Roles returns the roles in display order.
func (m *Model) Roles() []RoleView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rolesLocked()
}

func (m *Model) Role(role sensor.Role) (RoleView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.roles[role]
	return v, ok
}

func (m *Model) Snapshot() aggregator.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *Model) Control() ControlState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.control
}

// SetTargetPower records an accepted ERG target.
func (m *Model) SetTargetPower(watts int16) {
	m.updateControl(func(c *ControlState) {
		c.Mode = ControlModeERG
		c.TargetPowerWatts = watts
		c.LastError = ""
	})
}

// SetResistance records an accepted resistance target.
func (m *Model) SetResistance(level int16) {
	m.updateControl(func(c *ControlState) {
		c.Mode = ControlModeResistance
		c.ResistanceLevel = level
		c.LastError = ""
	})
}

func (m *Model) SetControlError(err error) {
	m.updateControl(func(c *ControlState) {
		c.LastError = err.Error()
	})
}

func (m *Model) updateControl(fn func(*ControlState)) {
	m.mu.Lock()
	fn(&m.control)
	state := m.control
	m.mu.Unlock()
	m.controlEvent.Notify(state)
}

func (m *Model) LogTail(n int) []string {
	return m.logs.Tail(n)
}

func (m *Model) ListenToLog(ch chan<- string) func() {
	return m.logs.Listen(ch)
}

func (m *Model) ListenToRoles(ch chan<- []RoleView) func() {
	return m.rolesEvent.Listen(ch)
}

func (m *Model) ListenToSnapshot(ch chan<- aggregator.Snapshot) func() {
	return m.snapshotEvent.Listen(ch)
}

func (m *Model) ListenToControl(ch chan<- ControlState) func() {
	return m.controlEvent.Listen(ch)
}

func (m *Model) ListenToCloseApplication(ch chan<- struct{}) func() {
	return m.closeEvent.Listen(ch)
}

// RequestCloseApplication signals that the application should close.
func (m *Model) RequestCloseApplication() {
	m.closeEvent.Notify(struct{}{})
}

// Shutdown stops listening to the sources.
func (m *Model) Shutdown() {
	m.logger.Println("DashboardModel: shutting down")
	for _, remove := range m.removers {
		remove()
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Println("DashboardModel: shutdown complete")
}
