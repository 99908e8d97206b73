package connection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/bt"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/codec"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/events"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// slot is the state machine for one role.
type slot struct {
	profile sensor.Profile

	// opMu serializes transitions. It is not held while waiting on the
	// connector, so Disconnect can cancel an outstanding attempt.
	opMu sync.Mutex

	mu             sync.RWMutex
	state          sensor.ConnectionState
	session        string
	cancel         context.CancelFunc
	link           bt.Link
	acceptsCommand bool
	lastErr        error

	// deliverMu is read-held for the whole of each notification delivery and
	// write-held by teardown, so once teardown has cleared active no record
	// for the old session can be in flight or start.
	deliverMu sync.RWMutex
	active    string
}

// Manager owns the connection lifecycle of every role and decodes their
// notifications.
//
// Record, state and error listeners run synchronously on the goroutine that
// produced the event, sometimes with internal locks held. They must not call
// Connect or Disconnect directly.
type Manager struct {
	logger    *log.Logger
	connector bt.Connector
	slots     map[sensor.Role]*slot
	now       func() time.Time

	recordsEvent *events.CallbackEvent[RoleRecord]
	statesEvent  *events.CallbackEvent[StateChange]
	errorsEvent  *events.CallbackEvent[RoleError]
}

func NewManager(logger *log.Logger, connector bt.Connector, profiles map[sensor.Role]sensor.Profile) *Manager {
	if logger == nil {
		panic("ConnectionManager: logger cannot be nil")
	}
	if connector == nil {
		panic("ConnectionManager: connector cannot be nil")
	}
	slots := make(map[sensor.Role]*slot, len(profiles))
	for role, profile := range profiles {
		slots[role] = &slot{profile: profile, state: sensor.Disconnected}
	}
	return &Manager{
		logger:       logger,
		connector:    connector,
		slots:        slots,
		now:          time.Now,
		recordsEvent: events.NewCallbackEvent[RoleRecord](false),
		statesEvent:  events.NewCallbackEvent[StateChange](false),
		errorsEvent:  events.NewCallbackEvent[RoleError](false),
	}
}

func (m *Manager) slot(role sensor.Role) (*slot, error) {
	s, ok := m.slots[role]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownRole, role)
	}
	return s, nil
}

// Connect runs one connection attempt for role and blocks until the role is
// Connected or the attempt has failed. There is no internal timeout; cancel
// ctx or call Disconnect to abandon the attempt.
func (m *Manager) Connect(ctx context.Context, role sensor.Role) error {
	s, err := m.slot(role)
	if err != nil {
		return err
	}

	session, attemptCtx, err := m.beginConnect(ctx, s)
	if err != nil {
		return err
	}

	link, connErr := m.connector.Connect(attemptCtx, s.profile.Filter)
	return m.finishConnect(s, session, link, connErr)
}

func (m *Manager) beginConnect(ctx context.Context, s *slot) (string, context.Context, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case sensor.Connecting:
		s.mu.Unlock()
		return "", nil, ErrAlreadyConnecting
	case sensor.Connected:
		s.mu.Unlock()
		return "", nil, ErrAlreadyConnected
	}
	session := uuid.NewString()
	attemptCtx, cancel := context.WithCancel(ctx)
	s.state = sensor.Connecting
	s.session = session
	s.cancel = cancel
	s.lastErr = nil
	s.mu.Unlock()

	m.logger.Printf("ConnectionManager: %s connecting (session %s)", s.profile.Role, session)
	m.statesEvent.Notify(StateChange{Role: s.profile.Role, State: sensor.Connecting})
	return session, attemptCtx, nil
}

func (m *Manager) finishConnect(s *slot, session string, link bt.Link, connErr error) error {
	role := s.profile.Role

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	current := s.session == session
	s.mu.RUnlock()
	if !current {
		// Disconnect ran while the connector was busy; the role is already
		// Disconnected and must stay that way.
		if link != nil {
			if err := link.Close(); err != nil {
				m.logger.Printf("ConnectionManager: %s error closing abandoned link: %v", role, err)
			}
		}
		if connErr == nil {
			connErr = context.Canceled
		}
		m.logger.Printf("ConnectionManager: %s attempt %s abandoned: %v", role, session, connErr)
		return &ConnectError{Role: role, Err: connErr}
	}

	if connErr == nil && link == nil {
		connErr = errors.New("connector returned no link")
	}
	if connErr != nil {
		return m.failLocked(s, connErr)
	}

	// open the delivery gate before subscribing so the first notification
	// is not dropped
	s.deliverMu.Lock()
	s.active = session
	s.deliverMu.Unlock()

	notify := s.profile.Notify
	if err := link.Subscribe(notify.ServiceUUID, notify.CharacteristicUUID, m.deliverFunc(s, session)); err != nil {
		s.deliverMu.Lock()
		s.active = ""
		s.deliverMu.Unlock()
		if cerr := link.Close(); cerr != nil {
			m.logger.Printf("ConnectionManager: %s error closing link after failed subscribe: %v", role, cerr)
		}
		return m.failLocked(s, fmt.Errorf("failed to subscribe to %s: %w", notify.DisplayName, err))
	}

	acceptsCommand := false
	if control := s.profile.Control; control != nil {
		acceptsCommand = link.HasCharacteristic(control.ServiceUUID, control.CharacteristicUUID)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.state = sensor.Connected
	s.link = link
	s.cancel = watchCancel
	s.acceptsCommand = acceptsCommand
	s.mu.Unlock()

	go_func_utils.SafeGo(m.logger, func() {
		select {
		case <-link.Lost():
			m.linkLost(s, session)
		case <-watchCtx.Done():
		}
	})

	m.logger.Printf("ConnectionManager: %s connected to %s (%s), accepts commands: %v",
		role, link.Name(), link.Address(), acceptsCommand)
	m.statesEvent.Notify(StateChange{
		Role:    role,
		State:   sensor.Connected,
		Address: link.Address(),
		Name:    link.Name(),
	})
	return nil
}

// failLocked returns the role to Disconnected after a failed attempt.
// Caller holds opMu.
func (m *Manager) failLocked(s *slot, cause error) error {
	role := s.profile.Role
	connErr := &ConnectError{Role: role, Err: cause}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.state = sensor.Disconnected
	s.session = ""
	s.cancel = nil
	s.lastErr = connErr
	s.mu.Unlock()

	m.logger.Printf("ConnectionManager: %v", connErr)
	m.statesEvent.Notify(StateChange{Role: role, State: sensor.Disconnected})
	m.errorsEvent.Notify(RoleError{Role: role, Err: connErr, At: m.now()})
	return connErr
}

// Disconnect releases role. It is a no-op when the role is Disconnected. An
// outstanding attempt is cancelled and will not reach Connected. When
// Disconnect returns no further record for the role will be delivered.
func (m *Manager) Disconnect(role sensor.Role) error {
	s, err := m.slot(role)
	if err != nil {
		return err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	m.teardownLocked(s, "", "disconnect requested")
	return nil
}

// LinkLost forces role to Disconnected as if its device had dropped.
// It is idempotent and safe to race with Disconnect.
func (m *Manager) LinkLost(role sensor.Role) {
	s, err := m.slot(role)
	if err != nil {
		return
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	m.teardownLocked(s, "", "link lost")
}

// linkLost handles a lost signal from the link bound in session. Signals
// from an earlier session are ignored.
func (m *Manager) linkLost(s *slot, session string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	m.teardownLocked(s, session, "link lost")
}

// teardownLocked moves the slot to Disconnected. An empty session matches
// whatever is current. Caller holds opMu.
func (m *Manager) teardownLocked(s *slot, session string, reason string) {
	role := s.profile.Role

	s.mu.Lock()
	if s.state == sensor.Disconnected || (session != "" && s.session != session) {
		s.mu.Unlock()
		return
	}
	prev := s.state
	link, cancel, oldSession := s.link, s.cancel, s.session
	s.state = sensor.Disconnected
	s.link = nil
	s.cancel = nil
	s.session = ""
	s.acceptsCommand = false
	s.mu.Unlock()

	// wait out any delivery in flight and refuse later ones
	s.deliverMu.Lock()
	s.active = ""
	s.deliverMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if link != nil {
		notify := s.profile.Notify
		if err := link.Unsubscribe(notify.ServiceUUID, notify.CharacteristicUUID); err != nil {
			m.logger.Printf("ConnectionManager: %s error unsubscribing: %v", role, err)
		}
		if err := link.Close(); err != nil {
			m.logger.Printf("ConnectionManager: %s error closing link: %v", role, err)
		}
	}

	m.logger.Printf("ConnectionManager: %s %v -> Disconnected (%s, session %s)", role, prev, reason, oldSession)
	m.statesEvent.Notify(StateChange{Role: role, State: sensor.Disconnected})
}

func (m *Manager) deliverFunc(s *slot, session string) func(buf []byte) {
	role := s.profile.Role
	messageType := s.profile.MessageType
	return func(buf []byte) {
		s.deliverMu.RLock()
		defer s.deliverMu.RUnlock()
		if s.active != session {
			return
		}

		rec, err := codec.Decode(messageType, buf)
		if err != nil {
			err = fmt.Errorf("failed to decode %v: %w", messageType, err)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			m.logger.Printf("ConnectionManager: %s %v (% x)", role, err, buf)
			m.errorsEvent.Notify(RoleError{Role: role, Err: err, At: m.now()})
			return
		}
		m.recordsEvent.Notify(RoleRecord{Role: role, Record: rec, ReceivedAt: m.now()})
	}
}

// Write sends data to role's command characteristic. There is no
// acknowledgement.
func (m *Manager) Write(role sensor.Role, data []byte) error {
	s, err := m.slot(role)
	if err != nil {
		return err
	}
	s.mu.RLock()
	link, state, acceptsCommand := s.link, s.state, s.acceptsCommand
	s.mu.RUnlock()

	if state != sensor.Connected || link == nil {
		return ErrNotConnected
	}
	if !acceptsCommand {
		return ErrNotSupported
	}
	control := s.profile.Control
	if err := link.Write(control.ServiceUUID, control.CharacteristicUUID, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", control.DisplayName, err)
	}
	return nil
}

// AcceptsCommands reports whether role is Connected to a device exposing
// its command characteristic.
func (m *Manager) AcceptsCommands(role sensor.Role) bool {
	s, err := m.slot(role)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == sensor.Connected && s.acceptsCommand
}

func (m *Manager) State(role sensor.Role) sensor.ConnectionState {
	s, err := m.slot(role)
	if err != nil {
		return sensor.Disconnected
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (m *Manager) Status(role sensor.Role) RoleStatus {
	status := RoleStatus{Role: role, State: sensor.Disconnected}
	s, err := m.slot(role)
	if err != nil {
		status.LastError = err
		return status
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	status.State = s.state
	status.AcceptsCommand = s.state == sensor.Connected && s.acceptsCommand
	status.LastError = s.lastErr
	if s.link != nil {
		status.Address = s.link.Address()
		status.Name = s.link.Name()
	}
	return status
}

// Roles lists the roles this manager has profiles for, in display order.
func (m *Manager) Roles() []sensor.Role {
	roles := make([]sensor.Role, 0, len(m.slots))
	for _, r := range sensor.AllRoles {
		if _, ok := m.slots[r]; ok {
			roles = append(roles, r)
		}
	}
	return roles
}

func (m *Manager) ListenRecords(fn func(RoleRecord)) func() {
	return m.recordsEvent.Listen(fn)
}

func (m *Manager) ListenStates(fn func(StateChange)) func() {
	return m.statesEvent.Listen(fn)
}

func (m *Manager) ListenErrors(fn func(RoleError)) func() {
	return m.errorsEvent.Listen(fn)
}

// Shutdown disconnects every role.
func (m *Manager) Shutdown() {
	m.logger.Println("ConnectionManager: shutting down")
	for _, role := range m.Roles() {
		_ = m.Disconnect(role)
	}
	m.logger.Println("ConnectionManager: shutdown complete")
}
