// Package preferences remembers the last device bound to each role.
package preferences

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/connection"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

type storeData struct {
	PreferredDeviceByRole map[string]string `json:"preferred_device_by_role"`
}

type Store struct {
	filePath string
	logger   *log.Logger

	mu   sync.Mutex
	data storeData
}

// StateSource publishes connection state changes. *connection.Manager
// satisfies it.
type StateSource interface {
	ListenStates(fn func(connection.StateChange)) func()
}

// NewStore loads filePath. A missing or unreadable file starts empty.
func NewStore(logger *log.Logger, filePath string) *Store {
	if logger == nil {
		panic("Preferences: logger cannot be nil")
	}
	s := &Store{
		filePath: filePath,
		logger:   logger,
	}
	s.load()
	return s
}

func (s *Store) PreferredAddress(role sensor.Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.PreferredDeviceByRole[role.String()]
}

// SetPreferredAddress records address for role and saves the file.
func (s *Store) SetPreferredAddress(role sensor.Role, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.PreferredDeviceByRole[role.String()] == address {
		return nil
	}
	s.logger.Printf("Preferences: %s -> %q", role, address)
	s.data.PreferredDeviceByRole[role.String()] = address
	return s.saveLocked()
}

// Track remembers every device a role connects to. Returns a function that
// stops tracking.
func (s *Store) Track(source StateSource) func() {
	return source.ListenStates(func(sc connection.StateChange) {
		if sc.State != sensor.Connected || sc.Address == "" {
			return
		}
		if err := s.SetPreferredAddress(sc.Role, sc.Address); err != nil {
			s.logger.Printf("Preferences: %v", err)
		}
	})
}

// Profiles pins each profile in profiles to its remembered address, unless
// pinned already.
func (s *Store) Profiles(profiles map[sensor.Role]sensor.Profile) map[sensor.Role]sensor.Profile {
	out := make(map[sensor.Role]sensor.Profile, len(profiles))
	for role, p := range profiles {
		if p.Filter.Address == "" {
			if addr := s.PreferredAddress(role); addr != "" {
				p = p.WithAddress(addr)
			}
		}
		out[role] = p
	}
	return out
}

func (s *Store) load() {
	s.data = storeData{PreferredDeviceByRole: make(map[string]string)}
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		s.logger.Printf("Preferences: load %s (no existing file)", s.filePath)
		return
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		s.logger.Printf("Preferences: load %s failed to parse: %v", s.filePath, err)
		s.data = storeData{PreferredDeviceByRole: make(map[string]string)}
		return
	}
	if s.data.PreferredDeviceByRole == nil {
		s.data.PreferredDeviceByRole = make(map[string]string)
	}
	s.logger.Printf("Preferences: load %s -> %v", s.filePath, s.data.PreferredDeviceByRole)
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := os.WriteFile(s.filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to save preferences %s: %w", s.filePath, err)
	}
	return nil
}
