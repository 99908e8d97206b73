package preferences

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/bt/bttest"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/connection"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

var testLogger = log.New(io.Discard, "", 0)

func TestStore_MissingFileStartsEmpty(t *testing.T) {
	s := NewStore(testLogger, filepath.Join(t.TempDir(), "preferences.json"))
	assert.Empty(t, s.PreferredAddress(sensor.RoleTrainer))
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewStore(testLogger, path)
	assert.Empty(t, s.PreferredAddress(sensor.RoleTrainer))
	require.NoError(t, s.SetPreferredAddress(sensor.RoleTrainer, "AA"))
}

func TestStore_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "preferences.json")
	s := NewStore(testLogger, path)
	require.NoError(t, s.SetPreferredAddress(sensor.RoleTrainer, "C0:FF:EE:00:00:01"))
	require.NoError(t, s.SetPreferredAddress(sensor.RoleHeartRate, "F1:00:00:00:00:02"))

	reloaded := NewStore(testLogger, path)
	assert.Equal(t, "C0:FF:EE:00:00:01", reloaded.PreferredAddress(sensor.RoleTrainer))
	assert.Equal(t, "F1:00:00:00:00:02", reloaded.PreferredAddress(sensor.RoleHeartRate))
	assert.Empty(t, reloaded.PreferredAddress(sensor.RolePowerMeter))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"heart_rate": "F1:00:00:00:00:02"`)
}

func TestStore_Profiles(t *testing.T) {
	s := NewStore(testLogger, filepath.Join(t.TempDir(), "preferences.json"))
	require.NoError(t, s.SetPreferredAddress(sensor.RoleTrainer, "REMEMBERED"))
	require.NoError(t, s.SetPreferredAddress(sensor.RoleHeartRate, "REMEMBERED-HR"))

	defaults := sensor.DefaultProfiles()
	defaults[sensor.RoleHeartRate] = defaults[sensor.RoleHeartRate].WithAddress("PINNED")

	profiles := s.Profiles(defaults)
	assert.Equal(t, "REMEMBERED", profiles[sensor.RoleTrainer].Filter.Address)
	assert.Equal(t, "PINNED", profiles[sensor.RoleHeartRate].Filter.Address)
	assert.Empty(t, profiles[sensor.RolePowerMeter].Filter.Address)

	// the input map is not modified
	assert.Empty(t, defaults[sensor.RoleTrainer].Filter.Address)
}

func TestStore_TrackRemembersConnectedDevices(t *testing.T) {
	s := NewStore(testLogger, filepath.Join(t.TempDir(), "preferences.json"))

	connector := bttest.NewFakeConnector()
	manager := connection.NewManager(testLogger, connector, sensor.DefaultProfiles())
	defer manager.Shutdown()
	stop := s.Track(manager)
	defer stop()

	connector.QueueLink(bttest.NewFakeLink("F1:00:00:00:00:02", "HRM-Pro", sensor.DataStreamHeartRate))
	require.NoError(t, manager.Connect(context.Background(), sensor.RoleHeartRate))
	assert.Equal(t, "F1:00:00:00:00:02", s.PreferredAddress(sensor.RoleHeartRate))

	// disconnecting does not forget the device
	require.NoError(t, manager.Disconnect(sensor.RoleHeartRate))
	assert.Equal(t, "F1:00:00:00:00:02", s.PreferredAddress(sensor.RoleHeartRate))
}
