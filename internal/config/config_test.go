package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/command"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(nil, dir)
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "smart_trainer.log"), cfg.Log.File)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Equal(t, 3, cfg.Log.MaxBackups)
	assert.Equal(t, filepath.Join(dir, "preferences.json"), cfg.PreferencesFile)
	assert.False(t, cfg.Simulate)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 8081, cfg.SimulatorBasePort)
	assert.Empty(t, cfg.Addresses)
	assert.Equal(t, command.DefaultLimits(), cfg.Limits)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := load([]string{
		"--simulate",
		"--headless",
		"--auto-connect",
		"--simulator-base-port", "9100",
		"--trainer-address", "C0:FF:EE:00:00:01",
		"--heart-rate-address", " F1:00:00:00:00:02 ",
	}, t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.Simulate)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.AutoConnect)
	assert.Equal(t, 9100, cfg.SimulatorBasePort)
	assert.Equal(t, map[sensor.Role]string{
		sensor.RoleTrainer:   "C0:FF:EE:00:00:01",
		sensor.RoleHeartRate: "F1:00:00:00:00:02",
	}, cfg.Addresses)

	assert.Equal(t, 9100, cfg.SimulatorPort(sensor.RoleTrainer))
	assert.Equal(t, 9101, cfg.SimulatorPort(sensor.RolePowerMeter))
	assert.Equal(t, 9102, cfg.SimulatorPort(sensor.RoleHeartRate))
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SMART_TRAINER_SIMULATE", "true")
	t.Setenv("SMART_TRAINER_POWER_METER_ADDRESS", "AA:BB")
	t.Setenv("SMART_TRAINER_LIMITS_MAX_POWER_WATTS", "1500")

	cfg, err := load(nil, t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, "AA:BB", cfg.Addresses[sensor.RolePowerMeter])
	assert.Equal(t, int16(1500), cfg.Limits.MaxPowerWatts)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("SMART_TRAINER_SIMULATOR_BASE_PORT", "9000")
	cfg, err := load([]string{"--simulator-base-port", "9500"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9500, cfg.SimulatorBasePort)
}

const sampleYAML = `
simulate: true
log:
  max-size-mb: 50
limits:
  min-power-watts: 50
  max-power-watts: 1200
dashboard:
  power-step-watts: 5
`

func TestLoad_DefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	cfg, err := load(nil, dir)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
	assert.Equal(t, int16(50), cfg.Limits.MinPowerWatts)
	assert.Equal(t, int16(1200), cfg.Limits.MaxPowerWatts)
	assert.Equal(t, 5, cfg.PowerStepWatts)
	// untouched keys keep their defaults
	assert.Equal(t, int16(1000), cfg.Limits.MaxResistance)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ride.yaml")
	require.NoError(t, os.WriteFile(path, []byte("headless: true\n"), 0644))

	cfg, err := load([]string{"--config", path}, t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.Headless)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, t.TempDir())
	assert.Error(t, err)
}

func TestLoad_UnknownFlag(t *testing.T) {
	_, err := load([]string{"--no-such-flag"}, t.TempDir())
	assert.Error(t, err)
}

func TestLoad_InvertedLimits(t *testing.T) {
	t.Setenv("SMART_TRAINER_LIMITS_MIN_RESISTANCE", "500")
	t.Setenv("SMART_TRAINER_LIMITS_MAX_RESISTANCE", "100")
	_, err := load(nil, t.TempDir())
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := load(nil, t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty log file", func(c *Config) { c.Log.File = "" }},
		{"zero log size", func(c *Config) { c.Log.MaxSizeMB = 0 }},
		{"port zero", func(c *Config) { c.SimulatorBasePort = 0 }},
		{"port too high", func(c *Config) { c.SimulatorBasePort = 65534 }},
		{"negative min power", func(c *Config) { c.Limits.MinPowerWatts = -1 }},
		{"zero power step", func(c *Config) { c.PowerStepWatts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, valid().Validate())
}
