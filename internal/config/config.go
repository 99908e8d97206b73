// Package config loads runtime settings from flags, SMART_TRAINER_*
// environment variables and an optional YAML file, in that precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/command"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

const (
	EnvPrefix      = "SMART_TRAINER"
	configDirName  = ".smart-trainer"
	configFileName = "config"
)

// viper keys
const (
	keyConfig            = "config"
	keyLogFile           = "log-file"
	keyLogMaxSizeMB      = "log.max-size-mb"
	keyLogMaxBackups     = "log.max-backups"
	keyLogMaxAgeDays     = "log.max-age-days"
	keyLogCompress       = "log.compress"
	keyPreferencesFile   = "preferences-file"
	keySimulate          = "simulate"
	keyHeadless          = "headless"
	keySimulatorBasePort = "simulator-base-port"
	keyAutoConnect       = "auto-connect"
	keyMinPowerWatts     = "limits.min-power-watts"
	keyMaxPowerWatts     = "limits.max-power-watts"
	keyMinResistance     = "limits.min-resistance"
	keyMaxResistance     = "limits.max-resistance"
	keyPowerStepWatts    = "dashboard.power-step-watts"
	keyResistanceStep    = "dashboard.resistance-step"
)

// addressKey is the flag/key pinning role to one device address.
func addressKey(role sensor.Role) string {
	return strings.ReplaceAll(role.String(), "_", "-") + "-address"
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Config struct {
	// ConfigFile is the YAML file that was read, empty if none.
	ConfigFile      string
	Log             LogConfig
	PreferencesFile string

	Simulate          bool
	Headless          bool
	SimulatorBasePort int
	AutoConnect       bool

	// Addresses pins roles to device addresses. Roles without an entry
	// use the remembered device or the first match of their scan filter.
	Addresses map[sensor.Role]string

	Limits         command.Limits
	PowerStepWatts int
	ResistanceStep int
}

// Load parses args (without the program name) and resolves the
// configuration.
func Load(args []string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return load(args, filepath.Join(home, configDirName))
}

func load(args []string, configDir string) (*Config, error) {
	fs := newFlagSet(configDir)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if file := v.GetString(keyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(configDir string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("smart_trainer", pflag.ContinueOnError)
	fs.String(keyConfig, "", "path to a YAML config file (default "+filepath.Join(configDir, configFileName+".yaml")+")")
	fs.String(keyLogFile, filepath.Join(configDir, "smart_trainer.log"), "rotating log file")
	fs.String(keyPreferencesFile, filepath.Join(configDir, "preferences.json"), "remembered devices file")
	fs.Bool(keySimulate, false, "use simulated devices instead of Bluetooth")
	fs.Bool(keyHeadless, false, "run without the terminal dashboard, logging to stderr")
	fs.Int(keySimulatorBasePort, 8081, "first HTTP debug port of the simulated devices, one per role")
	fs.Bool(keyAutoConnect, false, "connect every role at startup")
	for _, role := range sensor.AllRoles {
		fs.String(addressKey(role), "", "pin the "+role.DisplayName()+" to this device address")
	}
	return fs
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault(keyLogFile, filepath.Join(configDir, "smart_trainer.log"))
	v.SetDefault(keyLogMaxSizeMB, 10)
	v.SetDefault(keyLogMaxBackups, 3)
	v.SetDefault(keyLogMaxAgeDays, 28)
	v.SetDefault(keyLogCompress, false)
	v.SetDefault(keyPreferencesFile, filepath.Join(configDir, "preferences.json"))
	v.SetDefault(keySimulatorBasePort, 8081)

	limits := command.DefaultLimits()
	v.SetDefault(keyMinPowerWatts, limits.MinPowerWatts)
	v.SetDefault(keyMaxPowerWatts, limits.MaxPowerWatts)
	v.SetDefault(keyMinResistance, limits.MinResistance)
	v.SetDefault(keyMaxResistance, limits.MaxResistance)
	v.SetDefault(keyPowerStepWatts, 10)
	v.SetDefault(keyResistanceStep, 10)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		ConfigFile: v.ConfigFileUsed(),
		Log: LogConfig{
			File:       v.GetString(keyLogFile),
			MaxSizeMB:  v.GetInt(keyLogMaxSizeMB),
			MaxBackups: v.GetInt(keyLogMaxBackups),
			MaxAgeDays: v.GetInt(keyLogMaxAgeDays),
			Compress:   v.GetBool(keyLogCompress),
		},
		PreferencesFile:   v.GetString(keyPreferencesFile),
		Simulate:          v.GetBool(keySimulate),
		Headless:          v.GetBool(keyHeadless),
		SimulatorBasePort: v.GetInt(keySimulatorBasePort),
		AutoConnect:       v.GetBool(keyAutoConnect),
		Addresses:         make(map[sensor.Role]string),
		Limits: command.Limits{
			MinPowerWatts: int16(v.GetInt(keyMinPowerWatts)),
			MaxPowerWatts: int16(v.GetInt(keyMaxPowerWatts)),
			MinResistance: int16(v.GetInt(keyMinResistance)),
			MaxResistance: int16(v.GetInt(keyMaxResistance)),
		},
		PowerStepWatts: v.GetInt(keyPowerStepWatts),
		ResistanceStep: v.GetInt(keyResistanceStep),
	}
	for _, role := range sensor.AllRoles {
		if addr := strings.TrimSpace(v.GetString(addressKey(role))); addr != "" {
			cfg.Addresses[role] = addr
		}
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Log.File == "" {
		return errors.New("log file must be set")
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log max size must be positive, got %d", c.Log.MaxSizeMB)
	}
	if c.SimulatorBasePort <= 0 || c.SimulatorBasePort+len(sensor.AllRoles) > 65535 {
		return fmt.Errorf("simulator base port %d out of range", c.SimulatorBasePort)
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if c.PowerStepWatts <= 0 || c.ResistanceStep <= 0 {
		return fmt.Errorf("dashboard steps must be positive, got power %d resistance %d", c.PowerStepWatts, c.ResistanceStep)
	}
	return nil
}

// SimulatorPort returns the HTTP debug port of role's simulated device.
func (c *Config) SimulatorPort(role sensor.Role) int {
	for i, r := range sensor.AllRoles {
		if r == role {
			return c.SimulatorBasePort + i
		}
	}
	return c.SimulatorBasePort
}
