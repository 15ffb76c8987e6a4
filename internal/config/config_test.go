package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/proxlock/internal/actuator"
	"codeberg.org/mutker/proxlock/internal/config"
	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/logger"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxlock.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
interval = 1500
threshold = -6.5
window = 7
peer = "AA:BB:CC:DD:EE:FF"
adapter = "hci1"
connect = false
read_timeout = 0
actuator = "command"
lock_command = "loginctl lock-session"
log_level = "debug"
journal = true
journal_path = "/tmp/journal.db"
mqtt_broker = "localhost:1883"
`)
	t.Setenv("PROXLOCK_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 1500, cfg.Interval)
	assert.InDelta(t, -6.5, cfg.Threshold, 1e-9)
	assert.Equal(t, 7, cfg.Window)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.Peer)
	assert.Equal(t, "hci1", cfg.Adapter)
	assert.False(t, cfg.Connect)
	assert.Equal(t, 0, cfg.ReadTimeout)
	assert.Equal(t, actuator.KindCommand, cfg.Actuator)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Journal)
	assert.Equal(t, path, cfg.ConfigFile)

	settings := cfg.Settings()
	assert.Equal(t, 1500*time.Millisecond, settings.Interval)
	assert.Equal(t, 7, settings.Window)
	assert.Zero(t, settings.ReadTimeout)

	jc := cfg.JournalConfig()
	assert.True(t, jc.Enabled)
	assert.Equal(t, "/tmp/journal.db", jc.DBPath)

	assert.Equal(t, "localhost:1883", cfg.MQTTConfig().Broker)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, ""))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Interval, "normal refresh preset")
	assert.InDelta(t, -4.0, cfg.Threshold, 1e-9, "medium distance preset")
	assert.Equal(t, 5, cfg.Window)
	assert.Equal(t, config.DefaultAdapter, cfg.Adapter)
	assert.True(t, cfg.Connect)
	assert.Equal(t, config.DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, 3, cfg.DegradedAfter)
	assert.Equal(t, actuator.KindLogind, cfg.Actuator)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Monitor)
	assert.False(t, cfg.Journal)
	assert.Empty(t, cfg.Listen)
}

func TestPIDFileFollowsRuntimeDir(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, ""))
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "proxlock.pid"), cfg.PIDFile)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	assert.Equal(t, filepath.Join(dir, "proxlock.pid"), fs.Lookup("pid-file").DefValue)
}

func TestPIDFileWithoutRuntimeDir(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, ""))
	t.Setenv("XDG_RUNTIME_DIR", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.SystemPIDFile, cfg.PIDFile)
}

func TestPresets(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, `
refresh = "slow"
distance = "far"
`))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Interval)
	assert.InDelta(t, -10.0, cfg.Threshold, 1e-9)
}

func TestExplicitValuesOverridePresets(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, `
refresh = "slow"
interval = 750
distance = "far"
threshold = 0
`))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.Interval)
	assert.InDelta(t, 0.0, cfg.Threshold, 1e-9)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, `window = 7`))
	t.Setenv("PROXLOCK_WINDOW", "9")
	t.Setenv("PROXLOCK_DISTANCE", "close")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Window)
	assert.InDelta(t, 0.0, cfg.Threshold, 1e-9)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, `window = 7`))
	t.Setenv("PROXLOCK_WINDOW", "9")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--window", "3", "--read-timeout", "2500"}))

	cfg, err := config.Load(config.WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Window)
	assert.Equal(t, 2500, cfg.ReadTimeout)
	assert.Equal(t, 2000, cfg.Interval, "unset flags leave presets in effect")
}

func TestWithConfigFile(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, `window = 7`))
	path := writeConfig(t, `window = 4`)

	cfg, err := config.Load(config.WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Window)
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := config.Load(config.WithConfigFile(filepath.Join(t.TempDir(), "absent.toml")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	t.Setenv("PROXLOCK_CONFIG", writeConfig(t, `
This is not a valid TOML file
`))

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{"zero interval", `interval = 0`, errors.ErrInvalidInterval},
		{"negative interval", `interval = -5`, errors.ErrInvalidInterval},
		{"zero window", `window = 0`, errors.ErrInvalidCapacity},
		{"unknown distance", `distance = "nearby"`, errors.ErrInvalidPreset},
		{"unknown refresh", `refresh = "turbo"`, errors.ErrInvalidPreset},
		{"threshold out of range", `threshold = 50`, errors.ErrInvalidThreshold},
		{"invalid log level", `log_level = "invalid"`, errors.ErrInvalidLogLevel},
		{"unknown actuator", `actuator = "screensaver"`, actuator.ErrUnknownKind},
		{"command without lock", `actuator = "command"`, errors.ErrInvalidConfig},
		{"negative read timeout", `read_timeout = -1`, errors.ErrInvalidArgument},
		{"zero degraded after", `degraded_after = 0`, errors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROXLOCK_CONFIG", writeConfig(t, tt.content))

			_, err := config.Load()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := &config.Config{LogLevel: "error"}
	assert.Equal(t, logger.ErrorLevel, cfg.Level())

	cfg.Verbose = true
	assert.Equal(t, logger.InfoLevel, cfg.Level())

	cfg.Debug = true
	assert.Equal(t, logger.DebugLevel, cfg.Level())
}

func TestMonitorSelectsNoActuator(t *testing.T) {
	cfg := &config.Config{Actuator: actuator.KindLogind, Monitor: true}
	assert.Equal(t, actuator.KindNone, cfg.ActuatorOptions(logger.Nop()).Kind)

	cfg.Monitor = false
	assert.Equal(t, actuator.KindLogind, cfg.ActuatorOptions(logger.Nop()).Kind)
}

func TestLogLevelIsValid(t *testing.T) {
	assert.True(t, config.LogLevelWarning.IsValid())
	assert.False(t, config.LogLevel("verbose").IsValid())
}
