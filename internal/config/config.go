// Package config loads proxlock settings from flags, environment and a TOML
// file, in that order of precedence.
package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/proxlock/internal/actuator"
	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/journal"
	"codeberg.org/mutker/proxlock/internal/logger"
	"codeberg.org/mutker/proxlock/internal/mqtt"
	"codeberg.org/mutker/proxlock/internal/sampler"
)

const (
	DefaultEnvPrefix   = "PROXLOCK"
	DefaultConfigPath  = "/etc/proxlock.toml"
	DefaultLogLevel    = "warning"
	DefaultAdapter     = "hci0"
	DefaultDistance    = "medium"
	DefaultRefresh     = "normal"
	DefaultReadTimeout = 10000
	SystemPIDFile      = "/run/proxlock.pid"

	// HCI reports RSSI as a signed byte in this range.
	minThreshold = -127
	maxThreshold = 20
)

var errFactory = errors.New()

// Config is the fully resolved configuration. Durations are milliseconds
// as written in the file.
type Config struct {
	Interval      int     `mapstructure:"interval"`
	Refresh       string  `mapstructure:"refresh"`
	Threshold     float64 `mapstructure:"threshold"`
	Distance      string  `mapstructure:"distance"`
	Window        int     `mapstructure:"window"`
	Peer          string  `mapstructure:"peer"`
	Adapter       string  `mapstructure:"adapter"`
	Connect       bool    `mapstructure:"connect"`
	ReadTimeout   int     `mapstructure:"read_timeout"`
	DegradedAfter int     `mapstructure:"degraded_after"`

	Actuator      string `mapstructure:"actuator"`
	LockCommand   string `mapstructure:"lock_command"`
	UnlockCommand string `mapstructure:"unlock_command"`
	Session       string `mapstructure:"session"`
	Monitor       bool   `mapstructure:"monitor"`
	Demo          bool   `mapstructure:"demo"`

	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`

	Listen      string `mapstructure:"listen"`
	Journal     bool   `mapstructure:"journal"`
	JournalPath string `mapstructure:"journal_path"`
	MQTTBroker  string `mapstructure:"mqtt_broker"`
	MQTTTopic   string `mapstructure:"mqtt_topic"`
	PIDFile     string `mapstructure:"pid_file"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

type flagSpec struct {
	key   string
	usage string
	kind  string
	def   any
}

// Flags registered by RegisterFlags. Keys map to flag names by replacing
// underscores with hyphens.
var flagSpecs = []flagSpec{
	{"interval", "sampling interval in milliseconds (overrides --refresh)", "int", 0},
	{"refresh", "refresh preset: fast, normal or slow", "string", DefaultRefresh},
	{"threshold", "lock threshold in dBm (overrides --distance)", "float", 0.0},
	{"distance", "distance preset: close, medium or far", "string", DefaultDistance},
	{"window", "number of samples averaged", "int", sampler.DefaultWindow},
	{"peer", "peer MAC address; empty selects the first named device", "string", ""},
	{"adapter", "Bluetooth adapter", "string", DefaultAdapter},
	{"connect", "open a GATT connection to the peer", "bool", true},
	{"read_timeout", "abandon a signal read after this many milliseconds, 0 waits forever", "int", DefaultReadTimeout},
	{"degraded_after", "consecutive actuator failures before reporting degraded", "int", sampler.DefaultDegradedAfter},
	{"actuator", "lock actuator: logind, command or none", "string", actuator.KindLogind},
	{"lock_command", "shell command run to lock (command actuator)", "string", ""},
	{"unlock_command", "shell command run to unlock (command actuator)", "string", ""},
	{"session", "logind session id", "string", ""},
	{"monitor", "compute decisions without locking", "bool", false},
	{"demo", "use a simulated peer", "bool", false},
	{"log_level", "log level: debug, info, warning or error", "string", DefaultLogLevel},
	{"debug", "enable debug logging", "bool", false},
	{"verbose", "enable verbose logging", "bool", false},
	{"listen", "HTTP listen address, empty disables", "string", ""},
	{"journal", "record lifecycle and lock events to SQLite", "bool", false},
	{"journal_path", "journal database path", "string", journal.DefaultConfig().DBPath},
	{"mqtt_broker", "MQTT broker address, empty disables", "string", ""},
	{"mqtt_topic", "MQTT topic prefix", "string", "proxlock"},
	{"pid_file", "PID file path (default $XDG_RUNTIME_DIR/proxlock.pid when set)", "string", nil},
}

// DefaultPIDFile returns the PID file path used when none is configured.
// Unprivileged users cannot write /run, so the per-user runtime directory
// wins when the session has one.
func DefaultPIDFile() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "proxlock.pid")
	}
	return SystemPIDFile
}

func (f flagSpec) defaultValue() any {
	if f.key == "pid_file" {
		return DefaultPIDFile()
	}
	return f.def
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// RegisterFlags defines every configuration flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, f := range flagSpecs {
		name := flagName(f.key)
		def := f.defaultValue()
		switch f.kind {
		case "int":
			fs.Int(name, def.(int), f.usage)
		case "float":
			fs.Float64(name, def.(float64), f.usage)
		case "bool":
			fs.Bool(name, def.(bool), f.usage)
		default:
			fs.String(name, def.(string), f.usage)
		}
	}
}

// Load reads configuration from all sources and validates it.
func Load(opts ...Option) (*Config, error) {
	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	for _, f := range flagSpecs {
		// interval and threshold stay unset unless given so presets apply.
		if f.key != "interval" && f.key != "threshold" {
			v.SetDefault(f.key, f.defaultValue())
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, f := range flagSpecs {
		if err := v.BindEnv(f.key); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	if o.flags != nil {
		for _, f := range flagSpecs {
			flag := o.flags.Lookup(flagName(f.key))
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(f.key, flag); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	path, explicit := configPath(o)
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return nil, errFactory.WithData(errors.ErrReadConfig, err.Error())
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.resolvePresets(v.IsSet("interval"), v.IsSet("threshold")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configPath(o *options) (string, bool) {
	if o.configPath != "" {
		return o.configPath, true
	}
	if env := os.Getenv(o.envPrefix + "_CONFIG"); env != "" {
		return env, true
	}
	return DefaultConfigPath, false
}

func (c *Config) resolvePresets(intervalSet, thresholdSet bool) error {
	if !intervalSet {
		d, ok := RefreshInterval(c.Refresh)
		if !ok {
			return errFactory.WithData(errors.ErrInvalidPreset, c.Refresh)
		}
		c.Interval = int(d / time.Millisecond)
	}
	if !thresholdSet {
		t, ok := DistanceThreshold(c.Distance)
		if !ok {
			return errFactory.WithData(errors.ErrInvalidPreset, c.Distance)
		}
		c.Threshold = t
	}
	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if math.IsNaN(c.Threshold) || c.Threshold < minThreshold || c.Threshold > maxThreshold {
		return errFactory.WithData(errors.ErrInvalidThreshold, c.Threshold)
	}
	if c.Window <= 0 {
		return errFactory.WithData(errors.ErrInvalidCapacity, c.Window)
	}
	if c.ReadTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, "read_timeout")
	}
	if c.DegradedAfter < 1 {
		return errFactory.WithData(errors.ErrInvalidArgument, "degraded_after")
	}
	if _, ok := RefreshInterval(c.Refresh); c.Refresh != "" && !ok {
		return errFactory.WithData(errors.ErrInvalidPreset, c.Refresh)
	}
	if _, ok := DistanceThreshold(c.Distance); c.Distance != "" && !ok {
		return errFactory.WithData(errors.ErrInvalidPreset, c.Distance)
	}

	switch strings.ToLower(c.Actuator) {
	case actuator.KindLogind, actuator.KindNone:
	case actuator.KindCommand:
		if c.LockCommand == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "lock_command is required for the command actuator")
		}
	default:
		return errFactory.WithData(actuator.ErrUnknownKind, c.Actuator)
	}

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Journal && c.JournalPath == "" {
		return errFactory.New(journal.ErrInvalidDBPath)
	}

	return nil
}

// Level resolves --debug and --verbose against log_level.
func (c *Config) Level() logger.LogLevel {
	switch {
	case c.Debug:
		return logger.DebugLevel
	case c.Verbose:
		return logger.InfoLevel
	}
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}

// Settings projects the configuration to session parameters.
func (c *Config) Settings() sampler.Settings {
	return sampler.Settings{
		Interval:      time.Duration(c.Interval) * time.Millisecond,
		Threshold:     c.Threshold,
		Window:        c.Window,
		ReadTimeout:   time.Duration(c.ReadTimeout) * time.Millisecond,
		DegradedAfter: c.DegradedAfter,
	}
}

// ActuatorOptions returns the actuator selection. Monitor mode always
// selects the no-op actuator.
func (c *Config) ActuatorOptions(log logger.Logger) actuator.Options {
	kind := c.Actuator
	if c.Monitor {
		kind = actuator.KindNone
	}
	return actuator.Options{
		Kind:          kind,
		LockCommand:   c.LockCommand,
		UnlockCommand: c.UnlockCommand,
		Session:       c.Session,
		Logger:        log,
	}
}

func (c *Config) JournalConfig() journal.Config {
	jc := journal.DefaultConfig()
	jc.Enabled = c.Journal
	if c.JournalPath != "" {
		jc.DBPath = c.JournalPath
	}
	return jc
}

func (c *Config) MQTTConfig() mqtt.Config {
	return mqtt.Config{
		Broker: c.MQTTBroker,
		Topic:  c.MQTTTopic,
	}
}
