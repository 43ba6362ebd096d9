package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	apperrors "github.com/ammarkh95/go-analog/internal/errors"
)

// Config is the root configuration for the bench toolkit.
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	WebSocket       WebSocketConfig       `mapstructure:"websocket"`
	AnalogDiscovery AnalogDiscoveryConfig `mapstructure:"analog_discovery"`
	ADALM1K         ADALM1KConfig         `mapstructure:"adalm1k"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Log             LogConfig             `mapstructure:"log"`
}

// ServerConfig configures the bench HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WebSocketConfig configures the scope streaming endpoint.
type WebSocketConfig struct {
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
}

// AnalogDiscoveryConfig configures the Analog Discovery device.
type AnalogDiscoveryConfig struct {
	// ConfigNumber selects the device configuration profile; -1 opens
	// the device with its default configuration.
	ConfigNumber int `mapstructure:"config_number"`
	// DeviceIndex selects which enumerated device to open; -1 opens
	// the first one found.
	DeviceIndex int            `mapstructure:"device_index"`
	Supplies    SuppliesConfig `mapstructure:"supplies"`
}

// SuppliesConfig holds the default power supply rails.
type SuppliesConfig struct {
	PositiveVoltage float64 `mapstructure:"positive_voltage"`
	NegativeVoltage float64 `mapstructure:"negative_voltage"`
}

// ADALM1KConfig configures the ADALM1000 source-measure unit.
type ADALM1KConfig struct {
	SampleRate      int     `mapstructure:"sample_rate"`
	QueueSize       int     `mapstructure:"queue_size"`
	ChannelAVoltage float64 `mapstructure:"ch_a_voltage"`
	ChannelBVoltage float64 `mapstructure:"ch_b_voltage"`
	ChannelACurrent float64 `mapstructure:"ch_a_current"`
	ChannelBCurrent float64 `mapstructure:"ch_b_current"`
}

// StorageConfig configures the capture archive.
type StorageConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	Output string        `mapstructure:"output"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures the rotating log file sink.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init loads configuration from file, environment and defaults.
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("analog")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		v.SetEnvPrefix("GO_ANALOG")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// a missing file falls back to defaults
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				err = apperrors.Wrap(err, apperrors.ErrConfigLoad)
				return
			}
			err = nil
		}

		newCfg := &Config{}
		if err = v.Unmarshal(newCfg); err != nil {
			err = apperrors.Wrap(err, apperrors.ErrConfigParse)
			return
		}

		if err = newCfg.Validate(); err != nil {
			return
		}

		cfg = newCfg
	})

	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("websocket.path", "/ws/scope")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 4096)
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")

	v.SetDefault("analog_discovery.config_number", -1)
	v.SetDefault("analog_discovery.device_index", -1)
	v.SetDefault("analog_discovery.supplies.positive_voltage", 3.3)
	v.SetDefault("analog_discovery.supplies.negative_voltage", -3.3)

	v.SetDefault("adalm1k.sample_rate", 100000)
	v.SetDefault("adalm1k.queue_size", 100000)
	v.SetDefault("adalm1k.ch_a_voltage", 0.0)
	v.SetDefault("adalm1k.ch_b_voltage", 0.0)
	v.SetDefault("adalm1k.ch_a_current", 0.0)
	v.SetDefault("adalm1k.ch_b_current", 0.0)

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./data/captures.db")
	v.SetDefault("storage.auto_migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "go-analog.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// Validate checks value ranges and names the offending key on failure.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"server.port: %d outside [0, 65535]", c.Server.Port)
	}
	if c.AnalogDiscovery.Supplies.PositiveVoltage < 0 || c.AnalogDiscovery.Supplies.PositiveVoltage > 5 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"analog_discovery.supplies.positive_voltage: %v outside [0, 5]",
			c.AnalogDiscovery.Supplies.PositiveVoltage)
	}
	if c.AnalogDiscovery.Supplies.NegativeVoltage < -5 || c.AnalogDiscovery.Supplies.NegativeVoltage > 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"analog_discovery.supplies.negative_voltage: %v outside [-5, 0]",
			c.AnalogDiscovery.Supplies.NegativeVoltage)
	}
	if c.ADALM1K.SampleRate <= 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"adalm1k.sample_rate: %d must be positive", c.ADALM1K.SampleRate)
	}
	if c.ADALM1K.QueueSize <= 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"adalm1k.queue_size: %d must be positive", c.ADALM1K.QueueSize)
	}
	if c.ADALM1K.ChannelAVoltage < 0 || c.ADALM1K.ChannelAVoltage > 5 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"adalm1k.ch_a_voltage: %v outside [0, 5]", c.ADALM1K.ChannelAVoltage)
	}
	if c.ADALM1K.ChannelBVoltage < 0 || c.ADALM1K.ChannelBVoltage > 5 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"adalm1k.ch_b_voltage: %v outside [0, 5]", c.ADALM1K.ChannelBVoltage)
	}
	if c.ADALM1K.ChannelACurrent < -0.2 || c.ADALM1K.ChannelACurrent > 0.2 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"adalm1k.ch_a_current: %v outside [-0.2, 0.2]", c.ADALM1K.ChannelACurrent)
	}
	if c.ADALM1K.ChannelBCurrent < -0.2 || c.ADALM1K.ChannelBCurrent > 0.2 {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"adalm1k.ch_b_current: %v outside [-0.2, 0.2]", c.ADALM1K.ChannelBCurrent)
	}
	if c.Storage.Driver != "sqlite" {
		return apperrors.Newf(apperrors.ErrConfigValidate,
			"storage.driver: unsupported driver %q", c.Storage.Driver)
	}
	return nil
}

// Get returns the loaded configuration.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch reloads the configuration when the file changes.
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("config reload failed: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("config reload rejected: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}
	})
}

// GetString returns a string value by key.
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt returns an int value by key.
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool returns a bool value by key.
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetFloat64 returns a float value by key.
func GetFloat64(key string) float64 {
	return v.GetFloat64(key)
}

// GetDuration returns a duration value by key.
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet reports whether a key is present.
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set overrides a value at runtime.
func Set(key string, value interface{}) {
	v.Set(key, value)
}
