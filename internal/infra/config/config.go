package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Delivery DeliveryConfig `mapstructure:"delivery" yaml:"delivery"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	// OutDir seeds download_location when the settings file is first created.
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
}

type DeliveryConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Token   string        `mapstructure:"token" yaml:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type EngineConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	CommandBuffer int           `mapstructure:"command_buffer" yaml:"command_buffer"`
}

type SettingsConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("download.out_dir", "./.downloads")
	v.SetDefault("delivery.base_url", "")
	v.SetDefault("delivery.token", "")
	v.SetDefault("delivery.timeout", "60s")
	v.SetDefault("engine.poll_interval", "10s")
	v.SetDefault("engine.query_timeout", "0s") // unbounded
	v.SetDefault("engine.command_buffer", 16)
	v.SetDefault("settings.path", "settings.json")
	v.SetDefault("log.path", "godepot.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "./data/godepot.db")
	v.SetDefault("store.postgres_dsn", "")
}

// Load reads the YAML config at path. A missing default config.yaml is not
// an error: defaults and GODEPOT_* environment variables are used instead.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)

	// Support Environment Variables
	v.SetEnvPrefix("GODEPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// FALLBACK: Docker-style mount
		if !explicit {
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			} else {
				path = ""
			}
		} else {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.Store.Driver, DriverSQLite, DriverPostgres)
	}

	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("engine.poll_interval must be positive, got %s", c.Engine.PollInterval)
	}

	if c.Engine.QueryTimeout < 0 {
		return fmt.Errorf("engine.query_timeout must not be negative, got %s", c.Engine.QueryTimeout)
	}

	if c.Engine.CommandBuffer <= 0 {
		// Default to a sane value
		c.Engine.CommandBuffer = 16
	}

	if c.Delivery.Timeout <= 0 {
		c.Delivery.Timeout = 60 * time.Second
	}

	if c.Download.OutDir == "" {
		c.Download.OutDir = "./.downloads"
	}

	if c.Settings.Path == "" {
		c.Settings.Path = "settings.json"
	}

	return nil
}
