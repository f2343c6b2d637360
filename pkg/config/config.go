// Package config loads runner settings from droidprobe.yaml and DROIDPROBE_* env vars.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file base name searched for.
const FileName = "droidprobe"

// Catalog selects the module catalog / run history backend.
type Catalog struct {
	Backend   string `mapstructure:"backend"` // sqlite, redis, memory, none
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	Prefix    string `mapstructure:"prefix"`
}

// Config holds all runner settings.
type Config struct {
	ADBPath    string            `mapstructure:"adb_path"`
	Serial     string            `mapstructure:"serial"`
	ADBTimeout time.Duration     `mapstructure:"adb_timeout"`
	DeviceWait time.Duration     `mapstructure:"device_wait"` // 0 fails at once when no device is online
	LogDir     string            `mapstructure:"log_dir"`
	ReportDir  string            `mapstructure:"report_dir"`
	ModulesDir string            `mapstructure:"modules_dir"`
	SleepScale float64           `mapstructure:"sleep_scale"`
	CaseDelay  time.Duration     `mapstructure:"case_delay"`
	Verbose    bool              `mapstructure:"verbose"`
	Catalog    Catalog           `mapstructure:"catalog"`
	Params     map[string]string `mapstructure:"params"`
}

func setDefaults(v *viper.Viper) {
	// every key needs a default so AutomaticEnv values survive Unmarshal
	v.SetDefault("adb_path", "")
	v.SetDefault("serial", "")
	v.SetDefault("verbose", false)
	v.SetDefault("adb_timeout", "15s")
	v.SetDefault("device_wait", "30s")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("report_dir", "reports")
	v.SetDefault("modules_dir", "modules")
	v.SetDefault("sleep_scale", 1.0)
	v.SetDefault("case_delay", "15s")
	v.SetDefault("catalog.backend", "sqlite")
	v.SetDefault("catalog.path", "droidprobe.db")
	v.SetDefault("catalog.redis_addr", "localhost:6379")
	v.SetDefault("catalog.prefix", "droidprobe")
	v.SetDefault("catalog.redis_db", 0)
}

// Load reads configuration. An explicit path must exist; otherwise the file is
// optional and searched in the working directory and $HOME/.config/droidprobe.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DROIDPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "droidprobe"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.SleepScale < 0 {
		return fmt.Errorf("sleep_scale must be >= 0, got %v", c.SleepScale)
	}
	if c.ADBTimeout <= 0 {
		return fmt.Errorf("adb_timeout must be positive, got %v", c.ADBTimeout)
	}
	if c.DeviceWait < 0 {
		return fmt.Errorf("device_wait must be >= 0, got %v", c.DeviceWait)
	}
	switch c.Catalog.Backend {
	case "sqlite", "redis", "memory", "none", "":
	default:
		return fmt.Errorf("unknown catalog backend %q", c.Catalog.Backend)
	}
	return nil
}
