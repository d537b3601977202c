package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Key store backends.
const (
	KeyStoreMemory = "memory"
	KeyStoreSQLite = "sqlite"
)

// ADB describes how to reach the adb server.
type ADB struct {
	Binary string `yaml:"binary"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

// Log configures diagnostic logging.
type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"` // used by the terminal view
}

// Web configures the HTTPS view.
type Web struct {
	Addr     string `yaml:"addr"`
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
}

// DeviceConfig stores per-device settings.
type DeviceConfig struct {
	Nickname string `yaml:"nickname,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	// Serial pins device selection to one USB serial. Empty picks the first
	// ADB-capable device.
	Serial      string                  `yaml:"serial,omitempty"`
	ADB         ADB                     `yaml:"adb"`
	AuthTimeout time.Duration           `yaml:"auth_timeout"`
	KeyStore    string                  `yaml:"key_store"`
	History     bool                    `yaml:"history"`
	Log         Log                     `yaml:"log"`
	Web         Web                     `yaml:"web"`
	Devices     map[string]DeviceConfig `yaml:"devices,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ADB: ADB{
			Binary: "adb",
			Host:   "localhost",
			Port:   5037,
		},
		AuthTimeout: 30 * time.Second,
		KeyStore:    KeyStoreMemory,
		History:     true,
		Log:         Log{Level: "info"},
		Web:         Web{Addr: "localhost:8443"},
		Devices:     make(map[string]DeviceConfig),
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "adbinfo")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "adbinfo")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Load reads the default config file, returning defaults if it doesn't exist.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config file at path, returning defaults if it doesn't exist.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Devices == nil {
		cfg.Devices = make(map[string]DeviceConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the default path.
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.KeyStore {
	case KeyStoreMemory, KeyStoreSQLite:
	default:
		return fmt.Errorf("invalid key_store %q (want %q or %q)", c.KeyStore, KeyStoreMemory, KeyStoreSQLite)
	}
	if c.ADB.Port <= 0 || c.ADB.Port > 65535 {
		return fmt.Errorf("invalid adb port %d", c.ADB.Port)
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("invalid auth_timeout %s", c.AuthTimeout)
	}
	return nil
}

// Nickname returns the configured nickname for serial, if any.
func (c *Config) Nickname(serial string) string {
	return c.Devices[serial].Nickname
}

// LogFile returns the diagnostic log path used by the terminal view.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	return filepath.Join(ConfigDir(), "adbinfo.log")
}

// KeyDir is where vendor key files are written for the adb server.
func KeyDir() string {
	return filepath.Join(ConfigDir(), "keys")
}

func expandHome(p string) string {
	if len(p) > 0 && p[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[1:])
	}
	return p
}
