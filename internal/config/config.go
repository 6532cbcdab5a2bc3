// Package config loads sshctl settings from config.yaml and SSHCTL_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Names used to locate configuration.
const (
	AppName    = "sshctl"
	EnvPrefix  = "SSHCTL"
	ConfigName = "config"
	ConfigType = "yaml"
)

// Defaults
const (
	DefaultBWBinary       = "bw"
	DefaultServer         = "https://vault.bitwarden.com"
	DefaultFolder         = "SSH"
	DefaultSSHBinary      = "ssh"
	DefaultLogLevel       = "info"
	DefaultCommandTimeout = 2 * time.Minute
	DefaultAvatarTimeout  = 30 * time.Second
)

// ErrInvalidConfig is returned when a loaded value is unusable.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the resolved configuration.
type Config struct {
	BWBinary       string        `mapstructure:"bw_binary"`
	Server         string        `mapstructure:"server"`
	Folder         string        `mapstructure:"folder"`
	Email          string        `mapstructure:"email"`
	SSHBinary      string        `mapstructure:"ssh_binary"`
	LogLevel       string        `mapstructure:"log_level"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	AvatarTimeout  time.Duration `mapstructure:"avatar_timeout"`
	HistoryPath    string        `mapstructure:"history_path"`
	HistoryEnabled bool          `mapstructure:"history_enabled"`

	v *viper.Viper
}

// Dir returns the sshctl configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to locate config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load reads configuration. An empty file means config.yaml in Dir(),
// which may be absent; an explicit file must exist.
func Load(file string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType(ConfigType)
		v.AddConfigPath(dir)
	}

	err = v.ReadInConfig()
	// A missing default file is fine; defaults and env vars apply.
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("config: failed to read %s: %w", describe(v, file), err)
	}

	return decode(v)
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("bw_binary", DefaultBWBinary)
	v.SetDefault("server", DefaultServer)
	v.SetDefault("folder", DefaultFolder)
	v.SetDefault("email", "")
	v.SetDefault("ssh_binary", DefaultSSHBinary)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("command_timeout", DefaultCommandTimeout)
	v.SetDefault("avatar_timeout", DefaultAvatarTimeout)
	v.SetDefault("history_path", filepath.Join(dir, "history.db"))
	v.SetDefault("history_enabled", true)
}

func describe(v *viper.Viper, file string) string {
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	if file != "" {
		return file
	}
	return "config"
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	cfg.Server = strings.TrimSpace(cfg.Server)
	cfg.Folder = strings.TrimSpace(cfg.Folder)
	cfg.Email = strings.TrimSpace(cfg.Email)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	switch {
	case c.BWBinary == "":
		return fmt.Errorf("%w: bw_binary is empty", ErrInvalidConfig)
	case c.SSHBinary == "":
		return fmt.Errorf("%w: ssh_binary is empty", ErrInvalidConfig)
	case c.Folder == "":
		return fmt.Errorf("%w: folder is empty", ErrInvalidConfig)
	case c.CommandTimeout < 0:
		return fmt.Errorf("%w: command_timeout is negative", ErrInvalidConfig)
	case c.AvatarTimeout < 0:
		return fmt.Errorf("%w: avatar_timeout is negative", ErrInvalidConfig)
	case c.HistoryEnabled && c.HistoryPath == "":
		return fmt.Errorf("%w: history_path is empty", ErrInvalidConfig)
	}
	return nil
}

// File returns the config file that was read, or "" when none was.
func (c *Config) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Watch calls fn with the reloaded configuration whenever the config file
// changes. It reports false when no file was read and there is nothing to
// watch.
func (c *Config) Watch(fn func(*Config, error)) bool {
	if c.File() == "" {
		return false
	}
	c.v.OnConfigChange(func(fsnotify.Event) {
		fn(decode(c.v))
	})
	c.v.WatchConfig()
	return true
}
