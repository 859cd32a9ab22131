// Package config reads and writes the global ~/.gram/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Telegram holds MTProto API credentials and login inputs.
type Telegram struct {
	APIID    int    `toml:"api_id"`
	APIHash  string `toml:"api_hash"`
	Phone    string `toml:"phone"`
	Code     string `toml:"code,omitempty"`
	Password string `toml:"password,omitempty"`
}

// UI holds client behavior knobs.
type UI struct {
	// TypingWindow bounds how often a typing notification is sent per chat.
	TypingWindow duration `toml:"typing_window"`
	// NotificationDuration is how long transient notifications stay visible.
	NotificationDuration duration `toml:"notification_duration"`
}

// Config represents the global config file.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	Telegram       Telegram `toml:"telegram"`
	UI             UI       `toml:"ui"`
}

// TypingWindow returns the configured typing window, or zero to use the
// built-in default.
func (c *Config) TypingWindow() time.Duration {
	return time.Duration(c.UI.TypingWindow)
}

// NotificationDuration returns the flash display duration.
func (c *Config) NotificationDuration() time.Duration {
	if c.UI.NotificationDuration == 0 {
		return 4 * time.Second
	}
	return time.Duration(c.UI.NotificationDuration)
}

// Validate checks the fields the client cannot run without.
func (c *Config) Validate() error {
	if c.Telegram.APIID <= 0 {
		return fmt.Errorf("config: telegram.api_id must be > 0")
	}
	if c.Telegram.APIHash == "" {
		return fmt.Errorf("config: telegram.api_hash is required")
	}
	return nil
}

// Load reads config from the given path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// duration is a time.Duration that marshals as a string like "8s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
