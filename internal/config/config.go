// Package config loads and validates the kbs2 configuration file: the
// public key, keyfile location, and store directory that a session
// binds together.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config mirrors the on-disk TOML config, field-for-field.
type Config struct {
	PublicKey      string          `toml:"public_key"`
	Keyfile        string          `toml:"keyfile"`
	Wrapped        bool            `toml:"wrapped"`
	Store          string          `toml:"store"`
	AgentAutostart bool            `toml:"agent_autostart"`
	Pinentry       string          `toml:"pinentry"`
	Commands       map[string]Hook `toml:"commands"`
}

// Hook describes pre/post shell hooks for a single subcommand. kbs2's
// original implementation runs these around mutating commands; this
// repo carries the config shape but does not execute hooks itself —
// hook invocation is an external collaborator's responsibility.
type Hook struct {
	PreHook  string `toml:"pre_hook"`
	PostHook string `toml:"post_hook"`
}

// CallHook is the extension point a command layer would use to run a
// hook were hook execution in scope. It is a no-op here.
func (c *Config) CallHook(name, phase string) error {
	return nil
}

// DefaultConfig returns a Config with kbs2's baseline layout: an
// unwrapped keypair, agent autostart enabled, and the default
// pinentry program.
func DefaultConfig(publicKey, keyfile, store string) *Config {
	return &Config{
		PublicKey:      publicKey,
		Keyfile:        keyfile,
		Wrapped:        false,
		Store:          store,
		AgentAutostart: true,
		Pinentry:       "pinentry",
		Commands:       make(map[string]Hook),
	}
}

// Load reads and validates the config file at path, falling back to
// DefaultConfigPath() when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Keyfile = ExpandPath(cfg.Keyfile)
	cfg.Store = ExpandPath(cfg.Store)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg as TOML to path, creating parent directories as
// needed.
func Save(cfg *Config, path string) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening config for write: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// Validate checks the config for the minimum fields a session needs.
func (c *Config) Validate() error {
	if c.PublicKey == "" {
		return fmt.Errorf("config: public_key is required")
	}
	if c.Keyfile == "" {
		return fmt.Errorf("config: keyfile is required")
	}
	if c.Store == "" {
		return fmt.Errorf("config: store is required")
	}
	if c.Pinentry == "" {
		c.Pinentry = "pinentry"
	}
	return nil
}

// ExpandPath expands a leading "~/" to the user's home directory and
// any $VAR references, leaving other paths untouched.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/kbs2/config.toml, falling
// back to ~/.config/kbs2/config.toml.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kbs2", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "kbs2", "config.toml")
}

// DefaultStorePath returns $XDG_DATA_HOME/kbs2, falling back to
// ~/.local/share/kbs2, following kbs2's original XDG data-directory
// convention.
func DefaultStorePath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "kbs2")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "kbs2")
}

// DefaultKeyfilePath returns the default keyfile location alongside
// the config directory.
func DefaultKeyfilePath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "key")
}
