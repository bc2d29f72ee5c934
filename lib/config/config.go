// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/passkeep/lib/crypto"
	"github.com/bureau-foundation/passkeep/lib/store"
)

// Config is the master configuration for passkeep.
type Config struct {
	// Store locates the password store.
	Store StoreConfig `yaml:"store"`

	// Crypto selects and configures the encryption backend.
	Crypto CryptoConfig `yaml:"crypto"`

	// Sync configures the git readiness gate.
	Sync SyncConfig `yaml:"sync"`

	// Log configures command logging.
	Log LogConfig `yaml:"log"`
}

// StoreConfig locates the password store.
type StoreConfig struct {
	// Dir is the store root.
	// Default: ${PASSWORD_STORE_DIR:-${HOME}/.password-store}
	Dir string `yaml:"dir"`

	// Umask masks permissions of files and directories the store
	// creates, in octal.
	// Default: 077
	Umask string `yaml:"umask"`
}

// CryptoConfig selects and configures the encryption backend.
type CryptoConfig struct {
	// Proto is "gpg" or "age".
	// Default: gpg
	Proto crypto.Proto `yaml:"proto"`

	GPG GPGConfig `yaml:"gpg"`
	Age AgeConfig `yaml:"age"`
}

// GPGConfig configures the GPG backend.
type GPGConfig struct {
	// Binary is the gpg executable.
	// Default: gpg (found in PATH)
	Binary string `yaml:"binary"`

	// Home overrides GNUPGHOME. Empty keeps gpg's default.
	Home string `yaml:"home"`

	// TTY makes pinentry prompt on the terminal. Set automatically when
	// GPG_TTY is present in the environment.
	TTY bool `yaml:"tty"`

	// TTYPath is the terminal device forwarded as GPG_TTY. Only taken
	// from the environment.
	TTYPath string `yaml:"-"`
}

// AgeConfig configures the age backend.
type AgeConfig struct {
	// Identities are age identity files used for decryption.
	// Default: ${HOME}/.config/passkeep/age/identity.txt
	Identities []string `yaml:"identities"`

	// Keyring is the local recipients file acting as public key-ring.
	// Default: ${HOME}/.config/passkeep/age/recipients.txt
	Keyring string `yaml:"keyring"`
}

// SyncConfig configures the git readiness gate.
type SyncConfig struct {
	// Enabled runs the readiness check and commits after mutations when
	// the store is a git repository.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowDirty lets mutations proceed on a store with uncommitted
	// changes.
	// Default: false
	AllowDirty bool `yaml:"allow_dirty"`
}

// LogConfig configures command logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text or json.
	// Default: auto
	Format string `yaml:"format"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Default returns the default configuration. Path fields still hold
// ${VAR} patterns; Load and LoadFile expand them.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:   "${HOME}/.password-store",
			Umask: "077",
		},
		Crypto: CryptoConfig{
			Proto: crypto.ProtoGPG,
			GPG: GPGConfig{
				Binary: "gpg",
			},
			Age: AgeConfig{
				Identities: []string{"${HOME}/.config/passkeep/age/identity.txt"},
				Keyring:    "${HOME}/.config/passkeep/age/recipients.txt",
			},
		},
		Sync: SyncConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by PASSKEEP_CONFIG.
// Without PASSKEEP_CONFIG, the defaults are used, with the same
// environment overrides and expansion a file would get.
func Load() (*Config, error) {
	configPath := os.Getenv("PASSKEEP_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.finish()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Fields the
// file omits keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.finish()
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) finish() {
	c.applyEnvironmentOverrides()
	c.expandVariables()
}

// applyEnvironmentOverrides applies the password-store environment
// variables, which take precedence over the file.
func (c *Config) applyEnvironmentOverrides() {
	if dir := os.Getenv("PASSWORD_STORE_DIR"); dir != "" {
		c.Store.Dir = dir
	}
	if umask := os.Getenv("PASSWORD_STORE_UMASK"); umask != "" {
		c.Store.Umask = umask
	}
	if tty := os.Getenv("GPG_TTY"); tty != "" {
		c.Crypto.GPG.TTY = true
		c.Crypto.GPG.TTYPath = tty
	}
}

// expandVariables expands ${VAR}, ${VAR:-default} and a leading "~" in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.Dir = expandPath(c.Store.Dir, vars)
	c.Crypto.GPG.Home = expandPath(c.Crypto.GPG.Home, vars)
	c.Crypto.Age.Keyring = expandPath(c.Crypto.Age.Keyring, vars)
	for index, identity := range c.Crypto.Age.Identities {
		c.Crypto.Age.Identities[index] = expandPath(identity, vars)
	}
}

func expandPath(s string, vars map[string]string) string {
	s = expandVars(s, vars)
	if s == "~" || strings.HasPrefix(s, "~/") {
		s = vars["HOME"] + s[1:]
	}
	return s
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Dir == "" {
		errs = append(errs, fmt.Errorf("store.dir is required"))
	}
	if _, err := store.ParseUmask(c.Store.Umask); err != nil {
		errs = append(errs, fmt.Errorf("store.umask: %w", err))
	}

	switch c.Crypto.Proto {
	case crypto.ProtoGPG:
		if c.Crypto.GPG.Binary == "" {
			errs = append(errs, fmt.Errorf("crypto.gpg.binary is required"))
		}
	case crypto.ProtoAge:
		if len(c.Crypto.Age.Identities) == 0 && c.Crypto.Age.Keyring == "" {
			errs = append(errs, fmt.Errorf("crypto.age needs identities or a keyring"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid crypto.proto: %s", c.Crypto.Proto))
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// StoreOptions returns the options for opening the configured store:
// the suffix of the configured protocol and the parsed umask.
func (c *Config) StoreOptions() (store.Options, error) {
	umask, err := c.UmaskMode()
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{
		Suffix: c.Crypto.Proto.SecretSuffix(),
		Umask:  umask,
	}, nil
}

// UmaskMode parses Store.Umask.
func (c *Config) UmaskMode() (fs.FileMode, error) {
	return store.ParseUmask(c.Store.Umask)
}

// ExistingIdentities returns the age identity files that exist. The
// default identity path is only a suggestion, so a missing file is not
// an error until something needs to decrypt.
func (c *Config) ExistingIdentities() []string {
	var existing []string
	for _, path := range c.Crypto.Age.Identities {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, filepath.Clean(path))
		}
	}
	return existing
}

// LogLevel returns Log.Level as a slog level. Unknown values map to
// info; Validate reports them.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
