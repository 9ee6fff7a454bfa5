// Package config resolves runtime settings for the signer from an optional
// YAML file and SMCU_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"smcu/go-signer/internal/identity"
	"smcu/go-signer/internal/signer"

	"gopkg.in/yaml.v3"
)

const (
	// EnvSettingsFile points at the settings YAML when no path is passed explicitly.
	EnvSettingsFile = "SMCU_SETTINGS"
	EnvKeyFile      = "SMCU_KEY_FILE"
	EnvWireFormat   = "SMCU_WIRE_FORMAT"
	EnvPassphrase   = "SMCU_KEY_PASSPHRASE"
	EnvLogLevel     = "SMCU_LOG_LEVEL"
)

var defaultCandidates = []string{
	"configs/smcu-settings.yaml",
	"smcu-settings.yaml",
}

type Settings struct {
	KeyFile    string
	WireFormat signer.Format
	// Passphrase seals the identity file. It is read from the environment only.
	Passphrase string
	LogLevel   slog.Level
}

type FileConfig struct {
	Signer FileSignerConfig `yaml:"signer"`
}

type FileSignerConfig struct {
	KeyFile    string `yaml:"keyFile"`
	WireFormat string `yaml:"wireFormat"`
	LogLevel   string `yaml:"logLevel"`
}

func DefaultSettings() Settings {
	return Settings{
		KeyFile:    identity.DefaultConfigPath,
		WireFormat: signer.FormatV2,
		LogLevel:   slog.LevelInfo,
	}
}

// Variant is the identity shape the wire format needs.
func (s Settings) Variant() identity.Variant {
	if s.WireFormat == signer.FormatV2 {
		return identity.VariantHardware
	}
	return identity.VariantBasic
}

// LoadFromPath reads configPath, or the first default candidate that exists
// when configPath is empty, then applies environment overrides. A missing
// default candidate is not an error; an explicit path that cannot be read is.
func LoadFromPath(configPath string) (Settings, error) {
	cfg := DefaultSettings()

	candidates := defaultCandidates
	if configPath != "" {
		candidates = []string{configPath}
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
		}
		if err := Merge(&cfg, parsed.Signer); err != nil {
			return Settings{}, fmt.Errorf("settings %s: %w", path, err)
		}
		break
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Merge copies non-empty fields of src into dst. An unknown wire format is an
// error rather than a fallback, since it decides the signed bytes.
func Merge(dst *Settings, src FileSignerConfig) error {
	if v := strings.TrimSpace(src.KeyFile); v != "" {
		dst.KeyFile = v
	}
	if v := strings.TrimSpace(src.WireFormat); v != "" {
		format, err := signer.ParseFormat(v)
		if err != nil {
			return err
		}
		dst.WireFormat = format
	}
	if v := strings.TrimSpace(src.LogLevel); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		dst.LogLevel = level
	}
	return nil
}

func ApplyEnvOverrides(cfg *Settings) error {
	if err := Merge(cfg, FileSignerConfig{
		KeyFile:    os.Getenv(EnvKeyFile),
		WireFormat: os.Getenv(EnvWireFormat),
		LogLevel:   os.Getenv(EnvLogLevel),
	}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if v := os.Getenv(EnvPassphrase); v != "" {
		cfg.Passphrase = v
	}
	return nil
}
