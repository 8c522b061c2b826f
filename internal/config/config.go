// Package config loads the service configuration and resolves the
// per-request anti-spam settings through their override chain.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all runtime configuration of the service.
type Config struct {
	// Operational
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`
	DataDir     string `koanf:"data_dir"`
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"` // "" = disabled

	// RedisURL switches the status cache and session store from the
	// in-process implementations to redis. "" = in-process.
	RedisURL string `koanf:"redis_url"`

	// Engine
	StatusCacheTTL   time.Duration `koanf:"status_cache_ttl"`
	SessionAllowance int           `koanf:"session_allowance"`
	SessionTTL       time.Duration `koanf:"session_ttl"` // redis session entry lifetime
	HoneypotField    string        `koanf:"honeypot_field"`
	RejectMessage    string        `koanf:"reject_message"`

	// Setting override sources, consulted per request in this order:
	// per-form values, then site-wide values, then built-in defaults.
	Forms map[string]map[string]string `koanf:"forms"`
	Site  map[string]string            `koanf:"site"`
}

// defaults is the lowest-priority layer.
var defaults = map[string]any{
	"log_level":         "info",
	"log_format":        "json",
	"data_dir":          "/data",
	"listen_addr":       ":8080",
	"metrics_addr":      ":9090",
	"redis_url":         "",
	"status_cache_ttl":  300 * time.Second,
	"session_allowance": 2,
	"session_ttl":       24 * time.Hour,
	"honeypot_field":    "hp_field",
	"reject_message":    "Ihre Nachricht hat die Spamschutzkriterien nicht bestanden.",
}

// Load reads configuration from (lowest → highest priority):
//  1. Built-in defaults
//  2. YAML file at CONFIG_FILE env var path (if set)
//  3. Environment variables (always highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults.
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	// Layer 2: optional YAML file.
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", cfgFile, err)
		}
	}

	// Layer 3: environment variables.
	// Transform: "ANTISPAM_LOG_LEVEL" → "log_level".
	if err := k.Load(env.Provider("ANTISPAM_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "ANTISPAM_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	// Normalise string fields.
	cfg.LogLevel = strings.TrimSpace(strings.ToLower(cfg.LogLevel))
	cfg.LogFormat = strings.TrimSpace(strings.ToLower(cfg.LogFormat))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []string

	if c.StatusCacheTTL < time.Second {
		errs = append(errs, "STATUS_CACHE_TTL must be at least 1s")
	}
	if c.SessionAllowance < 0 {
		errs = append(errs, "SESSION_ALLOWANCE must not be negative")
	}
	if c.SessionTTL < time.Minute {
		errs = append(errs, "SESSION_TTL must be at least 1m")
	}
	if c.HoneypotField == "" {
		errs = append(errs, "HONEYPOT_FIELD must not be empty")
	}
	if c.RejectMessage == "" {
		errs = append(errs, "REJECT_MESSAGE must not be empty")
	}

	// DataDir path sanitisation: reject traversal sequences and null bytes.
	if strings.Contains(c.DataDir, "..") {
		errs = append(errs, `DATA_DIR must not contain ".." (directory traversal)`)
	}
	if strings.ContainsRune(c.DataDir, 0) {
		errs = append(errs, "DATA_DIR must not contain null bytes")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d configuration error(s):\n  - %s", len(errs), strings.Join(errs, "\n  - "))
	}
	return nil
}
