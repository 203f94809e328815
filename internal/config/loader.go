package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when the corresponding field is zero.
const (
	DefaultListenAddr   = ":8080"
	DefaultRelayPath    = "/ws"
	DefaultSweepEvery   = Duration(30 * time.Second)
	DefaultIdleTimeout  = Duration(2 * time.Minute)
	DefaultEmitTimeout  = Duration(10 * time.Second)
	DefaultSubmenuDigit = "2"
	DefaultStatusDigit  = "1"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills defaults and checks that cfg contains a coherent set of
// values. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Carrier
	if cfg.Carrier.RelayPath == "" {
		cfg.Carrier.RelayPath = DefaultRelayPath
	}
	if cfg.Carrier.RelayPath[0] != '/' {
		errs = append(errs, fmt.Errorf("carrier.relay_path %q must start with '/'", cfg.Carrier.RelayPath))
	}

	// Backend
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = DefaultEmitTimeout
	}
	if cfg.Backend.Timeout < 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must be positive, got %s", cfg.Backend.Timeout))
	}

	// Navigation
	if cfg.Navigation.SubmenuDigit == "" {
		cfg.Navigation.SubmenuDigit = DefaultSubmenuDigit
	}
	if cfg.Navigation.StatusDigit == "" {
		cfg.Navigation.StatusDigit = DefaultStatusDigit
	}
	for name, digit := range map[string]string{
		"navigation.submenu_digit": cfg.Navigation.SubmenuDigit,
		"navigation.status_digit":  cfg.Navigation.StatusDigit,
	} {
		if !validDTMF(digit) {
			errs = append(errs, fmt.Errorf("%s %q must be a single DTMF character", name, digit))
		}
	}
	if cfg.Navigation.RepeatDigit != "" && !validDTMF(cfg.Navigation.RepeatDigit) {
		errs = append(errs, fmt.Errorf("navigation.repeat_digit %q must be a single DTMF character", cfg.Navigation.RepeatDigit))
	}

	// Policy
	for name, v := range map[string]int{
		"policy.max_menu_retries":    cfg.Policy.MaxMenuRetries,
		"policy.max_info_retries":    cfg.Policy.MaxInfoRetries,
		"policy.max_uncertain_total": cfg.Policy.MaxUncertainTotal,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}

	// Sweep
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = DefaultSweepEvery
	}
	if cfg.Sweep.IdleTimeout == 0 {
		cfg.Sweep.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Sweep.Interval < 0 {
		errs = append(errs, fmt.Errorf("sweep.interval must be positive, got %s", cfg.Sweep.Interval))
	}
	if cfg.Sweep.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("sweep.idle_timeout must be positive, got %s", cfg.Sweep.IdleTimeout))
	}

	return errors.Join(errs...)
}

// validDTMF reports whether s is exactly one DTMF keypad character.
func validDTMF(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return (c >= '0' && c <= '9') || c == '*' || c == '#'
}
