// Package config provides the configuration schema and loader for the
// Callyx navigation engine.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps [time.Duration] so YAML values can be written in the
// familiar "30s" / "2m" notation. Plain integers are rejected.
type Duration time.Duration

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements [fmt.Stringer].
func (d Duration) String() string {
	return time.Duration(d).String()
}

// LogLevel controls log verbosity for the Callyx server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Callyx.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Carrier    CarrierConfig    `yaml:"carrier"`
	Backend    BackendConfig    `yaml:"backend"`
	Navigation NavigationConfig `yaml:"navigation"`
	Policy     PolicyConfig     `yaml:"policy"`
	Sweep      SweepConfig      `yaml:"sweep"`
}

// ServerConfig holds network and logging settings for the Callyx server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CarrierConfig configures the carrier-facing relay endpoint.
type CarrierConfig struct {
	// RelayPath is the HTTP path of the WebSocket relay endpoint.
	RelayPath string `yaml:"relay_path"`
}

// BackendConfig configures the result sink. When BaseURL is empty, results
// are logged but not delivered anywhere.
type BackendConfig struct {
	// BaseURL is the backend's root URL (e.g., "http://backend:9000").
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one result emission request.
	Timeout Duration `yaml:"timeout"`
}

// NavigationConfig fixes the DTMF selectors for the remote menu tree. The
// selectors are remote-system specific and have no safe universal default,
// so they are required.
type NavigationConfig struct {
	// SubmenuDigit selects the prior-authorization department from the
	// main menu.
	SubmenuDigit string `yaml:"submenu_digit"`

	// StatusDigit selects the status-check option inside the submenu.
	StatusDigit string `yaml:"status_digit"`

	// RepeatDigit asks the remote menu to repeat itself. Optional; when
	// empty the engine listens silently on retries.
	RepeatDigit string `yaml:"repeat_digit"`
}

// PolicyConfig bounds the retry policy. Zero values fall back to the
// built-in defaults (menu 3, info 2, total 5).
type PolicyConfig struct {
	MaxMenuRetries    int `yaml:"max_menu_retries"`
	MaxInfoRetries    int `yaml:"max_info_retries"`
	MaxUncertainTotal int `yaml:"max_uncertain_total"`
}

// SweepConfig configures the idle-session sweeper.
type SweepConfig struct {
	// Interval is how often idle sessions are checked.
	Interval Duration `yaml:"interval"`

	// IdleTimeout is how long a session may go without an event before it
	// is failed with a timeout outcome.
	IdleTimeout Duration `yaml:"idle_timeout"`
}
