// Package config handles configuration loading, validation, and management
// for gamepadd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Backend names accepted by InhibitConfig.Backend.
const (
	BackendScreenSaver = "screensaver"
	BackendLogind      = "logind"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Devices configures gamepad discovery and event classification.
	Devices DevicesConfig `toml:"devices" json:"devices" yaml:"devices"`

	// Inhibit configures the idle-inhibit behavior.
	Inhibit InhibitConfig `toml:"inhibit" json:"inhibit" yaml:"inhibit"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`
}

// DevicesConfig controls gamepad discovery and activity classification.
type DevicesConfig struct {
	// IncludePatterns are glob patterns matched against device names.
	// If empty, all gamepad-class devices are monitored.
	IncludePatterns []string `toml:"include_patterns" json:"include_patterns" yaml:"include_patterns"`

	// ExcludePatterns are glob patterns for device names to skip.
	ExcludePatterns []string `toml:"exclude_patterns" json:"exclude_patterns" yaml:"exclude_patterns"`

	// Deadzone is the fraction of an axis half-range within which
	// movement is treated as sensor noise rather than activity.
	// Valid range is 0 to 0.5. The kernel-reported flat zone is used
	// as a floor even when this is smaller.
	Deadzone float64 `toml:"deadzone" json:"deadzone" yaml:"deadzone"`
}

// InhibitConfig controls the idle-inhibit calls.
type InhibitConfig struct {
	// Backend selects the idle-management interface:
	// "screensaver" for org.freedesktop.ScreenSaver on the session bus,
	// "logind" for org.freedesktop.login1 idle blocks on the system bus.
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// AppName is reported to the idle-management service as the
	// inhibiting application.
	AppName string `toml:"app_name" json:"app_name" yaml:"app_name"`

	// Reason is the human-readable inhibition reason.
	Reason string `toml:"reason" json:"reason" yaml:"reason"`

	// InactivityTimeoutSec is how long after the last gamepad activity
	// the inhibition is released. Minimum 1.
	InactivityTimeoutSec int `toml:"inactivity_timeout_sec" json:"inactivity_timeout_sec" yaml:"inactivity_timeout_sec"`
}

// InactivityTimeout returns the timeout as a duration.
func (c *InhibitConfig) InactivityTimeout() time.Duration {
	return time.Duration(c.InactivityTimeoutSec) * time.Second
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where logs go: stdout, stderr, file, or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file location when Output includes "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the rotation threshold in megabytes.
	MaxSizeMB int64 `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is how many rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// IPCConfig holds control-socket configuration.
type IPCConfig struct {
	// Enabled turns the control socket on or off.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SocketPath is the Unix socket path. Empty means the default
	// under XDG_RUNTIME_DIR.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
}

// DefaultConfig returns the default configuration.
//
// The 30 second inactivity timeout matches the interval at which the
// inhibition was historically re-evaluated; it keeps the screen alive
// through menu screens and loading pauses without holding the
// inhibition long after the controller is put down.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Devices: DevicesConfig{
			Deadzone: 0.15,
		},
		Inhibit: InhibitConfig{
			Backend:              BackendScreenSaver,
			AppName:              "gamepadd",
			Reason:               "Gamepad active",
			InactivityTimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: DefaultSocketPath(),
		},
	}
}

// DefaultSocketPath returns the control socket path under the user's
// runtime directory.
func DefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	return filepath.Join(runtimeDir, "gamepadd", "gamepadd.sock")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, _ := os.UserHomeDir()
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "gamepadd", "config.toml")
}

// ApplyEnvOverrides applies GAMEPADD_* environment variables over the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GAMEPADD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GAMEPADD_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("GAMEPADD_BACKEND"); v != "" {
		c.Inhibit.Backend = v
	}
	if v := os.Getenv("GAMEPADD_SOCKET"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("GAMEPADD_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Inhibit.InactivityTimeoutSec = n
		}
	}
	if v := os.Getenv("GAMEPADD_DEADZONE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Devices.Deadzone = f
		}
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if c.Devices.Deadzone < 0 || c.Devices.Deadzone > 0.5 {
		errs = append(errs, ValidationError{
			Field:   "devices.deadzone",
			Message: fmt.Sprintf("must be between 0 and 0.5, got %g", c.Devices.Deadzone),
		})
	}
	for _, pattern := range append(c.Devices.IncludePatterns, c.Devices.ExcludePatterns...) {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, ValidationError{
				Field:   "devices.patterns",
				Message: fmt.Sprintf("invalid glob %q", pattern),
			})
		}
	}

	switch c.Inhibit.Backend {
	case BackendScreenSaver, BackendLogind:
	default:
		errs = append(errs, ValidationError{
			Field:   "inhibit.backend",
			Message: fmt.Sprintf("must be %q or %q, got %q", BackendScreenSaver, BackendLogind, c.Inhibit.Backend),
		})
	}
	if c.Inhibit.AppName == "" {
		errs = append(errs, ValidationError{
			Field:   "inhibit.app_name",
			Message: "must not be empty",
		})
	}
	if c.Inhibit.InactivityTimeoutSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "inhibit.inactivity_timeout_sec",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Inhibit.InactivityTimeoutSec),
		})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "text", "json", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", c.Logging.Format),
		})
	}
	switch c.Logging.Output {
	case "stdout", "stderr", "file", "both", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", c.Logging.Output),
		})
	}
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "required when output includes file",
		})
	}

	if c.IPC.Enabled && c.IPC.SocketPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ipc.socket_path",
			Message: "required when ipc is enabled",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
