// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kegbrew/kegbrew/pkg/platform"
)

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	LogFormatText   LogFormat = "text"
	LogFormatJSON   LogFormat = "json"
	LogFormatLogfmt LogFormat = "logfmt"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidPath is the sentinel error wrapped by InvalidPathError.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidJobs is returned for a jobs value below 1.
	ErrInvalidJobs = errors.New("jobs must be at least 1")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// LogFormat selects the charmbracelet/log formatter.
	LogFormat string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// InvalidPathError is returned for a directory setting that is not absolute.
	InvalidPathError struct {
		Key   string
		Value string
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Prefix is the install root holding Cellar, opt and var.
		Prefix string `json:"prefix" mapstructure:"prefix"`
		// Cellar defaults to <prefix>/Cellar when empty.
		Cellar string `json:"cellar" mapstructure:"cellar"`
		// CacheDir defaults to <prefix>/var/cache when empty.
		CacheDir    string   `json:"cache_dir" mapstructure:"cache_dir"`
		FormulaDirs []string `json:"formula_dirs" mapstructure:"formula_dirs"`
		Jobs        int      `json:"jobs" mapstructure:"jobs"`
		// Verify runs the smoke test after every fresh install.
		Verify                   bool           `json:"verify" mapstructure:"verify"`
		FallbackOnPrefixMismatch bool           `json:"fallback_on_prefix_mismatch" mapstructure:"fallback_on_prefix_mismatch"`
		Platform                 PlatformConfig `json:"platform" mapstructure:"platform"`
		Log                      LogConfig      `json:"log" mapstructure:"log"`
		// MetricsFile receives a Prometheus textfile after each command.
		MetricsFile string `json:"metrics_file" mapstructure:"metrics_file"`

		// Source is the file the config was read from, empty for defaults.
		Source string `json:"-" mapstructure:"-"`
	}

	// PlatformConfig overrides detected fingerprint fields. Empty fields
	// keep the detected value.
	PlatformConfig struct {
		OS        string         `json:"os" mapstructure:"os"`
		Arch      string         `json:"arch" mapstructure:"arch"`
		OSVersion string         `json:"os_version" mapstructure:"os_version"`
		Compiler  CompilerConfig `json:"compiler" mapstructure:"compiler"`
	}

	// CompilerConfig overrides the detected compiler.
	CompilerConfig struct {
		Family  string `json:"family" mapstructure:"family"`
		Version string `json:"version" mapstructure:"version"`
	}

	// LogConfig configures the stderr logger.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}
)

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s: %q is not an absolute path", e.Key, e.Value)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the sentinel and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid returns whether the LogLevel is one of the known levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts l to a charmbracelet/log level. Unknown values map to info.
func (l LogLevel) Level() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// IsValid returns whether the LogFormat is one of the known formats.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

// Formatter converts f to a charmbracelet/log formatter.
func (f LogFormat) Formatter() log.Formatter {
	switch f {
	case LogFormatJSON:
		return log.JSONFormatter
	case LogFormatLogfmt:
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// Overrides returns the configured fingerprint fields for
// platform.Fingerprint.WithOverrides.
func (p PlatformConfig) Overrides() platform.Fingerprint {
	return platform.Fingerprint{
		OS:        platform.OSFamily(p.OS),
		Arch:      platform.Arch(p.Arch),
		OSVersion: p.OSVersion,
		Compiler: platform.Compiler{
			Family:  platform.CompilerFamily(p.Compiler.Family),
			Version: p.Compiler.Version,
		},
	}
}

// IsValid checks what the CUE schema cannot see after environment
// overrides are applied.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if !filepath.IsAbs(c.Prefix) {
		errs = append(errs, &InvalidPathError{Key: "prefix", Value: c.Prefix})
	}
	for _, p := range [...]struct{ key, value string }{{"cellar", c.Cellar}, {"cache_dir", c.CacheDir}} {
		if p.value != "" && !filepath.IsAbs(p.value) {
			errs = append(errs, &InvalidPathError{Key: p.key, Value: p.value})
		}
	}
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidJobs, c.Jobs))
	}
	if c.Platform.OS != "" {
		if ok, fieldErrs := platform.OSFamily(c.Platform.OS).IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if c.Platform.Arch != "" {
		if ok, fieldErrs := platform.Arch(c.Platform.Arch).IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if ok, fieldErrs := c.Log.Level.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Log.Format.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}
