// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/kegbrew/kegbrew/internal/issue"
	"github.com/kegbrew/kegbrew/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "kegbrew"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides: jobs is KEGBREW_JOBS.
	EnvPrefix = "KEGBREW"
)

//go:embed config_schema.cue
var configSchema string

// Keys lists every configuration key in dotted form.
var Keys = []string{
	"prefix",
	"cellar",
	"cache_dir",
	"formula_dirs",
	"jobs",
	"verify",
	"fallback_on_prefix_mismatch",
	"platform.os",
	"platform.arch",
	"platform.os_version",
	"platform.compiler.family",
	"platform.compiler.version",
	"log.level",
	"log.format",
	"metrics_file",
}

// DefaultConfig returns the configuration used when no file sets a key.
func DefaultConfig() *Config {
	return &Config{
		Prefix:                   DefaultPrefix(),
		FormulaDirs:              []string{"Formula"},
		Jobs:                     min(runtime.NumCPU(), 8),
		FallbackOnPrefixMismatch: true,
		Log:                      LogConfig{Level: LogLevelInfo, Format: LogFormatText},
	}
}

// DefaultPrefix is ~/.kegbrew, or /opt/kegbrew when there is no home
// directory.
func DefaultPrefix() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "/opt/kegbrew"
	}
	return filepath.Join(home, "."+AppName)
}

// ConfigDir returns the kegbrew configuration directory: ~/Library/Application
// Support on macOS and $XDG_CONFIG_HOME (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(configDir, AppName), nil
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'kegbrew config show --defaults' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir := opts.ConfigDirPath
		if cfgDir == "" {
			var err error
			if cfgDir, err = ConfigDir(); err != nil {
				return nil, "", err
			}
		}
		if path := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(path) {
			resolvedPath = path
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	applyEnv(v, getenv)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Directory settings must be absolute paths").
			WithSuggestion("Check KEGBREW_* environment variables as well as the config file").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}
	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("prefix", d.Prefix)
	v.SetDefault("cellar", d.Cellar)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("formula_dirs", d.FormulaDirs)
	v.SetDefault("jobs", d.Jobs)
	v.SetDefault("verify", d.Verify)
	v.SetDefault("fallback_on_prefix_mismatch", d.FallbackOnPrefixMismatch)
	v.SetDefault("platform.os", d.Platform.OS)
	v.SetDefault("platform.arch", d.Platform.Arch)
	v.SetDefault("platform.os_version", d.Platform.OSVersion)
	v.SetDefault("platform.compiler.family", d.Platform.Compiler.Family)
	v.SetDefault("platform.compiler.version", d.Platform.Compiler.Version)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics_file", d.MetricsFile)
}

// applyEnv copies KEGBREW_* variables over the file values. formula_dirs
// is a path list.
func applyEnv(v *viper.Viper, getenv func(string) string) {
	for _, key := range Keys {
		val := getenv(EnvName(key))
		if val == "" {
			continue
		}
		if key == "formula_dirs" {
			v.Set(key, filepath.SplitList(val))
			continue
		}
		v.Set(key, val)
	}
}

// loadCUEIntoViper validates the file at path against #Config and merges
// it into v. It decodes to a map instead of going through
// cueutil.ParseAndDecode because every field is optional and viper needs
// the raw map to keep its defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}
	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes a commented default config.cue into dir unless one
// exists, and returns its path.
func WriteDefault(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(path) {
		return path, nil
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// kegbrew configuration\n\n")
	fmt.Fprintf(&sb, "prefix: %q\n", cfg.Prefix)
	if cfg.Cellar != "" {
		fmt.Fprintf(&sb, "cellar: %q\n", cfg.Cellar)
	}
	if cfg.CacheDir != "" {
		fmt.Fprintf(&sb, "cache_dir: %q\n", cfg.CacheDir)
	}
	sb.WriteString("formula_dirs: [")
	for i, dir := range cfg.FormulaDirs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", dir)
	}
	sb.WriteString("]\n")
	fmt.Fprintf(&sb, "jobs: %d\n", cfg.Jobs)
	fmt.Fprintf(&sb, "verify: %v\n", cfg.Verify)
	fmt.Fprintf(&sb, "fallback_on_prefix_mismatch: %v\n", cfg.FallbackOnPrefixMismatch)
	if cfg.MetricsFile != "" {
		fmt.Fprintf(&sb, "metrics_file: %q\n", cfg.MetricsFile)
	}

	p := cfg.Platform
	if p != (PlatformConfig{}) {
		sb.WriteString("\nplatform: {\n")
		writeOptional(&sb, "\t", "os", p.OS)
		writeOptional(&sb, "\t", "arch", p.Arch)
		writeOptional(&sb, "\t", "os_version", p.OSVersion)
		if p.Compiler != (CompilerConfig{}) {
			sb.WriteString("\tcompiler: {\n")
			writeOptional(&sb, "\t\t", "family", p.Compiler.Family)
			writeOptional(&sb, "\t\t", "version", p.Compiler.Version)
			sb.WriteString("\t}\n")
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel:  %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")
	return sb.String()
}

func writeOptional(sb *strings.Builder, indent, key, value string) {
	if value != "" {
		fmt.Fprintf(sb, "%s%s: %q\n", indent, key, value)
	}
}
