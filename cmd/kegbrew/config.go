// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kegbrew/kegbrew/internal/config"
	"github.com/kegbrew/kegbrew/internal/issue"
)

func newConfigCommand(app *App) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the configuration",
		Long: `Inspect and initialize the kegbrew configuration.

Values come from the defaults, the config.cue file, KEGBREW_* environment
variables and the global flags, in increasing order of precedence.`,
	}

	var (
		defaults bool
		key      string
	)
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runConfigShow(cmd, defaults, key)
		},
	}
	show.Flags().BoolVar(&defaults, "defaults", false, "print the built-in defaults instead")
	show.Flags().StringVar(&key, "key", "", "print a single key ("+strings.Join(config.Keys, ", ")+")")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return app.fail(cmd, err)
			}
			path, err := config.WriteDefault(dir)
			if err != nil {
				return app.fail(cmd, issue.WrapWithContext(err, "write default config", dir))
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the path of the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			p := cfg.Source
			if p == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return app.fail(cmd, err)
				}
				p = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt) + " (not present)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	c.AddCommand(show, initCmd, path)
	return c
}

func (a *App) runConfigShow(cmd *cobra.Command, defaults bool, key string) error {
	cfg := config.DefaultConfig()
	if !defaults {
		loaded, err := a.loadConfig(cmd.Context())
		if err != nil {
			return a.fail(cmd, err)
		}
		cfg = loaded
	}

	out := cmd.OutOrStdout()
	if key == "" {
		fmt.Fprint(out, config.GenerateCUE(cfg))
		return nil
	}
	value, ok := configValue(cfg, key)
	if !ok {
		return a.fail(cmd, issue.NewErrorContext().
			WithOperation("show config key").
			WithResource(key).
			WithSuggestion("Known keys: "+strings.Join(config.Keys, ", ")).
			Wrap(fmt.Errorf("unknown key %q", key)).
			BuildError())
	}
	fmt.Fprintln(out, value)
	return nil
}

func configValue(cfg *config.Config, key string) (string, bool) {
	switch key {
	case "prefix":
		return cfg.Prefix, true
	case "cellar":
		return cfg.Cellar, true
	case "cache_dir":
		return cfg.CacheDir, true
	case "formula_dirs":
		return strings.Join(cfg.FormulaDirs, string(filepath.ListSeparator)), true
	case "jobs":
		return strconv.Itoa(cfg.Jobs), true
	case "verify":
		return strconv.FormatBool(cfg.Verify), true
	case "fallback_on_prefix_mismatch":
		return strconv.FormatBool(cfg.FallbackOnPrefixMismatch), true
	case "platform.os":
		return cfg.Platform.OS, true
	case "platform.arch":
		return cfg.Platform.Arch, true
	case "platform.os_version":
		return cfg.Platform.OSVersion, true
	case "platform.compiler.family":
		return cfg.Platform.Compiler.Family, true
	case "platform.compiler.version":
		return cfg.Platform.Compiler.Version, true
	case "log.level":
		return string(cfg.Log.Level), true
	case "log.format":
		return string(cfg.Log.Format), true
	case "metrics_file":
		return cfg.MetricsFile, true
	default:
		return "", false
	}
}
