// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/kegbrew/kegbrew/internal/catalog"
	"github.com/kegbrew/kegbrew/internal/config"
	"github.com/kegbrew/kegbrew/internal/engine"
	"github.com/kegbrew/kegbrew/internal/fetch"
	"github.com/kegbrew/kegbrew/internal/issue"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/internal/pipeline"
	"github.com/kegbrew/kegbrew/internal/toolchain"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

type (
	// App is the composition root of the CLI. Command handlers read their
	// collaborators from it; tests replace any of them.
	App struct {
		Config config.Provider
		Probe  platform.Probe
		Getenv func(string) string
		stdout io.Writer
		stderr io.Writer

		flags globalFlags
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Probe  *platform.Probe
		Getenv func(string) string
		Stdout io.Writer
		Stderr io.Writer
	}

	globalFlags struct {
		configFile  string
		verbose     bool
		prefix      string
		formulaDirs []string
		platform    platformFlags
	}

	platformFlags struct {
		os              string
		arch            string
		osVersion       string
		compiler        string
		compilerVersion string
	}

	// session is everything one command invocation needs after config has
	// been loaded.
	session struct {
		cfg         *config.Config
		logger      *log.Logger
		fingerprint platform.Fingerprint
		engine      *engine.Engine
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		Getenv: deps.Getenv,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if deps.Probe != nil {
		app.Probe = *deps.Probe
	} else {
		app.Probe = platform.HostProbe()
	}
	if app.Getenv == nil {
		app.Getenv = os.Getenv
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads configuration and applies the global flags on top.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configFile, Getenv: a.Getenv})
	if err != nil {
		return nil, err
	}
	if a.flags.prefix != "" {
		cfg.Prefix = a.flags.prefix
	}
	if len(a.flags.formulaDirs) > 0 {
		cfg.FormulaDirs = a.flags.formulaDirs
	}
	if a.flags.verbose {
		cfg.Log.Level = config.LogLevelDebug
	}
	p := &a.flags.platform
	for dst, src := range map[*string]string{
		&cfg.Platform.OS:               p.os,
		&cfg.Platform.Arch:             p.arch,
		&cfg.Platform.OSVersion:        p.osVersion,
		&cfg.Platform.Compiler.Family:  p.compiler,
		&cfg.Platform.Compiler.Version: p.compilerVersion,
	} {
		if src != "" {
			*dst = src
		}
	}
	return cfg, nil
}

func (a *App) newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "kegbrew",
		Level:           cfg.Log.Level.Level(),
		Formatter:       cfg.Log.Format.Formatter(),
		ReportTimestamp: cfg.Log.Format != config.LogFormatText,
	})
	slog.SetDefault(slog.New(logger))
	return logger
}

// fingerprint detects the host unless the configuration pins both the OS
// and the architecture, then applies the configured overrides.
func (a *App) fingerprint(ctx context.Context, cfg *config.Config) (platform.Fingerprint, error) {
	overrides := cfg.Platform.Overrides()
	var fp platform.Fingerprint
	if overrides.OS == "" || overrides.Arch == "" {
		detected, err := platform.Detect(ctx, a.Probe)
		if err != nil {
			return platform.Fingerprint{}, issue.NewErrorContext().
				WithOperation("detect platform").
				WithSuggestion("Set --os and --arch to describe the target platform").
				WithIssue(issue.UnsupportedPlatformId).
				Wrap(err).
				BuildError()
		}
		fp = detected
	}
	fp = fp.WithOverrides(overrides)
	if ok, errs := fp.IsValid(); !ok {
		return platform.Fingerprint{}, issue.NewErrorContext().
			WithOperation("build platform fingerprint").
			WithResource(fp.String()).
			WithIssue(issue.UnsupportedPlatformId).
			Wrap(errs[0]).
			BuildError()
	}
	return fp, nil
}

// newSession loads config, the catalog and the fingerprint, and wires an
// engine. adjust applies command flags to the loaded config.
func (a *App) newSession(ctx context.Context, adjust ...func(*config.Config)) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	for _, fn := range adjust {
		fn(cfg)
	}
	logger := a.newLogger(cfg)

	cat, err := catalog.Load(cfg.FormulaDirs...)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load formulas").
			WithSuggestion("Fix the reported formula files or remove them from formula_dirs").
			WithIssue(issue.FormulaParseErrorId).
			Wrap(err).
			BuildError()
	}
	logger.Debug("catalog loaded", "formulas", cat.Len(), "dirs", cfg.FormulaDirs)

	fp, err := a.fingerprint(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("platform", "fingerprint", fp.String(), "tag", fp.Tag())

	shell := toolchain.NewShell(logger)
	eng, err := engine.New(engine.Options{
		Catalog:                  cat,
		Layout:                   keg.NewLayout(cfg.Prefix, cfg.Cellar),
		CacheDir:                 cfg.CacheDir,
		Fetcher:                  fetch.NewMux(userAgent()),
		Toolchain:                shell,
		Shell:                    shell,
		Jobs:                     cfg.Jobs,
		FallbackOnPrefixMismatch: cfg.FallbackOnPrefixMismatch,
		BaseEnv:                  pipeline.HostEnv(a.Getenv),
		Logger:                   logger,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, fingerprint: fp, engine: eng}, nil
}

// close writes the metrics textfile when one is configured.
func (s *session) close() {
	if s.cfg.MetricsFile == "" {
		return
	}
	if err := s.engine.Metrics().WriteTextfile(s.cfg.MetricsFile); err != nil {
		s.logger.Warn("metrics textfile not written", "path", s.cfg.MetricsFile, "error", err)
	}
}

func userAgent() string {
	return fmt.Sprintf("kegbrew/%s", Version)
}
