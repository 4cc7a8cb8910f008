// SPDX-License-Identifier: MPL-2.0

// Package engine turns an install request into an installed keg. It
// resolves the dependency plan, decides per formula between pouring a
// bottle and building from source, gates every source build against the
// toolchain before anything is fetched, then installs the needed formulas
// in dependency order with bounded parallelism.
package engine

import (
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kegbrew/kegbrew/internal/catalog"
	"github.com/kegbrew/kegbrew/internal/fetch"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/internal/lock"
	"github.com/kegbrew/kegbrew/internal/pipeline"
	"github.com/kegbrew/kegbrew/internal/verify"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

const (
	// PreferBottle pours a bottle when one matches and builds otherwise.
	PreferBottle Preference = iota
	// ForceBuild builds the requested formula from source. Dependencies
	// still prefer bottles.
	ForceBuild
)

const (
	StatusInstalled Status = "installed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ErrNoCatalog is returned by New without a catalog.
var ErrNoCatalog = errors.New("engine needs a catalog")

type (
	// Preference selects the install path for the requested formula.
	Preference int

	// Status is the outcome of a request.
	Status string

	// Request asks for one formula to be installed.
	Request struct {
		Formula     formula.Name
		Fingerprint platform.Fingerprint
		Preference  Preference
		// Head builds the requested formula from its head reference.
		Head bool
		// Verify runs the smoke test after a fresh install.
		Verify bool
		// IncludeTest installs the test-only dependencies of the formula.
		IncludeTest bool
	}

	// Result is the outcome for one formula. Dependencies lists the
	// results of every other formula the request touched, in plan order.
	Result struct {
		Formula      formula.Name
		Version      string
		Status       Status
		Path         keg.Source
		KegPath      string
		Failure      *Failure
		Verification keg.Verification
		Caveats      string
		Notes        []string
		Dependencies []*Result
		StepsRun     int
	}

	// Options wires an Engine to its collaborators.
	Options struct {
		Catalog   *catalog.Catalog
		Layout    keg.Layout
		CacheDir  string
		Fetcher   fetch.Fetcher
		Toolchain pipeline.Toolchain
		Shell     verify.Shell
		// Jobs bounds how many formulas install at once. Values below 1 mean 1.
		Jobs int
		// FallbackOnPrefixMismatch builds from source when the only bottle
		// was made for another cellar, instead of failing.
		FallbackOnPrefixMismatch bool
		// BaseEnv is the host environment builds and tests start from.
		BaseEnv []string
		Logger  *log.Logger
		Now     func() time.Time
	}

	// Engine executes install requests. It is safe for concurrent use.
	Engine struct {
		opts     Options
		logger   *log.Logger
		locker   *lock.Locker
		driver   *pipeline.Driver
		verifier *verify.Runner
		metrics  *Metrics
		flight   flight
	}
)

// New returns an Engine for opts.
func New(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, ErrNoCatalog
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(opts.Layout.Prefix, "var", "cache")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	e := &Engine{
		opts:    opts,
		logger:  logger,
		locker:  lock.New(opts.Layout.LockDir()),
		metrics: newMetrics(),
	}
	e.driver = &pipeline.Driver{
		Toolchain: opts.Toolchain,
		WorkRoot:  filepath.Join(opts.CacheDir, "work"),
		Logger:    logger,
		Observe:   e.metrics.observeStep,
	}
	e.verifier = &verify.Runner{
		Fetcher:     opts.Fetcher,
		Shell:       opts.Shell,
		ScratchRoot: filepath.Join(opts.CacheDir, "test"),
		CacheDir:    e.downloadDir(),
		Logger:      logger,
	}
	return e, nil
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Catalog returns the catalog the engine resolves against.
func (e *Engine) Catalog() *catalog.Catalog { return e.opts.Catalog }

// Layout returns the install prefix layout.
func (e *Engine) Layout() keg.Layout { return e.opts.Layout }

func (e *Engine) downloadDir() string {
	return filepath.Join(e.opts.CacheDir, "downloads")
}
