// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kegbrew/kegbrew/internal/fetch"
	"github.com/kegbrew/kegbrew/internal/gate"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/internal/pipeline"
	"github.com/kegbrew/kegbrew/internal/resolve"
	"github.com/kegbrew/kegbrew/internal/verify"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

// Install plans req and installs every needed formula. The returned error
// is non-nil exactly when the result's Status is StatusFailed.
func (e *Engine) Install(ctx context.Context, req Request) (*Result, error) {
	logger := e.logger.With("formula", req.Formula)

	plan, err := e.Plan(ctx, req)
	if err != nil {
		logger.Error("planning failed", "error", err)
		e.metrics.countInstall(StatusFailed, "")
		return &Result{Formula: req.Formula, Status: StatusFailed, Failure: failureOf(err)}, err
	}

	results, err := e.execute(ctx, plan)
	root := results[req.Formula]
	if root == nil {
		n := plan.Node(req.Formula)
		root = &Result{Formula: req.Formula, Version: n.Version, Status: StatusFailed}
	}
	for _, n := range plan.Nodes {
		if n.Name == req.Formula {
			continue
		}
		if r, ok := results[n.Name]; ok {
			root.Dependencies = append(root.Dependencies, r)
		}
	}
	if err != nil {
		if root.Failure == nil {
			root.Status = StatusFailed
			root.Failure = failureOf(err)
		}
		return root, err
	}

	rootNode := plan.Node(req.Formula)
	root.Notes = append(root.Notes, rootNode.Notes...)
	f := rootNode.formula
	if root.Status == StatusInstalled {
		root.Caveats = f.CaveatsFor(req.Fingerprint)
		if f.License != nil && f.License.CannotRepresent {
			root.Notes = append(root.Notes, fmt.Sprintf(
				"the license of %s cannot be expressed in SPDX terms; review %s before redistributing",
				f.Name, filepath.Join(root.KegPath, "LICENSE")))
		}
		if req.Verify && f.Test != nil {
			if err := e.verifyInstalled(ctx, f, root); err != nil {
				return root, err
			}
		}
	}
	return root, nil
}

// errDependencyFailed marks a node skipped because a dependency did not
// install.
var errDependencyFailed = errors.New("dependency failed")

// nodeState is closed once a node is finished; err is set before closing.
type nodeState struct {
	done chan struct{}
	err  error
}

// execute installs plan.Nodes. A node starts once all of its dependencies
// are done; the first failure cancels every node still running.
func (e *Engine) execute(ctx context.Context, plan *Plan) (map[formula.Name]*Result, error) {
	states := make(map[formula.Name]*nodeState, len(plan.Nodes))
	for _, n := range plan.Nodes {
		states[n.Name] = &nodeState{done: make(chan struct{})}
	}

	var (
		mu      sync.Mutex
		results = make(map[formula.Name]*Result, len(plan.Nodes))
	)
	sem := semaphore.NewWeighted(int64(e.opts.Jobs))
	g, gctx := errgroup.WithContext(ctx)

	for _, n := range plan.Nodes {
		state := states[n.Name]
		g.Go(func() error {
			// failed is what dependents see; only install errors reach the group.
			var failed error
			defer func() {
				state.err = failed
				close(state.done)
			}()
			if failed = awaitDependencies(gctx, states, n); failed != nil {
				return nil
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				failed = err
				return nil
			}
			defer sem.Release(1)

			res, err := e.installNode(gctx, plan, n)
			mu.Lock()
			results[n.Name] = res
			mu.Unlock()
			failed = err
			return err
		})
	}

	err := g.Wait()
	if err == nil {
		// A caller cancellation can stop nodes before they start.
		for _, n := range plan.Nodes {
			if _, ok := results[n.Name]; !ok {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return results, ctxErr
				}
				return results, fmt.Errorf("%s: not installed", n.Name)
			}
		}
	}
	return results, err
}

// awaitDependencies blocks until every dependency of n is done. It returns
// errDependencyFailed as soon as one of them failed or was skipped.
func awaitDependencies(ctx context.Context, states map[formula.Name]*nodeState, n *Node) error {
	for _, dep := range n.Dependencies {
		ds := states[dep]
		select {
		case <-ds.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if ds.err != nil {
			return errDependencyFailed
		}
	}
	return nil
}

// installNode runs one node through single-flight, so concurrent requests
// for the same keg share a single install. Canceling ctx abandons only this
// caller's wait.
func (e *Engine) installNode(ctx context.Context, plan *Plan, n *Node) (*Result, error) {
	key := string(n.Name) + "@" + n.Version
	res, err, shared := e.flight.do(ctx, key, func(ctx context.Context) (*Result, error) {
		return e.installLocked(ctx, plan, n)
	})
	if res == nil {
		return &Result{
			Formula: n.Name,
			Version: n.Version,
			KegPath: e.opts.Layout.KegPath(n.Name, n.Version),
			Status:  StatusFailed,
			Failure: failureOf(err),
		}, err
	}
	if shared {
		e.logger.Debug("joined in-flight install", "formula", n.Name)
		cp := *res
		res = &cp
	}
	return res, err
}

func (e *Engine) installLocked(ctx context.Context, plan *Plan, n *Node) (*Result, error) {
	e.metrics.installsRunning.Inc()
	defer e.metrics.installsRunning.Dec()

	logger := e.logger.With("formula", n.Name)
	layout := e.opts.Layout
	kegPath := layout.KegPath(n.Name, n.Version)
	res := &Result{Formula: n.Name, Version: n.Version, KegPath: kegPath}

	fail := func(err error) (*Result, error) {
		res.Status = StatusFailed
		res.Failure = failureOf(err)
		e.metrics.countInstall(StatusFailed, string(res.Path))
		return res, err
	}

	lk, err := e.locker.Acquire(ctx, string(n.Name))
	if err != nil {
		return fail(err)
	}
	defer lk.Release()

	if rec, err := layout.Installed(n.Name, n.Version); err == nil {
		logger.Info("already installed", "path", kegPath)
		res.Status = StatusSkipped
		res.Path = rec.Source
		res.Verification = rec.Verification
		e.metrics.countInstall(StatusSkipped, string(rec.Source))
		return res, nil
	} else if !errors.Is(err, keg.ErrNotInstalled) {
		return fail(err)
	}

	if _, err := os.Lstat(kegPath); err == nil {
		logger.Warn("removing incomplete keg", "path", kegPath)
		if err := layout.Remove(kegPath); err != nil {
			return fail(err)
		}
	}

	receipt := &keg.Receipt{
		Name:         n.Name,
		Version:      n.Version,
		Head:         n.Version == formula.HeadVersion,
		Fingerprint:  keg.FingerprintOf(plan.Fingerprint),
		Verification: keg.VerificationNotRun,
	}
	for _, d := range plan.resolved.RuntimeClosure(n.Name) {
		receipt.RuntimeDeps = append(receipt.RuntimeDeps, string(d))
	}

	switch n.Path {
	case gate.PathBottle:
		res.Path = keg.SourceBottle
		logger.Info("pouring", "tag", n.BottleTag)
		if err := e.pour(ctx, n, kegPath); err != nil {
			return fail(err)
		}
		receipt.BottleTag = n.BottleTag
	default:
		res.Path = keg.SourceBuilt
		logger.Info("building from source", "version", n.Version)
		report, err := e.build(ctx, plan, n, kegPath)
		if err != nil {
			return fail(err)
		}
		res.StepsRun = len(report.Steps)
	}

	digest, err := keg.TreeDigest(kegPath)
	if err != nil {
		layout.Remove(kegPath)
		return fail(err)
	}
	receipt.Source = res.Path
	receipt.Digest = digest
	receipt.InstalledAt = e.opts.Now().UTC()
	if err := keg.WriteReceipt(kegPath, receipt); err != nil {
		layout.Remove(kegPath)
		return fail(err)
	}
	if err := layout.Link(n.Name, kegPath); err != nil {
		logger.Warn("opt link failed", "error", err)
	}

	res.Status = StatusInstalled
	res.Verification = keg.VerificationNotRun
	e.metrics.countInstall(StatusInstalled, string(res.Path))
	logger.Info("installed", "path", kegPath, "source", res.Path)
	return res, nil
}

func (e *Engine) pour(ctx context.Context, n *Node, kegPath string) error {
	ref := fetch.Reference{
		URL:    n.URL,
		SHA256: n.selection.Bottle.SHA256,
		Name:   fmt.Sprintf("%s--%s.%s.bottle.tar.gz", n.Name, n.Version, n.BottleTag),
	}
	archivePath, err := e.opts.Fetcher.Fetch(ctx, ref, e.downloadDir())
	if err != nil {
		return err
	}
	return e.opts.Layout.Pour(archivePath, kegPath, n.selection.Bottle.Cellar)
}

func (e *Engine) build(ctx context.Context, plan *Plan, n *Node, kegPath string) (*pipeline.Report, error) {
	f := n.formula
	var source string
	if ref, ok := sourceRef(f, n.Version); ok {
		path, err := e.opts.Fetcher.Fetch(ctx, ref, e.downloadDir())
		if err != nil {
			return nil, err
		}
		source = path
	}

	return e.driver.Run(ctx, pipeline.Job{
		Formula:     f,
		Fingerprint: plan.Fingerprint,
		Version:     n.Version,
		Source:      source,
		KegPath:     kegPath,
		Layout:      e.opts.Layout,
		Deps:        e.depKegs(plan, n),
		BaseEnv:     e.opts.BaseEnv,
	})
}

// sourceRef is the reference a build of f at version starts from.
func sourceRef(f *formula.Formula, version string) (fetch.Reference, bool) {
	switch {
	case version == formula.HeadVersion && f.Head != nil:
		return fetch.Reference{URL: f.Head.URL, Branch: f.Head.Branch, Head: true, Name: string(f.Name)}, true
	case f.URL != "":
		return fetch.Reference{URL: f.URL, SHA256: f.SHA256}, true
	default:
		return fetch.Reference{}, false
	}
}

// depKegs maps the direct dependencies of n and their run-time closures
// to their keg paths.
func (e *Engine) depKegs(plan *Plan, n *Node) map[formula.Name]string {
	out := make(map[formula.Name]string)
	add := func(name formula.Name) {
		if dn := plan.Node(name); dn != nil {
			out[name] = e.opts.Layout.KegPath(name, dn.Version)
		}
	}
	for _, d := range n.Dependencies {
		add(d)
		for _, r := range plan.resolved.RuntimeClosure(d) {
			add(r)
		}
	}
	return out
}

func (e *Engine) verifyInstalled(ctx context.Context, f *formula.Formula, res *Result) error {
	err := e.verifier.Run(ctx, f.Test, verify.Target{
		Formula: f.Name,
		Version: res.Version,
		KegPath: res.KegPath,
		Env:     e.opts.BaseEnv,
	})

	var failed *verify.FailedError
	switch {
	case err == nil:
		res.Verification = keg.VerificationPassed
	case errors.As(err, &failed):
		res.Verification = keg.VerificationFailed
	default:
		res.Status = StatusFailed
		res.Failure = failureOf(err)
		return err
	}

	if recErr := e.recordVerification(res.KegPath, res.Verification); recErr != nil {
		e.logger.Warn("receipt update failed", "formula", f.Name, "error", recErr)
	}
	if err != nil {
		res.Status = StatusFailed
		res.Failure = failureOf(err)
		return err
	}
	return nil
}

func (e *Engine) recordVerification(kegPath string, v keg.Verification) error {
	rec, err := keg.ReadReceipt(kegPath)
	if err != nil {
		return err
	}
	rec.Verification = v
	return keg.WriteReceipt(kegPath, rec)
}

// Verify runs the smoke test of an installed formula and records the outcome.
func (e *Engine) Verify(ctx context.Context, name formula.Name, head bool) (*Result, error) {
	f, ok := e.opts.Catalog.Get(name)
	if !ok {
		err := &resolve.UnresolvedDependencyError{Name: name}
		return &Result{Formula: name, Status: StatusFailed, Failure: failureOf(err)}, err
	}
	version := f.KegVersion(head)
	kegPath := e.opts.Layout.KegPath(name, version)
	rec, err := keg.ReadReceipt(kegPath)
	if err != nil {
		return &Result{Formula: name, Version: version, Status: StatusFailed, Failure: failureOf(err)}, err
	}

	res := &Result{
		Formula:      name,
		Version:      version,
		Status:       StatusInstalled,
		Path:         rec.Source,
		KegPath:      kegPath,
		Verification: keg.VerificationNotRun,
	}
	if f.Test == nil {
		return res, nil
	}
	err = e.verifyInstalled(ctx, f, res)
	return res, err
}
