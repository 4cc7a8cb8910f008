// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kegbrew/kegbrew/internal/toolchain"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

// run carries the per-job state shared by all steps.
type run struct {
	driver    *Driver
	job       Job
	buildPath string
	env       []string
}

// execute runs one step and returns the tool output, if any.
func (r *run) execute(ctx context.Context, step *formula.Step) (string, error) {
	env, err := r.stepEnv(step)
	if err != nil {
		return "", err
	}
	switch step.Action {
	case formula.ActionConfigure, formula.ActionCompile:
		tool, err := toolchain.ExpandLiteral(step.Tool, env)
		if err != nil {
			return "", err
		}
		args, err := toolchain.ExpandAll(step.Args, env)
		if err != nil {
			return "", err
		}
		return r.invoke(ctx, step, env, tool, args)
	case formula.ActionLanguageModule:
		tool, args, err := r.languageInvocation(step, env)
		if err != nil {
			return "", err
		}
		return r.invoke(ctx, step, env, tool, args)
	case formula.ActionPatch:
		return "", r.patch(step, env)
	case formula.ActionInstallFiles:
		return "", r.installFiles(step, env)
	case formula.ActionSymlink:
		return "", r.symlink(step, env)
	default:
		return "", fmt.Errorf("unknown action %q", step.Action)
	}
}

// stepEnv layers the step's own variables, expanded against the job
// environment, over a fresh copy of it.
func (r *run) stepEnv(step *formula.Step) ([]string, error) {
	if len(step.Env) == 0 {
		return slices.Clone(r.env), nil
	}
	env := newEnvList(r.env)
	keys := make([]string, 0, len(step.Env))
	for k := range step.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, err := toolchain.ExpandLiteral(step.Env[k], r.env)
		if err != nil {
			return nil, err
		}
		env.set(k, v)
	}
	return env.list(), nil
}

func (r *run) stepDir(step *formula.Step, env []string) (string, error) {
	if step.Dir == "" {
		return r.buildPath, nil
	}
	dir, err := toolchain.ExpandLiteral(step.Dir, env)
	if err != nil {
		return "", err
	}
	return within(r.buildPath, dir)
}

func (r *run) invoke(ctx context.Context, step *formula.Step, env []string, tool string, args []string) (string, error) {
	dir, err := r.stepDir(step, env)
	if err != nil {
		return "", err
	}
	res, err := r.driver.Toolchain.RunBuildTool(ctx, toolchain.Invocation{Dir: dir, Tool: tool, Args: args, Env: env})
	if err != nil {
		return res.Output, err
	}
	if !res.ExitCode.IsSuccess() {
		return res.Output, &ToolExitError{Tool: tool, ExitCode: res.ExitCode}
	}
	return res.Output, nil
}

// languageInvocation maps a language_module step to the ecosystem's
// installer, rooted at the keg.
func (r *run) languageInvocation(step *formula.Step, env []string) (string, []string, error) {
	keg := r.job.KegPath
	extra, err := toolchain.ExpandAll(step.Args, env)
	if err != nil {
		return "", nil, err
	}

	var (
		tool string
		args []string
		def  []string
	)
	switch step.Language {
	case formula.LanguageRust:
		tool, args, def = "cargo", []string{"install", "--locked", "--root=" + keg}, []string{"--path=."}
	case formula.LanguagePython:
		tool, args, def = "python3", []string{"-m", "pip", "install", "--prefix=" + keg, "--no-deps", "--no-build-isolation"}, []string{"."}
	case formula.LanguageGo:
		bin := filepath.Join(keg, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			return "", nil, err
		}
		tool, args, def = "go", []string{"build", "-trimpath", "-o", filepath.Join(bin, string(r.job.Formula.Name))}, []string{"."}
	case formula.LanguageNode:
		tool, args, def = "npm", []string{"install", "-g", "--prefix=" + keg}, []string{"."}
	default:
		return "", nil, fmt.Errorf("unsupported language %q", step.Language)
	}
	if step.Tool != "" {
		if tool, err = toolchain.ExpandLiteral(step.Tool, env); err != nil {
			return "", nil, err
		}
	}
	if len(extra) == 0 {
		extra = def
	}
	return tool, append(args, extra...), nil
}

func (r *run) patch(step *formula.Step, env []string) error {
	name, err := toolchain.ExpandLiteral(step.File, env)
	if err != nil {
		return err
	}
	path, err := within(r.buildPath, name)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)

	if step.Find != "" {
		if step.Regexp {
			re, err := regexp.Compile(step.Find)
			if err != nil {
				return err
			}
			if !re.MatchString(text) {
				return fmt.Errorf("%w: /%s/ in %s", ErrNoMatch, step.Find, step.File)
			}
			text = re.ReplaceAllString(text, step.Replace)
		} else {
			if !strings.Contains(text, step.Find) {
				return fmt.Errorf("%w: %q in %s", ErrNoMatch, step.Find, step.File)
			}
			text = strings.ReplaceAll(text, step.Find, step.Replace)
		}
	}
	if len(step.Append) > 0 {
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += strings.Join(step.Append, "\n") + "\n"
	}
	return os.WriteFile(path, []byte(text), info.Mode().Perm())
}

func (r *run) installFiles(step *formula.Step, env []string) error {
	root := r.buildPath
	if step.FromPrefix {
		root = r.job.KegPath
	}
	pattern, err := toolchain.ExpandLiteral(step.From, env)
	if err != nil {
		return err
	}
	matches, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(pattern))
	if err != nil {
		return fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, step.From)
	}
	slices.Sort(matches)
	if step.Rename != "" && len(matches) > 1 {
		return fmt.Errorf("rename %q needs exactly one match, got %d", step.Rename, len(matches))
	}

	to, err := toolchain.ExpandLiteral(step.To, env)
	if err != nil {
		return err
	}
	destDir, err := within(r.job.KegPath, to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	for _, m := range matches {
		base := filepath.Base(m)
		if step.Rename != "" {
			base = step.Rename
		}
		src := filepath.Join(root, filepath.FromSlash(m))
		if err := copyAny(src, filepath.Join(destDir, base)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) symlink(step *formula.Step, env []string) error {
	target, err := toolchain.ExpandLiteral(step.Target, env)
	if err != nil {
		return err
	}
	link, err := toolchain.ExpandLiteral(step.Link, env)
	if err != nil {
		return err
	}
	targetPath, err := within(r.job.KegPath, target)
	if err != nil {
		return err
	}
	linkPath, err := within(r.job.KegPath, link)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	rel, err := filepath.Rel(filepath.Dir(linkPath), targetPath)
	if err != nil {
		return err
	}
	os.Remove(linkPath)
	return os.Symlink(rel, linkPath)
}

// within resolves p against root and rejects results outside root.
// Absolute paths are accepted when they already lie below root.
func within(root, p string) (string, error) {
	var rel string
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(root, p)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
		}
		rel = r
	} else {
		rel = filepath.Clean(p)
	}
	if rel == "." {
		return root, nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return filepath.Join(root, rel), nil
}
