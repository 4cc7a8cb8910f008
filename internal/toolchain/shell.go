// SPDX-License-Identifier: MPL-2.0

// Package toolchain runs build tools and smoke-test commands through the
// mvdan.cc/sh interpreter. Nothing is handed to a host shell: tool
// invocations are rendered as a single quoted command, parsed and
// interpreted, and external programs are started by the interpreter's exec
// handler.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/kegbrew/kegbrew/pkg/types"
)

// defaultKillTimeout is how long a cancelled child gets between SIGINT and SIGKILL.
const defaultKillTimeout = 2 * time.Second

type (
	// Invocation is one build tool call. Args are passed verbatim; callers
	// expand them first with ExpandFields.
	Invocation struct {
		Dir  string
		Tool string
		Args []string
		Env  []string
	}

	// Result is what a finished command left behind. A non-zero ExitCode is
	// not an error; errors are reserved for failures to run at all.
	Result struct {
		ExitCode types.ExitCode
		Output   string
	}

	// Shell runs commands in-process with mvdan.cc/sh.
	Shell struct {
		Logger      *log.Logger
		KillTimeout time.Duration
	}
)

// NewShell returns a Shell that logs spawned programs to logger.
func NewShell(logger *log.Logger) *Shell {
	return &Shell{Logger: logger, KillTimeout: defaultKillTimeout}
}

// RunBuildTool runs inv.Tool with inv.Args in inv.Dir.
func (s *Shell) RunBuildTool(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Tool == "" {
		return Result{}, errors.New("no tool given")
	}
	script, err := CommandLine(inv.Tool, inv.Args)
	if err != nil {
		return Result{}, err
	}
	return s.RunScript(ctx, inv.Dir, script, inv.Env)
}

// RunScript interprets script in dir with exactly env as its environment.
// Output is the combined stdout and stderr.
func (s *Shell) RunScript(ctx context.Context, dir, script string, env []string) (Result, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse script: %w", err)
	}

	var out bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &out, &out),
		interp.ExecHandlers(s.logExec, s.defaultExec),
	)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create interpreter: %w", err)
	}

	err = runner.Run(ctx, prog)
	res := Result{Output: out.String()}
	if err != nil {
		var exitStatus interp.ExitStatus
		if !errors.As(err, &exitStatus) {
			return res, err
		}
		res.ExitCode = types.ExitCode(exitStatus)
	}
	return res, nil
}

func (s *Shell) logExec(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if s.Logger != nil && len(args) > 0 {
			hc := interp.HandlerCtx(ctx)
			s.Logger.Debug("exec", "argv", strings.Join(args, " "), "dir", hc.Dir)
		}
		return next(ctx, args)
	}
}

func (s *Shell) defaultExec(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	timeout := s.KillTimeout
	if timeout <= 0 {
		timeout = defaultKillTimeout
	}
	return interp.DefaultExecHandler(timeout)
}

// CommandLine renders tool and args as one shell command with every
// argument quoted.
func CommandLine(tool string, args []string) (string, error) {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{tool}, args...) {
		q, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote %q: %w", w, err)
		}
		words = append(words, q)
	}
	return strings.Join(words, " "), nil
}
