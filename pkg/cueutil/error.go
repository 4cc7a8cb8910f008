// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

type (
	// Issue is one problem reported by CUE, located by a JSON-style path.
	Issue struct {
		Path    string
		Message string
	}

	// Error collects every issue CUE reported for one file.
	Error struct {
		File   string
		Issues []Issue
		cause  error
	}
)

// Error renders "<file>: <path>: <message>", one issue per line when there are several.
func (e *Error) Error() string {
	lines := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			lines = append(lines, is.Message)
			continue
		}
		lines = append(lines, is.Path+": "+is.Message)
	}
	if len(lines) == 1 {
		return fmt.Sprintf("%s: %s", e.File, lines[0])
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

// Unwrap returns the underlying CUE error.
func (e *Error) Unwrap() error { return e.cause }

// FormatError converts a CUE error into an *Error with one Issue per CUE error.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return &Error{File: filePath, Issues: []Issue{{Message: err.Error()}}, cause: err}
	}

	out := &Error{File: filePath, cause: err}
	for _, ce := range list {
		path := formatPath(cueerrors.Path(ce))
		msg := ce.Error()
		if path != "" && strings.HasPrefix(msg, path) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		out.Issues = append(out.Issues, Issue{Path: path, Message: msg})
	}
	return out
}

// formatPath turns ["install", "2", "args"] into "install[2].args".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		switch {
		case i > 0 && isIndex(part):
			b.WriteString("[" + part + "]")
		case i > 0:
			b.WriteString("." + part)
		default:
			b.WriteString(part)
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
