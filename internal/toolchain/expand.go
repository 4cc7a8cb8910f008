// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// ErrBadWord is returned for arguments that are not a plain list of shell words.
var ErrBadWord = errors.New("not a list of shell words")

// ExpandFields expands arg against env with shell word rules: quotes are
// honoured and unquoted expansions are split on whitespace, so
// "$STD_CMAKE_ARGS" as a bare word becomes several arguments. Command
// substitution is refused.
func ExpandFields(arg string, env []string) ([]string, error) {
	words, err := parseWords(arg)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}
	fields, err := expand.Fields(config(env), words...)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", arg, err)
	}
	return fields, nil
}

// ExpandLiteral expands s as a single word with no field splitting.
// It is used for paths and environment values.
func ExpandLiteral(s string, env []string) (string, error) {
	if !strings.ContainsAny(s, "$~") {
		return s, nil
	}
	word, err := syntax.NewParser().Document(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrBadWord, s, err)
	}
	out, err := expand.Literal(config(env), word)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", s, err)
	}
	return out, nil
}

// ExpandAll expands every argument and concatenates the fields.
func ExpandAll(args, env []string) ([]string, error) {
	var out []string
	for _, a := range args {
		fields, err := ExpandFields(a, env)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

func parseWords(arg string) ([]*syntax.Word, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(": "+arg), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadWord, arg, err)
	}
	if len(file.Stmts) != 1 {
		return nil, fmt.Errorf("%w: %q", ErrBadWord, arg)
	}
	stmt := file.Stmts[0]
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || stmt.Background || stmt.Negated || len(stmt.Redirs) > 0 || len(call.Assigns) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadWord, arg)
	}
	return call.Args[1:], nil
}

func config(env []string) *expand.Config {
	return &expand.Config{Env: expand.ListEnviron(env...)}
}
