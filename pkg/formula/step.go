// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"maps"
	"slices"

	"github.com/kegbrew/kegbrew/pkg/platform"
)

// Install step actions.
const (
	ActionPatch          Action = "patch"
	ActionConfigure      Action = "configure"
	ActionCompile        Action = "compile"
	ActionInstallFiles   Action = "install_files"
	ActionSymlink        Action = "symlink"
	ActionLanguageModule Action = "language_module"
)

// Languages accepted by language_module steps.
const (
	LanguageRust   Language = "rust"
	LanguagePython Language = "python"
	LanguageGo     Language = "go"
	LanguageNode   Language = "node"
)

type (
	// Action is the kind of an install step.
	Action string

	// Language selects the installer used by a language_module step.
	Language string

	// Step is one install action. Only the parameters of its Action are
	// meaningful; Validate reports missing ones.
	Step struct {
		Action Action              `json:"action"`
		When   *platform.Predicate `json:"when,omitempty"`
		Dir    string              `json:"dir,omitempty"`
		Env    map[string]string   `json:"env,omitempty"`

		Tool string   `json:"tool,omitempty"`
		Args []string `json:"args,omitempty"`

		File    string   `json:"file,omitempty"`
		Find    string   `json:"find,omitempty"`
		Replace string   `json:"replace,omitempty"`
		Regexp  bool     `json:"regexp,omitempty"`
		Append  []string `json:"append,omitempty"`

		From       string `json:"from,omitempty"`
		FromPrefix bool   `json:"from_prefix,omitempty"`
		To         string `json:"to,omitempty"`
		Rename     string `json:"rename,omitempty"`

		Target string `json:"target,omitempty"`
		Link   string `json:"link,omitempty"`

		Language Language `json:"language,omitempty"`
	}
)

// IsValid returns whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionPatch, ActionConfigure, ActionCompile, ActionInstallFiles, ActionSymlink, ActionLanguageModule:
		return true
	default:
		return false
	}
}

// InvokesTool reports whether the step runs an external build tool.
func (a Action) InvokesTool() bool {
	return a == ActionConfigure || a == ActionCompile || a == ActionLanguageModule
}

// Summary is a short human description used in logs and plans.
func (s *Step) Summary() string {
	switch s.Action {
	case ActionPatch:
		return "patch " + s.File
	case ActionConfigure, ActionCompile:
		return string(s.Action) + " " + s.Tool
	case ActionInstallFiles:
		return "install " + s.From + " -> " + s.To
	case ActionSymlink:
		return "symlink " + s.Link + " -> " + s.Target
	case ActionLanguageModule:
		return "language module (" + string(s.Language) + ")"
	default:
		return string(s.Action)
	}
}

func (s Step) clone() Step {
	s.Env = maps.Clone(s.Env)
	s.Args = slices.Clone(s.Args)
	s.Append = slices.Clone(s.Append)
	return s
}
