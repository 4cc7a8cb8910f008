// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kegbrew/kegbrew/internal/semver"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

type (
	// ValidationError is a single problem found by Validate.
	ValidationError struct {
		// Field locates the problem, e.g. "install[2].file".
		Field   string
		Message string
	}

	// ValidationErrors collects every problem found in one descriptor.
	ValidationErrors []ValidationError
)

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Error implements the error interface by listing every problem.
func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return errs[0].Error()
	}
	var b strings.Builder
	b.WriteString("validation failed with " + strconv.Itoa(len(errs)) + " errors:")
	for _, e := range errs {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}
	return b.String()
}

func (errs *ValidationErrors) add(field, format string, args ...any) {
	*errs = append(*errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (errs *ValidationErrors) addErrs(field string, list []error) {
	for _, err := range list {
		*errs = append(*errs, ValidationError{Field: field, Message: err.Error()})
	}
}

// Validate checks the cross-field rules the schema cannot express and
// returns every violation found.
func (f *Formula) Validate() ValidationErrors {
	var errs ValidationErrors

	if ok, list := f.Name.IsValid(); !ok {
		errs.addErrs("name", list)
	}
	if ok, list := f.Desc.IsValid(); !ok {
		errs.addErrs("desc", list)
	}
	f.validateSource(&errs)

	if f.License != nil && f.License.shapes() != 1 {
		errs.add("license", "exactly one of spdx, all_of, any_of or cannot_represent must be set")
	}
	for i := range f.Requires {
		if ok, list := f.Requires[i].IsValid(); !ok {
			errs.addErrs(fmt.Sprintf("requires[%d]", i), list)
		}
	}

	f.validateDependencies(&errs)
	f.validateBottles(&errs)

	for i, rule := range f.FailsWith {
		if rule.Version == "" {
			continue
		}
		if _, err := semver.ParseConstraint(rule.Version); err != nil {
			errs.add(fmt.Sprintf("fails_with[%d].version", i), "%v", err)
		}
	}
	for i := range f.Install {
		f.Install[i].validate(fmt.Sprintf("install[%d]", i), &errs)
	}
	f.validateTest(&errs)
	for i := range f.Caveats {
		if ok, list := f.Caveats[i].When.IsValid(); !ok {
			errs.addErrs(fmt.Sprintf("caveats[%d].when", i), list)
		}
	}
	if f.Service != nil {
		f.Service.validate(&errs)
	}
	return errs
}

func (f *Formula) validateSource(errs *ValidationErrors) {
	switch {
	case f.URL == "" && f.Head == nil:
		errs.add("url", "a formula needs a stable url or a head reference")
	case f.URL != "":
		if f.SHA256.IsZero() {
			errs.add("sha256", "a stable url must carry its sha256")
		} else if ok, list := f.SHA256.IsValid(); !ok {
			errs.addErrs("sha256", list)
		}
		if f.Version == "" {
			errs.add("version", "a stable url requires a version")
		}
	}
}

func (f *Formula) validateDependencies(errs *ValidationErrors) {
	seen := make(map[string]bool, len(f.DependsOn))
	for i, d := range f.DependsOn {
		field := fmt.Sprintf("depends_on[%d]", i)
		if !d.System {
			if ok, list := d.Name.IsValid(); !ok {
				errs.addErrs(field+".name", list)
			}
		}
		if d.Name == f.Name {
			errs.add(field, "formula %q cannot depend on itself", f.Name)
		}
		if !d.Kind.IsValid() {
			errs.add(field+".kind", "unknown dependency kind %q", d.Kind)
		}
		key := string(d.Name) + "|" + string(d.Kind)
		if seen[key] {
			errs.add(field, "duplicate %s dependency on %q", d.Kind, d.Name)
		}
		seen[key] = true
		if ok, list := d.When.IsValid(); !ok {
			errs.addErrs(field+".when", list)
		}
	}
}

func (f *Formula) validateBottles(errs *ValidationErrors) {
	if f.Bottle == nil {
		return
	}
	seen := make(map[string]string, len(f.Bottle.Files))
	for i, b := range f.Bottle.Files {
		field := fmt.Sprintf("bottle.files[%d]", i)
		tag, err := platform.ParseTag(b.Tag)
		if err != nil {
			errs.add(field+".tag", "%v", err)
			continue
		}
		if prev, dup := seen[tag.Key()]; dup {
			errs.add(field+".tag", "tag %q duplicates %q", b.Tag, prev)
		}
		seen[tag.Key()] = b.Tag
		if !b.Cellar.IsValid() {
			errs.add(field+".cellar", "cellar %q must be any, any_skip_relocation or an absolute path", b.Cellar)
		}
		if ok, list := b.SHA256.IsValid(); !ok {
			errs.addErrs(field+".sha256", list)
		}
	}
}

func (f *Formula) validateTest(errs *ValidationErrors) {
	if f.Test == nil {
		return
	}
	for i, r := range f.Test.Resources {
		if ok, list := r.SHA256.IsValid(); !ok {
			errs.addErrs(fmt.Sprintf("test.resources[%d].sha256", i), list)
		}
		if r.StageAs != "" && !filepath.IsLocal(r.StageAs) {
			errs.add(fmt.Sprintf("test.resources[%d].stage_as", i), "%q must be a relative path inside the test directory", r.StageAs)
		}
	}
	for i, c := range f.Test.Commands {
		field := fmt.Sprintf("test.commands[%d]", i)
		if c.Expect != "" {
			if _, err := regexp.Compile(c.Expect); err != nil {
				errs.add(field+".expect", "invalid regular expression: %v", err)
			}
		}
		if err := c.ExitCode.Validate(); err != nil {
			errs.add(field+".exit_code", "%v", err)
		}
		if c.Creates != "" && !filepath.IsLocal(c.Creates) {
			errs.add(field+".creates", "%q must be a relative path inside the test directory", c.Creates)
		}
	}
}

func (s *Step) validate(field string, errs *ValidationErrors) {
	if !s.Action.IsValid() {
		errs.add(field+".action", "unknown action %q", s.Action)
		return
	}
	if ok, list := s.When.IsValid(); !ok {
		errs.addErrs(field+".when", list)
	}
	if s.Dir != "" && !filepath.IsLocal(s.Dir) {
		errs.add(field+".dir", "%q must be a relative path inside the workspace", s.Dir)
	}

	require := func(name, value string) {
		if value == "" {
			errs.add(field+"."+name, "required for %s steps", s.Action)
		}
	}
	local := func(name, value string) {
		if value != "" && !filepath.IsLocal(value) {
			errs.add(field+"."+name, "%q must be a relative path", value)
		}
	}

	switch s.Action {
	case ActionPatch:
		require("file", s.File)
		local("file", s.File)
		if s.Find == "" && len(s.Append) == 0 {
			errs.add(field, "patch steps need find or append")
		}
		if s.Regexp && s.Find != "" {
			if _, err := regexp.Compile(s.Find); err != nil {
				errs.add(field+".find", "invalid regular expression: %v", err)
			}
		}
	case ActionConfigure, ActionCompile:
		require("tool", s.Tool)
	case ActionInstallFiles:
		require("from", s.From)
		require("to", s.To)
		local("to", s.To)
		if s.Rename != "" && strings.ContainsRune(s.Rename, '/') {
			errs.add(field+".rename", "%q must be a plain file name", s.Rename)
		}
	case ActionSymlink:
		require("target", s.Target)
		require("link", s.Link)
		local("target", s.Target)
		local("link", s.Link)
	case ActionLanguageModule:
		switch s.Language {
		case LanguageRust, LanguagePython, LanguageGo, LanguageNode:
		default:
			errs.add(field+".language", "unknown language %q", s.Language)
		}
	}
}
