// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	FormulaNotFoundId
	FormulaParseErrorId
	DependencyCycleId
	UnsupportedPlatformId
	ToolchainIncompatibleId
	PrefixMismatchId
	StepFailedId
	FetchFailedId
	VerificationFailedId
	InstallCanceledId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

// Issue is a remediation page for one class of failure.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the page source including its "See also" links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the page for a terminal. stylePath is a glamour style
// name such as "dark", "light" or "notty".
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

kegbrew reads ` + "`config.cue`" + ` from the kegbrew directory under your
XDG config home (` + "`~/.config/kegbrew`" + ` by default) or from the file given
with ` + "`--config`" + `.

## Things you can try
- Check the file for CUE syntax errors.
- Compare your keys with the defaults:
~~~
$ kegbrew config show --defaults
~~~
- Remember that ` + "`KEGBREW_*`" + ` environment variables override the file.`,
	}

	formulaNotFoundIssue = &Issue{
		id: FormulaNotFoundId,
		mdMsg: `
# Formula not found

A formula, or one of its dependencies, is not in any configured formula
directory.

## Things you can try
- Check the spelling of the name and of every ` + "`depends_on`" + ` entry.
- List the directories kegbrew searches:
~~~
$ kegbrew config show
~~~
- Add a directory with ` + "`--formula-dir`" + ` or the ` + "`formula_dirs`" + ` key.`,
	}

	formulaParseErrorIssue = &Issue{
		id: FormulaParseErrorId,
		mdMsg: `
# Invalid formula file

A formula file does not match the formula schema. The error names the file
and the field path that failed.

## Things you can try
- Fix the reported field. Versions, URLs and dependency kinds are checked.
- Every bottle needs a tag, a cellar and a sha256 digest.
- Formulas without a stable ` + "`url`" + ` must declare a ` + "`head`" + ` reference.`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle

The formulas listed in the error depend on each other in a loop, so no
install order exists.

## Things you can try
- Break the loop by turning one edge into a ` + "`test`" + ` dependency, or
  restrict it to the platforms that need it with ` + "`when`" + `.
- Inspect the graph kegbrew sees:
~~~
$ kegbrew plan <formula> --output yaml
~~~`,
	}

	unsupportedPlatformIssue = &Issue{
		id: UnsupportedPlatformId,
		mdMsg: `
# Platform not supported

A formula in the plan declares a requirement this machine does not meet.

## Things you can try
- Check the detected platform:
~~~
$ kegbrew fingerprint
~~~
- If detection is wrong, override it with ` + "`--os`" + `, ` + "`--arch`" + ` or
  ` + "`--os-version`" + `, or with the ` + "`platform`" + ` config block.`,
	}

	toolchainIncompatibleIssue = &Issue{
		id: ToolchainIncompatibleId,
		mdMsg: `
# Compiler not supported for this build

The formula declares that it fails to build with your compiler. Nothing was
downloaded or built.

## Things you can try
- Install a newer compiler and point kegbrew at it with ` + "`--compiler`" + ` and
  ` + "`--compiler-version`" + `.
- Check whether a bottle exists for your platform. Bottles are not affected
  by compiler constraints.`,
		extLinks: []HttpLink{"https://gcc.gnu.org/projects/cxx-status.html"},
	}

	prefixMismatchIssue = &Issue{
		id: PrefixMismatchId,
		mdMsg: `
# Bottle built for another prefix

The only matching bottle hardcodes a different cellar path and cannot be
relocated.

## Things you can try
- Allow a source build instead:
~~~
$ KEGBREW_FALLBACK_ON_PREFIX_MISMATCH=true kegbrew install <formula>
~~~
- Or install into the prefix the bottle was built for.`,
		extLinks: []HttpLink{"https://docs.brew.sh/Bottles"},
	}

	stepFailedIssue = &Issue{
		id: StepFailedId,
		mdMsg: `
# Build step failed

A step of the source build failed. The partial keg has been removed.

## Things you can try
- Re-run with ` + "`--verbose`" + ` to see the tool output.
- Check that the build tools the formula uses are on your PATH.
- Try the bottle, if there is one, by dropping ` + "`--build-from-source`" + `.`,
	}

	fetchFailedIssue = &Issue{
		id: FetchFailedId,
		mdMsg: `
# Download failed

A source archive, bottle or test resource could not be fetched, or its
sha256 digest did not match.

## Things you can try
- Check your network connection and retry. kegbrew does not retry on its own.
- A digest mismatch means the upstream file changed. Update the formula's
  ` + "`sha256`" + ` only after checking the new file.
- Remove stale downloads from the cache directory.`,
	}

	verificationFailedIssue = &Issue{
		id: VerificationFailedId,
		mdMsg: `
# Smoke test failed

The formula was installed but its test did not pass. The keg stays in place
and its receipt records the failure.

## Things you can try
- Re-run the test with more output:
~~~
$ kegbrew verify <formula> --verbose
~~~
- Reinstall from source if the bottle may be broken.`,
	}

	installCanceledIssue = &Issue{
		id: InstallCanceledId,
		mdMsg: `
# Install canceled

The install was interrupted. Any partial keg has been removed, so running
the same command again starts cleanly.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

kegbrew could not write to the prefix, the cellar or the cache directory.

## Things you can try
- Make the prefix writable by your user:
~~~
$ sudo chown -R "$USER" "$(kegbrew config show --key prefix)"
~~~
- Or pick a prefix you own with ` + "`--prefix`" + `.`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		formulaNotFoundIssue.Id():       formulaNotFoundIssue,
		formulaParseErrorIssue.Id():     formulaParseErrorIssue,
		dependencyCycleIssue.Id():       dependencyCycleIssue,
		unsupportedPlatformIssue.Id():   unsupportedPlatformIssue,
		toolchainIncompatibleIssue.Id(): toolchainIncompatibleIssue,
		prefixMismatchIssue.Id():        prefixMismatchIssue,
		stepFailedIssue.Id():            stepFailedIssue,
		fetchFailedIssue.Id():           fetchFailedIssue,
		verificationFailedIssue.Id():    verificationFailedIssue,
		installCanceledIssue.Id():       installCanceledIssue,
		permissionDeniedIssue.Id():      permissionDeniedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id - b.id) })
}

func Get(id Id) *Issue {
	return issues[id]
}
