// SPDX-License-Identifier: MPL-2.0

package formulatest

import (
	"testing"

	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/types"
)

func TestNew_ProducesValidFormula(t *testing.T) {
	t.Parallel()

	src := types.DigestOf([]byte("src"))
	f := New("app",
		WithSource("https://example.org/app-1.0.tar.gz", src),
		WithDeps(Run("lib"), Build("cmake")),
		WithSteps(Configure("./configure", "--prefix=$PREFIX"), Compile("make", "install")),
		WithTest(formula.TestCommand{Run: "app --version", Expect: "1.0"}),
	)
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got := len(f.DependenciesFor(LinuxX86)); got != 2 {
		t.Errorf("DependenciesFor() = %d deps, want 2", got)
	}

	cat := Catalog(f, New("lib"), New("cmake"))
	if cat.Len() != 3 {
		t.Errorf("Catalog().Len() = %d, want 3", cat.Len())
	}
}
