// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_CoversEveryId(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(PermissionDeniedId) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), PermissionDeniedId)
	}
	for i, is := range values {
		if want := Id(i + 1); is.Id() != want {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, is.Id(), want)
		}
		if Get(is.Id()) != is {
			t.Errorf("Get(%d) does not return the catalog entry", is.Id())
		}
		if strings.TrimSpace(string(is.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", is.Id())
		}
	}
	if Get(0) != nil {
		t.Error("Get(0) should be nil")
	}
}

func TestIssue_Markdown(t *testing.T) {
	t.Parallel()

	withLinks := Get(PrefixMismatchId)
	md := withLinks.Markdown()
	if !strings.Contains(md, "## See also") || !strings.Contains(md, "<https://docs.brew.sh/Bottles>") {
		t.Errorf("Markdown() missing links:\n%s", md)
	}

	links := withLinks.ExtLinks()
	links[0] = "mutated"
	if withLinks.ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() should return a copy")
	}

	if md := Get(InstallCanceledId).Markdown(); strings.Contains(md, "See also") {
		t.Errorf("Markdown() without links has a See also section:\n%s", md)
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	for _, is := range Values() {
		out, err := is.Render("notty")
		if err != nil {
			t.Errorf("Render(%d) error = %v", is.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Render(%d) is empty", is.Id())
		}
	}
}
