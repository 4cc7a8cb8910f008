// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Doc: {
	name:  string & =~"^[a-z]+$"
	count: int | *1
	tags?: [...string]
}
`

type testDoc struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	res, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "zlib"`), "#Doc", WithFilename("zlib.cue"))
	if err != nil {
		t.Fatalf("ParseAndDecode() error: %v", err)
	}
	if res.Value.Name != "zlib" || res.Value.Count != 1 {
		t.Errorf("decoded = %+v, want name zlib with default count", res.Value)
	}
}

func TestParseAndDecode_ValidationIssuePath(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "zlib", tags: ["a", 3]`), "#Doc", WithFilename("zlib.cue"))
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v (%T), want *Error", err, err)
	}
	if cerr.File != "zlib.cue" {
		t.Errorf("File = %q", cerr.File)
	}
	found := false
	for _, is := range cerr.Issues {
		if is.Path == "tags[1]" {
			found = true
		}
	}
	if !found {
		t.Errorf("issues %+v do not mention tags[1]", cerr.Issues)
	}
}

func TestParseAndDecode_SyntaxError(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: `), "#Doc")
	if err == nil || !strings.HasPrefix(err.Error(), "<input>:") {
		t.Fatalf("error = %v, want <input>-prefixed error", err)
	}
}

func TestParseAndDecode_FileTooLarge(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`name: "abcdef"`), "#Doc", WithMaxFileSize(4))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("error = %v, want size error", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"install", "2", "args"}, "install[2].args"},
		{[]string{"bottle", "files", "0", "0"}, "bottle.files[0][0]"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
