// SPDX-License-Identifier: MPL-2.0

// Package fetch retrieves sources, bottles and test fixtures into a local
// directory and checks their content hash. Fetchers never retry; a failed
// fetch is reported once as an *Error of kind network, hash_mismatch or
// not_found and the caller decides what to do.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kegbrew/kegbrew/pkg/types"
)

const (
	// KindNetwork covers transport failures and unexpected server responses.
	KindNetwork Kind = "network"
	// KindHashMismatch means the content does not match the expected digest.
	KindHashMismatch Kind = "hash_mismatch"
	// KindNotFound means the referenced object does not exist.
	KindNotFound Kind = "not_found"
)

// ErrFetch is the sentinel error wrapped by Error.
var ErrFetch = errors.New("fetch failed")

type (
	// Kind classifies a fetch failure.
	Kind string

	// Reference names something to fetch. An empty SHA256 is only allowed
	// for head references, which track a moving branch.
	Reference struct {
		URL    string
		SHA256 types.Digest
		Head   bool
		Branch string
		// Name overrides the file name derived from the URL.
		Name string
	}

	// Fetcher materialises a Reference below destDir and returns the local
	// path: a file for archives, a directory for head checkouts.
	Fetcher interface {
		Fetch(ctx context.Context, ref Reference, destDir string) (string, error)
	}

	// Error is a classified fetch failure.
	Error struct {
		Kind     Kind
		URL      string
		Expected types.Digest
		Actual   types.Digest
		Err      error
	}
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindHashMismatch:
		return fmt.Sprintf("fetch %s: sha256 mismatch (expected %s, got %s)", e.URL, e.Expected, e.Actual)
	case KindNotFound:
		return fmt.Sprintf("fetch %s: not found", e.URL)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s error", e.URL, e.Kind)
	}
}

// Unwrap returns both ErrFetch and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// FileName is the local file name for ref: Name if set, otherwise the last
// URL path element prefixed with a short digest so that different
// artifacts with the same base name do not collide.
func (ref Reference) FileName() string {
	base := ref.Name
	if base == "" {
		base = path.Base(urlPath(ref.URL))
	}
	if base == "" || base == "." || base == "/" {
		base = "download"
	}
	if ref.SHA256.IsZero() {
		return base
	}
	return ref.SHA256.Short() + "--" + base
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

// copyVerified streams r into dest while hashing it. On a digest mismatch
// the partial file is removed.
func copyVerified(r io.Reader, dest string, want types.Digest, rawURL string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", filepath.Dir(dest), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(h, tmp), r); err != nil {
		tmp.Close()
		return &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	got := types.Digest(hex.EncodeToString(h.Sum(nil)))
	if !want.IsZero() && got != want {
		return &Error{Kind: KindHashMismatch, URL: rawURL, Expected: want, Actual: got}
	}
	return os.Rename(tmpName, dest)
}

// cached reports whether dest already holds content with digest want.
func cached(dest string, want types.Digest) bool {
	if want.IsZero() {
		return false
	}
	f, err := os.Open(dest)
	if err != nil {
		return false
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return types.Digest(hex.EncodeToString(h.Sum(nil))) == want
}

func isRemote(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
