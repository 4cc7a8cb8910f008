// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File fetches plain paths and file:// URLs by copying them into destDir.
type File struct{}

// Fetch implements Fetcher.
func (File) Fetch(ctx context.Context, ref Reference, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src := strings.TrimPrefix(ref.URL, "file://")
	dest := filepath.Join(destDir, ref.FileName())
	if cached(dest, ref.SHA256) {
		return dest, nil
	}

	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &Error{Kind: KindNotFound, URL: ref.URL, Err: err}
	}
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: ref.URL, Err: err}
	}
	defer f.Close()

	if err := copyVerified(f, dest, ref.SHA256, ref.URL); err != nil {
		return "", err
	}
	return dest, nil
}
