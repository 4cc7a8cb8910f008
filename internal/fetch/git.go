// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Git checks out head references with a shallow single-branch clone.
type Git struct{}

// Fetch implements Fetcher. The returned path is the checkout directory.
// Any previous checkout at the same location is replaced, since a head
// reference is expected to move.
func (Git) Fetch(ctx context.Context, ref Reference, destDir string) (string, error) {
	dest := filepath.Join(destDir, headDirName(ref))
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("clear %s: %w", dest, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare %s: %w", destDir, err)
	}

	opts := &git.CloneOptions{
		URL:          ref.URL,
		SingleBranch: true,
		Depth:        1,
	}
	if ref.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref.Branch)
	}

	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		os.RemoveAll(dest)
		if errors.Is(err, transport.ErrRepositoryNotFound) || errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", &Error{Kind: KindNotFound, URL: ref.URL, Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &Error{Kind: KindNetwork, URL: ref.URL, Err: err}
	}
	return dest, nil
}

func headDirName(ref Reference) string {
	name := ref.Name
	if name == "" {
		name = strings.TrimSuffix(path.Base(urlPath(ref.URL)), ".git")
	}
	if ref.Branch != "" {
		name += "--" + strings.ReplaceAll(ref.Branch, "/", "_")
	}
	return name + "--head"
}
