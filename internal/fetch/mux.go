// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"strings"
)

// Mux dispatches to the fetcher matching a reference: Git for head
// references, HTTP for http(s) URLs and File for everything else.
type Mux struct {
	File Fetcher
	HTTP Fetcher
	Git  Fetcher
}

// NewMux returns a Mux wired to the default adapters.
func NewMux(userAgent string) *Mux {
	return &Mux{File: File{}, HTTP: &HTTP{UserAgent: userAgent}, Git: Git{}}
}

// Fetch implements Fetcher.
func (m *Mux) Fetch(ctx context.Context, ref Reference, destDir string) (string, error) {
	var f Fetcher
	switch {
	case ref.Head:
		f = m.Git
	case isRemote(ref.URL):
		f = m.HTTP
	case strings.Contains(ref.URL, "://") && !strings.HasPrefix(ref.URL, "file://"):
		return "", &Error{Kind: KindNotFound, URL: ref.URL, Err: fmt.Errorf("unsupported scheme")}
	default:
		f = m.File
	}
	if f == nil {
		return "", &Error{Kind: KindNetwork, URL: ref.URL, Err: fmt.Errorf("no fetcher configured")}
	}
	if !ref.Head && ref.SHA256.IsZero() {
		return "", &Error{Kind: KindHashMismatch, URL: ref.URL, Err: fmt.Errorf("no sha256 for immutable reference")}
	}
	return f.Fetch(ctx, ref, destDir)
}
