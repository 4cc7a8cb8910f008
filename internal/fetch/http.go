// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
)

// HTTP fetches http(s) URLs. Deadlines come from the caller's context.
type HTTP struct {
	Client    *http.Client
	UserAgent string
}

// Fetch implements Fetcher.
func (h *HTTP) Fetch(ctx context.Context, ref Reference, destDir string) (string, error) {
	dest := filepath.Join(destDir, ref.FileName())
	if cached(dest, ref.SHA256) {
		return dest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: ref.URL, Err: err}
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, URL: ref.URL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", &Error{Kind: KindNotFound, URL: ref.URL}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &Error{Kind: KindNetwork, URL: ref.URL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := copyVerified(resp.Body, dest, ref.SHA256, ref.URL); err != nil {
		return "", err
	}
	return dest, nil
}
