// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/kegbrew/kegbrew/pkg/types"
)

func TestFile_Fetch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "hello-1.0.tar.gz")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := types.DigestOf([]byte("hello"))

	tests := []struct {
		name     string
		ref      Reference
		wantKind Kind
	}{
		{"match", Reference{URL: src, SHA256: good}, ""},
		{"file url", Reference{URL: "file://" + src, SHA256: good}, ""},
		{"mismatch", Reference{URL: src, SHA256: types.DigestOf([]byte("other"))}, KindHashMismatch},
		{"missing", Reference{URL: filepath.Join(dir, "nope"), SHA256: good}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dest := t.TempDir()
			got, err := File{}.Fetch(context.Background(), tt.ref, dest)
			if tt.wantKind != "" {
				var fe *Error
				if !errors.As(err, &fe) || fe.Kind != tt.wantKind {
					t.Fatalf("Fetch() error = %v, want kind %s", err, tt.wantKind)
				}
				if !errors.Is(err, ErrFetch) {
					t.Errorf("errors.Is(err, ErrFetch) = false")
				}
				entries, _ := os.ReadDir(dest)
				if len(entries) != 0 {
					t.Errorf("partial files left behind: %v", entries)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			data, err := os.ReadFile(got)
			if err != nil || string(data) != "hello" {
				t.Errorf("fetched content = %q, %v", data, err)
			}
		})
	}
}

func TestHTTP_Fetch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/src.tar.gz":
			hits.Add(1)
			w.Write([]byte("payload"))
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	h := &HTTP{Client: srv.Client(), UserAgent: "kegbrew-test"}
	good := types.DigestOf([]byte("payload"))
	dest := t.TempDir()

	path, err := h.Fetch(context.Background(), Reference{URL: srv.URL + "/src.tar.gz", SHA256: good}, dest)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "payload" {
		t.Errorf("content = %q", data)
	}

	// A verified cached copy is reused.
	if _, err := h.Fetch(context.Background(), Reference{URL: srv.URL + "/src.tar.gz", SHA256: good}, dest); err != nil {
		t.Fatal(err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}

	errTests := []struct {
		name string
		ref  Reference
		kind Kind
	}{
		{"not found", Reference{URL: srv.URL + "/missing", SHA256: good}, KindNotFound},
		{"server error", Reference{URL: srv.URL + "/broken", SHA256: good}, KindNetwork},
		{"mismatch", Reference{URL: srv.URL + "/src.tar.gz", SHA256: types.DigestOf([]byte("x")), Name: "other"}, KindHashMismatch},
	}
	for _, tt := range errTests {
		_, err := h.Fetch(context.Background(), tt.ref, t.TempDir())
		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != tt.kind {
			t.Errorf("%s: Fetch() error = %v, want kind %s", tt.name, err, tt.kind)
		}
	}
}

func TestHTTP_Fetch_HonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := (&HTTP{Client: srv.Client()}).Fetch(ctx, Reference{URL: srv.URL + "/slow", SHA256: types.DigestOf(nil)}, t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}
}

type recordingFetcher struct{ calls []Reference }

func (r *recordingFetcher) Fetch(_ context.Context, ref Reference, _ string) (string, error) {
	r.calls = append(r.calls, ref)
	return "ok", nil
}

func TestMux_Dispatch(t *testing.T) {
	t.Parallel()

	file, web, repo := &recordingFetcher{}, &recordingFetcher{}, &recordingFetcher{}
	m := &Mux{File: file, HTTP: web, Git: repo}
	sum := types.DigestOf([]byte("x"))

	ctx := context.Background()
	for _, ref := range []Reference{
		{URL: "/tmp/a.tar.gz", SHA256: sum},
		{URL: "file:///tmp/a.tar.gz", SHA256: sum},
		{URL: "https://example.org/a.tar.gz", SHA256: sum},
		{URL: "https://example.org/repo.git", Head: true},
	} {
		if _, err := m.Fetch(ctx, ref, t.TempDir()); err != nil {
			t.Fatalf("Fetch(%s) error: %v", ref.URL, err)
		}
	}
	if len(file.calls) != 2 || len(web.calls) != 1 || len(repo.calls) != 1 {
		t.Errorf("dispatch counts file=%d http=%d git=%d", len(file.calls), len(web.calls), len(repo.calls))
	}

	if _, err := m.Fetch(ctx, Reference{URL: "ftp://example.org/a", SHA256: sum}, t.TempDir()); err == nil {
		t.Error("unsupported scheme accepted")
	}
	_, err := m.Fetch(ctx, Reference{URL: "https://example.org/a"}, t.TempDir())
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindHashMismatch {
		t.Errorf("missing sha256 error = %v, want hash_mismatch", err)
	}
}

func TestGit_Fetch(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	origin := t.TempDir()
	repo, err := git.PlainInit(origin, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(origin, "configure"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("configure"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.org", When: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir()
	ref := Reference{URL: origin, Head: true, Branch: head.Name().Short(), Name: "tool"}
	got, err := Git{}.Fetch(context.Background(), ref, dest)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(got, "configure")); err != nil {
		t.Errorf("checkout missing file: %v", err)
	}

	_, err = Git{}.Fetch(context.Background(), Reference{URL: origin, Head: true, Branch: "no-such-branch"}, dest)
	if !errors.Is(err, ErrFetch) {
		t.Errorf("missing branch error = %v, want ErrFetch", err)
	}
}
