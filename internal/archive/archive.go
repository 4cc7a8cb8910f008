// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks source tarballs and bottles.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// ErrUnsafePath is returned when an entry would land outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Extract unpacks the tar archive at src into dest, dropping the first
// strip path components of every entry. Compression is detected from
// the content, not the file name: gzip, xz and uncompressed tar are
// accepted.
func Extract(src, dest string, strip int) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompress(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	defer closeFn()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if err := untar(tar.NewReader(r), dest, strip); err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	return nil
}

// IsArchive reports whether path starts with a gzip or xz header, or
// carries a .tar suffix.
func IsArchive(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(xzMagic))
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	return bytes.HasPrefix(head, gzipMagic) || bytes.HasPrefix(head, xzMagic) || strings.HasSuffix(path, ".tar")
}

func decompress(br *bufio.Reader) (io.Reader, func(), error) {
	head, _ := br.Peek(len(xzMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("xz: %w", err)
		}
		return xr, func() {}, nil
	default:
		return br, func() {}, nil
	}
}

func untar(tr *tar.Reader, dest string, strip int) error {
	root, err := os.OpenRoot(dest)
	if err != nil {
		return fmt.Errorf("open %s: %w", dest, err)
	}
	defer root.Close()

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		name, ok := stripComponents(hdr.Name, strip)
		if !ok {
			continue
		}
		if !filepath.IsLocal(name) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}
		mode := hdr.FileInfo().Mode()

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, mode.Perm()|0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(root, name, tr, mode.Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLink(name, hdr.Linkname); err != nil {
				return err
			}
			if err := mkParent(root, name); err != nil {
				return err
			}
			root.Remove(name)
			if err := root.Symlink(hdr.Linkname, name); err != nil {
				return err
			}
			// Earlier links can turn a local-looking target into an escape.
			if _, err := root.Stat(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
				root.Remove(name)
				return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
		case tar.TypeLink:
			linkName, ok := stripComponents(hdr.Linkname, strip)
			if !ok || !filepath.IsLocal(linkName) {
				return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
			}
			if err := mkParent(root, name); err != nil {
				return err
			}
			root.Remove(name)
			if err := root.Link(linkName, name); err != nil {
				return err
			}
		default:
			// Devices, fifos and pax metadata have no place in a keg.
		}
	}
}

func mkParent(root *os.Root, name string) error {
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}
	return root.MkdirAll(dir, 0o755)
}

func writeFile(root *os.Root, name string, r io.Reader, perm os.FileMode) error {
	if err := mkParent(root, name); err != nil {
		return err
	}
	f, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// checkLink rejects symlinks whose target resolves outside the archive root.
func checkLink(name, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, name, link)
	}
	resolved := filepath.Join(filepath.Dir(name), link)
	if !filepath.IsLocal(resolved) && resolved != "." {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, name, link)
	}
	return nil
}

func stripComponents(name string, n int) (string, bool) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	name = strings.TrimSuffix(name, "/")
	parts := strings.Split(name, "/")
	if len(parts) <= n {
		return "", false
	}
	rest := strings.Join(parts[n:], "/")
	if rest == "" {
		return "", false
	}
	return filepath.FromSlash(rest), true
}
