// SPDX-License-Identifier: MPL-2.0

package keg

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kegbrew/kegbrew/internal/archive"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

// ErrKegExists is returned when pouring or building into an occupied keg path.
var ErrKegExists = errors.New("keg already exists")

// Pour unpacks a bottle archive into kegPath. Bottles are laid out as
// <name>/<version>/..., so the first two components are stripped. For
// relocatable bottles the prefix and cellar placeholders in text files are
// rewritten to l's paths. On error nothing is left at kegPath.
func (l Layout) Pour(archivePath, kegPath string, cellar formula.Cellar) error {
	if _, err := os.Lstat(kegPath); err == nil {
		return fmt.Errorf("%s: %w", kegPath, ErrKegExists)
	}
	if err := archive.Extract(archivePath, kegPath, 2); err != nil {
		os.RemoveAll(kegPath)
		return fmt.Errorf("pour: %w", err)
	}
	if cellar.NeedsRewrite() {
		if err := l.relocate(kegPath); err != nil {
			os.RemoveAll(kegPath)
			return fmt.Errorf("relocate: %w", err)
		}
	}
	return nil
}

func (l Layout) relocate(kegPath string) error {
	replacer := [][2][]byte{
		{[]byte(PrefixPlaceholder), []byte(l.Prefix)},
		{[]byte(CellarPlaceholder), []byte(l.Cellar)},
	}
	return filepath.WalkDir(kegPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		// Binary files keep their placeholders; only text is rewritten.
		if bytes.IndexByte(data, 0) >= 0 {
			return nil
		}
		out := data
		for _, r := range replacer {
			out = bytes.ReplaceAll(out, r[0], r[1])
		}
		if bytes.Equal(out, data) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.WriteFile(path, out, info.Mode().Perm())
	})
}

// Link points the opt link of name at kegPath, replacing an existing link.
func (l Layout) Link(name formula.Name, kegPath string) error {
	opt := l.OptPath(name)
	if err := os.MkdirAll(filepath.Dir(opt), 0o755); err != nil {
		return err
	}
	target, err := filepath.Rel(filepath.Dir(opt), kegPath)
	if err != nil {
		target = kegPath
	}
	tmp := opt + ".new"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("link %s: %w", name, err)
	}
	if err := os.Rename(tmp, opt); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("link %s: %w", name, err)
	}
	return nil
}

// Remove deletes kegPath and, if it was the last version, the empty rack.
func (l Layout) Remove(kegPath string) error {
	if err := os.RemoveAll(kegPath); err != nil {
		return err
	}
	rack := filepath.Dir(kegPath)
	if entries, err := os.ReadDir(rack); err == nil && len(entries) == 0 {
		os.Remove(rack)
	}
	return nil
}
