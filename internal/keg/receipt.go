// SPDX-License-Identifier: MPL-2.0

package keg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
	"github.com/kegbrew/kegbrew/pkg/types"
)

// ReceiptFile is the name of the receipt inside every keg.
const ReceiptFile = "INSTALL_RECEIPT.toml"

const (
	// SourceBottle marks a keg poured from a bottle.
	SourceBottle Source = "bottle"
	// SourceBuilt marks a keg built from source.
	SourceBuilt Source = "built"
)

const (
	VerificationPassed Verification = "passed"
	VerificationFailed Verification = "failed"
	VerificationNotRun Verification = "not_run"
)

// ErrNotInstalled is returned when a keg has no receipt.
var ErrNotInstalled = errors.New("not installed")

type (
	// Source is how a keg came to be.
	Source string

	// Verification is the outcome of the smoke test recorded in a receipt.
	Verification string

	// Receipt is the record written into a keg after a successful install.
	Receipt struct {
		Name         formula.Name       `toml:"name"`
		Version      string             `toml:"version"`
		Source       Source             `toml:"source"`
		BottleTag    string             `toml:"bottle_tag,omitempty"`
		Head         bool               `toml:"head,omitempty"`
		Fingerprint  ReceiptFingerprint `toml:"fingerprint"`
		RuntimeDeps  []string           `toml:"runtime_dependencies"`
		Verification Verification       `toml:"verification"`
		Digest       types.Digest       `toml:"digest"`
		InstalledAt  time.Time          `toml:"installed_at"`
	}

	// ReceiptFingerprint is the platform a keg was installed for.
	ReceiptFingerprint struct {
		OS              string `toml:"os"`
		OSVersion       string `toml:"os_version"`
		Arch            string `toml:"arch"`
		CompilerFamily  string `toml:"compiler_family"`
		CompilerVersion string `toml:"compiler_version"`
	}
)

// FingerprintOf converts fp for storage in a receipt.
func FingerprintOf(fp platform.Fingerprint) ReceiptFingerprint {
	return ReceiptFingerprint{
		OS:              string(fp.OS),
		OSVersion:       fp.OSVersion,
		Arch:            string(fp.Arch),
		CompilerFamily:  string(fp.Compiler.Family),
		CompilerVersion: fp.Compiler.Version,
	}
}

// WriteReceipt stores r in kegPath, replacing any previous receipt atomically.
func WriteReceipt(kegPath string, r *Receipt) error {
	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	dest := filepath.Join(kegPath, ReceiptFile)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write receipt: %w", err)
	}
	return nil
}

// ReadReceipt loads the receipt in kegPath. A keg without one is reported
// with ErrNotInstalled, since an install only writes the receipt last.
func ReadReceipt(kegPath string) (*Receipt, error) {
	data, err := os.ReadFile(filepath.Join(kegPath, ReceiptFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", kegPath, ErrNotInstalled)
	}
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	var r Receipt
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", kegPath, err)
	}
	return &r, nil
}

// Installed returns the receipt of name at version, or ErrNotInstalled.
func (l Layout) Installed(name formula.Name, version string) (*Receipt, error) {
	return ReadReceipt(l.KegPath(name, version))
}

// InstalledVersions lists the versions of name that carry a receipt.
func (l Layout) InstalledVersions(name formula.Name) ([]string, error) {
	entries, err := os.ReadDir(l.RackPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.RackPath(name), e.Name(), ReceiptFile)); err == nil {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
