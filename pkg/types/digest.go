// SPDX-License-Identifier: MPL-2.0

// Package types defines small value types shared by the formula model, the
// fetchers and the keg store. It is a leaf package and imports only the
// standard library.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDigest is the sentinel error wrapped by InvalidDigestError.
var ErrInvalidDigest = errors.New("invalid sha256 digest")

type (
	// Digest is a lowercase hex-encoded SHA-256 content hash.
	// The zero value means "no digest", which only head references may use.
	Digest string

	// InvalidDigestError is returned when a Digest is not 64 lowercase hex characters.
	InvalidDigestError struct {
		Value Digest
	}
)

// Error implements the error interface.
func (e *InvalidDigestError) Error() string {
	return fmt.Sprintf("invalid sha256 digest %q (want 64 lowercase hex characters)", string(e.Value))
}

// Unwrap returns ErrInvalidDigest for errors.Is() compatibility.
func (e *InvalidDigestError) Unwrap() error { return ErrInvalidDigest }

// DigestOf returns the SHA-256 digest of b.
func DigestOf(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// String returns the hex string.
func (d Digest) String() string { return string(d) }

// IsZero reports whether no digest was recorded.
func (d Digest) IsZero() bool { return d == "" }

// Short returns the first 12 characters, for log lines.
func (d Digest) Short() string {
	if len(d) <= 12 {
		return string(d)
	}
	return string(d[:12])
}

// IsValid returns whether the Digest is a well-formed SHA-256 hex string.
// The zero value is not valid; callers that allow a missing digest check IsZero first.
func (d Digest) IsValid() (bool, []error) {
	if len(d) != sha256.Size*2 || strings.ToLower(string(d)) != string(d) {
		return false, []error{&InvalidDigestError{Value: d}}
	}
	if _, err := hex.DecodeString(string(d)); err != nil {
		return false, []error{&InvalidDigestError{Value: d}}
	}
	return true, nil
}
