// SPDX-License-Identifier: MPL-2.0

// Package lock provides per-formula exclusive locks that serialise installs
// of the same formula across kegbrew processes sharing a prefix.
package lock

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// pollInterval is how often a contended lock is retried while waiting.
const pollInterval = 50 * time.Millisecond

// ErrInvalidLockName is returned for names that cannot be used as a lock file name.
var ErrInvalidLockName = errors.New("invalid lock name")

// Locker hands out named locks backed by files in Dir.
type Locker struct {
	Dir string
}

// New returns a Locker that keeps its lock files in dir.
func New(dir string) *Locker {
	return &Locker{Dir: dir}
}

func (l *Locker) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidLockName, name)
	}
	return filepath.Join(l.Dir, name+".lock"), nil
}
