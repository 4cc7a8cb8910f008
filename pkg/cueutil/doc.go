// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE decode flow shared by formula descriptors and
// the configuration file: compile the embedded schema, unify the user data with
// a root definition, validate, and decode into a Go struct. Failures come back
// as *Error values whose issues carry JSON-style paths ("install[2].args").
package cueutil
