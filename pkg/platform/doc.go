// SPDX-License-Identifier: MPL-2.0

// Package platform models the target platform of an installation: the
// Fingerprint value, the Predicate attached to conditional dependencies,
// install steps and caveats, and the bottle Tag grammar.
//
// Fingerprints are plain values. Detect builds one from the host through an
// injectable Probe; everything else in kegbrew receives the value and never
// inspects the host again.
package platform
