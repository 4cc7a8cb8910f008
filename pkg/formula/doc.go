// SPDX-License-Identifier: MPL-2.0

// Package formula defines the formula descriptor: one package definition
// naming its sources, conditional dependencies, prebuilt bottles, toolchain
// constraints, install steps, smoke test and caveats.
//
// Descriptors are CUE documents validated against an embedded #Formula
// schema and then by Validate, which collects every cross-field problem the
// schema cannot express. Conditional parts carry a platform.Predicate and are
// filtered against a Fingerprint by the *For helpers; nothing here probes the
// host.
package formula
