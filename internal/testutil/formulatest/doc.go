// SPDX-License-Identifier: MPL-2.0

// Package formulatest builds formula fixtures for tests. Fixtures start
// minimal (a name, a version and a local source) and are customised with
// options, so tests state only what they depend on.
package formulatest
