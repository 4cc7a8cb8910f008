// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the kegbrew command-line interface.
//
// Every command builds its collaborators from the loaded configuration
// through an App, so tests can substitute the config provider, the host
// probe and the output streams.
package cmd
