// SPDX-License-Identifier: MPL-2.0

// Package config loads kegbrew configuration using Viper with CUE as the
// file format.
//
// The file is config.cue in the kegbrew config directory
// ($XDG_CONFIG_HOME/kegbrew on Linux, ~/Library/Application Support/kegbrew
// on macOS), or the file passed with --config. It is validated against the
// embedded #Config schema before being merged over the defaults, and
// KEGBREW_* environment variables override both (KEGBREW_JOBS,
// KEGBREW_PLATFORM_COMPILER_VERSION, ...).
package config
