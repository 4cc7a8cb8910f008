// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the kegbrew CLI.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for fixing it. The Issue catalog holds one Markdown
// remediation page per failure class, rendered with glamour.
package issue
