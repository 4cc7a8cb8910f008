// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers cover file trees (WriteTree, ReadTree, MustWriteFile),
// directory operations (MustMkdirAll) and resource cleanup (MustClose).
// Formula fixtures live in the formulatest subpackage.
package testutil
