// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for vagsearch
// binaries. These functions centralize the raw I/O that happens before
// or after the structured logger exists:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized.
//   - Process exit after an unrecoverable error in main(), honoring
//     errors that carry their own exit code.
package process
