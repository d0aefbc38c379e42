// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "errors"

var (
	// ErrNotConnected is returned by every operation after Close.
	ErrNotConnected = errors.New("session: not connected")

	// ErrSideChannelUnavailable is returned by Open when the console
	// log file never appeared in the game directory.
	ErrSideChannelUnavailable = errors.New("session: console log file was not created")

	// ErrConsoleDisabled is returned by console operations on a
	// session opened without a console log file.
	ErrConsoleDisabled = errors.New("session: console log reading is not enabled")
)
