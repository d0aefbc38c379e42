// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect on an open Conn.
	ErrAlreadyConnected = errors.New("ipc: already connected")

	// ErrNotConnected is returned by Send on a Conn that was never
	// connected or has been closed.
	ErrNotConnected = errors.New("ipc: not connected")

	// ErrConnectFailed wraps the transport error from a failed dial.
	ErrConnectFailed = errors.New("ipc: connect failed")

	// ErrProtocolTimeout is returned when the watermark echo did not
	// arrive within the retry limit.
	ErrProtocolTimeout = errors.New("ipc: watermark echo not received before retry limit")

	// ErrStaleWatermark describes an echo carrying a watermark other
	// than the outstanding one. It is logged, never returned.
	ErrStaleWatermark = errors.New("ipc: stale watermark discarded")

	// ErrPeerClosed is returned when the peer closes the connection
	// while a command is in flight.
	ErrPeerClosed = errors.New("ipc: peer closed the connection")
)
