// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc implements the command channel to an SPT-instrumented
// game: a persistent TCP connection carrying UTF-8 JSON objects, each
// terminated by a single NUL byte, with no length prefix.
//
// Outgoing frames have the shape {"type":"cmd","cmd":"..."}. Incoming
// frames carry a "type" field: "ack" is sent for every command and is
// ignored, "echo" carries the text of a y_spt_ipc_echo command, and
// every other type (entity properties, the game directory, ...) is
// handed back to the caller verbatim.
//
// [Conn.Send] appends a y_spt_ipc_echo directive carrying the caller's
// watermark to the command and blocks until that exact watermark comes
// back as an echo. The wait is bounded: each poll has a 20 ms read
// deadline and ten empty polls fail the call with [ErrProtocolTimeout].
// Echoes carrying any other watermark are stragglers from an earlier
// command; they are logged and discarded.
//
// Conn does not serialize callers beyond guarding its own socket. The
// one-command-in-flight rule is enforced by lib/session.
package ipc
