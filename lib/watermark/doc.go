// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watermark generates and recognizes the one-time tokens that
// mark the end of a command's effects.
//
// Every command sent to the peer carries a fresh [Token]. The peer is
// asked to echo the token back, once through the command channel and
// optionally once through the console log. Seeing the current token on
// a channel means everything the command produced on that channel has
// already arrived. Tokens from earlier commands that straggle in late
// are recognized by the grammar but rejected because they do not equal
// the outstanding token.
//
// The textual grammar is the literal prefix "magic" followed by zero or
// more decimal digits. A bare "magic" matches the grammar but carries no
// token.
package watermark
