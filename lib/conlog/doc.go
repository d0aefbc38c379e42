// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package conlog tails the console log that the game mirrors its
// console output into (enabled with con_logfile).
//
// The log is an append-only text file written by the game with some
// disk latency, so a reader cannot tell from EOF alone whether a
// command's output is complete. The synchronization layer therefore
// appends "echo magic<N>" to every command whose console output it
// wants, and [Tail.Drain] reads until the line carrying the current
// watermark appears, waiting 20 ms between passes and giving up after
// ten.
//
// The game does not always terminate echoed lines, so two watermarks
// (or a watermark and unrelated output) can share one physical line.
// Drain splits a line at its watermark: the text before the match
// belongs to the current command, the text after it is pushed back and
// becomes the first line read by the next Drain.
package conlog
