// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the vagsearch
// binary: a [Command] tree with pflag flag sets, typo suggestions for
// unknown commands and flags, and structured help output.
//
// It also carries the presentation helpers shared across subcommands.
// [NewLogger] picks a slog handler for stderr, [Styles] renders search
// outcomes with lipgloss, and [WriteJSON] prints JSON, highlighted when
// stdout is a terminal.
package cli
