// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipctest provides a fake SPT peer for tests and for the
// spt-mock binary.
//
// [Peer] speaks the IPC wire protocol on a loopback TCP listener: it
// acknowledges every command, answers y_spt_ipc_echo, y_spt_ipc_gamedir,
// y_spt_ipc_ent and y_spt_ipc_properties over IPC, and writes console
// output (echo, y_spt_find_portals, nudge notices) to the con_logfile
// mirror in the game directory, the way the game does.
//
// Game state lives in a [World]: the player, the portals, and an
// optional [Boundary] describing where along the entry portal's dominant
// axis a setpos produces a glitch. Worlds are usually loaded from JSONC
// scenario files with [ParseScenario] or [ReadScenario].
package ipctest
