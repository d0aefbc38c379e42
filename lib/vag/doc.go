// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vag searches for setpos coordinates that produce a vertical
// angle glitch (VAG) through a pair of linked portals.
//
// The search teleports the player to the entry portal's center and then
// walks one coordinate, the axis the entry portal's normal points along
// most, by one float32 step per probe. After each probe a [Policy]
// reports where the player ended up:
//
//   - still in front of the entry portal: step further into it
//   - teleported to the exit portal: step back out
//   - somewhere else: the glitch happened, the probe's setpos works
//
// The first probe that lands at either portal locks the walk direction.
// Landing on the other side later means the window between "not far
// enough" and "too far" is narrower than one float32 step along this
// axis, and the search fails. A search never issues more than
// [DefaultMaxProbes] probes.
package vag
