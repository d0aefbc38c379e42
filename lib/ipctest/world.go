// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipctest

import (
	"fmt"
	"strconv"

	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/spt"
)

// NoEntity marks an unset entity reference in a World.
const NoEntity = -1

// Player heights in world units. setpos places the player's origin (its
// feet), so the center sits half a height above it.
const (
	CrouchedHalfHeight = 18
	StandingHalfHeight = 36
)

// NudgeNotice is the console line SPT prints when the engine pushes an
// entity out of a position it would otherwise crash in.
const NudgeNotice = "spt: nudging entity 1"

// Player is the simulated local player, entity index 0.
type Player struct {
	Origin      geom.Vec3 `json:"origin"`
	Crouched    bool      `json:"crouched"`
	Noclip      bool      `json:"noclip"`
	Environment int       `json:"environment"`
}

// HalfHeight returns the distance from the player's origin to its
// center.
func (p Player) HalfHeight() float32 {
	if p.Crouched {
		return CrouchedHalfHeight
	}
	return StandingHalfHeight
}

// Portal is one simulated portal entity.
type Portal struct {
	Index     int       `json:"index"`
	Origin    geom.Vec3 `json:"origin"`
	Angles    geom.Vec3 `json:"angles"`
	Activated bool      `json:"activated"`
	Linked    int       `json:"linked"`
	Orange    bool      `json:"orange"`
}

// Boundary places the glitch window for setpos probes at one portal.
//
// Probes are measured in float32 steps along the portal's dominant axis,
// counted into the portal (against its normal) from the portal origin.
// A probe whose player center lies fewer than Start steps in stays in
// front of the portal. Probes in [Start, Start+Width) trigger the glitch:
// the player lands at Destination, or, with Crash set, SPT prints
// [NudgeNotice] and the player stays. Deeper probes teleport the player
// through to the linked portal.
type Boundary struct {
	Portal      int       `json:"portal"`
	Start       int64     `json:"start"`
	Width       int64     `json:"width"`
	Crash       bool      `json:"crash"`
	Destination geom.Vec3 `json:"destination"`
}

// World is the game state a Peer serves. It is not safe for concurrent
// use; Peer serializes access.
type World struct {
	GameDir  string    `json:"game_dir"`
	Player   Player    `json:"player"`
	Portals  []Portal  `json:"portals"`
	Boundary *Boundary `json:"boundary,omitempty"`

	// Probes counts setpos commands.
	Probes int `json:"-"`
}

// Portal returns the portal with the given index.
func (w *World) Portal(index int) (*Portal, bool) {
	for i := range w.Portals {
		if w.Portals[i].Index == index {
			return &w.Portals[i], true
		}
	}
	return nil, false
}

// Validate checks that portal references resolve.
func (w *World) Validate() error {
	seen := make(map[int]bool, len(w.Portals))
	for _, portal := range w.Portals {
		if portal.Index <= spt.PlayerIndex {
			return fmt.Errorf("ipctest: portal index %d collides with the player", portal.Index)
		}
		if seen[portal.Index] {
			return fmt.Errorf("ipctest: duplicate portal index %d", portal.Index)
		}
		seen[portal.Index] = true
	}
	for _, portal := range w.Portals {
		if portal.Linked != NoEntity && !seen[portal.Linked] {
			return fmt.Errorf("ipctest: portal %d links to unknown portal %d", portal.Index, portal.Linked)
		}
	}
	if w.Boundary != nil {
		portal, ok := w.Portal(w.Boundary.Portal)
		if !ok {
			return fmt.Errorf("ipctest: boundary references unknown portal %d", w.Boundary.Portal)
		}
		if portal.Linked == NoEntity {
			return fmt.Errorf("ipctest: boundary portal %d is not linked", portal.Index)
		}
		if w.Boundary.Width < 0 {
			return fmt.Errorf("ipctest: boundary width %d is negative", w.Boundary.Width)
		}
	}
	return nil
}

// handle encodes an entity index as an entity handle.
func handle(index int) int64 {
	if index == NoEntity {
		return spt.InvalidHandle
	}
	return int64(index + 1)
}

func boolProperty(value bool) int {
	if value {
		return 1
	}
	return 0
}

func putVector(properties map[string]any, name string, vector geom.Vec3) {
	for i, component := range vector {
		properties[name+"["+strconv.Itoa(i)+"]"] = component
	}
}

// Entity returns every property of the entity at index, or false when
// there is no such entity.
func (w *World) Entity(index int) (map[string]any, bool) {
	properties := make(map[string]any)
	if index == spt.PlayerIndex {
		flags := 1
		if w.Player.Crouched {
			flags |= spt.FlagDucking
		}
		properties[spt.PropFlags] = flags
		properties[spt.PropAnimatedEveryTick] = boolProperty(!w.Player.Noclip)
		properties[spt.PropPortalEnvironment] = handle(w.Player.Environment)
		putVector(properties, spt.PropOrigin, w.Player.Origin)
		return properties, true
	}

	portal, ok := w.Portal(index)
	if !ok {
		return nil, false
	}
	putVector(properties, spt.PropOrigin, portal.Origin)
	putVector(properties, spt.PropAngles, portal.Angles)
	properties[spt.PropActivated] = boolProperty(portal.Activated)
	properties[spt.PropLinkedPortal] = handle(portal.Linked)
	properties[spt.PropIsPortal2] = boolProperty(portal.Orange)
	return properties, true
}

// Properties returns the named properties of the entity at index.
// Vector names expand to their three indexed components. Unknown names
// are omitted.
func (w *World) Properties(index int, names []string) (map[string]any, bool) {
	all, ok := w.Entity(index)
	if !ok {
		return nil, false
	}
	selected := make(map[string]any, len(names))
	for _, name := range names {
		if value, ok := all[name]; ok {
			selected[name] = value
			continue
		}
		for i := 0; i < 3; i++ {
			component := name + "[" + strconv.Itoa(i) + "]"
			if value, ok := all[component]; ok {
				selected[component] = value
			}
		}
	}
	return selected, true
}

// FindPortals returns the console output of y_spt_find_portals. Printed
// indices are one-based.
func (w *World) FindPortals() []string {
	lines := make([]string, 0, len(w.Portals))
	for _, portal := range w.Portals {
		color := "blue"
		if portal.Orange {
			color = "orange"
		}
		lines = append(lines, fmt.Sprintf("%s portal with index %d at %s",
			color, portal.Index+1, portal.Origin))
	}
	return lines
}

// SetPos moves the player origin to position and applies the boundary.
// It returns console output produced by the move.
func (w *World) SetPos(position geom.Vec3) []string {
	w.Probes++
	w.Player.Origin = position
	w.Player.Environment = NoEntity

	if w.Boundary == nil {
		return nil
	}
	entry, _ := w.Portal(w.Boundary.Portal)
	normal := geom.AnglesToVector(entry.Angles)
	axis := normal.ArgMaxAbs()

	center := position
	center[2] += w.Player.HalfHeight()
	depth := geom.ULPDistance(entry.Origin[axis], center[axis])
	if normal[axis] > 0 {
		depth = -depth
	}

	switch {
	case depth < w.Boundary.Start:
		w.Player.Environment = entry.Index
	case depth < w.Boundary.Start+w.Boundary.Width:
		if w.Boundary.Crash {
			w.Player.Environment = entry.Index
			return []string{NudgeNotice}
		}
		w.Player.Origin = w.Boundary.Destination
	default:
		exit, _ := w.Portal(entry.Linked)
		w.Player.Origin = exit.Origin
		w.Player.Origin[2] -= w.Player.HalfHeight()
		w.Player.Environment = exit.Index
	}
	return nil
}
