// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vag

import (
	"github.com/spt-tools/vagsearch/lib/geom"
)

// Classification is where a probe left the player.
type Classification int

const (
	// NearEntry means the player stayed at the entry portal.
	NearEntry Classification = iota + 1

	// NearExit means the player was teleported to the exit portal.
	NearExit

	// BehindPlaneUnmoved means the player is behind the entry portal
	// plane but neither portal took it.
	BehindPlaneUnmoved

	// Clear means the player is away from both portals.
	Clear
)

func (c Classification) String() string {
	switch c {
	case NearEntry:
		return "near-entry"
	case NearExit:
		return "near-exit"
	case BehindPlaneUnmoved:
		return "behind-plane"
	case Clear:
		return "clear"
	default:
		return "unknown"
	}
}

// Outcome is how a search ended.
type Outcome int

const (
	// Success means the last probe's setpos produced the glitch.
	Success Outcome = iota + 1

	// Fail means the walk crossed from one side to the other without
	// passing through a glitch position.
	Fail

	// MaxIterationsReached means the probe budget ran out.
	MaxIterationsReached

	// WouldCauseCrash means the engine had to nudge the player out of
	// the probed position; without SPT the glitch would crash the game.
	WouldCauseCrash
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case MaxIterationsReached:
		return "max-iterations"
	case WouldCauseCrash:
		return "would-crash"
	default:
		return "unknown"
	}
}

// Side is the portal the walk is approaching the boundary from.
type Side int

const (
	SideUnlocked Side = iota
	SideEntry
	SideExit
)

func (s Side) String() string {
	switch s {
	case SideEntry:
		return "entry"
	case SideExit:
		return "exit"
	default:
		return "unlocked"
	}
}

// Observation is a policy's verdict on one probe.
type Observation struct {
	Classification Classification

	// Position is the player center as observed after the probe.
	Position geom.Vec3

	// Crash is set when the probe triggered an entity nudge.
	Crash bool
}

// Probe is one iteration of a search.
type Probe struct {
	// Iteration counts from 1.
	Iteration int

	// Command is the setpos command sent.
	Command string

	// Requested is the setpos position.
	Requested geom.Vec3

	Observation Observation

	// Side is the locked side after this probe.
	Side Side
}

// Result is the outcome of a search and every probe it made.
type Result struct {
	Outcome Outcome

	// EntryIndex and ExitIndex identify the portals searched.
	EntryIndex int
	ExitIndex  int

	// Axis is the coordinate walked: 0, 1 or 2.
	Axis int

	// Crouched reports the player's stance during the search.
	Crouched bool

	Probes []Probe
}

// Command returns the setpos command of the last probe, which is the
// working command when Outcome is Success.
func (r *Result) Command() string {
	if len(r.Probes) == 0 {
		return ""
	}
	return r.Probes[len(r.Probes)-1].Command
}

// Recorder receives every probe as it completes.
type Recorder interface {
	RecordProbe(Probe) error
}
