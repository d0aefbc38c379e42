// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vag

import (
	"fmt"
	"strings"
	"time"

	"github.com/spt-tools/vagsearch/lib/clock"
	"github.com/spt-tools/vagsearch/lib/portal"
	"github.com/spt-tools/vagsearch/lib/spt"
)

const (
	// DefaultSettle is the wait after a setpos before the player's
	// position is trusted.
	DefaultSettle = 20 * time.Millisecond

	// DefaultDistanceThreshold is the distance within which
	// DistancePolicy considers the player to be at a portal.
	DefaultDistanceThreshold = 100

	// DefaultFloorWait is the extra wait DistancePolicy inserts after
	// the player exits a floor portal, so its velocity decays.
	DefaultFloorWait = 500 * time.Millisecond

	// floorNormalZ is the normal z component above which a portal
	// counts as a floor portal.
	floorNormalZ = 0.7072

	// behindPlaneDistance is the distance from the entry origin within
	// which a player outside both portal environments has not moved.
	behindPlaneDistance = 1

	// nudgeNotice is the console text SPT prints when the engine
	// pushes an entity out of an invalid position.
	nudgeNotice = "spt: nudging entity"
)

// Target is what a Policy classifies a probe against.
type Target struct {
	Entry *portal.Portal
	Exit  *portal.Portal

	// HalfHeight is the distance from the player's origin to its
	// center.
	HalfHeight float32
}

// Policy decides where a probe left the player. Classify runs after the
// setpos has been acknowledged.
type Policy interface {
	Name() string
	Classify(executor Executor, target Target) (Observation, error)
}

// Policy names accepted by NewPolicy.
const (
	PolicyContainment = "containment"
	PolicyDistance    = "distance"
)

// NewPolicy returns the named policy with default settings driven by
// the given clock.
func NewPolicy(name string, clk clock.Clock) (Policy, error) {
	switch name {
	case PolicyContainment, "":
		return &ContainmentPolicy{Clock: clk}, nil
	case PolicyDistance:
		return &DistancePolicy{Clock: clk}, nil
	default:
		return nil, fmt.Errorf("vag: unknown policy %q (want %s or %s)", name, PolicyContainment, PolicyDistance)
	}
}

func settle(clk clock.Clock, d time.Duration) {
	if clk == nil {
		clk = clock.Real()
	}
	if d <= 0 {
		d = DefaultSettle
	}
	clk.Sleep(d)
}

// ContainmentPolicy classifies by the portal environment the engine
// assigns to the player, and watches the console for nudge notices. It
// needs console log reading.
type ContainmentPolicy struct {
	// Clock drives the settle waits. Nil uses the real clock.
	Clock clock.Clock

	// Settle is the wait before each read. Zero selects DefaultSettle.
	Settle time.Duration
}

// Name returns "containment".
func (p *ContainmentPolicy) Name() string { return PolicyContainment }

// Classify implements Policy.
func (p *ContainmentPolicy) Classify(executor Executor, target Target) (Observation, error) {
	// The nudge notice is printed after the setpos echo, so it only
	// shows up on a plain read after the ack.
	settle(p.Clock, p.Settle)
	lines, err := executor.DrainConsole()
	if err != nil {
		return Observation{}, fmt.Errorf("vag: reading console: %w", err)
	}
	for _, line := range lines {
		if strings.Contains(line, nudgeNotice) {
			return Observation{Crash: true}, nil
		}
	}

	// The reported position lags the setpos.
	settle(p.Clock, p.Settle)
	entity, err := queryPlayer(executor, spt.PropOrigin, spt.PropPortalEnvironment)
	if err != nil {
		return Observation{}, err
	}
	position, err := entity.Vector(spt.PropOrigin)
	if err != nil {
		return Observation{}, fmt.Errorf("vag: player: %w", err)
	}
	position[2] += target.HalfHeight
	environment, err := entity.Int(spt.PropPortalEnvironment)
	if err != nil {
		return Observation{}, fmt.Errorf("vag: player: %w", err)
	}

	observation := Observation{Position: position}
	environmentIndex := -1
	if environment != spt.InvalidHandle {
		environmentIndex = spt.HandleToIndex(environment)
	}
	switch {
	case environmentIndex == target.Entry.Index:
		observation.Classification = NearEntry
	case environmentIndex == target.Exit.Index:
		observation.Classification = NearExit
	case position.Distance(target.Entry.Origin) < behindPlaneDistance:
		observation.Classification = BehindPlaneUnmoved
	default:
		observation.Classification = Clear
	}
	return observation, nil
}

// DistancePolicy classifies by the player's distance to each portal. Its
// probes never read the console, so it cannot detect crashes, and it
// cannot tell the portals apart when they are close together.
type DistancePolicy struct {
	// Clock drives the waits. Nil uses the real clock.
	Clock clock.Clock

	// Settle is the wait before reading the position. Zero selects
	// DefaultSettle.
	Settle time.Duration

	// Threshold is the distance within which the player is at a
	// portal. Zero selects DefaultDistanceThreshold.
	Threshold float64

	// FloorWait is the wait after exiting a floor portal. Zero selects
	// DefaultFloorWait.
	FloorWait time.Duration
}

// Name returns "distance".
func (p *DistancePolicy) Name() string { return PolicyDistance }

// Classify implements Policy.
func (p *DistancePolicy) Classify(executor Executor, target Target) (Observation, error) {
	settle(p.Clock, p.Settle)
	entity, err := queryPlayer(executor, spt.PropOrigin)
	if err != nil {
		return Observation{}, err
	}
	position, err := entity.Vector(spt.PropOrigin)
	if err != nil {
		return Observation{}, fmt.Errorf("vag: player: %w", err)
	}

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}
	observation := Observation{Position: position}
	switch {
	case position.Distance(target.Entry.Origin) < threshold:
		observation.Classification = NearEntry
	case position.Distance(target.Exit.Origin) < threshold:
		observation.Classification = NearExit
		if target.Exit.Normal()[2] > floorNormalZ {
			wait := p.FloorWait
			if wait <= 0 {
				wait = DefaultFloorWait
			}
			clk := p.Clock
			if clk == nil {
				clk = clock.Real()
			}
			clk.Sleep(wait)
		}
	default:
		observation.Classification = Clear
	}
	return observation, nil
}

func queryPlayer(executor Executor, names ...string) (spt.Entity, error) {
	responses, err := executor.SendAndCollect(spt.Properties(spt.PlayerIndex, names...), false)
	if err != nil {
		return nil, fmt.Errorf("vag: querying player: %w", err)
	}
	entity, err := spt.FirstEntity(responses)
	if err != nil {
		return nil, fmt.Errorf("vag: querying player: %w", err)
	}
	return entity, nil
}
