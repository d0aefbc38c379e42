// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package portal finds the portal entities in the running game and
// groups them into linked pairs.
package portal

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/ipc"
	"github.com/spt-tools/vagsearch/lib/spt"
)

// ErrAmbiguousConfiguration is returned when the portal to search
// cannot be determined: no pairs, several pairs, an unknown color or
// index, or a selected portal without a partner.
var ErrAmbiguousConfiguration = errors.New("portal: ambiguous portal configuration")

// Color names a portal of a pair.
type Color string

const (
	Blue   Color = "blue"
	Orange Color = "orange"
)

// ParseColor accepts "blue" or "orange" in any case.
func ParseColor(name string) (Color, error) {
	switch color := Color(strings.ToLower(name)); color {
	case Blue, Orange:
		return color, nil
	default:
		return "", fmt.Errorf("%w: invalid portal color %q", ErrAmbiguousConfiguration, name)
	}
}

// Portal is the state of one portal entity.
type Portal struct {
	Index     int
	Origin    geom.Vec3
	Angles    geom.Vec3
	Activated bool

	// LinkedHandle is the raw m_hLinkedPortal value, spt.InvalidHandle
	// when unlinked.
	LinkedHandle int64

	// IsPortal2 is set on the second (orange) portal of a gun.
	IsPortal2 bool
}

// Color returns the portal's role in its pair.
func (p *Portal) Color() Color {
	if p.IsPortal2 {
		return Orange
	}
	return Blue
}

// Linked reports the linked entity index, or false when unlinked.
func (p *Portal) Linked() (int, bool) {
	if p.LinkedHandle == spt.InvalidHandle {
		return 0, false
	}
	return spt.HandleToIndex(p.LinkedHandle), true
}

// Normal returns the unit vector the portal faces.
func (p *Portal) Normal() geom.Vec3 {
	return geom.AnglesToVector(p.Angles)
}

// Pair is an active portal and its partner. Either side is nil when the
// partner is missing or deactivated.
type Pair struct {
	Blue   *Portal
	Orange *Portal
}

// Linked reports whether both portals are present.
func (p Pair) Linked() bool {
	return p.Blue != nil && p.Orange != nil
}

// Has reports whether index is one of the pair's portals.
func (p Pair) Has(index int) bool {
	return (p.Blue != nil && p.Blue.Index == index) || (p.Orange != nil && p.Orange.Index == index)
}

// Executor sends commands to SPT. *session.Session implements it.
type Executor interface {
	SendAndCollect(command string, expectConsole bool) ([]ipc.Message, error)
	SendAndDrainConsole(command string) ([]string, error)
}

// indexPattern matches the one-based entity index in
// y_spt_find_portals output.
var indexPattern = regexp.MustCompile(`portal with index (\d+) at`)

// Locator queries portal state through an Executor.
type Locator struct {
	executor Executor
	logger   *slog.Logger
}

// NewLocator returns a Locator. A nil logger discards.
func NewLocator(executor Executor, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Locator{executor: executor, logger: logger}
}

// Portals lists every portal entity, in the order the game reports them.
func (l *Locator) Portals() ([]*Portal, error) {
	lines, err := l.executor.SendAndDrainConsole(spt.FindPortals())
	if err != nil {
		return nil, fmt.Errorf("portal: listing portals: %w", err)
	}

	var portals []*Portal
	for _, line := range lines {
		for _, match := range indexPattern.FindAllStringSubmatch(line, -1) {
			printed, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, fmt.Errorf("portal: parsing index in %q: %w", line, err)
			}
			portal, err := l.Fetch(printed - 1)
			if err != nil {
				return nil, err
			}
			portals = append(portals, portal)
		}
	}
	l.logger.Debug("found portals", "count", len(portals))
	return portals, nil
}

// Fetch reads the state of the portal entity at index.
func (l *Locator) Fetch(index int) (*Portal, error) {
	responses, err := l.executor.SendAndCollect(spt.EntityCommand(index), false)
	if err != nil {
		return nil, fmt.Errorf("portal: fetching entity %d: %w", index, err)
	}
	entity, err := spt.FirstEntity(responses)
	if err != nil {
		return nil, fmt.Errorf("portal: entity %d: %w", index, err)
	}
	return decodePortal(index, entity)
}

func decodePortal(index int, entity spt.Entity) (*Portal, error) {
	portal := &Portal{Index: index, LinkedHandle: spt.InvalidHandle}
	var err error
	if portal.Origin, err = entity.Vector(spt.PropOrigin); err != nil {
		return nil, fmt.Errorf("portal: entity %d: %w", index, err)
	}
	if portal.Angles, err = entity.Vector(spt.PropAngles); err != nil {
		return nil, fmt.Errorf("portal: entity %d: %w", index, err)
	}
	if portal.Activated, err = entity.Bool(spt.PropActivated); err != nil {
		return nil, fmt.Errorf("portal: entity %d: %w", index, err)
	}
	if portal.IsPortal2, err = entity.Bool(spt.PropIsPortal2); err != nil {
		return nil, fmt.Errorf("portal: entity %d: %w", index, err)
	}
	if entity.Has(spt.PropLinkedPortal) {
		if portal.LinkedHandle, err = entity.Int(spt.PropLinkedPortal); err != nil {
			return nil, fmt.Errorf("portal: entity %d: %w", index, err)
		}
	}
	return portal, nil
}

// ListActiveLinkedPairs returns one Pair per active portal group.
// Deactivated portals never appear in a pair; a link to a deactivated or
// unknown portal leaves that side empty; portals that link to each other
// produce a single pair.
func (l *Locator) ListActiveLinkedPairs() ([]Pair, error) {
	portals, err := l.Portals()
	if err != nil {
		return nil, err
	}
	return Pairs(portals), nil
}

// Pairs groups portals into pairs. See ListActiveLinkedPairs.
func Pairs(portals []*Portal) []Pair {
	byIndex := make(map[int]*Portal, len(portals))
	for _, portal := range portals {
		byIndex[portal.Index] = portal
	}

	var pairs []Pair
	included := make(map[int]bool, len(portals))
	for _, portal := range portals {
		if included[portal.Index] || !portal.Activated {
			continue
		}
		included[portal.Index] = true

		var partner *Portal
		if index, ok := portal.Linked(); ok {
			// A partner already placed in a pair stays there.
			if linked, found := byIndex[index]; found && !included[linked.Index] {
				included[linked.Index] = true
				if linked.Activated {
					partner = linked
				}
			}
		}

		if portal.IsPortal2 {
			pairs = append(pairs, Pair{Blue: partner, Orange: portal})
		} else {
			pairs = append(pairs, Pair{Blue: portal, Orange: partner})
		}
	}
	return pairs
}

// SelectByColor picks the entry and exit portal when exactly one pair
// exists: the portal of the given color is the entry.
func SelectByColor(pairs []Pair, color Color) (entry, exit *Portal, err error) {
	switch len(pairs) {
	case 0:
		return nil, nil, fmt.Errorf("%w: no valid portal pairs", ErrAmbiguousConfiguration)
	case 1:
	default:
		return nil, nil, fmt.Errorf("%w: %d portal pairs, not sure which to use", ErrAmbiguousConfiguration, len(pairs))
	}

	pair := pairs[0]
	switch color {
	case Blue:
		entry, exit = pair.Blue, pair.Orange
	case Orange:
		entry, exit = pair.Orange, pair.Blue
	default:
		return nil, nil, fmt.Errorf("%w: invalid portal color %q", ErrAmbiguousConfiguration, color)
	}
	if entry == nil || exit == nil {
		return nil, nil, fmt.Errorf("%w: %s portal has no active partner", ErrAmbiguousConfiguration, color)
	}
	return entry, exit, nil
}

// SelectByIndex picks the pair containing the portal at index; that
// portal is the entry.
func SelectByIndex(pairs []Pair, index int) (entry, exit *Portal, err error) {
	for _, pair := range pairs {
		if !pair.Has(index) {
			continue
		}
		if pair.Blue != nil && pair.Blue.Index == index {
			entry, exit = pair.Blue, pair.Orange
		} else {
			entry, exit = pair.Orange, pair.Blue
		}
		if exit == nil {
			return nil, nil, fmt.Errorf("%w: portal %d has no active partner", ErrAmbiguousConfiguration, index)
		}
		return entry, exit, nil
	}
	return nil, nil, fmt.Errorf("%w: no valid portal with index %d", ErrAmbiguousConfiguration, index)
}
