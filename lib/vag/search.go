// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spt-tools/vagsearch/lib/clock"
	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/ipc"
	"github.com/spt-tools/vagsearch/lib/portal"
	"github.com/spt-tools/vagsearch/lib/spt"
)

// DefaultMaxProbes bounds the number of probes in one search.
const DefaultMaxProbes = 35

// Player half heights in world units.
const (
	crouchedHalfHeight = 18
	standingHalfHeight = 36
)

// Executor sends commands to SPT. *session.Session implements it.
type Executor interface {
	SendAndCollect(command string, expectConsole bool) ([]ipc.Message, error)
	DrainConsole() ([]string, error)
}

// PairLister finds portal pairs. *portal.Locator implements it.
type PairLister interface {
	ListActiveLinkedPairs() ([]portal.Pair, error)
}

// Options configures a Searcher.
type Options struct {
	// Policy classifies probes. Nil selects a ContainmentPolicy on
	// Clock.
	Policy Policy

	// Clock is handed to the default policy. Nil uses the real clock.
	Clock clock.Clock

	// MaxProbes bounds a search. Zero selects DefaultMaxProbes.
	MaxProbes int

	// Recorder, when set, receives every probe.
	Recorder Recorder

	// Logger receives per-probe progress and setup warnings. Nil
	// discards.
	Logger *slog.Logger
}

// Searcher runs glitch searches through an Executor.
type Searcher struct {
	executor Executor
	policy   Policy
	options  Options
	logger   *slog.Logger
}

// NewSearcher returns a Searcher.
func NewSearcher(executor Executor, options Options) *Searcher {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Policy == nil {
		options.Policy = &ContainmentPolicy{Clock: options.Clock}
	}
	if options.MaxProbes <= 0 {
		options.MaxProbes = DefaultMaxProbes
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Searcher{
		executor: executor,
		policy:   options.Policy,
		options:  options,
		logger:   options.Logger,
	}
}

// SearchColor searches the only portal pair, entering through the
// portal of the given color.
func (s *Searcher) SearchColor(ctx context.Context, lister PairLister, color portal.Color) (*Result, error) {
	pairs, err := lister.ListActiveLinkedPairs()
	if err != nil {
		return nil, err
	}
	entry, exit, err := portal.SelectByColor(pairs, color)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, entry, exit)
}

// SearchIndex searches the pair containing the portal at index,
// entering through that portal.
func (s *Searcher) SearchIndex(ctx context.Context, lister PairLister, index int) (*Result, error) {
	pairs, err := lister.ListActiveLinkedPairs()
	if err != nil {
		return nil, err
	}
	entry, exit, err := portal.SelectByIndex(pairs, index)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, entry, exit)
}

// Search walks from the entry portal's center until a probe produces
// the glitch, the walk crosses sides, a crash is detected, or the probe
// budget is spent. Channel failures are returned as errors; the partial
// Result is returned alongside them. ctx is checked between probes.
func (s *Searcher) Search(ctx context.Context, entry, exit *portal.Portal) (*Result, error) {
	crouched, err := s.checkPlayer()
	if err != nil {
		return nil, err
	}
	halfHeight := float32(standingHalfHeight)
	if crouched {
		halfHeight = crouchedHalfHeight
	}

	normal := entry.Normal()
	axis := normal.ArgMaxAbs()
	// Stepping into the entry portal moves against its normal.
	into := -normal[axis]

	position := entry.Origin
	position[2] -= halfHeight

	result := &Result{
		EntryIndex: entry.Index,
		ExitIndex:  exit.Index,
		Axis:       axis,
		Crouched:   crouched,
	}
	target := Target{Entry: entry, Exit: exit, HalfHeight: halfHeight}
	logger := s.logger.With("entry", entry.Index, "exit", exit.Index, "policy", s.policy.Name())
	logger.Info("starting search", "axis", axis, "crouched", crouched)

	side := SideUnlocked
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		command := spt.SetPos(position)
		logger.Debug("probing", "iteration", iteration, "command", command)
		// The nudge notice is printed after the echo, so console
		// output is read by the policy rather than awaited here.
		if _, err := s.executor.SendAndCollect(command, false); err != nil {
			return result, fmt.Errorf("vag: probe %d: %w", iteration, err)
		}
		observation, err := s.policy.Classify(s.executor, target)
		if err != nil {
			return result, fmt.Errorf("vag: probe %d: %w", iteration, err)
		}

		outcome, done := Outcome(0), false
		step := float32(0)
		switch {
		case observation.Crash:
			outcome, done = WouldCauseCrash, true
		case observation.Classification == Clear:
			outcome, done = Success, true
		case observation.Classification == NearExit:
			if side == SideUnlocked {
				side = SideExit
			}
			if side != SideExit {
				outcome, done = Fail, true
			}
			step = -into
		default:
			// NearEntry, and BehindPlaneUnmoved which does not lock.
			// Either one after locking to the exit side means the walk
			// crossed back to the entry, which is a contradiction.
			if side == SideUnlocked && observation.Classification == NearEntry {
				side = SideEntry
			}
			if side == SideExit {
				outcome, done = Fail, true
			}
			step = into
		}

		probe := Probe{
			Iteration:   iteration,
			Command:     command,
			Requested:   position,
			Observation: observation,
			Side:        side,
		}
		result.Probes = append(result.Probes, probe)
		if s.options.Recorder != nil {
			if err := s.options.Recorder.RecordProbe(probe); err != nil {
				return result, fmt.Errorf("vag: recording probe %d: %w", iteration, err)
			}
		}
		logger.Debug("probe classified",
			"iteration", iteration,
			"classification", observation.Classification,
			"side", side,
			"observed", observation.Position,
		)

		if done {
			result.Outcome = outcome
			logger.Info("search finished", "outcome", outcome, "probes", iteration, "command", command)
			return result, nil
		}
		if iteration >= s.options.MaxProbes {
			result.Outcome = MaxIterationsReached
			logger.Info("search finished", "outcome", result.Outcome, "probes", iteration)
			return result, nil
		}

		position[axis] = geom.StepToward(position[axis], step)
	}
}

// checkPlayer reads the player's stance and warns about setups the
// search is unlikely to work with.
func (s *Searcher) checkPlayer() (crouched bool, err error) {
	responses, err := s.executor.SendAndCollect(
		spt.Properties(spt.PlayerIndex, spt.PropFlags, spt.PropAnimatedEveryTick), false)
	if err != nil {
		return false, fmt.Errorf("vag: querying player: %w", err)
	}
	entity, err := spt.FirstEntity(responses)
	if err != nil {
		return false, fmt.Errorf("vag: querying player: %w", err)
	}
	flags, err := entity.Int(spt.PropFlags)
	if err != nil {
		return false, fmt.Errorf("vag: player: %w", err)
	}
	animated, err := entity.Int(spt.PropAnimatedEveryTick)
	if err != nil {
		return false, fmt.Errorf("vag: player: %w", err)
	}

	crouched = flags&spt.FlagDucking != 0
	if !crouched {
		s.logger.Warn("player is not crouched, the search probably won't work for non-vertical entry portals")
	}
	if animated != 0 {
		s.logger.Warn("player is probably not noclipping")
	}
	return crouched, nil
}
