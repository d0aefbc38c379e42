// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vag

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/ipc"
	"github.com/spt-tools/vagsearch/lib/portal"
	"github.com/spt-tools/vagsearch/lib/spt"
)

// Blue faces -x and orange faces +x, so the search walks x and stepping
// into the entry portal increases it.
func testPortals() (entry, exit *portal.Portal) {
	entry = &portal.Portal{Index: 2, Origin: geom.Vec3{256, 0, 64}, Angles: geom.Vec3{0, 180, 0}, Activated: true, LinkedHandle: 4}
	exit = &portal.Portal{Index: 3, Origin: geom.Vec3{-256, 0, 64}, Activated: true, LinkedHandle: 3, IsPortal2: true}
	return entry, exit
}

// recordingClock never blocks and remembers every sleep.
type recordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *recordingClock) Now() time.Time { return time.Time{} }

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	c.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (c *recordingClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
}

func (c *recordingClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// playerState is what the fake game reports after one probe.
type playerState struct {
	origin      geom.Vec3
	environment int64
	console     []string
}

// fakeGame answers the commands a search sends. States are consumed one
// per setpos; the last state repeats.
type fakeGame struct {
	t        *testing.T
	flags    int
	animated int
	states   []playerState

	probes   int
	commands []string
}

func newFakeGame(t *testing.T, states ...playerState) *fakeGame {
	return &fakeGame{t: t, flags: 1 | spt.FlagDucking, states: states}
}

func (g *fakeGame) state() playerState {
	if len(g.states) == 0 {
		return playerState{environment: spt.InvalidHandle}
	}
	index := g.probes - 1
	if index >= len(g.states) {
		index = len(g.states) - 1
	}
	if index < 0 {
		index = 0
	}
	return g.states[index]
}

func (g *fakeGame) message(properties map[string]any) ipc.Message {
	g.t.Helper()
	data, err := json.Marshal(map[string]any{"type": "properties", "entity": properties})
	if err != nil {
		g.t.Fatalf("marshal: %v", err)
	}
	message, err := ipc.DecodeMessage(data)
	if err != nil {
		g.t.Fatalf("DecodeMessage: %v", err)
	}
	return message
}

func (g *fakeGame) SendAndCollect(command string, expectConsole bool) ([]ipc.Message, error) {
	g.commands = append(g.commands, command)
	if expectConsole {
		g.t.Errorf("command %q expects console output", command)
	}
	switch {
	case strings.HasPrefix(command, "setpos "):
		g.probes++
		return nil, nil
	case command == spt.Properties(spt.PlayerIndex, spt.PropFlags, spt.PropAnimatedEveryTick):
		return []ipc.Message{g.message(map[string]any{
			spt.PropFlags:             g.flags,
			spt.PropAnimatedEveryTick: g.animated,
		})}, nil
	case strings.HasPrefix(command, spt.Properties(spt.PlayerIndex, spt.PropOrigin)):
		state := g.state()
		properties := map[string]any{
			"m_vecOrigin[0]": state.origin[0],
			"m_vecOrigin[1]": state.origin[1],
			"m_vecOrigin[2]": state.origin[2],
		}
		if strings.HasSuffix(command, spt.PropPortalEnvironment) {
			properties[spt.PropPortalEnvironment] = state.environment
		}
		return []ipc.Message{g.message(properties)}, nil
	default:
		g.t.Fatalf("unexpected command %q", command)
		return nil, nil
	}
}

func (g *fakeGame) DrainConsole() ([]string, error) {
	return g.state().console, nil
}

// setposes returns the setpos commands sent, in order.
func (g *fakeGame) setposes() []string {
	var commands []string
	for _, command := range g.commands {
		if strings.HasPrefix(command, "setpos ") {
			commands = append(commands, command)
		}
	}
	return commands
}

// scriptedPolicy returns fixed observations, repeating the last one.
type scriptedPolicy struct {
	observations []Observation
	calls        int
}

func script(classifications ...Classification) *scriptedPolicy {
	policy := &scriptedPolicy{}
	for _, classification := range classifications {
		policy.observations = append(policy.observations, Observation{Classification: classification})
	}
	return policy
}

func (p *scriptedPolicy) Name() string { return "scripted" }

func (p *scriptedPolicy) Classify(Executor, Target) (Observation, error) {
	index := p.calls
	if index >= len(p.observations) {
		index = len(p.observations) - 1
	}
	p.calls++
	return p.observations[index], nil
}

// collectingRecorder keeps every recorded probe.
type collectingRecorder struct {
	probes []Probe
}

func (r *collectingRecorder) RecordProbe(probe Probe) error {
	r.probes = append(r.probes, probe)
	return nil
}
