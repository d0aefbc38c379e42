// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
	"github.com/spt-tools/vagsearch/lib/config"
	"github.com/spt-tools/vagsearch/lib/ipctest"
)

const testScenario = `{
	// crouched and noclipping in front of the blue portal
	"player": {"origin": [0, 0, 0], "crouched": true, "noclip": true},
	"portals": [
		{"index": 2, "origin": [256, 0, 64], "angles": [0, 180, 0], "activated": true, "linked": 3},
		{"index": 3, "origin": [-256, 0, 64], "angles": [0, 0, 0], "activated": true, "linked": 2, "orange": true},
	],
	"boundary": {"portal": 2, "start": 3, "width": 1, "destination": [0, 2048, 0]},
}`

// startPeer serves testScenario and returns the peer address.
func startPeer(t *testing.T, configure func(*ipctest.World)) string {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")

	world, err := ipctest.ParseScenario([]byte(testScenario))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	world.GameDir = t.TempDir()
	if configure != nil {
		configure(world)
	}
	peer, err := ipctest.StartPeer(world, ipctest.PeerOptions{})
	if err != nil {
		t.Fatalf("StartPeer: %v", err)
	}
	t.Cleanup(func() { peer.Close() })
	return peer.Address()
}

// execute runs the command tree and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Root(&stdout, &stderr).Execute(context.Background(), args)
	if t.Failed() || err != nil {
		t.Logf("stderr:\n%s", stderr.String())
	}
	return stdout.String(), err
}

func TestSearchFindsGlitch(t *testing.T) {
	address := startPeer(t, nil)
	journalPath := filepath.Join(t.TempDir(), "run.vagj")

	output, err := execute(t, "search", "--address", address, "--color", "blue",
		"--journal", journalPath, "--no-color", "--probes")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(output, "success after 4 probes") {
		t.Errorf("output missing outcome line:\n%s", output)
	}
	if !strings.Contains(output, "setpos ") {
		t.Errorf("output missing setpos command:\n%s", output)
	}
	if !strings.Contains(output, "near-entry") {
		t.Errorf("probe listing missing:\n%s", output)
	}

	dump, err := execute(t, "journal", "--no-color", journalPath)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	for _, want := range []string{"policy:      containment", "compression: zstd", "entry:       2 at 256 0 64", "success after 4 probes"} {
		if !strings.Contains(dump, want) {
			t.Errorf("journal dump missing %q:\n%s", want, dump)
		}
	}
}

func TestSearchJSON(t *testing.T) {
	address := startPeer(t, nil)

	output, err := execute(t, "search", "--address", address, "--index", "2", "--json")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var summary resultSummary
	if err := json.Unmarshal([]byte(output), &summary); err != nil {
		t.Fatalf("output is not a result summary: %v\n%s", err, output)
	}
	if summary.Outcome != "success" || summary.Entry != 2 || summary.Exit != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Axis != "x" || !summary.Crouched {
		t.Errorf("axis = %s crouched = %v, want x crouched", summary.Axis, summary.Crouched)
	}
	if len(summary.Probes) != 4 || summary.Command != summary.Probes[3].Command {
		t.Errorf("probes = %d command = %q", len(summary.Probes), summary.Command)
	}
}

func TestSearchOutcomeExitCodes(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*ipctest.World)
		args      []string
		wantCode  int
	}{
		{
			name:      "fail",
			configure: func(world *ipctest.World) { world.Boundary.Width = 0 },
			wantCode:  exitFail,
		},
		{
			name:      "crash",
			configure: func(world *ipctest.World) { world.Boundary.Crash = true },
			wantCode:  exitWouldCrash,
		},
		{
			name:     "budget",
			args:     []string{"--max-probes", "2"},
			wantCode: exitMaxIterations,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			address := startPeer(t, tt.configure)
			args := append([]string{"search", "--address", address, "--color", "blue", "--no-color"}, tt.args...)

			_, err := execute(t, args...)
			var exitErr *cli.ExitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("search error = %v, want ExitError", err)
			}
			if exitErr.Code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", exitErr.Code, tt.wantCode)
			}
		})
	}
}

func TestSearchRejectsInvalidConfig(t *testing.T) {
	address := startPeer(t, nil)

	_, err := execute(t, "search", "--address", address, "--policy", "guess")
	if err == nil || !strings.Contains(err.Error(), "search.policy") {
		t.Errorf("error = %v, want search.policy validation error", err)
	}

	_, err = execute(t, "search", "--address", address, "--no-console")
	if err == nil || !strings.Contains(err.Error(), "requires console.log_file") {
		t.Errorf("error = %v, want console requirement error", err)
	}
}

func TestSearchDistancePolicy(t *testing.T) {
	address := startPeer(t, nil)

	output, err := execute(t, "search", "--address", address, "--color", "blue",
		"--policy", "distance", "--no-color")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(output, "success") {
		t.Errorf("output = %q, want success", output)
	}
}

func TestPortalCommandsRequireConsole(t *testing.T) {
	address := startPeer(t, nil)

	for _, args := range [][]string{
		{"search", "--address", address, "--policy", "distance", "--no-console"},
		{"watch", "--address", address, "--policy", "distance", "--no-console"},
		{"pairs", "--address", address, "--no-console"},
	} {
		_, err := execute(t, args...)
		if !errors.Is(err, errConsoleRequired) {
			t.Errorf("%s: error = %v, want errConsoleRequired", args[0], err)
		}
	}
}

func TestSearchOrangeExhaustsBudget(t *testing.T) {
	address := startPeer(t, nil)

	// The glitch window is behind the blue portal only; every probe at
	// orange reads as near the exit and walks away from it.
	_, err := execute(t, "search", "--address", address, "--color", "orange", "--no-color", "--max-probes", "5")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("search error = %v, want ExitError", err)
	}
	if exitErr.Code != exitMaxIterations {
		t.Errorf("exit code = %d, want %d", exitErr.Code, exitMaxIterations)
	}
}

func TestPairsJSON(t *testing.T) {
	address := startPeer(t, nil)

	output, err := execute(t, "pairs", "--address", address, "--json")
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	var pairs []pairSummary
	if err := json.Unmarshal([]byte(output), &pairs); err != nil {
		t.Fatalf("output is not a pair list: %v\n%s", err, output)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].Blue == nil || pairs[0].Blue.Index != 2 || pairs[0].Orange == nil || pairs[0].Orange.Index != 3 {
		t.Errorf("pair = %+v", pairs[0])
	}
	if !pairs[0].Linked {
		t.Error("pair should be linked")
	}
}

func TestPairsTable(t *testing.T) {
	address := startPeer(t, nil)

	output, err := execute(t, "pairs", "--address", address, "--no-color")
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	for _, want := range []string{"BLUE", "256 0 64", "-256 0 64", "yes"} {
		if !strings.Contains(output, want) {
			t.Errorf("pairs output missing %q:\n%s", want, output)
		}
	}
}

func TestExecConsole(t *testing.T) {
	address := startPeer(t, nil)

	output, err := execute(t, "exec", "--address", address, "echo", "hello")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if strings.TrimSpace(output) != "hello" {
		t.Errorf("output = %q, want hello", output)
	}
}

func TestExecJSON(t *testing.T) {
	address := startPeer(t, nil)

	output, err := execute(t, "exec", "--address", address, "--json", "y_spt_ipc_properties", "0", "m_vecOrigin")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	var responses []map[string]any
	if err := json.Unmarshal([]byte(output), &responses); err != nil {
		t.Fatalf("output is not a response list: %v\n%s", err, output)
	}
	if len(responses) != 1 || responses[0]["type"] != "properties" {
		t.Errorf("responses = %v, want one properties frame", responses)
	}
}

func TestExecRequiresCommand(t *testing.T) {
	if _, err := execute(t, "exec"); err == nil {
		t.Error("exec without a command should fail")
	}
}

func TestJournalMissingFile(t *testing.T) {
	if _, err := execute(t, "journal", filepath.Join(t.TempDir(), "missing.vagj")); err == nil {
		t.Error("journal on a missing file should fail")
	}
}

func TestVersion(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(output, "vagsearch ") {
		t.Errorf("version output = %q", output)
	}
}

func TestNumberedJournal(t *testing.T) {
	tests := []struct {
		base string
		n    int
		want string
	}{
		{"", 3, ""},
		{"run.vagj", 1, "run.vagj"},
		{"run.vagj", 2, "run-2.vagj"},
		{"/tmp/probes", 4, "/tmp/probes-4"},
	}
	for _, tt := range tests {
		if got := numberedJournal(tt.base, tt.n); got != tt.want {
			t.Errorf("numberedJournal(%q, %d) = %q, want %q", tt.base, tt.n, got, tt.want)
		}
	}
}
