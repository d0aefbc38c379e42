// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/spt-tools/vagsearch/lib/ipc"
	"github.com/spt-tools/vagsearch/lib/ipctest"
	"github.com/spt-tools/vagsearch/lib/watermark"
)

const consoleLog = "conlog"

func startPeer(t *testing.T, options ipctest.PeerOptions) (*ipctest.Peer, *ipctest.World) {
	t.Helper()
	world, err := ipctest.ParseScenario([]byte(`{
		"portals": [
			{"index": 2, "origin": [256, 0, 64], "angles": [0, 180, 0], "activated": true, "linked": 3},
			{"index": 3, "origin": [-256, 0, 64], "activated": true, "linked": 2, "orange": true},
		],
	}`))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	world.GameDir = t.TempDir()
	peer, err := ipctest.StartPeer(world, options)
	if err != nil {
		t.Fatalf("StartPeer: %v", err)
	}
	t.Cleanup(func() { peer.Close() })
	return peer, world
}

func openSession(t *testing.T, peer *ipctest.Peer, options Options) *Session {
	t.Helper()
	options.Address = peer.Address()
	if options.DiskLatency == 0 {
		options.DiskLatency = time.Millisecond
	}
	session, err := Open(context.Background(), options)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestOpenCreatesConsoleLog(t *testing.T) {
	peer, world := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{ConsoleLogFile: consoleLog})

	if session.GameDir() != world.GameDir {
		t.Errorf("GameDir = %q, want %q", session.GameDir(), world.GameDir)
	}
	if !session.ConsoleEnabled() {
		t.Fatal("ConsoleEnabled = false")
	}
	if _, err := os.Stat(filepath.Join(world.GameDir, consoleLog)); err != nil {
		t.Errorf("console log missing: %v", err)
	}
}

func TestOpenWithoutConsoleLog(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{})

	if session.ConsoleEnabled() {
		t.Error("ConsoleEnabled = true without a console log file")
	}
	if _, err := session.SendAndDrainConsole("y_spt_find_portals"); !errors.Is(err, ErrConsoleDisabled) {
		t.Errorf("SendAndDrainConsole error = %v, want ErrConsoleDisabled", err)
	}
	if _, err := session.DrainConsole(); !errors.Is(err, ErrConsoleDisabled) {
		t.Errorf("DrainConsole error = %v, want ErrConsoleDisabled", err)
	}
}

func TestOpenGivesUpWhenLogNeverAppears(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{IgnoreConLogFile: true})

	_, err := Open(context.Background(), Options{
		Address:        peer.Address(),
		ConsoleLogFile: consoleLog,
		DiskLatency:    time.Millisecond,
	})
	if !errors.Is(err, ErrSideChannelUnavailable) {
		t.Fatalf("Open error = %v, want ErrSideChannelUnavailable", err)
	}

	attempts := 0
	for _, command := range peer.Commands() {
		if strings.HasPrefix(command, "con_logfile ") {
			attempts++
		}
	}
	if attempts != DefaultLogFileAttempts {
		t.Errorf("con_logfile sent %d times, want %d", attempts, DefaultLogFileAttempts)
	}
}

func TestOpenConnectFailure(t *testing.T) {
	_, err := Open(context.Background(), Options{Address: "127.0.0.1:1"})
	if !errors.Is(err, ipc.ErrConnectFailed) {
		t.Errorf("Open error = %v, want ipc.ErrConnectFailed", err)
	}
}

func TestSendAndDrainConsole(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{ConsoleLogFile: consoleLog})

	lines, err := session.SendAndDrainConsole("y_spt_find_portals")
	if err != nil {
		t.Fatalf("SendAndDrainConsole: %v", err)
	}
	want := []string{
		"blue portal with index 3 at 256 0 64",
		"orange portal with index 4 at -256 0 64",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("console lines mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentCommandsDoNotInterleave(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{ConsoleLogFile: consoleLog})

	const callers = 16
	results := make([][]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = session.SendAndDrainConsole(fmt.Sprintf("echo hello %d", i))
		}()
	}
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Errorf("caller %d: %v", i, errs[i])
			continue
		}
		want := []string{fmt.Sprintf("hello %d", i)}
		if diff := cmp.Diff(want, results[i]); diff != "" {
			t.Errorf("caller %d console lines mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestSendAndDrainConsoleSkipsEarlierOutput(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{ConsoleLogFile: consoleLog})

	if _, err := session.SendAndCollect("echo leftover", false); err != nil {
		t.Fatalf("SendAndCollect: %v", err)
	}
	lines, err := session.SendAndDrainConsole("echo fresh")
	if err != nil {
		t.Fatalf("SendAndDrainConsole: %v", err)
	}
	if diff := cmp.Diff([]string{"fresh"}, lines); diff != "" {
		t.Errorf("console lines mismatch (-want +got):\n%s", diff)
	}
}

func TestSendAndCollectWithoutConsoleDisarmsTail(t *testing.T) {
	peer, world := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{
		ConsoleLogFile: consoleLog,
		Watermarks:     watermark.NewSequence(40),
	})

	if _, err := session.SendAndCollect("setpos 1 2 3", false); err != nil {
		t.Fatalf("SendAndCollect: %v", err)
	}
	if got := session.tail.Outstanding(); got.Valid() {
		t.Errorf("tail still expects %v after a command without console output", got)
	}

	data, err := os.ReadFile(filepath.Join(world.GameDir, consoleLog))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(data), "magic42") {
		t.Errorf("console echo was appended although console output was not expected:\n%s", data)
	}
}

func TestSendAndCollectArmsTail(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{
		ConsoleLogFile: consoleLog,
		Watermarks:     watermark.NewSequence(40),
	})

	if _, err := session.SendAndCollect("echo armed", true); err != nil {
		t.Fatalf("SendAndCollect: %v", err)
	}
	if got := session.tail.Outstanding(); got != 42 {
		t.Errorf("tail expects %v, want magic42", got)
	}
}

func TestSendAndCollectReturnsResponses(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{})

	responses, err := session.SendAndCollect("y_spt_ipc_ent 2", false)
	if err != nil {
		t.Fatalf("SendAndCollect: %v", err)
	}
	if len(responses) != 1 || responses[0].Type != "ent" {
		t.Errorf("responses = %+v, want one ent message", responses)
	}
}

func TestDrainConsoleReadsTextAfterAck(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{ConsoleLogFile: consoleLog})

	if _, err := session.SendAndCollect("echo spt: nudging entity 1", false); err != nil {
		t.Fatalf("SendAndCollect: %v", err)
	}
	lines, err := session.DrainConsole()
	if err != nil {
		t.Fatalf("DrainConsole: %v", err)
	}
	if diff := cmp.Diff([]string{"spt: nudging entity 1"}, lines); diff != "" {
		t.Errorf("console lines mismatch (-want +got):\n%s", diff)
	}

	lines, err = session.DrainConsole()
	if err != nil {
		t.Fatalf("second DrainConsole: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("second DrainConsole = %q, want nothing", lines)
	}
}

func TestClose(t *testing.T) {
	peer, _ := startPeer(t, ipctest.PeerOptions{})
	session := openSession(t, peer, Options{ConsoleLogFile: consoleLog})

	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := session.SendAndCollect("echo hi", false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAndCollect after Close = %v, want ErrNotConnected", err)
	}
	if _, err := session.SendAndDrainConsole("echo hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAndDrainConsole after Close = %v, want ErrNotConnected", err)
	}
	if _, err := session.DrainConsole(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("DrainConsole after Close = %v, want ErrNotConnected", err)
	}
}
