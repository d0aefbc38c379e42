// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Spt-mock is a stand-in for a game running SPT. It serves the IPC
// protocol on SPT's port from a simulated world loaded from a JSONC
// scenario file: portals, the player, and where behind a portal the
// glitch window lies. vagsearch runs against it unchanged.
//
// The mock mirrors console output to the con_logfile the client asks
// for, inside --game-dir (a temporary directory by default).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/spt-tools/vagsearch/lib/ipc"
	"github.com/spt-tools/vagsearch/lib/ipctest"
	"github.com/spt-tools/vagsearch/lib/process"
	"github.com/spt-tools/vagsearch/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		scenarioPath string
		address      string
		gameDir      string
		staleEchoes  int
		debug        bool
		showVersion  bool
	)
	flagSet := pflag.NewFlagSet("spt-mock", pflag.ContinueOnError)
	flagSet.StringVar(&scenarioPath, "scenario", "", "JSONC scenario file (required)")
	flagSet.StringVar(&address, "address", ipc.DefaultAddress, "address to listen on")
	flagSet.StringVar(&gameDir, "game-dir", "", "directory console logs are written to (default: a temporary directory)")
	flagSet.IntVar(&staleEchoes, "stale-echoes", 0, "wrong-watermark echoes sent ahead of every real one")
	flagSet.BoolVar(&debug, "debug", false, "log every command")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		version.Print("spt-mock")
		return nil
	}
	if scenarioPath == "" {
		return fmt.Errorf("--scenario is required")
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	world, err := ipctest.ReadScenario(scenarioPath)
	if err != nil {
		return err
	}
	if gameDir == "" {
		gameDir, err = os.MkdirTemp("", "spt-mock-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(gameDir)
	}
	world.GameDir = gameDir

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	peer, err := ipctest.StartPeer(world, ipctest.PeerOptions{
		Address:     address,
		StaleEchoes: staleEchoes,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	logger.Info("spt mock running",
		"address", peer.Address(),
		"game_dir", gameDir,
		"portals", len(world.Portals),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	var probes int
	peer.WithWorld(func(world *ipctest.World) { probes = world.Probes })
	if err := peer.Close(); err != nil {
		return err
	}
	logger.Info("served", "commands", len(peer.Commands()), "setpos", probes)
	return nil
}
