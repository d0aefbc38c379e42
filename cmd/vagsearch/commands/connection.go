// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
	"github.com/spt-tools/vagsearch/lib/config"
	"github.com/spt-tools/vagsearch/lib/session"
)

// connectionParams are the flags every command that talks to SPT shares.
// Empty values fall back to the config file.
type connectionParams struct {
	configPath string
	address    string
	logFile    string
	noConsole  bool
	debug      bool
	noColor    bool
}

func (p *connectionParams) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&p.configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&p.address, "address", "", "SPT IPC address (default from config, 127.0.0.1:27182)")
	flagSet.StringVar(&p.logFile, "log-file", "", "console log file name inside the game directory")
	flagSet.BoolVar(&p.noConsole, "no-console", false, "do not mirror the game console (exec only)")
	flagSet.BoolVar(&p.debug, "debug", false, "log every IPC frame and probe")
	flagSet.BoolVar(&p.noColor, "no-color", false, "disable colored output")
}

// load reads the config and applies the flag overrides.
func (p *connectionParams) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if p.configPath != "" {
		cfg, err = config.LoadFile(p.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if p.address != "" {
		cfg.Peer.Address = p.address
	}
	if p.logFile != "" {
		cfg.Console.LogFile = p.logFile
	}
	if p.noConsole {
		cfg.Console.LogFile = ""
	}
	if p.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// errConsoleRequired is returned by commands that locate portals when
// the console log is disabled. SPT lists portals only on the console.
var errConsoleRequired = errors.New("locating portals needs the console log; drop --no-console or set console.log_file")

// requireConsole fails when cfg disables the console log.
func requireConsole(cfg *config.Config) error {
	if cfg.Console.LogFile == "" {
		return errConsoleRequired
	}
	return nil
}

func (p *connectionParams) styles(s streams) *cli.Styles {
	return cli.NewStyles(s.stdout, !p.noColor)
}

// openSession connects to SPT as configured.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session.Session, error) {
	timeout, err := cfg.DialTimeout()
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(ctx, session.Options{
		Address:        cfg.Peer.Address,
		DialTimeout:    timeout,
		ConsoleLogFile: cfg.Console.LogFile,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to SPT at %s: %w", cfg.Peer.Address, err)
	}
	logger.Debug("connected", "address", cfg.Peer.Address, "game_dir", sess.GameDir(),
		"console", sess.ConsoleEnabled())
	return sess, nil
}
