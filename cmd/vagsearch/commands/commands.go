// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the vagsearch command tree.
package commands

import (
	"context"
	"io"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
	"github.com/spt-tools/vagsearch/lib/version"
)

// Root builds the complete command tree. Command output goes to stdout;
// logs and help go to stderr.
func Root(stdout, stderr io.Writer) *cli.Command {
	streams := streams{stdout: stdout, stderr: stderr}
	return &cli.Command{
		Name: "vagsearch",
		Description: `vagsearch: find vertical angle glitch positions through SPT.

Drives a running game over SPT's IPC server, walking the player through
the entry portal of a linked pair one float step at a time until a
setpos lands in the glitch window.`,
		HelpOutput: stderr,
		Subcommands: []*cli.Command{
			searchCommand(streams),
			watchCommand(streams),
			pairsCommand(streams),
			execCommand(streams),
			journalCommand(streams),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string) error {
					version.Fprint(stdout, "vagsearch")
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Search entering through the orange portal",
				Command:     "vagsearch search --color orange",
			},
			{
				Description: "Search by portal entity index, recording every probe",
				Command:     "vagsearch search --index 42 --journal run.vagj",
			},
			{
				Description: "Wait in the background; press i to search",
				Command:     "vagsearch watch",
			},
		},
	}
}

// streams are the process outputs commands write to.
type streams struct {
	stdout io.Writer
	stderr io.Writer
}
