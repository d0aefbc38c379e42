// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// vagsearch drives SPT's IPC server to find setpos commands that
// trigger the vertical angle glitch.
package main

import (
	"context"
	"os"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/commands"
	"github.com/spt-tools/vagsearch/lib/process"
)

func main() {
	// Searches that ended without the glitch already printed their
	// outcome; the exit code carries it.
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return commands.Root(os.Stdout, os.Stderr).Execute(context.Background(), os.Args[1:])
}
