// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
)

func execCommand(s streams) *cli.Command {
	var params connectionParams
	var outputJSON bool
	return &cli.Command{
		Name:    "exec",
		Summary: "Send a console command and print its output",
		Description: `Send one console command to the game and print what it produced.

By default the console output the command printed is shown, read from
the console log mirror. With --json the structured IPC responses are
printed instead; the console is not read.`,
		Usage: "vagsearch exec [flags] <command>...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("exec", pflag.ContinueOnError)
			params.register(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "print the IPC responses as JSON")
			flagSet.SetInterspersed(false)
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Print the player's origin", Command: "vagsearch exec --json y_spt_ipc_properties 0 m_vecOrigin"},
			{Description: "Show console output", Command: "vagsearch exec -- cvarlist sv_"},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("a command is required")
			}
			command := strings.Join(args, " ")

			cfg, err := params.load()
			if err != nil {
				return err
			}
			if outputJSON {
				cfg.Console.LogFile = ""
			}
			logger := cli.NewLogger(s.stderr, cfg.Debug)

			sess, err := openSession(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			if outputJSON || !sess.ConsoleEnabled() {
				responses, err := sess.SendAndCollect(command, false)
				if err != nil {
					return err
				}
				raw := make([]json.RawMessage, 0, len(responses))
				for _, response := range responses {
					raw = append(raw, response.Raw)
				}
				return cli.WriteJSON(s.stdout, raw, cli.IsTerminal(s.stdout))
			}

			lines, err := sess.SendAndDrainConsole(command)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(s.stdout, line)
			}
			return nil
		},
	}
}
