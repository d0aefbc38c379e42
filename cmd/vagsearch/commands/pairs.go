// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
	"github.com/spt-tools/vagsearch/lib/portal"
)

func pairsCommand(s streams) *cli.Command {
	var params connectionParams
	var outputJSON bool
	return &cli.Command{
		Name:    "pairs",
		Summary: "List active portal pairs",
		Description: `List active portal pairs.

Each row is one group of active portals: a linked blue/orange pair or a
lone portal whose partner is missing or deactivated. A search needs a
row with both sides filled.`,
		Usage: "vagsearch pairs [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("pairs", pflag.ContinueOnError)
			params.register(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}
			if err := requireConsole(cfg); err != nil {
				return err
			}
			logger := cli.NewLogger(s.stderr, cfg.Debug)

			sess, err := openSession(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			pairs, err := portal.NewLocator(sess, logger).ListActiveLinkedPairs()
			if err != nil {
				return err
			}

			if outputJSON {
				summaries := make([]pairSummary, 0, len(pairs))
				for _, pair := range pairs {
					summaries = append(summaries, newPairSummary(pair))
				}
				return cli.WriteJSON(s.stdout, summaries, cli.IsTerminal(s.stdout))
			}
			printPairs(s.stdout, params.styles(s), pairs)
			return nil
		},
	}
}

func printPairs(w io.Writer, styles *cli.Styles, pairs []portal.Pair) {
	if len(pairs) == 0 {
		fmt.Fprintln(w, styles.Faint.Render("no active portals"))
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BLUE\tORIGIN\tORANGE\tORIGIN\tLINKED")
	for _, pair := range pairs {
		blueIndex, blueOrigin := portalColumns(pair.Blue)
		orangeIndex, orangeOrigin := portalColumns(pair.Orange)
		linked := styles.Bad.Render("no")
		if pair.Linked() {
			linked = styles.Good.Render("yes")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", blueIndex, blueOrigin, orangeIndex, orangeOrigin, linked)
	}
	tw.Flush()
}

func portalColumns(p *portal.Portal) (index, origin string) {
	if p == nil {
		return "-", "-"
	}
	return fmt.Sprint(p.Index), p.Origin.String()
}

// pairSummary is the --json form of a pair.
type pairSummary struct {
	Blue   *portalSummary `json:"blue"`
	Orange *portalSummary `json:"orange"`
	Linked bool           `json:"linked"`
}

type portalSummary struct {
	Index  int        `json:"index"`
	Origin [3]float32 `json:"origin"`
	Angles [3]float32 `json:"angles"`
}

func newPortalSummary(p *portal.Portal) *portalSummary {
	if p == nil {
		return nil
	}
	return &portalSummary{Index: p.Index, Origin: p.Origin, Angles: p.Angles}
}

func newPairSummary(pair portal.Pair) pairSummary {
	return pairSummary{
		Blue:   newPortalSummary(pair.Blue),
		Orange: newPortalSummary(pair.Orange),
		Linked: pair.Linked(),
	}
}
