// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
	"github.com/spt-tools/vagsearch/lib/geom"
	"github.com/spt-tools/vagsearch/lib/journal"
)

func journalCommand(s streams) *cli.Command {
	var outputJSON, noColor bool
	return &cli.Command{
		Name:    "journal",
		Summary: "Print a recorded probe journal",
		Description: `Print a probe journal written by "vagsearch search --journal".

The header shows the portal placement the search ran against; two
journals with the same placement digest searched the same portals.`,
		Usage: "vagsearch journal [flags] <file>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("journal", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			flagSet.BoolVar(&noColor, "no-color", false, "disable colored output")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one journal file is required")
			}
			recorded, err := journal.ReadFile(args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(s.stdout, newJournalSummary(recorded), cli.IsTerminal(s.stdout))
			}
			printJournal(s.stdout, cli.NewStyles(s.stdout, !noColor), recorded)
			return nil
		},
	}
}

func printJournal(w io.Writer, styles *cli.Styles, recorded *journal.Journal) {
	header := recorded.Header
	fmt.Fprintln(w, styles.Title.Render("Search"))
	fmt.Fprintf(w, "started:     %s\n", header.Started().Format(time.RFC3339))
	fmt.Fprintf(w, "policy:      %s\n", header.Policy)
	fmt.Fprintf(w, "compression: %s\n", recorded.Compression)
	fmt.Fprintf(w, "entry:       %d at %s\n", header.Entry.Index, geom.Vec3(header.Entry.Origin))
	fmt.Fprintf(w, "exit:        %d at %s\n", header.Exit.Index, geom.Vec3(header.Exit.Origin))
	fmt.Fprintf(w, "placement:   %s\n", styles.Faint.Render(header.Placement.String()))

	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.Title.Render("Probes"))
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCLASS\tSIDE\tCOMMAND")
	for _, probe := range recorded.Probes {
		class := probe.Classification
		if probe.Crash {
			class = "crash"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", probe.Iteration, class, probe.Side, probe.Command)
	}
	tw.Flush()

	fmt.Fprintln(w)
	if recorded.Result == nil {
		fmt.Fprintln(w, styles.Warn.Render("search did not finish"))
		return
	}
	fmt.Fprintf(w, "%s after %d probes\n", recorded.Result.Outcome, recorded.Result.Probes)
	if recorded.Result.Command != "" {
		fmt.Fprintln(w, recorded.Result.Command)
	}
}

// journalSummary is the --json form of a journal.
type journalSummary struct {
	Compression string                `json:"compression"`
	StartedAt   time.Time             `json:"started_at"`
	Policy      string                `json:"policy"`
	Entry       portalSummary         `json:"entry"`
	Exit        portalSummary         `json:"exit"`
	Placement   string                `json:"placement"`
	Probes      []journal.ProbeRecord `json:"probes"`
	Result      *journal.ResultRecord `json:"result"`
}

func newJournalSummary(recorded *journal.Journal) journalSummary {
	header := recorded.Header
	return journalSummary{
		Compression: recorded.Compression.String(),
		StartedAt:   header.Started(),
		Policy:      header.Policy,
		Entry:       portalSummary{Index: header.Entry.Index, Origin: header.Entry.Origin, Angles: header.Entry.Angles},
		Exit:        portalSummary{Index: header.Exit.Index, Origin: header.Exit.Origin, Angles: header.Exit.Angles},
		Placement:   header.Placement.String(),
		Probes:      recorded.Probes,
		Result:      recorded.Result,
	}
}
