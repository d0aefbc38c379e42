// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
	"github.com/spt-tools/vagsearch/lib/config"
	"github.com/spt-tools/vagsearch/lib/journal"
	"github.com/spt-tools/vagsearch/lib/portal"
	"github.com/spt-tools/vagsearch/lib/vag"
)

// Exit codes for searches that ran to completion without a glitch.
const (
	exitFail          = 2
	exitMaxIterations = 3
	exitWouldCrash    = 4
)

// searchParams select the pair and tune the search.
type searchParams struct {
	connectionParams
	color       string
	index       int
	policy      string
	journal     string
	compression string
	maxProbes   int
	showProbes  bool
	outputJSON  bool
}

func (p *searchParams) register(flagSet *pflag.FlagSet) {
	p.connectionParams.register(flagSet)
	flagSet.StringVar(&p.color, "color", string(portal.Orange), "color of the entry portal when exactly one pair exists")
	flagSet.IntVar(&p.index, "index", -1, "entity index of the entry portal (overrides --color)")
	flagSet.StringVar(&p.policy, "policy", "", "probe classification: containment or distance (default from config)")
	flagSet.StringVar(&p.journal, "journal", "", "record every probe to this file")
	flagSet.StringVar(&p.compression, "compression", "", "journal compression: none, zstd or lz4 (default from config)")
	flagSet.IntVar(&p.maxProbes, "max-probes", vag.DefaultMaxProbes, "probe budget")
}

// load applies the search overrides on top of the connection config and
// validates the result.
func (p *searchParams) load() (*config.Config, error) {
	cfg, err := p.connectionParams.load()
	if err != nil {
		return nil, err
	}
	if p.policy != "" {
		cfg.Search.Policy = p.policy
	}
	if p.journal != "" {
		cfg.Search.Journal = p.journal
	}
	if p.compression != "" {
		cfg.Search.JournalCompression = p.compression
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := requireConsole(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchCommand(s streams) *cli.Command {
	var params searchParams
	return &cli.Command{
		Name:    "search",
		Summary: "Run one glitch search",
		Description: `Run one glitch search.

The entry portal is chosen by --index, or by --color when exactly one
active linked pair exists. The player should be crouched and
noclipping; setpos places it at the entry portal and each probe steps
one float32 ulp along the portal's dominant axis.

Exit status is 0 when the glitch was found, 2 when the walk crossed
sides without finding it, 3 when the probe budget ran out and 4 when
the position would crash the game without SPT.`,
		Usage: "vagsearch search [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("search", pflag.ContinueOnError)
			params.register(flagSet)
			flagSet.BoolVar(&params.showProbes, "probes", false, "list every probe")
			flagSet.BoolVar(&params.outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Enter through blue", Command: "vagsearch search --color blue"},
			{Description: "Classify by distance to each portal", Command: "vagsearch search --policy distance"},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			logger := cli.NewLogger(s.stderr, cfg.Debug)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess, err := openSession(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			runner := &searchRunner{
				executor:  sess,
				locator:   portal.NewLocator(sess, logger),
				config:    cfg,
				color:     params.color,
				index:     params.index,
				maxProbes: params.maxProbes,
				logger:    logger,
			}
			result, err := runner.run(ctx, cfg.Search.Journal)
			if err != nil {
				if result != nil {
					logger.Error("search aborted", "probes", len(result.Probes), "error", err)
				}
				return err
			}

			if params.outputJSON {
				if err := cli.WriteJSON(s.stdout, newResultSummary(result), cli.IsTerminal(s.stdout)); err != nil {
					return err
				}
			} else {
				styles := params.styles(s)
				printResult(s.stdout, styles, result)
				if params.showProbes {
					printProbes(s.stdout, styles, result.Probes)
				}
			}
			return outcomeError(result.Outcome)
		},
	}
}

// searchRunner runs searches against one session. watch reuses it for
// every key press.
type searchRunner struct {
	executor  vag.Executor
	locator   *portal.Locator
	config    *config.Config
	color     string
	index     int
	maxProbes int
	logger    *slog.Logger
}

// selectPair resolves the entry and exit portal.
func (r *searchRunner) selectPair() (entry, exit *portal.Portal, err error) {
	pairs, err := r.locator.ListActiveLinkedPairs()
	if err != nil {
		return nil, nil, err
	}
	if r.index >= 0 {
		return portal.SelectByIndex(pairs, r.index)
	}
	color, err := portal.ParseColor(r.color)
	if err != nil {
		return nil, nil, err
	}
	return portal.SelectByColor(pairs, color)
}

// run performs one search, recording to journalPath when it is set.
// A partial Result accompanies channel errors.
func (r *searchRunner) run(ctx context.Context, journalPath string) (*vag.Result, error) {
	entry, exit, err := r.selectPair()
	if err != nil {
		return nil, err
	}
	policy, err := vag.NewPolicy(r.config.Search.Policy, nil)
	if err != nil {
		return nil, err
	}
	options := vag.Options{
		Policy:    policy,
		MaxProbes: r.maxProbes,
		Logger:    r.logger,
	}

	var writer *journal.Writer
	if journalPath != "" {
		compression, err := journal.ParseCompression(r.config.Search.JournalCompression)
		if err != nil {
			return nil, err
		}
		header := journal.NewHeader(entry, exit, policy.Name(), time.Now())
		writer, err = journal.Create(journalPath, header, compression)
		if err != nil {
			return nil, err
		}
		options.Recorder = writer
		r.logger.Info("recording probes", "journal", journalPath, "placement", header.Placement.Short())
	}

	r.logger.Info("searching", "entry", entry.Index, "exit", exit.Index, "policy", policy.Name())
	result, searchErr := vag.NewSearcher(r.executor, options).Search(ctx, entry, exit)

	if writer != nil {
		var journalErr error
		if searchErr == nil {
			journalErr = writer.Finish(result)
		}
		journalErr = errors.Join(journalErr, writer.Close())
		if searchErr == nil && journalErr != nil {
			return result, journalErr
		}
	}
	return result, searchErr
}

// outcomeError maps an outcome to the process exit status.
func outcomeError(outcome vag.Outcome) error {
	switch outcome {
	case vag.Success:
		return nil
	case vag.Fail:
		return &cli.ExitError{Code: exitFail}
	case vag.MaxIterationsReached:
		return &cli.ExitError{Code: exitMaxIterations}
	default:
		return &cli.ExitError{Code: exitWouldCrash}
	}
}

func outcomeStyle(styles *cli.Styles, outcome vag.Outcome) string {
	text := outcome.String()
	switch outcome {
	case vag.Success:
		return styles.Good.Render(text)
	case vag.MaxIterationsReached:
		return styles.Warn.Render(text)
	default:
		return styles.Bad.Render(text)
	}
}

var axisNames = [3]string{"x", "y", "z"}

// resultLine is the one-line summary of a search.
func resultLine(styles *cli.Styles, result *vag.Result) string {
	stance := "standing"
	if result.Crouched {
		stance = "crouched"
	}
	line := fmt.Sprintf("%s after %d probes %s", outcomeStyle(styles, result.Outcome), len(result.Probes),
		styles.Faint.Render(fmt.Sprintf("(entry %d, exit %d, axis %s, %s)",
			result.EntryIndex, result.ExitIndex, axisNames[result.Axis], stance)))
	if result.Outcome == vag.Success {
		line += "\n" + result.Command()
	}
	return line
}

func printResult(w io.Writer, styles *cli.Styles, result *vag.Result) {
	fmt.Fprintln(w, resultLine(styles, result))
}

func printProbes(w io.Writer, styles *cli.Styles, probes []vag.Probe) {
	fmt.Fprintln(w, styles.Title.Render("Probes"))
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCLASS\tSIDE\tREQUESTED\tOBSERVED")
	for _, probe := range probes {
		class := probe.Observation.Classification.String()
		if probe.Observation.Crash {
			class = "crash"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", probe.Iteration, class, probe.Side,
			probe.Requested, probe.Observation.Position)
	}
	tw.Flush()
}

// resultSummary is the --json form of a search result.
type resultSummary struct {
	Outcome  string         `json:"outcome"`
	Entry    int            `json:"entry"`
	Exit     int            `json:"exit"`
	Axis     string         `json:"axis"`
	Crouched bool           `json:"crouched"`
	Command  string         `json:"command,omitempty"`
	Probes   []probeSummary `json:"probes"`
}

type probeSummary struct {
	Iteration      int        `json:"iteration"`
	Command        string     `json:"command"`
	Classification string     `json:"classification,omitempty"`
	Crash          bool       `json:"crash,omitempty"`
	Side           string     `json:"side"`
	Observed       [3]float32 `json:"observed"`
}

func newResultSummary(result *vag.Result) resultSummary {
	summary := resultSummary{
		Outcome:  result.Outcome.String(),
		Entry:    result.EntryIndex,
		Exit:     result.ExitIndex,
		Axis:     axisNames[result.Axis],
		Crouched: result.Crouched,
		Probes:   make([]probeSummary, 0, len(result.Probes)),
	}
	if result.Outcome == vag.Success {
		summary.Command = result.Command()
	}
	for _, probe := range result.Probes {
		entry := probeSummary{
			Iteration: probe.Iteration,
			Command:   probe.Command,
			Crash:     probe.Observation.Crash,
			Side:      probe.Side.String(),
			Observed:  probe.Observation.Position,
		}
		if probe.Observation.Classification != 0 {
			entry.Classification = probe.Observation.Classification.String()
		}
		summary.Probes = append(summary.Probes, entry)
	}
	return summary
}
