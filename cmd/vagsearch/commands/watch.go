// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"

	"github.com/spt-tools/vagsearch/cmd/vagsearch/cli"
	"github.com/spt-tools/vagsearch/lib/portal"
	"github.com/spt-tools/vagsearch/lib/vag"
)

// watchHistory bounds the results kept on screen.
const watchHistory = 10

func watchCommand(s streams) *cli.Command {
	var params searchParams
	return &cli.Command{
		Name:    "watch",
		Summary: "Keep a session open and search on a key press",
		Description: `Keep a session open and run a search every time "i" is pressed.

Set up the portals in game, switch to this terminal, press i, and copy
the printed setpos command. Press o or q to quit. With --journal each
search after the first gets a numbered journal next to the first.`,
		Usage: "vagsearch watch [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			params.register(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}
			// The TUI owns the terminal; logs are structured so they
			// can be redirected.
			logger := cli.NewLogger(s.stderr, cfg.Debug)

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
			model := newWatchModel(ctx, runner, params.styles(s), cfg.Search.Journal)
			defer model.cancel()
			program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(s.stdout))
			_, err = program.Run()
			return err
		},
	}
}

// watchKeyMap are the watch view's key bindings.
type watchKeyMap struct {
	Search key.Binding
	Quit   key.Binding
}

var defaultWatchKeys = watchKeyMap{
	Search: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "search"),
	),
	Quit: key.NewBinding(
		key.WithKeys("o", "q", "ctrl+c"),
		key.WithHelp("o/q", "quit"),
	),
}

// searchFunc runs one search. n counts searches from 1.
type searchFunc func(ctx context.Context, n int) (*vag.Result, error)

// searchDoneMsg carries a finished search back to the model.
type searchDoneMsg struct {
	n      int
	result *vag.Result
	err    error
}

type watchModel struct {
	// ctx is cancelled on quit so a running search stops at its next
	// probe.
	ctx     context.Context
	cancel  context.CancelFunc
	search  searchFunc
	keys    watchKeyMap
	styles  *cli.Styles
	spinner spinner.Model

	running  bool
	searches int
	history  []string
	width    int
}

func newWatchModel(ctx context.Context, runner *searchRunner, styles *cli.Styles, journalPath string) watchModel {
	search := func(ctx context.Context, n int) (*vag.Result, error) {
		return runner.run(ctx, numberedJournal(journalPath, n))
	}
	return newWatchModelWith(ctx, search, styles)
}

func newWatchModelWith(ctx context.Context, search searchFunc, styles *cli.Styles) watchModel {
	indicator := spinner.New()
	indicator.Spinner = spinner.Dot
	ctx, cancel := context.WithCancel(ctx)
	return watchModel{
		ctx:     ctx,
		cancel:  cancel,
		search:  search,
		keys:    defaultWatchKeys,
		styles:  styles,
		spinner: indicator,
	}
}

func (model watchModel) Init() tea.Cmd {
	return nil
}

func (model watchModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			model.cancel()
			return model, tea.Quit
		case key.Matches(message, model.keys.Search):
			if model.running {
				return model, nil
			}
			model.running = true
			model.searches++
			return model, tea.Batch(model.spinner.Tick, model.runSearch(model.searches))
		}

	case searchDoneMsg:
		model.running = false
		model.record(message)

	case spinner.TickMsg:
		if !model.running {
			return model, nil
		}
		var command tea.Cmd
		model.spinner, command = model.spinner.Update(message)
		return model, command

	case tea.WindowSizeMsg:
		model.width = message.Width
	}
	return model, nil
}

func (model watchModel) runSearch(n int) tea.Cmd {
	search, ctx := model.search, model.ctx
	return func() tea.Msg {
		result, err := search(ctx, n)
		return searchDoneMsg{n: n, result: result, err: err}
	}
}

func (model *watchModel) record(message searchDoneMsg) {
	var line string
	switch {
	case message.err != nil:
		line = fmt.Sprintf("#%d %s %v", message.n, model.styles.Bad.Render("error"), message.err)
	default:
		line = fmt.Sprintf("#%d %s", message.n, resultLine(model.styles, message.result))
	}
	model.history = append(model.history, line)
	if len(model.history) > watchHistory {
		model.history = model.history[len(model.history)-watchHistory:]
	}
}

func (model watchModel) View() string {
	var view strings.Builder
	view.WriteString(model.styles.Title.Render("vagsearch watch"))
	view.WriteString("\n\n")

	for _, entry := range model.history {
		view.WriteString(entry)
		view.WriteString("\n")
	}
	if len(model.history) > 0 {
		view.WriteString("\n")
	}

	if model.running {
		view.WriteString(model.spinner.View())
		view.WriteString(" searching…\n")
	} else {
		help := fmt.Sprintf("%s %s · %s %s",
			model.keys.Search.Help().Key, model.keys.Search.Help().Desc,
			model.keys.Quit.Help().Key, model.keys.Quit.Help().Desc)
		view.WriteString(model.styles.Faint.Render(help))
		view.WriteString("\n")
	}

	if model.width <= 0 {
		return view.String()
	}
	lines := strings.Split(view.String(), "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, model.width, "…")
	}
	return strings.Join(lines, "\n")
}

// numberedJournal returns base for the first search and base with the
// search number before its extension for later ones.
func numberedJournal(base string, n int) string {
	if base == "" || n <= 1 {
		return base
	}
	extension := filepath.Ext(base)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, extension), n, extension)
}
