// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/ledger"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// REPL
// =============================================================================

// REPLOptions configures a REPL.
type REPLOptions struct {
	Out io.Writer
	// HistoryFile is where line history is kept. Empty disables it.
	HistoryFile string
	Export      *export.Options
	Width       int
	Now         func() time.Time
	// Ask confirms a destructive command. Defaults to a liner prompt
	// while Run is active.
	Ask func(question string) bool
}

// REPL is the line-mode chat. Messages go to the controller, which
// presents through a Printer; slash commands are handled here.
type REPL struct {
	ctrl      *session.Controller
	ledger    *ledger.Ledger
	parser    *commands.Parser
	completer *commands.Completer
	opts      REPLOptions
	line      *liner.State
}

// NewREPL creates a REPL for ctrl.
func NewREPL(ctrl *session.Controller, opts REPLOptions) *REPL {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Export == nil {
		opts.Export = export.DefaultOptions()
	}
	if opts.Width <= 0 {
		opts.Width = DefaultTerminalWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	parser := commands.NewParser(commands.NewRegistry())
	completer := commands.NewCompleter(parser.Registry())
	completer.ConversationsFn = ctrl.Ledger().Len
	return &REPL{
		ctrl:      ctrl,
		ledger:    ctrl.Ledger(),
		parser:    parser,
		completer: completer,
		opts:      opts,
	}
}

// Run reads lines until /quit, Ctrl+C or EOF.
func (r *REPL) Run(ctx context.Context) error {
	r.line = liner.NewLiner()
	defer r.line.Close()
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(r.completer.Complete)
	if r.opts.Ask == nil {
		r.opts.Ask = r.askLiner
	}
	r.loadHistory()
	defer r.saveHistory()

	fmt.Fprintln(r.opts.Out, TitleStyle.Render("parley")+" "+
		DimStyle.Render("Type a message and press Enter. /help lists commands."))
	r.ctrl.Start()

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := r.line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.opts.Out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			r.line.AppendHistory(input)
		}

		quit, err := r.Handle(ctx, input)
		if err != nil {
			fmt.Fprintln(r.opts.Out, FormatError(err))
		}
		if quit {
			return nil
		}
	}
}

// Handle runs one line of input. It reports whether the REPL should stop.
// Exchange failures are already shown by the controller and are not
// returned.
func (r *REPL) Handle(ctx context.Context, input string) (bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}

	res := r.parser.Parse(input)
	if !res.IsCommand {
		if _, err := r.ctrl.Send(ctx, input); errors.Is(err, session.ErrBusy) {
			return false, err
		}
		return false, nil
	}
	if res.Error != nil {
		return false, res.Error
	}
	if res.Command.TUIOnly {
		return false, NewUsageError("%s is only available in the full-screen UI", res.Command.Name)
	}
	return r.runCommand(res)
}

func (r *REPL) runCommand(res commands.ParseResult) (bool, error) {
	out := r.opts.Out
	switch res.Command.Name {
	case commands.New:
		r.ctrl.NewConversation()

	case commands.List:
		PrintList(out, Rows(r.ledger), r.opts.Now(), r.opts.Width)

	case commands.Open:
		conv, err := Resolve(r.ledger, res.Args[0])
		if err != nil {
			return false, err
		}
		return false, r.ctrl.Open(conv.ID)

	case commands.Rename:
		if err := r.ctrl.Rename(r.ledger.Active(), res.RawArgs); err != nil {
			return false, err
		}
		fmt.Fprintln(out, DimStyle.Render("Renamed to "+util.SingleLine(res.RawArgs)))

	case commands.Delete:
		id := r.ledger.Active()
		if len(res.Args) > 0 {
			conv, err := Resolve(r.ledger, res.Args[0])
			if err != nil {
				return false, err
			}
			id = conv.ID
		}
		conv, ok := r.ledger.Get(id)
		if !ok {
			return false, notFound(id)
		}
		if r.opts.Ask == nil || !r.opts.Ask(fmt.Sprintf("Delete %q?", conv.Title)) {
			fmt.Fprintln(out, DimStyle.Render("Delete cancelled"))
			return false, nil
		}
		if err := r.ctrl.Delete(id); err != nil {
			return false, err
		}
		fmt.Fprintln(out, DimStyle.Render("Conversation deleted"))

	case commands.Export:
		f := export.FormatMarkdown
		if len(res.Args) > 0 {
			parsed, err := export.ParseFormat(res.Args[0])
			if err != nil {
				return false, err
			}
			f = parsed
		}
		conv, ok := r.ledger.Get(r.ledger.Active())
		if !ok {
			return false, export.ErrNilConversation
		}
		path, err := export.ExportToFile(conv, export.ForFormat(f, r.opts.Export), r.opts.Export)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, DimStyle.Render("Exported to "+path))

	case commands.Help:
		r.printHelp()

	case commands.Quit:
		return true, nil
	}
	return false, nil
}

func (r *REPL) printHelp() {
	out := r.opts.Out
	fmt.Fprintln(out, TitleStyle.Render("Commands"))
	for _, cmd := range r.parser.Registry().All() {
		if cmd.TUIOnly {
			continue
		}
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		fmt.Fprintf(out, "  %-18s %s\n", usage, DimStyle.Render(cmd.Description))
	}
}

// =============================================================================
// LINER SUPPORT
// =============================================================================

func (r *REPL) askLiner(question string) bool {
	answer, err := r.line.Prompt(question + " [y/N] ")
	if err != nil {
		return false
	}
	return IsYes(answer)
}

func (r *REPL) loadHistory() {
	if r.opts.HistoryFile == "" {
		return
	}
	f, err := os.Open(r.opts.HistoryFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := r.line.ReadHistory(f); err != nil {
		log.Printf("REPL_HISTORY_READ_FAILED | path=%s err=%v", r.opts.HistoryFile, err)
	}
}

// saveHistory writes the history with owner-only permissions.
func (r *REPL) saveHistory() {
	if r.opts.HistoryFile == "" {
		return
	}
	var b strings.Builder
	if _, err := r.line.WriteHistory(&b); err != nil {
		log.Printf("REPL_HISTORY_WRITE_FAILED | path=%s err=%v", r.opts.HistoryFile, err)
		return
	}
	if err := util.AtomicWriteFileWithDir(r.opts.HistoryFile, []byte(b.String()), 0600, 0700); err != nil {
		log.Printf("REPL_HISTORY_WRITE_FAILED | path=%s err=%v", r.opts.HistoryFile, err)
	}
}
