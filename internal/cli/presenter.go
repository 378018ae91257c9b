// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
)

// Printer is a line-mode session.Presenter. A streamed answer is printed
// as it grows: each replacement that extends the previous text prints only
// the new suffix, anything else reprints the answer on a fresh line.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	// tty enables the erasable pending indicator.
	tty bool

	inputEnabled bool
	streaming    bool
	printed      string
}

var _ session.Presenter = (*Printer)(nil)

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, tty bool) *Printer {
	return &Printer{out: out, tty: tty, inputEnabled: true}
}

const pendingText = "thinking..."

func (p *Printer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, RenderSeparator(40))
}

func (p *Printer) ShowMessage(role model.Role, markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch role {
	case model.RoleUser:
		// While input is locked this is the line just typed; it is already
		// on screen.
		if !p.inputEnabled {
			return
		}
		fmt.Fprintf(p.out, "%s %s\n", UserStyle.Render("You:"), markup)
	case model.RoleAssistant:
		fmt.Fprintf(p.out, "%s\n%s\n", AssistantStyle.Render("Assistant:"), markup)
	default:
		if p.streaming {
			p.endLine()
		}
		fmt.Fprintln(p.out, WarningStyle.Render(markup))
	}
}

func (p *Printer) ShowPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		fmt.Fprint(p.out, DimStyle.Render(pendingText))
	}
}

func (p *Printer) HidePending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		fmt.Fprint(p.out, "\r"+strings.Repeat(" ", len(pendingText))+"\r")
	}
}

func (p *Printer) BeginAssistant(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streaming = true
	p.printed = ""
	fmt.Fprintln(p.out, AssistantStyle.Render("Assistant:"))
}

func (p *Printer) ReplaceAssistant(markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.HasPrefix(markup, p.printed) {
		fmt.Fprint(p.out, markup[len(p.printed):])
	} else {
		p.endLine()
		fmt.Fprint(p.out, markup)
	}
	p.printed = markup
}

func (p *Printer) ScrollToBottom() {}

func (p *Printer) SetInputEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enabled && p.streaming {
		p.endLine()
		p.streaming = false
		p.printed = ""
	}
	p.inputEnabled = enabled
}

func (p *Printer) ConversationsChanged() {}

// endLine finishes a partly printed answer. Caller holds mu.
func (p *Printer) endLine() {
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.out)
	}
	p.printed = ""
}
