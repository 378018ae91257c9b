// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/ledger"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/render"
	"github.com/jeranaias/parley/internal/sse"
)

// =============================================================================
// STATES
// =============================================================================

// State is the controller's position in the exchange lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateStreaming
	StateCommitting
	StateFailed
)

// String returns the state name used in log lines.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateStreaming:
		return "streaming"
	case StateCommitting:
		return "committing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Errors returned by Send before an exchange starts.
var (
	ErrBusy       = errors.New("an answer is still streaming")
	ErrEmptyInput = errors.New("message is empty")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultGreeting is shown, never stored, in a conversation with no
// messages.
const DefaultGreeting = "Welcome! Type your question below."

// Config holds controller settings.
type Config struct {
	// HistoryWindow is how many trailing messages are sent upstream. The
	// default of 1 sends only the message just typed.
	HistoryWindow int

	// Greeting is the notice shown for an empty conversation.
	Greeting string

	// ReadBufferSize is the size of each read from the response body.
	ReadBufferSize int

	// OnTransition, if set, observes every state change.
	OnTransition func(from, to State)
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:  1,
		Greeting:       DefaultGreeting,
		ReadBufferSize: 4096,
	}
}

// Result describes one Send.
type Result struct {
	ConversationID string
	Content        string
	Deltas         int
	Malformed      int
	Committed      bool
	// Dropped is set when the target conversation was deleted before the
	// answer could be committed.
	Dropped bool
	Err     error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller ties the transport, decoder, ledger and presenter together.
// It runs at most one exchange at a time.
type Controller struct {
	ledger    *ledger.Ledger
	transport Transport
	renderer  render.Renderer
	presenter Presenter
	cfg       Config

	mu    sync.Mutex
	state State
}

// New creates a controller. Zero fields of cfg take their defaults.
func New(l *ledger.Ledger, t Transport, r render.Renderer, p Presenter, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.Greeting == "" {
		cfg.Greeting = def.Greeting
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = def.ReadBufferSize
	}
	if r == nil {
		r = render.Plain{}
	}
	if p == nil {
		p = NopPresenter{}
	}
	return &Controller{ledger: l, transport: t, renderer: r, presenter: p, cfg: cfg}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ledger returns the ledger the controller writes to.
func (c *Controller) Ledger() *ledger.Ledger {
	return c.ledger
}

// begin claims the controller for a new exchange.
func (c *Controller) begin() bool {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return false
	}
	c.state = StateAwaitingResponse
	c.mu.Unlock()
	c.observe(StateIdle, StateAwaitingResponse)
	return true
}

// transition moves to state to.
func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	c.observe(from, to)
}

func (c *Controller) observe(from, to State) {
	log.Printf("SESSION_STATE | from=%s to=%s", from, to)
	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(from, to)
	}
}

// =============================================================================
// EXCHANGE
// =============================================================================

// Send runs one exchange for text against the active conversation. It
// returns ErrBusy while another exchange is in flight. Transport and read
// failures are shown as a notice and also returned; the controller is Idle
// again when Send returns.
func (c *Controller) Send(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}

	if !c.begin() {
		return Result{}, ErrBusy
	}

	c.presenter.SetInputEnabled(false)
	// RELIABILITY: input comes back on every exit path.
	defer func() {
		c.transition(StateIdle)
		c.presenter.SetInputEnabled(true)
	}()

	target := c.ledger.Active()
	if target == "" {
		conv, _ := c.ledger.Create()
		target = conv.ID
	}
	res := Result{ConversationID: target}

	if _, err := c.ledger.Append(target, model.NewUserMessage(text)); err != nil {
		return c.fail(res, err)
	}
	c.presenter.ShowMessage(model.RoleUser, text)
	c.presenter.ConversationsChanged()
	c.presenter.ShowPending()
	c.presenter.ScrollToBottom()

	body, err := c.transport.Open(ctx, c.request(target))
	if err != nil {
		return c.fail(res, err)
	}
	defer body.Close()

	c.presenter.HidePending()
	c.presenter.BeginAssistant(target)
	c.transition(StateStreaming)

	if err := c.stream(ctx, body, &res); err != nil {
		return c.fail(res, err)
	}

	c.transition(StateCommitting)
	c.commit(&res)
	return res, nil
}

// request builds the outbound body from the trailing history window.
func (c *Controller) request(target string) cloud.CompletionRequest {
	var window []model.Message
	if conv, ok := c.ledger.Get(target); ok {
		window = conv.Tail(c.cfg.HistoryWindow)
	}
	msgs := make([]cloud.ChatMessage, 0, len(window))
	for _, m := range window {
		msgs = append(msgs, cloud.ChatMessage{Role: m.Role.String(), Content: m.Content})
	}
	return cloud.CompletionRequest{
		ID:             model.NewID(),
		ConversationID: target,
		Messages:       msgs,
		Stream:         true,
	}
}

// stream reads body to the end or to [DONE], rendering the full answer
// after every delta.
func (c *Controller) stream(ctx context.Context, body io.Reader, res *Result) error {
	dec := sse.NewDecoder()
	var text strings.Builder

	handle := func(frames []string) (done bool) {
		for _, frame := range frames {
			ev := sse.Extract(frame)
			switch ev.Kind {
			case sse.KindDelta:
				text.WriteString(ev.Content)
				res.Deltas++
				c.presenter.ReplaceAssistant(c.renderer.Render(text.String()))
				c.presenter.ScrollToBottom()
			case sse.KindDone:
				return true
			case sse.KindMalformed:
				res.Malformed++
				log.Printf("SSE_FRAME_MALFORMED | conversation=%s err=%v", res.ConversationID, ev.Err)
			}
		}
		return false
	}

	buf := make([]byte, c.cfg.ReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			res.Content = text.String()
			return err
		}
		n, err := body.Read(buf)
		if n > 0 && handle(dec.Feed(buf[:n])) {
			res.Content = text.String()
			return nil
		}
		if errors.Is(err, io.EOF) {
			handle(dec.Flush())
			res.Content = text.String()
			return nil
		}
		if err != nil {
			res.Content = text.String()
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

// commit stores the answer in the captured conversation. A conversation
// deleted mid-stream is not brought back; the answer is dropped.
func (c *Controller) commit(res *Result) {
	_, err := c.ledger.Append(res.ConversationID, model.NewAssistantMessage(res.Content))
	if errors.Is(err, ledger.ErrConversationNotFound) {
		res.Dropped = true
		log.Printf("SESSION_COMMIT_DROPPED | conversation=%s chars=%d reason=deleted",
			res.ConversationID, len(res.Content))
		return
	}
	if err != nil {
		res.Err = err
		log.Printf("SESSION_COMMIT_FAILED | conversation=%s err=%v", res.ConversationID, err)
		return
	}
	res.Committed = true
	if _, err := c.ledger.EnsureTitle(res.ConversationID); err != nil {
		log.Printf("SESSION_TITLE_FAILED | conversation=%s err=%v", res.ConversationID, err)
	}
	c.presenter.ConversationsChanged()
	log.Printf("SESSION_COMMITTED | conversation=%s deltas=%d malformed=%d chars=%d",
		res.ConversationID, res.Deltas, res.Malformed, len(res.Content))
}

// fail shows a notice that is never stored and records err.
func (c *Controller) fail(res Result, err error) (Result, error) {
	c.transition(StateFailed)
	res.Err = err
	c.presenter.HidePending()
	c.Notice("An error occurred, please try again. " + err.Error())
	c.presenter.ScrollToBottom()
	log.Printf("SESSION_FAILED | conversation=%s deltas=%d err=%v", res.ConversationID, res.Deltas, err)
	return res, err
}

// Notice shows a system-role message that is not stored.
func (c *Controller) Notice(text string) {
	c.presenter.ShowMessage(model.RoleSystem, text)
}
