// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jeranaias/parley/internal/cli"
	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/ledger"
	"github.com/jeranaias/parley/internal/render"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app is the configured ledger and its backend, shared by every command.
type app struct {
	cfg     *config.Config
	backend storage.Backend
	ledger  *ledger.Ledger
	logFile *os.File
}

// openApp loads the config, starts logging and opens the conversation
// store.
func openApp(opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	a.logFile = setupLogging(cfg)

	backend, err := openBackend(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = backend
	a.ledger = ledger.Open(backend)
	log.Printf("APP_START | version=%s backend=%s conversations=%d",
		cli.Version, cfg.Storage.Backend, a.ledger.Len())
	return a, nil
}

// Close releases the backend and the log file.
func (a *app) Close() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			log.Printf("BACKEND_CLOSE_FAILED | err=%v", err)
		}
	}
	if a.logFile != nil {
		log.SetOutput(io.Discard)
		a.logFile.Close()
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.backend != "" {
		cfg.Storage.Backend = opts.backend
	}
	if opts.ephemeral {
		cfg.Storage.Backend = config.BackendMemory
	}
	if opts.baseURL != "" {
		cfg.Service.BaseURL = opts.baseURL
	}
	if opts.render != "" {
		cfg.UI.Render = opts.render
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// setupLogging sends the standard logger to the configured log file. The
// terminal belongs to the chat, so logs are discarded when the file cannot
// be opened.
func setupLogging(cfg *config.Config) *os.File {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(io.Discard)

	path, err := cfg.LogFile()
	if err != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil
	}
	// SECURITY: the log names conversations, keep it owner-only
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil
	}
	log.SetOutput(f)
	return f
}

// openBackend opens the configured storage backend.
func openBackend(cfg *config.Config) (storage.Backend, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return storage.NewMemoryBackend(), nil
	}
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return storage.OpenSQLite(path)
	default:
		return storage.NewFileBackend(path)
	}
}

// watch reloads the ledger when another process changes the store and
// calls onChange after each reload that changed something.
func (a *app) watch(ctx context.Context, onChange func()) {
	if !a.cfg.Storage.Watch {
		return
	}
	err := storage.Watch(ctx, a.backend, func() {
		changed, err := a.ledger.Reload()
		if err != nil {
			log.Printf("LEDGER_RELOAD_FAILED | err=%v", err)
			return
		}
		if changed {
			log.Printf("LEDGER_RELOADED | conversations=%d", a.ledger.Len())
			onChange()
		}
	})
	if err != nil && !errors.Is(err, storage.ErrWatchUnsupported) {
		log.Printf("WATCH_FAILED | err=%v", err)
	}
}

// client builds the completion transport from the service config.
func (a *app) client() *cloud.Client {
	svc := a.cfg.Service
	c := cloud.NewClient(svc.BaseURL).
		WithPath(svc.Path).
		WithAPIKey(svc.APIKey).
		WithModel(svc.Model).
		WithMaxTokens(svc.MaxTokens).
		WithRateLimit(svc.RequestsPerMinute)
	if svc.Temperature != nil {
		c = c.WithTemperature(*svc.Temperature)
	}
	return c
}

// controller builds the session controller for a presenter.
func (a *app) controller(r render.Renderer, p session.Presenter) *session.Controller {
	sc := session.DefaultConfig()
	sc.HistoryWindow = a.cfg.Service.HistoryWindow
	if a.cfg.UI.Greeting != "" {
		sc.Greeting = a.cfg.UI.Greeting
	}
	sc.OnTransition = func(from, to session.State) {
		log.Printf("SESSION_STATE | from=%s to=%s", from, to)
	}
	return session.New(a.ledger, a.client(), r, p, sc)
}

// =============================================================================
// CHAT MODES
// =============================================================================

// runTUI opens the full-screen chat.
func runTUI(ctx context.Context, opts *globalOptions) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	width := a.cfg.UI.WordWrap
	if width <= 0 {
		// bubble padding, plus the sidebar and its gap
		width = cli.GetTerminalWidth() - 4
		if a.cfg.UI.Sidebar {
			width -= 31
		}
		width = max(width, cli.MinTerminalWidth)
	}
	renderer := render.New(a.cfg.UI.Render, a.cfg.UI.Theme, width)

	bridge := chat.NewBridge(nil)
	ctrl := a.controller(renderer, bridge)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.watch(ctx, bridge.ConversationsChanged)

	return chat.Run(ctx, bridge, chat.Options{
		Controller: ctrl,
		Theme:      styles.NewTheme(),
		Sidebar:    a.cfg.UI.Sidebar,
	})
}

// runChat runs the line-mode chat on stdin and stdout.
func runChat(ctx context.Context, opts *globalOptions) error {
	if opts.render == "" {
		opts.render = render.ModePlain
	}
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	width := a.cfg.UI.WordWrap
	if width <= 0 {
		width = cli.GetTerminalWidth()
	}
	renderer := render.New(a.cfg.UI.Render, a.cfg.UI.Theme, width)
	printer := cli.NewPrinter(os.Stdout, cli.IsStdoutTTY())
	ctrl := a.controller(renderer, printer)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.watch(ctx, func() {})

	history, err := config.HistoryFile()
	if err != nil {
		log.Printf("REPL_HISTORY_DISABLED | err=%v", err)
		history = ""
	}
	return cli.NewREPL(ctrl, cli.REPLOptions{
		Out:         os.Stdout,
		HistoryFile: history,
		Width:       width,
	}).Run(ctx)
}
