// parley - a terminal chat client for streaming completion services.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/cli"
)

func main() {
	os.Exit(run())
}

// run executes the command line and returns the process exit code.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&globalOptions{})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		return cli.ExitCode(err)
	}
	return cli.ExitSuccess
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	ephemeral  bool
	backend    string
	baseURL    string
	render     string
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "parley",
		Short: "Chat with a streaming completion service from the terminal",
		Long: `parley sends your messages to an HTTP completion endpoint and shows the
answer as it streams in. Conversations are kept between runs.

Without a subcommand parley opens the full-screen chat when the terminal
supports it, and the line-mode chat otherwise.`,
		Version:       cli.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.CanRunTUI() {
				return runTUI(cmd.Context(), opts)
			}
			return runChat(cmd.Context(), opts)
		},
	}
	root.SetVersionTemplate(cli.VersionString() + "\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.parley/config.toml)")
	pf.BoolVar(&opts.ephemeral, "ephemeral", false, "keep conversations in memory only")
	pf.StringVar(&opts.backend, "backend", "", "storage backend: file, sqlite or memory")
	pf.StringVar(&opts.baseURL, "base-url", "", "completion service base URL")
	pf.StringVar(&opts.render, "render", "", "answer rendering: markdown, code or plain")

	root.AddCommand(
		newTUICmd(opts),
		newChatCmd(opts),
		newListCmd(opts),
		newExportCmd(opts),
		newRenameCmd(opts),
		newDeleteCmd(opts),
		newMockServerCmd(),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cli.CanRunTUI() {
				return &cli.TTYRequiredError{Operation: "open the full-screen chat"}
			}
			return runTUI(cmd.Context(), opts)
		},
	}
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cli.VersionString())
		},
	}
}
