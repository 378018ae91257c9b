// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/cli"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/mockserver"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func newListCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rows := cli.Rows(a.ledger)
			if asJSON {
				return cli.NewJSONResponse("list", rows).Write(cmd.OutOrStdout())
			}
			cli.PrintList(cmd.OutOrStdout(), rows, time.Now(), cli.GetTerminalWidth())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		outDir string
		stdout bool
		open   bool
	)
	cmd := &cobra.Command{
		Use:   "export <conversation>",
		Short: "Export a conversation to Markdown, JSON or YAML",
		Long: `Export a conversation. <conversation> is an id, a unique id prefix of at
least four characters, or a position from 'parley list'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return cli.NewUsageError("%v", err)
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := cli.Resolve(a.ledger, args[0])
			if err != nil {
				return err
			}
			eopts := export.DefaultOptions()
			eopts.OutputDir = outDir
			eopts.OpenAfterExport = open
			if stdout {
				return export.Write(cmd.OutOrStdout(), conv, f, eopts)
			}
			path, err := export.ExportToFile(conv, export.ForFormat(f, eopts), eopts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Exported to "+path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md, json or yaml")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "write to stdout instead of a file")
	cmd.Flags().BoolVar(&open, "open", false, "open the file after exporting")
	return cmd
}

func newRenameCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := cli.Resolve(a.ledger, args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			out, err := a.ledger.Rename(conv.ID, title)
			if err != nil {
				return err
			}
			if !out.Persisted() {
				return fmt.Errorf("save conversations: %w", out.PersistErr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Renamed to "+util.SingleLine(title))
			return nil
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <conversation>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := cli.Resolve(a.ledger, args[0])
			if err != nil {
				return err
			}
			ok, err := cli.RequireConfirmation(fmt.Sprintf("Delete %q", conv.Title), cli.ConfirmationOptions{
				Yes:         yes,
				Interactive: cli.IsTTY(),
				In:          cmd.InOrStdin(),
				Out:         cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled")
				return nil
			}
			out, err := a.ledger.Delete(conv.ID)
			if err != nil {
				return err
			}
			if !out.Persisted() {
				return fmt.Errorf("save conversations: %w", out.PersistErr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Conversation deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// =============================================================================
// MOCK SERVER
// =============================================================================

func newMockServerCmd() *cobra.Command {
	var (
		addr  string
		delay time.Duration
		token string
	)
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve canned streaming answers for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := mockserver.New(
				mockserver.WithDelay(delay),
				mockserver.WithAuthToken(token),
			)
			log.SetOutput(os.Stderr)

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Printf("MOCK_SERVER_SHUTDOWN_FAILED | err=%v", err)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Mock completion service on http://%s (Ctrl+C to stop)\n", addr)
			return srv.ListenAndServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", mockserver.DefaultAddr, "listen address")
	cmd.Flags().DurationVar(&delay, "delay", 40*time.Millisecond, "pause between streamed words")
	cmd.Flags().StringVar(&token, "token", "", "require this bearer token")
	return cmd
}

// =============================================================================
// CONFIG
// =============================================================================

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				v, err := cfg.Get(args[0])
				if err != nil {
					return cli.NewUsageError("%v", err)
				}
				if args[0] == "service.api_key" && v != "" {
					v = "****"
				}
				if v == nil {
					v = ""
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting and save it to config.toml",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(&globalOptions{configPath: opts.configPath})
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return cli.NewUsageError("%v", err)
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				switch {
				case strings.HasSuffix(opts.configPath, ".json"):
					err = config.SaveJSON(cfg, opts.configPath)
				case opts.configPath != "":
					err = config.SaveTOML(cfg, opts.configPath)
				default:
					err = config.Save(cfg)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List setting names",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				for _, k := range config.Keys() {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := opts.configPath
				if path == "" {
					p, err := config.ConfigPathTOML()
					if err != nil {
						return err
					}
					path = p
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)
	return cmd
}
