/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command talkflow turns conversation transcripts into live diagrams.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"talkflow/internal/config"
	"talkflow/internal/crash"
	applog "talkflow/internal/log"
	"talkflow/internal/storage"
	"talkflow/internal/version"
)

// logToFile marks commands that own the terminal and must not log to it.
const logToFile = "log-to-file"

type cli struct {
	cfg      config.AppConfig
	dbPath   string
	logLevel string
	target   *crash.Target
	log      *slog.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var target crash.Target
	defer crash.Recover(&target)

	root := newRootCmd(&target)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd(target *crash.Target) *cobra.Command {
	c := &cli{target: target}
	root := &cobra.Command{
		Use:           "talkflow",
		Short:         "Turn conversations into mind maps, flowcharts and outlines",
		Long:          "talkflow lays out spoken utterances as an interactive diagram that grows while the conversation goes on.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "session database (default: sessions.db in the config dir)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug|info|warn|error")

	root.AddCommand(
		newVersionCmd(),
		newRenderCmd(c),
		newTUICmd(c),
		newUICmd(c),
		newServeCmd(c),
		newSessionsCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		// Load still returns defaults plus env overrides
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: config ignored:", err)
	}
	c.cfg = cfg

	opts := cfg.Logging.Options()
	if c.logLevel != "" {
		opts.Level = c.logLevel
	}
	if cmd.Annotations[logToFile] == "true" {
		if opts.File == "" {
			opts.File = filepath.Join(os.TempDir(), "talkflow.log")
		}
		applog.InitWriter(nil, opts)
	} else {
		applog.Init(opts)
	}
	c.log = applog.WithComponent("cli")
	c.log.Debug("start", slog.String("cmd", cmd.CommandPath()))
	return nil
}

// openStore opens the session database, recreating it when it is corrupt.
func (c *cli) openStore(ctx context.Context, stderr io.Writer) (*storage.Store, error) {
	path := c.dbPath
	if path == "" {
		var err error
		if path, err = c.cfg.Storage.Path(); err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}
	store, recovered, err := storage.OpenOrRecover(ctx, path)
	if err != nil {
		return nil, err
	}
	if recovered {
		fmt.Fprintf(stderr, "warning: %s was unreadable; a copy was moved to %s and a new database started\n",
			store.Path(), filepath.Join(filepath.Dir(store.Path()), storage.BackupsDirName))
	}
	return store, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "talkflow", version.String())
		},
	}
}
