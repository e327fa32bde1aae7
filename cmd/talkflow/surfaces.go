/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"talkflow/internal/feed"
	"talkflow/internal/tui"
	"talkflow/internal/ui"
	"talkflow/internal/workspace"
)

type surfaceFlags struct {
	session   string
	title     string
	follow    string
	exportDir string
}

func (f *surfaceFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.session, "session", "s", "", "open this session instead of starting a new one")
	fl.StringVar(&f.title, "title", "", "title of a new session")
	fl.StringVar(&f.follow, "follow", "", "follow a transcript file and add what is appended to it")
	fl.StringVar(&f.exportDir, "export-dir", "", "where exports are written (default: current directory)")
}

// surface is a workspace plus the optional transcript tail feeding it.
type surface struct {
	ws     *workspace.Workspace
	tail   *feed.Tail
	cancel context.CancelFunc
}

func (s *surface) follow() <-chan feed.Event {
	if s.tail == nil {
		return nil
	}
	return s.tail.Events
}

// close stops the tail before flushing the workspace.
func (s *surface) close(ctx context.Context) error {
	s.cancel()
	if s.tail != nil {
		s.tail.Stop()
	}
	return s.ws.Close(ctx)
}

func (c *cli) openSurface(ctx context.Context, cmd *cobra.Command, f surfaceFlags) (*surface, context.Context, error) {
	store, err := c.openStore(ctx, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	ws, err := workspace.New(workspace.Options{Config: c.cfg, Store: store, Logger: c.log.With("sub", "workspace")})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	title := f.title
	if title == "" {
		title = "Conversation " + time.Now().Format("2006-01-02 15:04")
	}
	if _, err := ws.OpenOrCreate(ctx, f.session, title); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	*c.target = ws.CrashTarget()

	runCtx, cancel := context.WithCancel(ctx)
	s := &surface{ws: ws, cancel: cancel}
	if f.follow != "" {
		tail, err := feed.NewTail(f.follow, feed.TailOptions{
			MinLen:   c.cfg.Feed.MinSentenceLen,
			Debounce: time.Duration(c.cfg.Feed.DebounceMs) * time.Millisecond,
			// an existing session already holds what the file said so far
			FromStart: f.session == "",
		})
		if err == nil {
			err = tail.Start(runCtx)
		}
		if err != nil {
			cancel()
			_ = ws.Close(ctx)
			_ = store.Close()
			return nil, nil, err
		}
		s.tail = tail
	}
	return s, runCtx, nil
}

func exportDir(dir string) string {
	if dir != "" {
		return dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return os.TempDir()
}

func newTUICmd(c *cli) *cobra.Command {
	var f surfaceFlags
	cmd := &cobra.Command{
		Use:         "tui",
		Short:       "Open a session in the terminal",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{logToFile: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			s, runCtx, err := c.openSurface(ctx, cmd, f)
			if err != nil {
				return err
			}
			store := s.ws.Store()
			defer func() { _ = store.Close() }()

			app, err := tui.New(tui.Options{
				Workspace: s.ws,
				Follow:    s.follow(),
				ExportDir: exportDir(f.exportDir),
				Logger:    c.log.With("sub", "tui"),
			})
			if err != nil {
				_ = s.close(ctx)
				return err
			}
			runErr := app.Run(runCtx)
			if err := s.close(context.Background()); err != nil && runErr == nil {
				runErr = err
			}
			if runErr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "session", s.ws.Session().ID, "saved")
			}
			return runErr
		},
	}
	f.register(cmd)
	return cmd
}

func newUICmd(c *cli) *cobra.Command {
	var f surfaceFlags
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open a session in the desktop window (build with -tags fyne)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			s, runCtx, err := c.openSurface(ctx, cmd, f)
			if err != nil {
				return err
			}
			store := s.ws.Store()
			defer func() { _ = store.Close() }()

			runErr := ui.Run(runCtx, ui.Options{
				Workspace: s.ws,
				Follow:    s.follow(),
				ExportDir: exportDir(f.exportDir),
			})
			if err := s.close(context.Background()); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
	f.register(cmd)
	return cmd
}
