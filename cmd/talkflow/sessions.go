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
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"talkflow/internal/storage"
)

func newSessionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage stored sessions",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: c.withStore(func(ctx context.Context, cmd *cobra.Command, store *storage.Store, _ []string) error {
			sessions, err := store.ListSessions(ctx, limit, offset)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tMODE\tLINES\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.Title, s.Mode, s.Lines, s.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		}),
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of sessions")
	list.Flags().IntVar(&offset, "offset", 0, "skip this many sessions")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a session's transcript and label edits",
		Args:  cobra.ExactArgs(1),
		RunE: c.withStore(func(ctx context.Context, cmd *cobra.Command, store *storage.Store, args []string) error {
			return showSession(ctx, cmd.OutOrStdout(), store, args[0])
		}),
	}

	export := &cobra.Command{
		Use:   "export ID FILE",
		Short: "Write a session snapshot as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: c.withStore(func(ctx context.Context, cmd *cobra.Command, store *storage.Store, args []string) error {
			snap, err := store.Export(ctx, args[0])
			if err != nil {
				return err
			}
			if err := storage.WriteSnapshotFile(args[1], snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", snap.Session.ID, args[1])
			return nil
		}),
	}

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Store a session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: c.withStore(func(ctx context.Context, cmd *cobra.Command, store *storage.Store, args []string) error {
			snap, err := storage.ReadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			sess, err := store.Import(ctx, snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d lines)\n", sess.ID, sess.Lines)
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: c.withStore(func(ctx context.Context, cmd *cobra.Command, store *storage.Store, args []string) error {
			if err := store.DeleteSession(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		}),
	}

	var within string
	var maxHits int
	search := &cobra.Command{
		Use:   "search QUERY",
		Short: "Full-text search over all transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.withStore(func(ctx context.Context, cmd *cobra.Command, store *storage.Store, args []string) error {
			res, err := store.Search(ctx, storage.SearchQuery{Text: strings.Join(args, " "), SessionID: within, Limit: maxHits})
			if err != nil {
				return err
			}
			for _, r := range res {
				fmt.Fprintf(cmd.OutOrStdout(), "%s #%d  %s\n", r.SessionID, r.Line, r.Snippet)
			}
			if len(res) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
			}
			return nil
		}),
	}
	search.Flags().StringVar(&within, "session", "", "search only this session")
	search.Flags().IntVar(&maxHits, "limit", 20, "maximum number of matches")

	cmd.AddCommand(list, show, export, imp, del, search)
	return cmd
}

type storeFunc func(ctx context.Context, cmd *cobra.Command, store *storage.Store, args []string) error

// withStore opens the session database around fn.
func (c *cli) withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := c.openStore(ctx, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return fn(ctx, cmd, store, args)
	}
}

func showSession(ctx context.Context, w io.Writer, store *storage.Store, id string) error {
	sess, err := store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	st, err := store.LoadState(ctx, id)
	if err != nil {
		return err
	}
	commits, err := store.Commits(ctx, id, 20)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %s\n", sess.ID, sess.Title)
	fmt.Fprintf(w, "mode: %s  lines: %d  overrides: %d\n", st.Mode, len(st.Transcript), len(st.Overrides))
	fmt.Fprintf(w, "created: %s  updated: %s\n", sess.CreatedAt.Local().Format(time.DateTime), sess.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(w)
	for i, l := range st.Transcript {
		fmt.Fprintf(w, "%3d  %s\n", i, l)
	}
	if len(commits) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "edits:")
		for _, cm := range commits {
			fmt.Fprintf(w, "  %s  %s  %q\n", cm.At.Local().Format(time.DateTime), cm.NodeID, cm.Text)
		}
	}
	return nil
}
