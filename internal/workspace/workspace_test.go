/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package workspace

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"talkflow/internal/canvas"
	"talkflow/internal/config"
	"talkflow/internal/diagram"
	"talkflow/internal/export"
	"talkflow/internal/feed"
	"talkflow/internal/storage"
	"talkflow/internal/vector"
)

const meetingText = "Let's review the roadmap. We must decide on a vendor? Collect the usage data! Ship it next week."

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), storage.DefaultFileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newWorkspace(t *testing.T, store *storage.Store) *Workspace {
	t.Helper()
	w, err := New(Options{Config: config.Defaults(), Store: store})
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	return w
}

func TestInMemoryWorkspace(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, nil)
	sess, err := w.Create(ctx, "standup")
	if err != nil || sess.ID == "" || sess.Mode != diagram.Mindmap {
		t.Fatalf("create: %+v %v", sess, err)
	}
	lines, err := w.Ingest(ctx, meetingText)
	if err != nil || len(lines) != 4 {
		t.Fatalf("ingest: %v %v", lines, err)
	}
	if got := len(w.Scene().Nodes); got != 4 {
		t.Fatalf("scene has %d nodes", got)
	}
	if err := w.SetMode(ctx, diagram.Flowchart); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	sc := w.Scene()
	if sc.Mode != diagram.Flowchart || sc.Nodes[1].Kind != diagram.KindDecision {
		t.Fatalf("flowchart not applied: %s %s", sc.Mode, sc.Nodes[1].Kind)
	}
	svg, err := w.Render(ctx, export.SVG, export.Options{})
	if err != nil || !strings.Contains(string(svg), "<svg") {
		t.Fatalf("render: %v", err)
	}
	if err := w.Save(ctx); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := w.Open(ctx, sess.ID); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestAutosaveAndReopen(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	w := newWorkspace(t, store)
	sess, err := w.Create(ctx, "planning")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := w.Ingest(ctx, meetingText); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	err = w.Do(ctx, func(c *canvas.Controller) error {
		if !c.BeginEdit(2) {
			return errors.New("begin edit failed")
		}
		c.SetEditBuffer("Gather numbers")
		c.CommitEdit()
		return nil
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	st, err := store.LoadState(ctx, sess.ID)
	if err != nil || len(st.Transcript) != 4 {
		t.Fatalf("autosaved transcript: %v %v", st.Transcript, err)
	}
	if len(st.Overrides) != 1 || st.Overrides[0].Text != "Gather numbers" {
		t.Fatalf("autosaved overrides: %+v", st.Overrides)
	}
	commits, err := store.Commits(ctx, sess.ID, 10)
	if err != nil || len(commits) != 1 || commits[0].NodeID != 2 {
		t.Fatalf("commits: %+v %v", commits, err)
	}
	if got := w.Session().Lines; got != 4 {
		t.Fatalf("session lines = %d", got)
	}

	other := newWorkspace(t, store)
	if _, err := other.Open(ctx, sess.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := other.Scene().Nodes[2]; n.Text != "Gather numbers" {
		t.Fatalf("reopened text: %q", n.Text)
	}
	if _, err := other.Open(ctx, "missing"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDragIsSavedOnRelease(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	w := newWorkspace(t, store)
	sess, _ := w.Create(ctx, "drag")
	if err := w.Append(ctx, "one idea", "another idea"); err != nil {
		t.Fatalf("append: %v", err)
	}

	var id diagram.NodeID
	var start vector.Pt
	_ = w.Do(ctx, func(c *canvas.Controller) error {
		n, _ := c.Node(1)
		start = n.Center()
		id = c.HitTest(start).ID
		c.PointerDown(canvas.PointerEvent{Pos: start})
		c.PointerMove(canvas.PointerEvent{Pos: start.Add(vector.Pt{X: 40, Y: 30})})
		return nil
	})
	if st, _ := store.LoadState(ctx, sess.ID); len(st.Overrides) != 0 {
		t.Fatalf("state saved mid-drag: %+v", st.Overrides)
	}
	_ = w.Do(ctx, func(c *canvas.Controller) error {
		c.PointerUp(canvas.PointerEvent{Pos: start.Add(vector.Pt{X: 40, Y: 30})})
		return nil
	})
	st, _ := store.LoadState(ctx, sess.ID)
	if len(st.Overrides) != 1 || st.Overrides[0].ID != id || !st.Overrides[0].Moved {
		t.Fatalf("drag not saved on release: %+v", st.Overrides)
	}
}

func TestApplyFeed(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, nil)
	_ = w.ApplyFeed(ctx, feed.Event{Lines: []string{"first point"}})
	_ = w.ApplyFeed(ctx, feed.Event{Lines: []string{"second point"}})
	if got := len(w.Scene().Nodes); got != 2 {
		t.Fatalf("appended %d nodes", got)
	}
	if err := w.ApplyFeed(ctx, feed.Event{Lines: []string{"fresh start"}, Reset: true}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	sc := w.Scene()
	if len(sc.Nodes) != 1 || sc.Nodes[0].Text != "fresh start" {
		t.Fatalf("reset not applied: %+v", sc.Nodes)
	}
}

func TestRenderUsesCache(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	w := newWorkspace(t, store)
	if _, err := w.Create(ctx, "cache"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = w.Append(ctx, "cache me")
	a, err := w.Render(ctx, export.SVG, export.Options{Width: 300, Height: 200})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	total, err := store.TotalRenderBytes(ctx)
	if err != nil || total != int64(len(a)) {
		t.Fatalf("cache holds %d bytes, want %d (%v)", total, len(a), err)
	}
	b, _ := w.Render(ctx, export.SVG, export.Options{Width: 300, Height: 200})
	if string(a) != string(b) {
		t.Fatalf("cached render differs")
	}
	if total2, _ := store.TotalRenderBytes(ctx); total2 != total {
		t.Fatalf("second render should hit the cache")
	}
}

func TestCrashSaveWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	w := newWorkspace(t, store)
	sess, _ := w.Create(ctx, "crashy")
	_ = w.Append(ctx, "keep this")

	target := w.CrashTarget()
	if target.Session != sess.ID || target.Dir != filepath.Join(filepath.Dir(store.Path()), storage.BackupsDirName) {
		t.Fatalf("unexpected crash target: %+v", target)
	}
	path, err := target.Autosave()
	if err != nil {
		t.Fatalf("crash save: %v", err)
	}
	snap, err := storage.ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Session.ID != sess.ID || len(snap.Transcript) != 1 || snap.Transcript[0] != "keep this" {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestCloseCommitsOpenEdit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	w := newWorkspace(t, store)
	sess, _ := w.Create(ctx, "close")
	_ = w.Append(ctx, "draft")
	_ = w.Do(ctx, func(c *canvas.Controller) error {
		c.BeginEdit(0)
		c.SetEditBuffer("final")
		return nil
	})
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	st, _ := store.LoadState(ctx, sess.ID)
	if len(st.Overrides) != 1 || st.Overrides[0].Text != "final" {
		t.Fatalf("open edit lost on close: %+v", st.Overrides)
	}
}

func TestLabelFontIsUsedForExports(t *testing.T) {
	ctx := context.Background()
	font := filepath.Join(t.TempDir(), "regular.ttf")
	if err := os.WriteFile(font, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	render := func(labelFont string) []byte {
		t.Helper()
		cfg := config.Defaults()
		cfg.General.LabelFont = labelFont
		w, err := New(Options{Config: cfg})
		if err != nil {
			t.Fatalf("new workspace: %v", err)
		}
		if _, err := w.Ingest(ctx, meetingText); err != nil {
			t.Fatalf("ingest: %v", err)
		}
		png, err := w.Render(ctx, export.PNG, export.Options{Width: 600, Height: 400})
		if err != nil || len(png) == 0 {
			t.Fatalf("render: %v", err)
		}
		return png
	}
	builtin := render("")
	if !bytes.Equal(builtin, render(filepath.Join(t.TempDir(), "missing.ttf"))) {
		t.Fatalf("a missing label font should fall back to the built-in face")
	}
	if bytes.Equal(builtin, render(font)) {
		t.Fatalf("label font had no effect on the PNG")
	}
}
