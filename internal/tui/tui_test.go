/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"talkflow/internal/config"
	"talkflow/internal/diagram"
	"talkflow/internal/feed"
	"talkflow/internal/workspace"
)

var standup = []string{
	"Let's review the roadmap",
	"We must decide on a vendor",
	"Collect the usage data",
	"Ship it next week",
}

func newTestApp(t *testing.T) (*App, tcell.SimulationScreen, *workspace.Workspace) {
	t.Helper()
	ctx := context.Background()
	ws, err := workspace.New(workspace.Options{Config: config.Defaults()})
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	if _, err := ws.Create(ctx, "standup"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ws.Append(ctx, standup...); err != nil {
		t.Fatalf("append: %v", err)
	}
	sim := tcell.NewSimulationScreen("")
	if err := sim.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	t.Cleanup(sim.Fini)
	sim.SetSize(200, 60)
	app, err := New(Options{Workspace: ws, Screen: sim, ExportDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	app.resize(ctx)
	app.fit(ctx)
	return app, sim, ws
}

func screenText(sim tcell.SimulationScreen) string {
	cells, w, _ := sim.GetContents()
	var sb strings.Builder
	for i, c := range cells {
		if len(c.Runes) > 0 {
			sb.WriteRune(c.Runes[0])
		} else {
			sb.WriteByte(' ')
		}
		if (i+1)%w == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func key(r rune) *tcell.EventKey { return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone) }

// nodeCell returns the terminal cell at the centre of node id.
func nodeCell(t *testing.T, ws *workspace.Workspace, id diagram.NodeID) (int, int) {
	t.Helper()
	sc := ws.Scene()
	for _, n := range sc.Nodes {
		if n.ID == id {
			return toCell(sc.Transform().Apply(n.Center()))
		}
	}
	t.Fatalf("node %v missing", id)
	return 0, 0
}

func TestDrawShowsDiagram(t *testing.T) {
	app, sim, _ := newTestApp(t)
	app.Draw()
	sim.Show()
	text := screenText(sim)
	for _, want := range []string{"roadmap", "Mind Map", "4 nodes", "standup"} {
		if !strings.Contains(text, want) {
			t.Fatalf("screen lacks %q:\n%s", want, text)
		}
	}
}

func TestModeKeys(t *testing.T) {
	app, sim, ws := newTestApp(t)
	ctx := context.Background()
	if app.HandleEvent(ctx, key('2')) {
		t.Fatalf("mode key must not quit")
	}
	if got := ws.Scene().Mode; got != diagram.Flowchart {
		t.Fatalf("mode = %s", got)
	}
	app.Draw()
	sim.Show()
	if text := screenText(sim); !strings.Contains(text, "Decision") {
		t.Fatalf("flowchart badges missing:\n%s", text)
	}
	app.HandleEvent(ctx, key('3'))
	if got := ws.Scene().Mode; got != diagram.Outline {
		t.Fatalf("mode = %s", got)
	}
}

func TestQuitKeys(t *testing.T) {
	app, _, _ := newTestApp(t)
	ctx := context.Background()
	if !app.HandleEvent(ctx, key('q')) {
		t.Fatalf("q should quit")
	}
	if !app.HandleEvent(ctx, tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)) {
		t.Fatalf("ctrl-c should quit")
	}
}

func TestMouseDragMovesNode(t *testing.T) {
	app, _, ws := newTestApp(t)
	ctx := context.Background()
	before := ws.Scene().Nodes[0].Position
	x, y := nodeCell(t, ws, 0)

	app.HandleEvent(ctx, tcell.NewEventMouse(x, y, tcell.Button1, tcell.ModNone))
	app.HandleEvent(ctx, tcell.NewEventMouse(x+5, y+2, tcell.Button1, tcell.ModNone))
	app.HandleEvent(ctx, tcell.NewEventMouse(x+5, y+2, tcell.ButtonNone, tcell.ModNone))

	n := ws.Scene().Nodes[0]
	if !n.Moved || n.Position == before {
		t.Fatalf("node not dragged: %+v", n)
	}
	if n.Position.X <= before.X || n.Position.Y <= before.Y {
		t.Fatalf("node moved the wrong way: %+v -> %+v", before, n.Position)
	}
}

func TestDoubleClickEditsLabel(t *testing.T) {
	app, _, ws := newTestApp(t)
	ctx := context.Background()
	x, y := nodeCell(t, ws, 3)
	for i := 0; i < 2; i++ {
		app.HandleEvent(ctx, tcell.NewEventMouse(x, y, tcell.Button1, tcell.ModNone))
		app.HandleEvent(ctx, tcell.NewEventMouse(x, y, tcell.ButtonNone, tcell.ModNone))
	}
	sc := ws.Scene()
	if !sc.Nodes[3].Editing {
		t.Fatalf("double click should start editing")
	}
	// keys go to the editor, so 'q' does not quit
	for _, r := range " quickly" {
		if app.HandleEvent(ctx, key(r)) {
			t.Fatalf("typing %q quit the app", r)
		}
	}
	app.HandleEvent(ctx, tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	if got := ws.Scene().Nodes[3].Text; got != "Ship it next week quickly" {
		t.Fatalf("label = %q", got)
	}
}

func TestInputModeIngestsSpeech(t *testing.T) {
	app, sim, ws := newTestApp(t)
	ctx := context.Background()
	app.HandleEvent(ctx, key('i'))
	for _, r := range "Book the room. Send invites!" {
		app.HandleEvent(ctx, key(r))
	}
	app.Draw()
	sim.Show()
	if text := screenText(sim); !strings.Contains(text, "say> Book the room") {
		t.Fatalf("prompt not shown:\n%s", text)
	}
	app.HandleEvent(ctx, tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	sc := ws.Scene()
	if len(sc.Nodes) != 6 || sc.Nodes[5].Text != "Send invites" {
		t.Fatalf("ingest failed: %d nodes", len(sc.Nodes))
	}
	if app.status != "added 2 line(s)" {
		t.Fatalf("status = %q", app.status)
	}
}

func TestWheelAndKeysChangeView(t *testing.T) {
	app, _, ws := newTestApp(t)
	ctx := context.Background()
	app.HandleEvent(ctx, key('0'))
	app.HandleEvent(ctx, tcell.NewEventMouse(10, 10, tcell.WheelUp, tcell.ModNone))
	if z := ws.Scene().Viewport.Zoom; z != 1.2 {
		t.Fatalf("zoom = %v", z)
	}
	pan := ws.Scene().Viewport.Pan
	app.HandleEvent(ctx, tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	if got := ws.Scene().Viewport.Pan; got.X != pan.X+4*CellW {
		t.Fatalf("pan = %+v", got)
	}
}

func TestTabSelectsAndUndo(t *testing.T) {
	app, _, ws := newTestApp(t)
	ctx := context.Background()
	app.HandleEvent(ctx, tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone))
	app.HandleEvent(ctx, tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone))
	if sel := ws.Scene().Selected; sel != 1 {
		t.Fatalf("selected = %v", sel)
	}
	app.HandleEvent(ctx, key('u'))
	if app.status != "nothing to undo" {
		t.Fatalf("status = %q", app.status)
	}
}

func TestExportKeyWritesFile(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.HandleEvent(context.Background(), key('e'))
	files, _ := filepath.Glob(filepath.Join(app.exportDir, "talkflow-*.svg"))
	if len(files) != 1 {
		t.Fatalf("expected one svg export, got %v (status %q)", files, app.status)
	}
}

func TestPumpAppliesFeed(t *testing.T) {
	app, _, ws := newTestApp(t)
	ch := make(chan feed.Event, 1)
	app.follow = ch
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.pump(ctx)
	ch <- feed.Event{Lines: []string{"Late addition"}}
	deadline := time.Now().Add(2 * time.Second)
	for len(ws.Scene().Nodes) != 5 {
		if time.Now().After(deadline) {
			t.Fatalf("feed event not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
