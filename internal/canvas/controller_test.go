/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"errors"
	"testing"

	"talkflow/internal/diagram"
	"talkflow/internal/undo"
	"talkflow/internal/vector"
)

var standup = []string{
	"Let's kick off the roadmap review",
	"We need to decide on a vendor",
	"Collect usage data",
	"Ship it next week",
	"Wrap up",
}

type captureCounter struct{ acquired, released int }

func (c *captureCounter) Acquire() { c.acquired++ }
func (c *captureCounter) Release() { c.released++ }

func newTestController(t *testing.T, mode diagram.ViewMode, lines []string) (*Controller, *captureCounter) {
	t.Helper()
	cc := &captureCounter{}
	c, err := New(Options{
		Params:    diagram.DefaultLayoutParams(),
		Mode:      mode,
		Capture:   cc,
		History:   undo.NewManager(undo.Config{}),
		SessionID: "test",
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if _, err := c.SetTranscript(lines); err != nil {
		t.Fatalf("set transcript: %v", err)
	}
	return c, cc
}

func at(x, y float32) PointerEvent { return PointerEvent{Pos: vector.Pt{X: x, Y: y}} }

func pos(t *testing.T, c *Controller, id diagram.NodeID) vector.Pt {
	t.Helper()
	n, ok := c.Node(id)
	if !ok {
		t.Fatalf("node %v missing", id)
	}
	return n.Position
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(Options{Params: diagram.DefaultLayoutParams(), Mode: diagram.ViewMode(9)}); !errors.Is(err, diagram.ErrUnsupportedViewMode) {
		t.Fatalf("expected ErrUnsupportedViewMode, got %v", err)
	}
}

func TestFlowchartKindsFromTranscript(t *testing.T) {
	c, _ := newTestController(t, diagram.Flowchart, []string{
		"We need a project plan",
		"If budget is approved we proceed",
		"Ship the result",
	})
	nodes := c.Nodes()
	if nodes[0].Kind != diagram.KindStart || nodes[1].Kind != diagram.KindDecision || nodes[2].Kind != diagram.KindEnd {
		t.Fatalf("kinds = %s %s %s", nodes[0].Kind, nodes[1].Kind, nodes[2].Kind)
	}
	if !diagram.IsMainIdea(nodes[0].Text) {
		t.Fatalf("first line mentions a project plan and should be a main idea")
	}
}

func TestDragMovesOnlyTarget(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	before := c.Nodes()

	c.PointerDown(at(150, 340))
	if c.State() != DraggingNode || c.Target() != 2 {
		t.Fatalf("state = %s target = %v", c.State(), c.Target())
	}
	c.PointerMove(at(165, 332))
	c.PointerUp(at(180, 325))

	if c.State() != Idle {
		t.Fatalf("state after release = %s", c.State())
	}
	want := before[2].Position.Add(vector.Pt{X: 30, Y: -15})
	if got := pos(t, c, 2); got != want {
		t.Fatalf("node 2 at %+v, want %+v", got, want)
	}
	for i, n := range c.Nodes() {
		if i != 2 && n.Position != before[i].Position {
			t.Fatalf("node %d moved to %+v", i, n.Position)
		}
	}
	if sel, ok := c.Selected(); !ok || sel != 2 {
		t.Fatalf("selection = %v %v", sel, ok)
	}
	if n, _ := c.Node(2); !n.Moved {
		t.Fatalf("dragged node should be flagged as moved")
	}
	if cc.acquired != 1 || cc.released != 1 {
		t.Fatalf("capture acquired %d released %d", cc.acquired, cc.released)
	}
}

func TestDragReleasedOutsideNode(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.PointerDown(at(150, 240))
	c.PointerMove(at(400, 260))
	c.PointerMove(at(900, 700))
	c.PointerUp(at(1000, 760))
	if c.State() != Idle {
		t.Fatalf("state = %s", c.State())
	}
	if got := pos(t, c, 1); got != (vector.Pt{X: 950, Y: 720}) {
		t.Fatalf("node 1 at %+v, want release position", got)
	}
	if cc.acquired != cc.released {
		t.Fatalf("unbalanced capture: %+v", cc)
	}
}

func TestClickOnNodeDoesNotMoveIt(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	c.PointerDown(at(150, 140))
	c.PointerUp(at(150, 140))
	if n, _ := c.Node(0); n.Moved || n.Position != (vector.Pt{X: 100, Y: 100}) {
		t.Fatalf("click changed node: %+v", n)
	}
	if sel, _ := c.Selected(); sel != 0 {
		t.Fatalf("click should select, got %v", sel)
	}
}

func TestResizeClampsToFloor(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.Select(0)
	// handle of node 0 spans (288,168)-(304,184)
	c.PointerDown(at(295, 175))
	if c.State() != ResizingNode {
		t.Fatalf("state = %s, want resizing", c.State())
	}
	c.PointerMove(at(195, 75))
	if n, _ := c.Node(0); n.Size != diagram.MinSize {
		t.Fatalf("size %+v, want floor", n.Size)
	}
	c.PointerMove(at(50, 20))
	if n, _ := c.Node(0); n.Size != diagram.MinSize {
		t.Fatalf("size %+v overshot the floor", n.Size)
	}
	c.PointerMove(at(345, 215))
	c.PointerUp(at(345, 215))
	n, _ := c.Node(0)
	if n.Size != (vector.Size{W: 250, H: 120}) || !n.Resized {
		t.Fatalf("size after resize = %+v", n)
	}
	if n.Position != (vector.Pt{X: 100, Y: 100}) {
		t.Fatalf("resize moved the node: %+v", n.Position)
	}
	if cc.acquired != 1 || cc.released != 1 {
		t.Fatalf("capture acquired %d released %d", cc.acquired, cc.released)
	}
}

func TestHandleOnlyOnSelectedNode(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	if h := c.HitTest(vector.Pt{X: 295, Y: 175}); h.Kind != HitNode || h.ID != 0 {
		t.Fatalf("unselected node exposes a handle: %+v", h)
	}
	c.Select(0)
	if h := c.HitTest(vector.Pt{X: 295, Y: 175}); h.Kind != HitHandle || h.ID != 0 {
		t.Fatalf("hit = %+v, want handle", h)
	}
	if h := c.HitTest(vector.Pt{X: 700, Y: 700}); h.Kind != HitCanvas || h.ID != diagram.NoNode {
		t.Fatalf("hit = %+v, want canvas", h)
	}
}

func TestHitTestPrefersSelectedThenTopmost(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	// pull node 0 down so it overlaps node 1
	c.PointerDown(at(150, 140))
	c.PointerUp(at(150, 190))
	overlap := vector.Pt{X: 150, Y: 210}
	if h := c.HitTest(overlap); h.ID != 0 {
		t.Fatalf("selected node should win, got %+v", h)
	}
	c.ClearSelection()
	if h := c.HitTest(overlap); h.ID != 1 {
		t.Fatalf("later node should win, got %+v", h)
	}
}

func TestPanAndClickClearsSelection(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	c.Select(1)

	c.PointerDown(at(600, 700))
	c.PointerMove(at(650, 690))
	c.PointerUp(at(650, 690))
	if v := c.Viewport(); v.Pan != (vector.Pt{X: 50, Y: -10}) || v.Zoom != 1 {
		t.Fatalf("viewport after pan = %+v", v)
	}
	if sel, ok := c.Selected(); !ok || sel != 1 {
		t.Fatalf("a pan must keep the selection, got %v", sel)
	}

	c.PointerDown(at(700, 700))
	c.PointerUp(at(701, 701))
	if _, ok := c.Selected(); ok {
		t.Fatalf("a click on empty canvas should clear the selection")
	}
}

func TestPointerLeaveEndsPanOnly(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.PointerDown(at(600, 700))
	c.PointerLeave()
	if c.State() != Idle {
		t.Fatalf("leave should end a pan, state = %s", c.State())
	}

	c.PointerDown(at(150, 140))
	c.PointerLeave()
	if c.State() != DraggingNode {
		t.Fatalf("leave must not end a drag, state = %s", c.State())
	}
	c.PointerCancel()
	if c.State() != Idle {
		t.Fatalf("cancel should end the drag, state = %s", c.State())
	}
	if cc.acquired != 2 || cc.released != 2 {
		t.Fatalf("capture acquired %d released %d", cc.acquired, cc.released)
	}
}

func TestOnlyPrimaryButtonStartsGestures(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.PointerDown(PointerEvent{Pos: vector.Pt{X: 150, Y: 140}, Button: ButtonSecondary})
	if c.State() != Idle || cc.acquired != 0 {
		t.Fatalf("secondary button started a gesture: %s", c.State())
	}
	c.PointerDown(at(150, 140))
	c.PointerDown(at(150, 240))
	if c.Target() != 0 || cc.acquired != 1 {
		t.Fatalf("second press must not restart the gesture: target %v acquired %d", c.Target(), cc.acquired)
	}
	c.PointerUp(at(150, 140))
}

func TestEditCommitAndCancel(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	var events []TextCommitted
	c.OnTextCommitted(func(ev TextCommitted) { events = append(events, ev) })

	if !c.DoubleClick(at(150, 240)) || c.State() != EditingNode || c.Target() != 1 {
		t.Fatalf("double click should edit node 1, state %s", c.State())
	}
	if n, _ := c.Node(1); !n.Editing {
		t.Fatalf("node not flagged as editing")
	}
	c.SetEditBuffer("  Pick a vendor ")
	c.Key(KeyEvent{Key: KeyEnter})
	if c.State() != Idle {
		t.Fatalf("enter should commit, state %s", c.State())
	}
	if n, _ := c.Node(1); n.Text != "Pick a vendor" || n.Editing {
		t.Fatalf("commit result %+v", n)
	}
	if len(events) != 1 || events[0] != (TextCommitted{ID: 1, Text: "Pick a vendor"}) {
		t.Fatalf("events = %+v", events)
	}

	c.BeginEdit(1)
	c.Key(KeyEvent{Key: KeyRune, Rune: '!'})
	c.Key(KeyEvent{Key: KeyEscape})
	if n, _ := c.Node(1); n.Text != "Pick a vendor" {
		t.Fatalf("escape must keep the original text, got %q", n.Text)
	}
	if len(events) != 1 {
		t.Fatalf("cancel emitted %d events", len(events)-1)
	}
	if got := c.Transcript()[1]; got != standup[1] {
		t.Fatalf("editing must not rewrite the transcript: %q", got)
	}
}

func TestEditEmptyOrUnchangedIsNoop(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	fired := 0
	c.OnTextCommitted(func(TextCommitted) { fired++ })

	c.BeginEdit(2)
	c.SetEditBuffer("   ")
	if c.CommitEdit() {
		t.Fatalf("blank buffer must not commit")
	}
	c.BeginEdit(2)
	if c.CommitEdit() {
		t.Fatalf("unchanged buffer must not commit")
	}
	if n, _ := c.Node(2); n.Text != standup[2] || fired != 0 {
		t.Fatalf("text %q fired %d", n.Text, fired)
	}
}

func TestEditKeys(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, []string{"abc"})
	if c.Key(KeyEvent{Key: KeyRune, Rune: 'x'}) {
		t.Fatalf("keys are ignored outside editing")
	}
	c.BeginEdit(0)
	c.Key(KeyEvent{Key: KeyBackspace})
	c.Key(KeyEvent{Key: KeyEnter, Shift: true})
	c.Key(KeyEvent{Key: KeyRune, Rune: 'd'})
	if c.State() != EditingNode || c.EditBuffer() != "ab\nd" {
		t.Fatalf("state %s buffer %q", c.State(), c.EditBuffer())
	}
	c.Key(KeyEvent{Key: KeyEnter})
	if n, _ := c.Node(0); n.Text != "ab\nd" {
		t.Fatalf("text = %q", n.Text)
	}
}

func TestPressOutsideCommitsEdit(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	c.BeginEdit(3)
	c.SetEditBuffer("Ship on Friday")

	c.PointerDown(at(150, 440))
	if c.State() != EditingNode {
		t.Fatalf("press inside the edited node keeps editing, state %s", c.State())
	}
	c.PointerDown(at(700, 700))
	if n, _ := c.Node(3); n.Text != "Ship on Friday" {
		t.Fatalf("press outside should commit, text %q", n.Text)
	}
	if c.State() != PanningCanvas {
		t.Fatalf("the press should go on to start a pan, state %s", c.State())
	}
	c.PointerUp(at(700, 700))
}

func TestModeSwitchDiscardsManualPosition(t *testing.T) {
	c, _ := newTestController(t, diagram.Mindmap, standup)
	start := pos(t, c, 0)
	c.PointerDown(PointerEvent{Pos: start.Add(vector.Pt{X: 100, Y: 40})})
	c.PointerUp(PointerEvent{Pos: start.Add(vector.Pt{X: 120, Y: 50})})
	if n, _ := c.Node(0); !n.Moved {
		t.Fatalf("node 0 should be moved")
	}
	if err := c.SetViewMode(diagram.Outline); err != nil {
		t.Fatalf("set view mode: %v", err)
	}
	if got := pos(t, c, 0); got != (vector.Pt{X: 100, Y: 100}) {
		t.Fatalf("node 0 at %+v, want outline column", got)
	}
	if err := c.SetViewMode(diagram.ViewMode(9)); !errors.Is(err, diagram.ErrUnsupportedViewMode) {
		t.Fatalf("expected ErrUnsupportedViewMode, got %v", err)
	}
	if c.Mode() != diagram.Outline {
		t.Fatalf("mode = %s", c.Mode())
	}
}

func TestModeSwitchMidDragResolves(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.PointerDown(at(150, 340))
	c.PointerMove(at(180, 340))
	if err := c.SetViewMode(diagram.Flowchart); err != nil {
		t.Fatalf("set view mode: %v", err)
	}
	if c.State() != Idle || cc.acquired != 1 || cc.released != 1 {
		t.Fatalf("gesture not resolved: %s %+v", c.State(), cc)
	}
	fresh, _ := diagram.Layout(standup, diagram.Flowchart)
	if got := pos(t, c, 2); got != fresh[2].Position {
		t.Fatalf("node 2 at %+v, want fresh flowchart layout %+v", got, fresh[2].Position)
	}
	// the stale release is ignored
	c.PointerUp(at(300, 300))
	if got := pos(t, c, 2); got != fresh[2].Position {
		t.Fatalf("late release moved node 2 to %+v", got)
	}
}

func TestAppendWhileDragging(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.PointerDown(at(150, 140))
	c.PointerMove(at(170, 140))
	if err := c.AppendLine("Any other business"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if c.State() != Idle || cc.released != 1 {
		t.Fatalf("append should end the drag: %s", c.State())
	}
	if got := pos(t, c, 0); got != (vector.Pt{X: 120, Y: 100}) {
		t.Fatalf("dragged position lost: %+v", got)
	}
	if n, ok := c.Node(5); !ok || n.Prev != 4 || n.Position != (vector.Pt{X: 100, Y: 600}) {
		t.Fatalf("appended node %+v", n)
	}
}

func TestWheelZoomsWithinBounds(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	c.Wheel(1)
	if z := c.Viewport().Zoom; z != 1.2 {
		t.Fatalf("zoom = %v", z)
	}
	for i := 0; i < 10; i++ {
		c.Wheel(-1)
	}
	if z := c.Viewport().Zoom; z != MinZoom {
		t.Fatalf("zoom = %v, want %v", z, MinZoom)
	}
	c.ResetView()
	if c.Viewport() != NewViewport() {
		t.Fatalf("reset view = %+v", c.Viewport())
	}
}

func TestDragUnderZoomUsesSceneDelta(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	for i := 0; i < 5; i++ {
		c.ZoomIn()
	}
	if z := c.Viewport().Zoom; z != 2 {
		t.Fatalf("zoom = %v", z)
	}
	start := c.ToScreen(vector.Pt{X: 150, Y: 140})
	c.PointerDown(PointerEvent{Pos: start})
	c.PointerUp(PointerEvent{Pos: start.Add(vector.Pt{X: 40, Y: 20})})
	got := pos(t, c, 0)
	if d := got.Sub(vector.Pt{X: 120, Y: 110}).Len(); d > 1e-3 {
		t.Fatalf("node 0 at %+v, want (120,110)", got)
	}
}

func TestNewSessionResets(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	c.Select(2)
	c.ZoomIn()
	c.PointerDown(at(150, 140))
	c.PointerUp(at(160, 140))
	c.NewSession("next")
	if len(c.Nodes()) != 0 || len(c.Transcript()) != 0 {
		t.Fatalf("diagram not cleared")
	}
	if c.Viewport() != NewViewport() {
		t.Fatalf("viewport not reset: %+v", c.Viewport())
	}
	if _, ok := c.Selected(); ok {
		t.Fatalf("selection survived")
	}
	if c.SessionID() != "next" || c.Undo() {
		t.Fatalf("new session must start with an empty history")
	}
}

func TestUndoRedoMoveAndEdit(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	var events []TextCommitted
	c.OnTextCommitted(func(ev TextCommitted) { events = append(events, ev) })

	c.PointerDown(at(150, 340))
	c.PointerUp(at(180, 325))
	c.BeginEdit(4)
	c.SetEditBuffer("Done")
	c.CommitEdit()

	if !c.Undo() {
		t.Fatalf("undo edit failed")
	}
	if n, _ := c.Node(4); n.Text != standup[4] {
		t.Fatalf("text after undo = %q", n.Text)
	}
	if last := events[len(events)-1]; last != (TextCommitted{ID: 4, Text: standup[4]}) {
		t.Fatalf("undo should announce the restored text, got %+v", last)
	}
	if !c.Undo() {
		t.Fatalf("undo move failed")
	}
	if n, _ := c.Node(2); n.Moved || n.Position != (vector.Pt{X: 100, Y: 300}) {
		t.Fatalf("node 2 after undo = %+v", n)
	}
	if c.Undo() {
		t.Fatalf("history should be exhausted")
	}
	if !c.Redo() {
		t.Fatalf("redo failed")
	}
	if got := pos(t, c, 2); got != (vector.Pt{X: 130, Y: 285}) {
		t.Fatalf("node 2 after redo = %+v", got)
	}
}

func TestSceneSnapshot(t *testing.T) {
	c, _ := newTestController(t, diagram.Flowchart, standup)
	c.Select(1)
	s := c.Scene()
	if len(s.Nodes) != len(standup) || len(s.Connections) != len(standup)-1 {
		t.Fatalf("scene has %d nodes %d connections", len(s.Nodes), len(s.Connections))
	}
	order := s.DrawOrder()
	if len(order) != len(s.Nodes) || order[len(order)-1] != 1 {
		t.Fatalf("selected node should be drawn last: %v", order)
	}
	if b := s.Bounds(); b.Empty() || !b.Contains(s.Nodes[0].Center()) {
		t.Fatalf("bounds %+v", b)
	}
	if s.Mode != diagram.Flowchart || s.State != Idle || s.Selected != 1 {
		t.Fatalf("scene %+v", s)
	}
}

func TestDecisionCornersBelongToCanvas(t *testing.T) {
	c, _ := newTestController(t, diagram.Flowchart, standup)
	var dec diagram.Node
	for _, n := range c.Scene().Nodes {
		if n.Kind == diagram.KindDecision {
			dec = n
			break
		}
	}
	if dec.Kind != diagram.KindDecision {
		t.Fatalf("no decision node in %v", standup)
	}
	b := dec.Bounds()
	corner := c.ToScreen(vector.Pt{X: b.X + 4, Y: b.Y + 4})
	if h := c.HitTest(corner); h.Kind != HitCanvas {
		t.Fatalf("corner outside the diamond hit %+v", h)
	}
	if h := c.HitTest(c.ToScreen(dec.Center())); h.Kind != HitNode || h.ID != dec.ID {
		t.Fatalf("diamond centre hit %+v", h)
	}
	c.PointerDown(PointerEvent{Pos: corner})
	if c.State() != PanningCanvas {
		t.Fatalf("press on a diamond corner should pan, state = %s", c.State())
	}
	c.PointerCancel()
}

func TestScrollByIgnoredDuringGesture(t *testing.T) {
	c, _ := newTestController(t, diagram.Outline, standup)
	c.ScrollBy(vector.Pt{X: 20, Y: 10})
	if v := c.Viewport(); v.Pan != (vector.Pt{X: 20, Y: 10}) {
		t.Fatalf("scroll while idle: %+v", v)
	}
	c.PointerDown(at(170, 140))
	c.ScrollBy(vector.Pt{X: 100, Y: 100})
	if v := c.Viewport(); v.Pan != (vector.Pt{X: 20, Y: 10}) {
		t.Fatalf("scroll during a drag moved the view: %+v", v)
	}
	c.PointerUp(at(170, 140))
}

func TestVanishedTargetAbortsGesture(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.PointerDown(at(150, 140))
	if c.State() != DraggingNode {
		t.Fatalf("state = %s, want dragging", c.State())
	}
	c.model.Reset()
	c.PointerMove(at(170, 150))
	if c.State() != Idle || c.Target() != diagram.NoNode {
		t.Fatalf("drag not aborted: state %s target %v", c.State(), c.Target())
	}
	if cc.acquired != 1 || cc.released != 1 {
		t.Fatalf("capture acquired %d released %d", cc.acquired, cc.released)
	}
	c.PointerUp(at(170, 150))
	if cc.released != 1 {
		t.Fatalf("release after abort released capture again: %d", cc.released)
	}
}

func TestVanishedTargetAbortsResize(t *testing.T) {
	c, cc := newTestController(t, diagram.Outline, standup)
	c.Select(0)
	c.PointerDown(at(295, 175))
	if c.State() != ResizingNode {
		t.Fatalf("state = %s, want resizing", c.State())
	}
	c.model.Reset()
	c.PointerMove(at(320, 200))
	if c.State() != Idle || cc.released != 1 {
		t.Fatalf("resize not aborted: state %s released %d", c.State(), cc.released)
	}
}
