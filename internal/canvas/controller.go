/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas turns pointer and keyboard input into changes of the diagram
// and the viewport. A Controller is driven from a single goroutine: surfaces
// that receive input concurrently must serialise their calls.
package canvas

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"talkflow/internal/diagram"
	applog "talkflow/internal/log"
	"talkflow/internal/undo"
	"talkflow/internal/vector"
)

// HandleSize is the edge of the square resize handle, in scene units. The
// handle straddles the bottom-right corner of the selected node.
const HandleSize float32 = 16

// DefaultSurface is assumed until a surface reports its size.
var DefaultSurface = vector.Size{W: 1200, H: 800}

// Options configure a Controller.
type Options struct {
	Params  diagram.LayoutParams
	Mode    diagram.ViewMode
	Surface vector.Size
	Capture CaptureScope
	// History enables Undo/Redo; SessionID keys its entries.
	History   *undo.Manager
	SessionID string
	// ClickSlop is how far, in pixels, a press on empty canvas may travel
	// and still count as a click that clears the selection.
	ClickSlop float32
	Logger    *slog.Logger
}

// Controller owns the node model, the viewport and the interaction state.
type Controller struct {
	model   *diagram.Model
	view    Viewport
	surface vector.Size
	capture CaptureScope
	slop    float32
	log     *slog.Logger

	state    State
	target   diagram.NodeID
	selected diagram.NodeID
	captured bool

	downScreen vector.Pt
	lastScreen vector.Pt
	startScene vector.Pt
	startPos   vector.Pt
	startSize  vector.Size
	before     []byte
	changed    bool

	editBuffer   []rune
	editOriginal string

	history   *undo.Manager
	session   string
	listeners []func(TextCommitted)
}

// New returns a controller with an empty diagram.
func New(opts Options) (*Controller, error) {
	if opts.Mode == 0 {
		opts.Mode = diagram.Mindmap
	}
	m, err := diagram.NewModel(opts.Params, opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("new controller: %w", err)
	}
	if opts.Surface.W <= 0 || opts.Surface.H <= 0 {
		opts.Surface = DefaultSurface
	}
	if opts.Capture == nil {
		opts.Capture = NopCapture{}
	}
	if opts.ClickSlop <= 0 {
		opts.ClickSlop = 3
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("canvas")
	}
	return &Controller{
		model:    m,
		view:     NewViewport(),
		surface:  opts.Surface,
		capture:  opts.Capture,
		slop:     opts.ClickSlop,
		log:      opts.Logger,
		target:   diagram.NoNode,
		selected: diagram.NoNode,
		history:  opts.History,
		session:  opts.SessionID,
	}, nil
}

func (c *Controller) State() State                { return c.state }
func (c *Controller) Target() diagram.NodeID      { return c.target }
func (c *Controller) Mode() diagram.ViewMode      { return c.model.Mode() }
func (c *Controller) Viewport() Viewport          { return c.view }
func (c *Controller) Surface() vector.Size        { return c.surface }
func (c *Controller) Nodes() []diagram.Node       { return c.model.Nodes() }
func (c *Controller) Transcript() []string        { return c.model.Transcript() }
func (c *Controller) SessionID() string           { return c.session }
func (c *Controller) EditBuffer() string          { return string(c.editBuffer) }
func (c *Controller) States() []diagram.NodeState { return c.model.States() }

// Node returns a copy of one node.
func (c *Controller) Node(id diagram.NodeID) (diagram.Node, bool) { return c.model.Node(id) }

// Selected returns the selected node, if any.
func (c *Controller) Selected() (diagram.NodeID, bool) {
	if _, ok := c.model.Node(c.selected); !ok {
		return diagram.NoNode, false
	}
	return c.selected, true
}

// OnTextCommitted registers fn for every text change made through editing
// or undo.
func (c *Controller) OnTextCommitted(fn func(TextCommitted)) {
	c.listeners = append(c.listeners, fn)
}

// SetSurfaceSize records the visible surface size in pixels.
func (c *Controller) SetSurfaceSize(s vector.Size) {
	if s.W > 0 && s.H > 0 {
		c.surface = s
	}
}

// ToScene maps surface pixels to scene coordinates.
func (c *Controller) ToScene(p vector.Pt) vector.Pt { return c.view.ToScene(p, c.surface) }

// ToScreen maps scene coordinates to surface pixels.
func (c *Controller) ToScreen(p vector.Pt) vector.Pt { return c.view.ToScreen(p, c.surface) }

// HandleRect returns the resize handle of n in scene coordinates.
func HandleRect(n diagram.Node) vector.Rect {
	b := n.Bounds()
	return vector.R(b.X+b.W-HandleSize*0.75, b.Y+b.H-HandleSize*0.75, HandleSize, HandleSize)
}

// HitTest reports what lies under a surface point. The selected node's
// handle wins, then node bodies from the top: the selected node is drawn
// above the rest, later nodes above earlier ones. Bodies are hit by their
// drawn shape, so the corners outside a diamond or pill belong to the canvas.
func (c *Controller) HitTest(screen vector.Pt) Hit {
	p := c.ToScene(screen)
	sel, hasSel := c.model.Node(c.selected)
	if hasSel && !sel.Editing && HandleRect(sel).Contains(p) {
		return Hit{Kind: HitHandle, ID: sel.ID}
	}
	if hasSel && c.hitsBody(sel, p) {
		return Hit{Kind: HitNode, ID: sel.ID}
	}
	nodes := c.model.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		if c.hitsBody(nodes[i], p) {
			return Hit{Kind: HitNode, ID: nodes[i].ID}
		}
	}
	return Hit{Kind: HitCanvas, ID: diagram.NoNode}
}

func (c *Controller) hitsBody(n diagram.Node, p vector.Pt) bool {
	st := diagram.StyleFor(c.model.Mode(), n)
	return vector.HitShape(st.Shape, n.Bounds(), st.Radius, p)
}

// PointerDown starts a gesture. Only the primary button starts one: on the
// selected node's handle a resize, on a node body a drag that also selects
// the node, on empty canvas a pan. A press outside the node being edited
// commits the edit first.
func (c *Controller) PointerDown(ev PointerEvent) {
	if c.state == EditingNode {
		if h := c.HitTest(ev.Pos); h.Kind != HitCanvas && h.ID == c.target {
			return
		}
		c.CommitEdit()
	}
	if c.state != Idle || ev.Button != ButtonPrimary {
		return
	}
	hit := c.HitTest(ev.Pos)
	c.downScreen, c.lastScreen = ev.Pos, ev.Pos
	c.startScene = c.ToScene(ev.Pos)
	switch hit.Kind {
	case HitHandle:
		n, _ := c.model.Node(hit.ID)
		c.startSize = n.Size
		c.begin(ResizingNode, hit.ID)
	case HitNode:
		n, _ := c.model.Node(hit.ID)
		c.startPos = n.Position
		c.selected = hit.ID
		c.begin(DraggingNode, hit.ID)
	default:
		c.begin(PanningCanvas, diagram.NoNode)
	}
}

// PointerMove advances the active gesture.
func (c *Controller) PointerMove(ev PointerEvent) {
	defer func() { c.lastScreen = ev.Pos }()
	switch c.state {
	case PanningCanvas:
		c.view.PanBy(ev.Pos.Sub(c.lastScreen))
	case DraggingNode:
		n, ok := c.model.Node(c.target)
		if !ok {
			c.abort("drag")
			return
		}
		pos := c.startPos.Add(c.ToScene(ev.Pos).Sub(c.startScene))
		if pos != n.Position {
			c.model.MoveTo(c.target, pos)
			c.changed = true
		}
	case ResizingNode:
		n, ok := c.model.Node(c.target)
		if !ok {
			c.abort("resize")
			return
		}
		delta := c.ToScene(ev.Pos).Sub(c.startScene)
		size := vector.Size{W: c.startSize.W + delta.X, H: c.startSize.H + delta.Y}.Clamp(diagram.MinSize)
		if size != n.Size {
			c.model.Resize(c.target, size)
			c.changed = true
		}
	}
}

// PointerUp ends the active gesture wherever the pointer is. A press and
// release on empty canvas without real movement clears the selection.
func (c *Controller) PointerUp(ev PointerEvent) {
	switch c.state {
	case PanningCanvas:
		if ev.Pos.Sub(c.downScreen).Len() < c.slop {
			c.selected = diagram.NoNode
		}
		c.finish()
	case DraggingNode, ResizingNode:
		c.PointerMove(ev)
		if c.state != Idle {
			c.finish()
		}
	}
}

// PointerCancel ends the active gesture as if the pointer were released in
// place. Surfaces call it when they lose pointer capture.
func (c *Controller) PointerCancel() {
	switch c.state {
	case PanningCanvas, DraggingNode, ResizingNode:
		c.finish()
	}
}

// PointerLeave ends a pan. Drags and resizes hold capture and continue.
func (c *Controller) PointerLeave() {
	if c.state == PanningCanvas {
		c.finish()
	}
}

// DoubleClick starts editing the node under the pointer.
func (c *Controller) DoubleClick(ev PointerEvent) bool {
	hit := c.HitTest(ev.Pos)
	if hit.Kind == HitCanvas {
		return false
	}
	return c.BeginEdit(hit.ID)
}

// Wheel zooms by one step per event: positive notches zoom in.
func (c *Controller) Wheel(notches float32) {
	switch {
	case notches > 0:
		c.ZoomIn()
	case notches < 0:
		c.ZoomOut()
	}
}

func (c *Controller) ZoomIn()    { c.view.ZoomIn() }
func (c *Controller) ZoomOut()   { c.view.ZoomOut() }
func (c *Controller) ResetView() { c.view.Reset() }

// ScrollBy shifts the viewport by d surface pixels for keyboard scrolling and
// fit-to-node. It is ignored during a gesture; pointer pans go through
// PanningCanvas.
func (c *Controller) ScrollBy(d vector.Pt) {
	if c.state != Idle && c.state != EditingNode {
		return
	}
	c.view.PanBy(d)
}

// Select marks id as selected outside of a gesture.
func (c *Controller) Select(id diagram.NodeID) bool {
	if _, ok := c.model.Node(id); !ok {
		return false
	}
	c.selected = id
	return true
}

// ClearSelection drops the selection.
func (c *Controller) ClearSelection() { c.selected = diagram.NoNode }

// BeginEdit switches id into editing with its current text in the buffer.
// Any other gesture is resolved first.
func (c *Controller) BeginEdit(id diagram.NodeID) bool {
	n, ok := c.model.Node(id)
	if !ok {
		return false
	}
	if c.state == EditingNode && c.target == id {
		return true
	}
	c.resolve()
	c.model.SetEditing(id, true)
	c.state, c.target, c.selected = EditingNode, id, id
	c.editBuffer = []rune(n.Text)
	c.editOriginal = n.Text
	c.log.Debug("edit started", slog.String("node", id.String()))
	return true
}

// SetEditBuffer replaces the text being edited.
func (c *Controller) SetEditBuffer(s string) {
	if c.state == EditingNode {
		c.editBuffer = []rune(s)
	}
}

// Key feeds a key to the editor. Enter commits, Shift+Enter breaks the line,
// Escape cancels. It reports whether the key was consumed.
func (c *Controller) Key(ev KeyEvent) bool {
	if c.state != EditingNode {
		return false
	}
	switch ev.Key {
	case KeyEnter:
		if ev.Shift {
			c.editBuffer = append(c.editBuffer, '\n')
		} else {
			c.CommitEdit()
		}
	case KeyEscape:
		c.CancelEdit()
	case KeyBackspace:
		if n := len(c.editBuffer); n > 0 {
			c.editBuffer = c.editBuffer[:n-1]
		}
	case KeyRune:
		c.editBuffer = append(c.editBuffer, ev.Rune)
	default:
		return false
	}
	return true
}

// CommitEdit ends editing. A trimmed, non-empty buffer that differs from the
// text at edit start replaces the node text and is announced to listeners;
// anything else leaves the text alone.
func (c *Controller) CommitEdit() bool {
	if c.state != EditingNode {
		return false
	}
	id := c.target
	text := strings.TrimSpace(string(c.editBuffer))
	original := c.editOriginal
	c.endEdit()
	if text == "" || text == original {
		return false
	}
	before := c.snapshot()
	if !c.model.SetText(id, text) {
		c.log.Warn("edit target vanished", slog.String("node", id.String()))
		return false
	}
	c.record("edit "+id.String(), before)
	c.emit(TextCommitted{ID: id, Text: text})
	return true
}

// CancelEdit ends editing and keeps the original text.
func (c *Controller) CancelEdit() {
	if c.state == EditingNode {
		c.endEdit()
	}
}

func (c *Controller) endEdit() {
	c.model.SetEditing(c.target, false)
	c.state, c.target = Idle, diagram.NoNode
	c.editBuffer, c.editOriginal = nil, ""
}

// SetTranscript applies a new transcript. Any gesture in flight is resolved
// before the layout runs.
func (c *Controller) SetTranscript(lines []string) (diagram.SyncResult, error) {
	c.resolve()
	res, err := c.model.SetTranscript(lines)
	if err != nil {
		return res, fmt.Errorf("set transcript: %w", err)
	}
	if res == diagram.Rebuilt {
		c.clearHistory()
	}
	if _, ok := c.model.Node(c.selected); !ok {
		c.selected = diagram.NoNode
	}
	if res != diagram.Unchanged {
		c.log.Debug("transcript synced", slog.String("result", res.String()), slog.Int("nodes", c.model.Len()))
	}
	return res, nil
}

// AppendLine adds one utterance to the transcript.
func (c *Controller) AppendLine(line string) error {
	_, err := c.SetTranscript(append(c.model.Transcript(), line))
	return err
}

// SetViewMode switches the layout. Manual geometry is discarded and undo
// history cleared; an unsupported mode leaves everything unchanged.
func (c *Controller) SetViewMode(mode diagram.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("set view mode: %w: %d", diagram.ErrUnsupportedViewMode, uint8(mode))
	}
	c.resolve()
	if err := c.model.SetMode(mode); err != nil {
		return fmt.Errorf("set view mode: %w", err)
	}
	c.clearHistory()
	c.log.Debug("view mode changed", slog.String("mode", mode.String()))
	return nil
}

// NewSession discards the diagram, resets the viewport and the selection
// and starts a fresh undo history under id.
func (c *Controller) NewSession(id string) {
	if c.state == EditingNode {
		c.CancelEdit()
	}
	c.resolve()
	c.clearHistory()
	c.model.Reset()
	c.view.Reset()
	c.selected = diagram.NoNode
	c.session = id
}

// Restore applies persisted node states, e.g. after loading a session.
func (c *Controller) Restore(states []diagram.NodeState) int {
	c.resolve()
	return c.model.Restore(states)
}

// Overrides returns node states that differ from a fresh layout.
func (c *Controller) Overrides() []diagram.NodeState { return c.model.Overrides() }

// Undo reverts the last drag, resize or edit.
func (c *Controller) Undo() bool {
	if c.history == nil {
		return false
	}
	c.resolve()
	s, ok := c.history.Undo(c.session, c.snapshot())
	if !ok {
		return false
	}
	c.apply(s.Blob)
	return true
}

// Redo re-applies the last undone step.
func (c *Controller) Redo() bool {
	if c.history == nil {
		return false
	}
	c.resolve()
	s, ok := c.history.Redo(c.session, c.snapshot())
	if !ok {
		return false
	}
	c.apply(s.Blob)
	return true
}

func (c *Controller) begin(s State, id diagram.NodeID) {
	c.state, c.target = s, id
	c.changed = false
	if s != PanningCanvas {
		c.before = c.snapshot()
	}
	if !c.captured {
		c.capture.Acquire()
		c.captured = true
	}
	c.log.Debug("gesture started", slog.String("state", s.String()), slog.String("node", id.String()))
}

// finish ends a pan, drag or resize and records it for undo.
func (c *Controller) finish() {
	prev, id := c.state, c.target
	c.release()
	if c.changed && c.before != nil {
		label := "move "
		if prev == ResizingNode {
			label = "resize "
		}
		c.record(label+id.String(), c.before)
	}
	c.before, c.changed = nil, false
}

// abort drops a gesture whose node no longer exists.
func (c *Controller) abort(op string) {
	c.log.Warn("gesture target vanished", slog.String("op", op), slog.String("node", c.target.String()))
	c.release()
	c.before, c.changed = nil, false
}

func (c *Controller) release() {
	c.state, c.target = Idle, diagram.NoNode
	if c.captured {
		c.captured = false
		c.capture.Release()
	}
}

// resolve brings the controller back to Idle: gestures end normally and an
// open edit is committed.
func (c *Controller) resolve() {
	switch c.state {
	case EditingNode:
		c.CommitEdit()
	case PanningCanvas, DraggingNode, ResizingNode:
		c.finish()
	}
}

func (c *Controller) snapshot() []byte {
	b, err := json.Marshal(c.model.States())
	if err != nil {
		c.log.Error("snapshot failed", slog.Any("err", err))
		return nil
	}
	return b
}

func (c *Controller) apply(blob []byte) {
	var states []diagram.NodeState
	if err := json.Unmarshal(blob, &states); err != nil {
		c.log.Error("history restore failed", slog.Any("err", err))
		return
	}
	before := c.model.Nodes()
	c.model.Restore(states)
	for _, n := range c.model.Nodes() {
		if int(n.ID) < len(before) && before[n.ID].Text != n.Text {
			c.emit(TextCommitted{ID: n.ID, Text: n.Text})
		}
	}
}

func (c *Controller) record(label string, before []byte) {
	if c.history == nil || before == nil {
		return
	}
	c.history.Record(undo.Snapshot{Key: c.session, Label: label, Blob: before})
}

func (c *Controller) clearHistory() {
	if c.history != nil {
		c.history.Clear(c.session)
	}
}

func (c *Controller) emit(ev TextCommitted) {
	for _, fn := range c.listeners {
		fn(ev)
	}
}
