//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"image"
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	fcanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"talkflow/internal/canvas"
	"talkflow/internal/diagram"
	"talkflow/internal/export"
	applog "talkflow/internal/log"
	"talkflow/internal/vector"
	"talkflow/internal/workspace"
)

// DiagramCanvas shows a workspace and forwards pointer and key input to its
// controller. The frame is rasterised by the PNG exporter at the widget's
// pixel size.
type DiagramCanvas struct {
	widget.BaseWidget

	ws    *workspace.Workspace
	ctx   context.Context
	log   *slog.Logger
	shift bool

	// OnChange runs after every input that may have changed the scene.
	OnChange func()
	// OnError receives failures from the workspace.
	OnError func(error)
}

var (
	_ fyne.Draggable      = (*DiagramCanvas)(nil)
	_ fyne.Scrollable     = (*DiagramCanvas)(nil)
	_ fyne.DoubleTappable = (*DiagramCanvas)(nil)
	_ fyne.Focusable      = (*DiagramCanvas)(nil)
	_ desktop.Mouseable   = (*DiagramCanvas)(nil)
	_ desktop.Hoverable   = (*DiagramCanvas)(nil)
	_ desktop.Keyable     = (*DiagramCanvas)(nil)
)

// NewDiagramCanvas binds a canvas widget to ws.
func NewDiagramCanvas(ctx context.Context, ws *workspace.Workspace) *DiagramCanvas {
	d := &DiagramCanvas{ws: ws, ctx: ctx, log: applog.WithComponent("ui.canvas")}
	d.ExtendBaseWidget(d)
	return d
}

func (d *DiagramCanvas) do(fn func(c *canvas.Controller)) {
	err := d.ws.Do(d.ctx, func(c *canvas.Controller) error {
		fn(c)
		return nil
	})
	if err != nil {
		d.log.Error("workspace update failed", "err", err)
		if d.OnError != nil {
			d.OnError(err)
		}
	}
	d.Refresh()
	if d.OnChange != nil {
		d.OnChange()
	}
}

func pt(p fyne.Position) vector.Pt { return vector.Pt{X: p.X, Y: p.Y} }

func button(b desktop.MouseButton) canvas.Button {
	switch b {
	case desktop.MouseButtonSecondary:
		return canvas.ButtonSecondary
	case desktop.MouseButtonTertiary:
		return canvas.ButtonMiddle
	}
	return canvas.ButtonPrimary
}

// Resize keeps the controller surface in step with the widget.
func (d *DiagramCanvas) Resize(s fyne.Size) {
	d.BaseWidget.Resize(s)
	_ = d.ws.Do(d.ctx, func(c *canvas.Controller) error {
		c.SetSurfaceSize(vector.Size{W: s.Width, H: s.Height})
		return nil
	})
}

// MouseDown starts a gesture and takes keyboard focus.
func (d *DiagramCanvas) MouseDown(e *desktop.MouseEvent) {
	if c := fyne.CurrentApp().Driver().CanvasForObject(d); c != nil {
		c.Focus(d)
	}
	d.do(func(c *canvas.Controller) {
		c.PointerDown(canvas.PointerEvent{Pos: pt(e.Position), Button: button(e.Button)})
	})
}

func (d *DiagramCanvas) MouseUp(e *desktop.MouseEvent) {
	d.do(func(c *canvas.Controller) { c.PointerUp(canvas.PointerEvent{Pos: pt(e.Position), Button: button(e.Button)}) })
}

func (d *DiagramCanvas) Dragged(e *fyne.DragEvent) {
	d.do(func(c *canvas.Controller) { c.PointerMove(canvas.PointerEvent{Pos: pt(e.Position)}) })
}

// DragEnd is covered by MouseUp.
func (d *DiagramCanvas) DragEnd() {}

func (d *DiagramCanvas) MouseIn(*desktop.MouseEvent)    {}
func (d *DiagramCanvas) MouseMoved(*desktop.MouseEvent) {}
func (d *DiagramCanvas) MouseOut() {
	d.do(func(c *canvas.Controller) { c.PointerLeave() })
}

func (d *DiagramCanvas) DoubleTapped(e *fyne.PointEvent) {
	d.do(func(c *canvas.Controller) { c.DoubleClick(canvas.PointerEvent{Pos: pt(e.Position)}) })
}

// Scrolled zooms one step per wheel event.
func (d *DiagramCanvas) Scrolled(e *fyne.ScrollEvent) {
	d.do(func(c *canvas.Controller) { c.Wheel(e.Scrolled.DY) })
}

func (d *DiagramCanvas) FocusGained() {}

// FocusLost commits an open edit.
func (d *DiagramCanvas) FocusLost() {
	d.do(func(c *canvas.Controller) { c.CommitEdit() })
}

func (d *DiagramCanvas) TypedRune(r rune) {
	d.do(func(c *canvas.Controller) { c.Key(canvas.KeyEvent{Key: canvas.KeyRune, Rune: r}) })
}

func (d *DiagramCanvas) TypedKey(e *fyne.KeyEvent) {
	var k canvas.KeyEvent
	switch e.Name {
	case fyne.KeyReturn, fyne.KeyEnter:
		k = canvas.KeyEvent{Key: canvas.KeyEnter, Shift: d.shift}
	case fyne.KeyEscape:
		k = canvas.KeyEvent{Key: canvas.KeyEscape}
	case fyne.KeyBackspace:
		k = canvas.KeyEvent{Key: canvas.KeyBackspace}
	default:
		return
	}
	d.do(func(c *canvas.Controller) { c.Key(k) })
}

func (d *DiagramCanvas) KeyDown(e *fyne.KeyEvent) {
	if e.Name == desktop.KeyShiftLeft || e.Name == desktop.KeyShiftRight {
		d.shift = true
	}
}

func (d *DiagramCanvas) KeyUp(e *fyne.KeyEvent) {
	if e.Name == desktop.KeyShiftLeft || e.Name == desktop.KeyShiftRight {
		d.shift = false
	}
}

func (d *DiagramCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

// render draws the current scene at w by h pixels.
func (d *DiagramCanvas) render(w, h int) image.Image {
	img, err := export.RenderPNG(d.ws.Scene(), export.Options{Width: w, Height: h, UseViewport: true, Grid: true})
	if err != nil {
		d.log.Error("render failed", "w", w, "h", h, "err", err)
		return image.NewUniform(color.NRGBA{R: diagram.CanvasColor.R, G: diagram.CanvasColor.G, B: diagram.CanvasColor.B, A: 255})
	}
	return img
}

func (d *DiagramCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := fcanvas.NewRaster(d.render)
	return &diagramRenderer{d: d, raster: r, objects: []fyne.CanvasObject{r}}
}

type diagramRenderer struct {
	d       *DiagramCanvas
	raster  *fcanvas.Raster
	objects []fyne.CanvasObject
}

func (r *diagramRenderer) Destroy()                     {}
func (r *diagramRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *diagramRenderer) MinSize() fyne.Size           { return r.d.MinSize() }
func (r *diagramRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))
}
func (r *diagramRenderer) Refresh() { r.raster.Refresh() }
