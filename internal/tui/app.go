/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tui draws a talkflow workspace in the terminal with tcell. One
// terminal cell stands for CellW by CellH pixels of the canvas surface, so
// the controller sees ordinary pointer coordinates.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"talkflow/internal/canvas"
	"talkflow/internal/diagram"
	"talkflow/internal/export"
	"talkflow/internal/feed"
	applog "talkflow/internal/log"
	"talkflow/internal/vector"
	"talkflow/internal/workspace"
)

// Pixels per terminal cell.
const (
	CellW = 8
	CellH = 16
)

const doubleClickWindow = 400 * time.Millisecond

// Options configure an App.
type Options struct {
	Workspace *workspace.Workspace
	Screen    tcell.Screen      // nil opens the terminal
	Follow    <-chan feed.Event // optional live transcript
	ExportDir string
	Logger    *slog.Logger
}

// App is the terminal front end. It is driven from a single goroutine.
type App struct {
	ws        *workspace.Workspace
	screen    tcell.Screen
	follow    <-chan feed.Event
	exportDir string
	log       *slog.Logger

	buttons   tcell.ButtonMask
	lastPress time.Time
	lastCell  [2]int
	lastPos   vector.Pt

	inputting bool
	input     []rune
	status    string
}

// New creates the app. The screen is initialised by Run.
func New(opts Options) (*App, error) {
	if opts.Workspace == nil {
		return nil, fmt.Errorf("tui: workspace is required")
	}
	scr := opts.Screen
	if scr == nil {
		var err error
		if scr, err = tcell.NewScreen(); err != nil {
			return nil, fmt.Errorf("tui: %w", err)
		}
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("tui")
	}
	dir := opts.ExportDir
	if dir == "" {
		dir = "."
	}
	return &App{ws: opts.Workspace, screen: scr, follow: opts.Follow, exportDir: dir, log: l}, nil
}

// Run owns the screen until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	if err := a.screen.Init(); err != nil {
		return fmt.Errorf("tui: init screen: %w", err)
	}
	defer a.screen.Fini()
	a.screen.EnableMouse()
	a.screen.Clear()
	a.resize(ctx)
	a.fit(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = a.screen.PostEvent(tcell.NewEventInterrupt(ctx.Err()))
	}()
	if a.follow != nil {
		go a.pump(ctx)
	}

	for {
		a.Draw()
		a.screen.Show()
		ev := a.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if a.HandleEvent(ctx, ev) {
			return nil
		}
	}
}

// pump applies feed events on its own goroutine; the workspace serialises
// them with the UI, and an interrupt triggers the redraw.
func (a *App) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.follow:
			if !ok {
				return
			}
			if err := a.ws.ApplyFeed(ctx, ev); err != nil {
				a.log.Error("apply feed", "err", err)
			}
			_ = a.screen.PostEvent(tcell.NewEventInterrupt(ev))
		}
	}
}

// HandleEvent processes one screen event and reports whether to quit.
func (a *App) HandleEvent(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
		a.resize(ctx)
	case *tcell.EventKey:
		return a.handleKey(ctx, ev)
	case *tcell.EventMouse:
		a.handleMouse(ctx, ev)
	case *tcell.EventInterrupt:
		if _, ok := ev.Data().(error); ok {
			return true
		}
		if fe, ok := ev.Data().(feed.Event); ok && fe.Reset {
			a.setStatus("transcript reloaded")
		}
	}
	return false
}

func (a *App) do(ctx context.Context, fn func(c *canvas.Controller) error) {
	if err := a.ws.Do(ctx, fn); err != nil {
		a.setStatus("error: " + err.Error())
	}
}

func (a *App) setStatus(s string) { a.status = s }

func (a *App) canvasRows() int {
	_, h := a.screen.Size()
	if h < 2 {
		return h
	}
	return h - 1
}

func (a *App) resize(ctx context.Context) {
	w, _ := a.screen.Size()
	size := vector.Size{W: float32(w * CellW), H: float32(a.canvasRows() * CellH)}
	a.do(ctx, func(c *canvas.Controller) error {
		c.SetSurfaceSize(size)
		return nil
	})
}

// fit resets the view, zooms out until the diagram fits and centres it.
func (a *App) fit(ctx context.Context) {
	a.do(ctx, func(c *canvas.Controller) error {
		c.ResetView()
		bounds := c.Scene().Bounds()
		if bounds.Empty() {
			return nil
		}
		surf := c.Surface()
		for {
			r := c.Viewport().Transform(surf).ApplyRect(bounds)
			if r.W <= surf.W && r.H <= surf.H {
				break
			}
			z := c.Viewport().Zoom
			c.ZoomOut()
			if c.Viewport().Zoom == z {
				break
			}
		}
		r := c.Viewport().Transform(surf).ApplyRect(bounds)
		c.ScrollBy(vector.Pt{X: surf.W / 2, Y: surf.H / 2}.Sub(r.Center()))
		return nil
	})
}

func cellCenter(x, y int) vector.Pt {
	return vector.Pt{X: float32(x)*CellW + CellW/2, Y: float32(y)*CellH + CellH/2}
}

func (a *App) handleMouse(ctx context.Context, ev *tcell.EventMouse) {
	x, y := ev.Position()
	pos := cellCenter(x, y)
	buttons := ev.Buttons()
	prev := a.buttons
	a.buttons = buttons & (tcell.Button1 | tcell.Button2 | tcell.Button3)

	switch {
	case buttons&tcell.WheelUp != 0:
		a.do(ctx, func(c *canvas.Controller) error { c.Wheel(1); return nil })
		return
	case buttons&tcell.WheelDown != 0:
		a.do(ctx, func(c *canvas.Controller) error { c.Wheel(-1); return nil })
		return
	}

	down := buttons&tcell.Button1 != 0
	wasDown := prev&tcell.Button1 != 0
	switch {
	case down && !wasDown:
		if y >= a.canvasRows() {
			a.buttons &^= tcell.Button1
			return
		}
		now := time.Now()
		if now.Sub(a.lastPress) <= doubleClickWindow && a.lastCell == [2]int{x, y} {
			a.lastPress = time.Time{}
			a.do(ctx, func(c *canvas.Controller) error { c.DoubleClick(canvas.PointerEvent{Pos: pos}); return nil })
			return
		}
		a.lastPress, a.lastCell = now, [2]int{x, y}
		a.do(ctx, func(c *canvas.Controller) error {
			c.PointerDown(canvas.PointerEvent{Pos: pos, Button: canvas.ButtonPrimary})
			return nil
		})
	case down && wasDown:
		if pos != a.lastPos {
			a.do(ctx, func(c *canvas.Controller) error { c.PointerMove(canvas.PointerEvent{Pos: pos}); return nil })
		}
	case !down && wasDown:
		a.do(ctx, func(c *canvas.Controller) error { c.PointerUp(canvas.PointerEvent{Pos: pos}); return nil })
	case buttons&tcell.Button2 != 0 && prev&tcell.Button2 == 0:
		a.do(ctx, func(c *canvas.Controller) error {
			c.PointerDown(canvas.PointerEvent{Pos: pos, Button: canvas.ButtonSecondary})
			return nil
		})
	}
	a.lastPos = pos
}

func (a *App) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return true
	}
	if a.inputting {
		a.handleInputKey(ctx, ev)
		return false
	}
	var editing bool
	a.do(ctx, func(c *canvas.Controller) error {
		editing = c.State() == canvas.EditingNode
		if editing {
			if k, ok := editKey(ev); ok {
				c.Key(k)
			}
		}
		return nil
	})
	if editing {
		return false
	}

	pan := func(dx, dy float32) {
		a.do(ctx, func(c *canvas.Controller) error { c.ScrollBy(vector.Pt{X: dx, Y: dy}); return nil })
	}
	switch ev.Key() {
	case tcell.KeyLeft:
		pan(4*CellW, 0)
	case tcell.KeyRight:
		pan(-4*CellW, 0)
	case tcell.KeyUp:
		pan(0, 2*CellH)
	case tcell.KeyDown:
		pan(0, -2*CellH)
	case tcell.KeyTab:
		a.cycleSelection(ctx, 1)
	case tcell.KeyBacktab:
		a.cycleSelection(ctx, -1)
	case tcell.KeyEnter:
		a.do(ctx, func(c *canvas.Controller) error {
			if id, ok := c.Selected(); ok {
				c.BeginEdit(id)
			}
			return nil
		})
	case tcell.KeyEscape:
		a.do(ctx, func(c *canvas.Controller) error { c.ClearSelection(); return nil })
	case tcell.KeyCtrlZ:
		a.undo(ctx, false)
	case tcell.KeyCtrlY:
		a.undo(ctx, true)
	case tcell.KeyCtrlS:
		if err := a.ws.Save(ctx); err != nil {
			a.setStatus("save: " + err.Error())
		} else {
			a.setStatus("saved")
		}
	case tcell.KeyRune:
		return a.handleRune(ctx, ev.Rune())
	}
	return false
}

func (a *App) handleRune(ctx context.Context, r rune) bool {
	switch r {
	case 'q':
		return true
	case '1', '2', '3':
		mode := diagram.ViewMode(r - '0')
		if err := a.ws.SetMode(ctx, mode); err != nil {
			a.setStatus("error: " + err.Error())
			return false
		}
		a.fit(ctx)
		a.setStatus(mode.Title())
	case '+', '=':
		a.do(ctx, func(c *canvas.Controller) error { c.ZoomIn(); return nil })
	case '-':
		a.do(ctx, func(c *canvas.Controller) error { c.ZoomOut(); return nil })
	case '0':
		a.do(ctx, func(c *canvas.Controller) error { c.ResetView(); return nil })
	case 'f':
		a.fit(ctx)
	case 'u':
		a.undo(ctx, false)
	case 'r':
		a.undo(ctx, true)
	case 'i':
		a.inputting, a.input = true, a.input[:0]
	case 'e':
		a.export(ctx, export.SVG)
	case 'p':
		a.export(ctx, export.PNG)
	case 'd':
		a.export(ctx, export.PDF)
	}
	return false
}

func (a *App) handleInputKey(ctx context.Context, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		a.inputting = false
	case tcell.KeyEnter:
		a.inputting = false
		text := strings.TrimSpace(string(a.input))
		if text == "" {
			return
		}
		lines, err := a.ws.Ingest(ctx, text)
		switch {
		case err != nil:
			a.setStatus("error: " + err.Error())
		case len(lines) == 0:
			a.setStatus("nothing to add")
		default:
			a.setStatus(fmt.Sprintf("added %d line(s)", len(lines)))
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(a.input); n > 0 {
			a.input = a.input[:n-1]
		}
	case tcell.KeyRune:
		a.input = append(a.input, ev.Rune())
	}
}

func editKey(ev *tcell.EventKey) (canvas.KeyEvent, bool) {
	switch ev.Key() {
	case tcell.KeyEnter:
		return canvas.KeyEvent{Key: canvas.KeyEnter, Shift: ev.Modifiers()&tcell.ModShift != 0}, true
	case tcell.KeyCtrlJ:
		// most terminals cannot report shift+enter
		return canvas.KeyEvent{Key: canvas.KeyEnter, Shift: true}, true
	case tcell.KeyEscape:
		return canvas.KeyEvent{Key: canvas.KeyEscape}, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return canvas.KeyEvent{Key: canvas.KeyBackspace}, true
	case tcell.KeyRune:
		return canvas.KeyEvent{Key: canvas.KeyRune, Rune: ev.Rune()}, true
	}
	return canvas.KeyEvent{}, false
}

func (a *App) undo(ctx context.Context, redo bool) {
	var ok bool
	a.do(ctx, func(c *canvas.Controller) error {
		if redo {
			ok = c.Redo()
		} else {
			ok = c.Undo()
		}
		return nil
	})
	switch {
	case ok:
	case redo:
		a.setStatus("nothing to redo")
	default:
		a.setStatus("nothing to undo")
	}
}

func (a *App) cycleSelection(ctx context.Context, step int) {
	a.do(ctx, func(c *canvas.Controller) error {
		nodes := c.Nodes()
		if len(nodes) == 0 {
			return nil
		}
		next := 0
		if id, ok := c.Selected(); ok {
			for i, n := range nodes {
				if n.ID == id {
					next = (i + step + len(nodes)) % len(nodes)
					break
				}
			}
		} else if step < 0 {
			next = len(nodes) - 1
		}
		c.Select(nodes[next].ID)
		return nil
	})
}

func (a *App) export(ctx context.Context, f export.Format) {
	name := "talkflow"
	if id := a.ws.Session().ID; id != "" {
		name += "-" + strings.SplitN(id, "-", 2)[0]
	}
	path := filepath.Join(a.exportDir, name+"."+string(f))
	data, err := a.ws.Render(ctx, f, export.Options{})
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		a.log.Error("export failed", "format", string(f), "err", err)
		a.setStatus("export failed: " + err.Error())
		return
	}
	a.log.Info("exported", "path", path)
	a.setStatus("wrote " + path)
}
