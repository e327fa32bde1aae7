/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tui

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"talkflow/internal/canvas"
	"talkflow/internal/diagram"
	"talkflow/internal/textlayout"
	"talkflow/internal/vector"
)

// Labels are wrapped with the 7x13 basic face, whose advance is one cell.
const glyphAdvance = 7

var (
	cellText   = textlayout.TextStyle{Name: "Cell", Font: textlayout.FontSpec{Family: "basic", SizePt: 13, Weight: 400}}
	cellWrap   = textlayout.NewWordWrap(textlayout.BasicProvider{})
	styleStat  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	styleInput = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkGreen)
)

func rgb(c vector.Color) tcell.Color { return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)) }

type cellRect struct{ x0, y0, x1, y1 int }

func (r cellRect) contains(x, y int) bool { return x >= r.x0 && x <= r.x1 && y >= r.y0 && y <= r.y1 }

func toCells(r vector.Rect) cellRect {
	cr := cellRect{
		x0: int(math.Floor(float64(r.X / CellW))),
		y0: int(math.Floor(float64(r.Y / CellH))),
		x1: int(math.Floor(float64((r.X + r.W) / CellW))),
		y1: int(math.Floor(float64((r.Y + r.H) / CellH))),
	}
	if cr.x1 < cr.x0+2 {
		cr.x1 = cr.x0 + 2
	}
	if cr.y1 < cr.y0+2 {
		cr.y1 = cr.y0 + 2
	}
	return cr
}

func toCell(p vector.Pt) (int, int) {
	return int(math.Floor(float64(p.X / CellW))), int(math.Floor(float64(p.Y / CellH)))
}

// Draw paints the scene and the status line.
func (a *App) Draw() {
	a.screen.Clear()
	w, h := a.screen.Size()
	rows := a.canvasRows()
	sc := a.ws.Scene()
	m := sc.Transform()

	boxes := make(map[diagram.NodeID]cellRect, len(sc.Nodes))
	for _, n := range sc.Nodes {
		boxes[n.ID] = toCells(m.ApplyRect(n.Bounds()))
	}
	edge := tcell.StyleDefault.Foreground(rgb(diagram.EdgeStyleFor(sc.Mode).Stroke.Color))
	for _, c := range sc.Connections {
		p := c.Path.Transform(m)
		for _, poly := range p.Flatten(16) {
			a.dots(poly, edge, w, rows)
			if c.Arrow != nil {
				a.arrow(poly, boxes[c.To], edge, w, rows)
			}
		}
	}
	for _, i := range sc.DrawOrder() {
		n := sc.Nodes[i]
		a.drawNode(sc, n, boxes[n.ID], m, w, rows)
	}
	a.drawStatus(sc, w, h)
}

func (a *App) set(x, y int, r rune, st tcell.Style, w, rows int) {
	if x >= 0 && y >= 0 && x < w && y < rows {
		a.screen.SetContent(x, y, r, nil, st)
	}
}

// dots marks every cell a polyline passes through.
func (a *App) dots(poly []vector.Pt, st tcell.Style, w, rows int) {
	for i := 1; i < len(poly); i++ {
		x0, y0 := toCell(poly[i-1])
		x1, y1 := toCell(poly[i])
		steps := max(abs(x1-x0), abs(y1-y0))
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(max(steps, 1))
			x := x0 + int(math.Round(float64(x1-x0)*t))
			y := y0 + int(math.Round(float64(y1-y0)*t))
			a.set(x, y, '·', st, w, rows)
		}
	}
}

// arrow puts a direction glyph on the last cell of poly outside the target.
func (a *App) arrow(poly []vector.Pt, target cellRect, st tcell.Style, w, rows int) {
	for i := len(poly) - 1; i > 0; i-- {
		x, y := toCell(poly[i-1])
		if target.contains(x, y) {
			continue
		}
		d := poly[i].Sub(poly[i-1])
		var g rune
		switch {
		case math.Abs(float64(d.X)) >= math.Abs(float64(d.Y))*CellW/CellH:
			g = '▶'
			if d.X < 0 {
				g = '◀'
			}
		case d.Y < 0:
			g = '▲'
		default:
			g = '▼'
		}
		a.set(x, y, g, st, w, rows)
		return
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func corners(s vector.Shape) [4]rune {
	switch s {
	case vector.ShapeRounded, vector.ShapePill:
		return [4]rune{'╭', '╮', '╰', '╯'}
	case vector.ShapeDiamond:
		return [4]rune{'╱', '╲', '╲', '╱'}
	}
	return [4]rune{'┌', '┐', '└', '┘'}
}

func (a *App) drawNode(sc canvas.Scene, n diagram.Node, r cellRect, m vector.Affine2D, w, rows int) {
	ns := diagram.StyleFor(sc.Mode, n)
	fill := tcell.StyleDefault.Background(rgb(ns.Fill)).Foreground(rgb(ns.Text)).Bold(ns.Bold)
	borderColor := ns.Border
	switch {
	case n.Editing:
		borderColor = diagram.EditingColor
	case n.ID == sc.Selected:
		borderColor = diagram.SelectionColor
	}
	border := tcell.StyleDefault.Background(rgb(ns.Fill)).Foreground(rgb(borderColor))

	for y := r.y0; y <= r.y1; y++ {
		for x := r.x0; x <= r.x1; x++ {
			a.set(x, y, ' ', fill, w, rows)
		}
	}
	hz, vt := '─', '│'
	if n.ID == sc.Selected || n.Editing {
		hz, vt = '━', '┃'
	}
	for x := r.x0 + 1; x < r.x1; x++ {
		a.set(x, r.y0, hz, border, w, rows)
		a.set(x, r.y1, hz, border, w, rows)
	}
	for y := r.y0 + 1; y < r.y1; y++ {
		a.set(r.x0, y, vt, border, w, rows)
		a.set(r.x1, y, vt, border, w, rows)
	}
	c := corners(ns.Shape)
	a.set(r.x0, r.y0, c[0], border, w, rows)
	a.set(r.x1, r.y0, c[1], border, w, rows)
	a.set(r.x0, r.y1, c[2], border, w, rows)
	a.set(r.x1, r.y1, c[3], border, w, rows)

	if ns.Label != "" && r.x1-r.x0-3 >= len(ns.Label) {
		a.text(r.x0+2, r.y0, ns.Label, border.Italic(true), r.x1, w, rows)
	}

	text := n.Text
	if n.Editing {
		text = sc.EditBuffer + "▏"
	}
	cols, lines := r.x1-r.x0-1, r.y1-r.y0-1
	if cols <= 0 || lines <= 0 {
		return
	}
	box := cellWrap.Wrap(text, cellText, float32(cols*glyphAdvance)).Clip(lines)
	top := r.y0 + 1 + (lines-len(box.Lines))/2
	for i, l := range box.Lines {
		lw := int(math.Ceil(float64(l.Width / glyphAdvance)))
		x := r.x0 + 1 + max(0, (cols-lw)/2)
		a.text(x, top+i, l.Text, fill, r.x1, w, rows)
	}

	if n.ID == sc.Selected && !n.Editing {
		hx, hy := toCell(m.Apply(canvas.HandleRect(n).Center()))
		a.set(hx, hy, '◢', tcell.StyleDefault.Foreground(rgb(diagram.HandleColor)).Background(rgb(ns.Fill)), w, rows)
	}
}

// text draws s from (x,y), stopping before column limit.
func (a *App) text(x, y int, s string, st tcell.Style, limit, w, rows int) {
	for _, r := range s {
		if x >= limit {
			return
		}
		a.set(x, y, r, st, w, rows)
		x++
	}
}

func (a *App) drawStatus(sc canvas.Scene, w, h int) {
	if h < 2 {
		return
	}
	y := h - 1
	var line string
	st := styleStat
	if a.inputting {
		st = styleInput
		line = "say> " + string(a.input) + "▏"
	} else {
		title := a.ws.Session().Title
		if title == "" {
			title = "untitled"
		}
		line = fmt.Sprintf(" %s | %s | %d nodes | %d%%", title, sc.Mode.Title(), len(sc.Nodes), int(math.Round(float64(sc.Viewport.Zoom*100))))
		if a.status != "" {
			line += " | " + a.status
		} else {
			line += " | i say  1-3 mode  f fit  e/p/d export  u/r undo  q quit"
		}
	}
	for x := 0; x < w; x++ {
		a.screen.SetContent(x, y, ' ', nil, st)
	}
	x := 0
	for _, r := range line {
		if x >= w {
			break
		}
		a.screen.SetContent(x, y, r, nil, st)
		x++
	}
}
