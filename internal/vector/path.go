/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"strconv"
	"strings"
)

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float32 // enough for cubic; unused slots are zero
}

// Path is an ordered list of drawing commands in scene units.
type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float32{x, y}})
}
func (p *Path) LineTo(x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float32{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float32{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float32{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// end returns the pen position after c.
func (c PathCmd) end() Pt {
	switch c.Op {
	case MoveTo, LineTo:
		return Pt{c.Data[0], c.Data[1]}
	case QuadTo:
		return Pt{c.Data[2], c.Data[3]}
	case CubicTo:
		return Pt{c.Data[4], c.Data[5]}
	}
	return Pt{}
}

// points returns the control and end points of c.
func (c PathCmd) points() []Pt {
	switch c.Op {
	case MoveTo, LineTo:
		return []Pt{{c.Data[0], c.Data[1]}}
	case QuadTo:
		return []Pt{{c.Data[0], c.Data[1]}, {c.Data[2], c.Data[3]}}
	case CubicTo:
		return []Pt{{c.Data[0], c.Data[1]}, {c.Data[2], c.Data[3]}, {c.Data[4], c.Data[5]}}
	}
	return nil
}

// Bounds returns the bounding box of all path and control points. Curves lie
// inside the hull of their control points, so this never under-reports.
func (p *Path) Bounds() Rect {
	var (
		r     Rect
		first = true
	)
	for _, c := range p.Cmds {
		for _, q := range c.points() {
			if first {
				r = Rect{X: q.X, Y: q.Y}
				first = false
				continue
			}
			minX, minY := min(r.X, q.X), min(r.Y, q.Y)
			maxX, maxY := max(r.X+r.W, q.X), max(r.Y+r.H, q.Y)
			r = Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
		}
	}
	return r
}

// Transform returns a copy of p with every point mapped through m.
func (p Path) Transform(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		nc := PathCmd{Op: c.Op}
		for j, q := range c.points() {
			t := m.Apply(q)
			nc.Data[2*j], nc.Data[2*j+1] = t.X, t.Y
		}
		out.Cmds[i] = nc
	}
	return out
}

// EndTangent returns the final pen position and the direction the path is
// heading when it arrives there. ok is false for paths without a segment or
// with a zero-length final tangent.
func (p *Path) EndTangent() (end, dir Pt, ok bool) {
	var pen, start Pt
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			dir = Pt{}
			start = c.end()
		case LineTo:
			dir = c.end().Sub(pen)
		case QuadTo:
			dir = c.end().Sub(Pt{c.Data[0], c.Data[1]})
		case CubicTo:
			dir = c.end().Sub(Pt{c.Data[2], c.Data[3]})
		case Close:
			dir = start.Sub(pen)
			pen = start
			continue
		}
		pen = c.end()
	}
	return pen, dir, dir.X != 0 || dir.Y != 0
}

// Flatten approximates the path by polylines, one per subpath. Each curve is
// sampled with the given number of steps.
func (p *Path) Flatten(steps int) [][]Pt {
	if steps < 1 {
		steps = 1
	}
	var (
		out   [][]Pt
		cur   []Pt
		pen   Pt
		start Pt
	)
	flush := func() {
		if len(cur) > 1 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			flush()
			pen = c.end()
			start = pen
			cur = []Pt{pen}
		case LineTo:
			pen = c.end()
			cur = append(cur, pen)
		case QuadTo:
			c1, e := Pt{c.Data[0], c.Data[1]}, c.end()
			for s := 1; s <= steps; s++ {
				t := float32(s) / float32(steps)
				a, b := Lerp(pen, c1, t), Lerp(c1, e, t)
				cur = append(cur, Lerp(a, b, t))
			}
			pen = e
		case CubicTo:
			c1, c2, e := Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, c.end()
			for s := 1; s <= steps; s++ {
				t := float32(s) / float32(steps)
				a, b, d := Lerp(pen, c1, t), Lerp(c1, c2, t), Lerp(c2, e, t)
				ab, bd := Lerp(a, b, t), Lerp(b, d, t)
				cur = append(cur, Lerp(ab, bd, t))
			}
			pen = e
		case Close:
			cur = append(cur, start)
			pen = start
		}
	}
	flush()
	return out
}

// SVGData renders the path as an SVG "d" attribute with 3-decimal precision.
func (p *Path) SVGData() string {
	var b strings.Builder
	for i, c := range p.Cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c.Op {
		case MoveTo:
			b.WriteString("M")
		case LineTo:
			b.WriteString("L")
		case QuadTo:
			b.WriteString("Q")
		case CubicTo:
			b.WriteString("C")
		case Close:
			b.WriteString("Z")
			continue
		}
		for j, q := range c.points() {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(fmtNum(q.X))
			b.WriteByte(' ')
			b.WriteString(fmtNum(q.Y))
		}
	}
	return b.String()
}

func fmtNum(v float32) string {
	return strconv.FormatFloat(float64(FloatRound(v, 3)), 'f', -1, 32)
}
