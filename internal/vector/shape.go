/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Shape is the outline a diagram node is drawn with.
type Shape uint8

const (
	ShapeRect Shape = iota
	ShapeRounded
	ShapePill
	ShapeDiamond
)

func (s Shape) String() string {
	switch s {
	case ShapeRect:
		return "rect"
	case ShapeRounded:
		return "rounded"
	case ShapePill:
		return "pill"
	case ShapeDiamond:
		return "diamond"
	}
	return "unknown"
}

// kappa approximates a quarter circle with one cubic segment.
const kappa = 0.5522848

// Outline returns the closed path of shape s inscribed in r. radius only
// applies to ShapeRounded; ShapePill uses half the shorter side.
func Outline(s Shape, r Rect, radius float32) Path {
	var p Path
	switch s {
	case ShapeDiamond:
		c := r.Center()
		p.MoveTo(c.X, r.Y)
		p.LineTo(r.X+r.W, c.Y)
		p.LineTo(c.X, r.Y+r.H)
		p.LineTo(r.X, c.Y)
		p.Close()
		return p
	case ShapePill:
		radius = min(r.W, r.H) / 2
	case ShapeRounded:
		radius = min(radius, min(r.W, r.H)/2)
	default:
		radius = 0
	}
	if radius <= 0 {
		p.MoveTo(r.X, r.Y)
		p.LineTo(r.X+r.W, r.Y)
		p.LineTo(r.X+r.W, r.Y+r.H)
		p.LineTo(r.X, r.Y+r.H)
		p.Close()
		return p
	}
	k := radius * kappa
	x0, y0, x1, y1 := r.X, r.Y, r.X+r.W, r.Y+r.H
	p.MoveTo(x0+radius, y0)
	p.LineTo(x1-radius, y0)
	p.CubicTo(x1-radius+k, y0, x1, y0+radius-k, x1, y0+radius)
	p.LineTo(x1, y1-radius)
	p.CubicTo(x1, y1-radius+k, x1-radius+k, y1, x1-radius, y1)
	p.LineTo(x0+radius, y1)
	p.CubicTo(x0+radius-k, y1, x0, y1-radius+k, x0, y1-radius)
	p.LineTo(x0, y0+radius)
	p.CubicTo(x0, y0+radius-k, x0+radius-k, y0, x0+radius, y0)
	p.Close()
	return p
}

// HitShape reports whether q lies inside shape s inscribed in r.
func HitShape(s Shape, r Rect, radius float32, q Pt) bool {
	if !r.Contains(q) {
		return false
	}
	switch s {
	case ShapeDiamond:
		c := r.Center()
		rx, ry := r.W/2, r.H/2
		if rx == 0 || ry == 0 {
			return false
		}
		dx, dy := (q.X-c.X)/rx, (q.Y-c.Y)/ry
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		return dx+dy <= 1
	case ShapePill:
		radius = min(r.W, r.H) / 2
	case ShapeRounded:
		radius = min(radius, min(r.W, r.H)/2)
	default:
		return true
	}
	core := r.Inset(radius, radius)
	if core.W >= 0 && core.H >= 0 {
		if (q.X >= core.X && q.X <= core.X+core.W) || (q.Y >= core.Y && q.Y <= core.Y+core.H) {
			return true
		}
	}
	r2 := radius * radius
	for _, cx := range []float32{r.X + radius, r.X + r.W - radius} {
		for _, cy := range []float32{r.Y + radius, r.Y + r.H - radius} {
			dx, dy := q.X-cx, q.Y-cy
			if dx*dx+dy*dy <= r2 {
				return true
			}
		}
	}
	return false
}
