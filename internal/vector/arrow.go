/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// ArrowOptions controls arrowhead geometry in scene units.
type ArrowOptions struct {
	// Length is measured from the tip back along the direction of travel.
	Length float32
	// HalfWidth is the distance from the shaft to each base corner.
	HalfWidth float32
}

// DefaultArrow matches the 10x10 triangle used on flowchart connectors.
var DefaultArrow = ArrowOptions{Length: 10, HalfWidth: 5}

// ArrowGeometry describes a closed triangular arrowhead.
type ArrowGeometry struct {
	Tip       Pt
	BaseLeft  Pt
	BaseRight Pt
	Angle     float32 // radians, direction of travel
	Path      Path
}

// ComputeArrowhead builds a triangle whose tip sits at tip and which points
// along dir. A zero dir points right. Points are rounded to 3 decimals.
func ComputeArrowhead(tip, dir Pt, opts ArrowOptions) ArrowGeometry {
	if opts.Length <= 0 {
		opts.Length = DefaultArrow.Length
	}
	if opts.HalfWidth <= 0 {
		opts.HalfWidth = DefaultArrow.HalfWidth
	}
	mag := dir.Len()
	if mag == 0 {
		dir, mag = Pt{X: 1}, 1
	}
	ux, uy := dir.X/mag, dir.Y/mag
	px, py := -uy, ux

	bc := Pt{X: tip.X - ux*opts.Length, Y: tip.Y - uy*opts.Length}
	bl := Pt{X: bc.X + px*opts.HalfWidth, Y: bc.Y + py*opts.HalfWidth}.Round(3)
	br := Pt{X: bc.X - px*opts.HalfWidth, Y: bc.Y - py*opts.HalfWidth}.Round(3)
	t := tip.Round(3)

	var path Path
	path.MoveTo(bl.X, bl.Y)
	path.LineTo(t.X, t.Y)
	path.LineTo(br.X, br.Y)
	path.Close()

	return ArrowGeometry{
		Tip:       t,
		BaseLeft:  bl,
		BaseRight: br,
		Angle:     float32(math.Atan2(float64(uy), float64(ux))),
		Path:      path,
	}
}
