/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import "talkflow/internal/vector"

const (
	MinZoom  float32 = 0.5
	MaxZoom  float32 = 3.0
	ZoomStep float32 = 0.2
)

// Viewport maps scene coordinates onto the visible surface. Pan is in screen
// pixels; the zoom is applied around the centre of the surface.
type Viewport struct {
	Pan  vector.Pt `json:"pan"`
	Zoom float32   `json:"zoom"`
}

// NewViewport returns the reset viewport.
func NewViewport() Viewport { return Viewport{Zoom: 1} }

func (v *Viewport) ZoomIn()  { v.setZoom(v.Zoom + ZoomStep) }
func (v *Viewport) ZoomOut() { v.setZoom(v.Zoom - ZoomStep) }

// Reset restores pan (0,0) and zoom 1.
func (v *Viewport) Reset() { *v = NewViewport() }

// PanBy shifts the view by a screen-space delta. Zoom is untouched.
func (v *Viewport) PanBy(d vector.Pt) { v.Pan = v.Pan.Add(d) }

func (v *Viewport) setZoom(z float32) {
	v.Zoom = clampZoom(vector.FloatRound(z, 3))
}

func clampZoom(z float32) float32 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Transform returns the scene-to-screen matrix for a surface of the given
// size: translate by pan, then scale by zoom about the surface centre.
func (v Viewport) Transform(surface vector.Size) vector.Affine2D {
	z := v.Zoom
	if z == 0 {
		z = 1
	}
	o := vector.Pt{X: surface.W / 2, Y: surface.H / 2}
	return vector.Translate(v.Pan.X, v.Pan.Y).Mul(vector.ScaleAbout(o, z))
}

// ToScreen maps a scene point to surface pixels.
func (v Viewport) ToScreen(p vector.Pt, surface vector.Size) vector.Pt {
	return v.Transform(surface).Apply(p)
}

// ToScene maps surface pixels back to scene coordinates.
func (v Viewport) ToScene(p vector.Pt, surface vector.Size) vector.Pt {
	inv, _ := v.Transform(surface).Invert()
	return inv.Apply(p)
}
