/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	rast "golang.org/x/image/vector"

	"talkflow/internal/canvas"
	"talkflow/internal/textlayout"
	"talkflow/internal/vector"
)

// MaxPNGSide bounds either PNG dimension in pixels.
const MaxPNGSide = 16384

// curveSteps is how finely curves are flattened before rasterising.
const curveSteps = 16

type pngSurface struct {
	img      *image.RGBA
	z        *rast.Rasterizer
	provider textlayout.Provider
}

func newPNGSurface(w, h int, bg vector.Color, provider textlayout.Provider) *pngSurface {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(toRGBA(bg, 1)), image.Point{}, draw.Src)
	return &pngSurface{img: img, z: rast.NewRasterizer(w, h), provider: provider}
}

func (s *pngSurface) reset() {
	b := s.img.Bounds()
	s.z.Reset(b.Dx(), b.Dy())
	s.z.DrawOp = draw.Over
}

func (s *pngSurface) draw(c vector.Color, opacity float32) {
	s.z.Draw(s.img, s.img.Bounds(), image.NewUniform(toRGBA(c, opacity)), image.Point{})
}

func (s *pngSurface) fillPath(p vector.Path, c vector.Color, opacity float32) {
	s.reset()
	for _, poly := range p.Flatten(curveSteps) {
		if len(poly) < 3 {
			continue
		}
		s.z.MoveTo(poly[0].X, poly[0].Y)
		for _, q := range poly[1:] {
			s.z.LineTo(q.X, q.Y)
		}
		s.z.ClosePath()
	}
	s.draw(c, opacity)
}

// strokePath rasterises every segment as a quad and every vertex as a disc.
// All polygons share one winding so overlaps never cancel out.
func (s *pngSurface) strokePath(p vector.Path, st vector.Stroke, opacity float32) {
	if !st.Enabled || st.Width <= 0 {
		return
	}
	hw := st.Width / 2
	s.reset()
	for _, poly := range p.Flatten(curveSteps) {
		runs := [][]vector.Pt{poly}
		if len(st.Dash) > 0 {
			runs = dashPolyline(poly, st.Dash)
		}
		for _, run := range runs {
			for i := 1; i < len(run); i++ {
				s.segment(run[i-1], run[i], hw)
			}
			for i, q := range run {
				interior := i > 0 && i < len(run)-1
				if interior || st.Cap == vector.CapRound {
					s.disc(q, hw)
				}
			}
		}
	}
	s.draw(st.Color, opacity)
}

func (s *pngSurface) segment(a, b vector.Pt, hw float32) {
	d := b.Sub(a)
	l := d.Len()
	if l == 0 {
		return
	}
	n := vector.Pt{X: -d.Y / l * hw, Y: d.X / l * hw}
	s.z.MoveTo(a.X+n.X, a.Y+n.Y)
	s.z.LineTo(b.X+n.X, b.Y+n.Y)
	s.z.LineTo(b.X-n.X, b.Y-n.Y)
	s.z.LineTo(a.X-n.X, a.Y-n.Y)
	s.z.ClosePath()
}

// disc adds an octagon around c, wound like segment's quads.
func (s *pngSurface) disc(c vector.Pt, r float32) {
	const sides = 8
	for i := 0; i <= sides; i++ {
		a := -2 * math.Pi * float64(i) / sides
		x := c.X + r*float32(math.Cos(a))
		y := c.Y + r*float32(math.Sin(a))
		if i == 0 {
			s.z.MoveTo(x, y)
		} else {
			s.z.LineTo(x, y)
		}
	}
	s.z.ClosePath()
}

func (s *pngSurface) text(str string, at vector.Pt, style textlayout.TextStyle, c vector.Color) {
	if str == "" {
		return
	}
	face, _ := s.provider.Resolve(style.Font)
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(toRGBA(c, 1)),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(at.X * 64), Y: fixed.Int26_6(at.Y * 64)},
	}
	d.DrawString(str)
}

// dashPolyline splits pts into the "on" runs of an on/off dash pattern.
func dashPolyline(pts []vector.Pt, dash []float32) [][]vector.Pt {
	var total float32
	for _, d := range dash {
		if d <= 0 {
			return [][]vector.Pt{pts}
		}
		total += d
	}
	if len(pts) < 2 || total == 0 {
		return [][]vector.Pt{pts}
	}
	var out [][]vector.Pt
	idx, left, on := 0, dash[0], true
	cur := []vector.Pt{pts[0]}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		segLen := b.Sub(a).Len()
		pos := float32(0)
		for segLen-pos > left {
			pos += left
			p := vector.Lerp(a, b, pos/segLen)
			if on {
				out = append(out, append(cur, p))
				cur = nil
			} else {
				cur = []vector.Pt{p}
			}
			on = !on
			idx = (idx + 1) % len(dash)
			left = dash[idx]
		}
		left -= segLen - pos
		if on {
			cur = append(cur, b)
		}
	}
	if on && len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}

func toRGBA(c vector.Color, opacity float32) color.NRGBA {
	a := c.A
	if opacity > 0 && opacity < 1 {
		a = uint8(float32(a) * opacity)
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}
}

// RenderPNG rasterises sc into an image.
func RenderPNG(sc canvas.Scene, opt Options) (*image.RGBA, error) {
	opt = opt.withDefaults()
	size, m := Frame(sc, opt)
	w := int(math.Ceil(float64(size.W)))
	h := int(math.Ceil(float64(size.H)))
	if w <= 0 || h <= 0 || w > MaxPNGSide || h > MaxPNGSide {
		return nil, fmt.Errorf("png size %dx%d out of range", w, h)
	}
	s := newPNGSurface(w, h, opt.Background, opt.Provider)
	paint(s, sc, m, size, opt)
	return s.img, nil
}

// WritePNG renders sc and encodes it as PNG.
func WritePNG(w io.Writer, sc canvas.Scene, opt Options) error {
	img, err := RenderPNG(sc, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
