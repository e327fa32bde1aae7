/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"talkflow/internal/canvas"
	"talkflow/internal/diagram"
	"talkflow/internal/textlayout"
	"talkflow/internal/vector"
)

// Format is an output file format.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
	PDF Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{SVG, PNG, PDF}

// ParseFormat accepts a format name in any case, with or without a dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case SVG, PNG, PDF:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Options controls how a scene is framed and painted.
//
// By default the output is cropped to the content bounds plus Padding. With
// Width and Height set the content is scaled to fit that box and centred.
// UseViewport reproduces the on-screen view instead: the scene's pan and zoom
// on a surface of the scene's size.
type Options struct {
	Width, Height int
	Padding       float32
	Scale         float32 // multiplies the output size; PNG pixel density
	UseViewport   bool
	Grid          bool
	Background    vector.Color
	Title         string
	Styles        *textlayout.StyleSheet
	Provider      textlayout.Provider
	FontKey       string // names the Provider's fonts in Digest
}

const (
	defaultPadding = 40
	gridStep       = 40
	labelPad       = 10
	emptyW, emptyH = 400, 300
)

func (o Options) withDefaults() Options {
	if o.Padding <= 0 {
		o.Padding = defaultPadding
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Background == (vector.Color{}) {
		o.Background = diagram.CanvasColor
	}
	if o.Styles == nil {
		o.Styles = textlayout.NewStyleSheet()
	}
	if o.Provider == nil {
		o.Provider = textlayout.BasicProvider{}
	}
	if o.Title == "" {
		o.Title = "talkflow"
	}
	return o
}

// Frame returns the output size and the scene-to-output transform for sc.
func Frame(sc canvas.Scene, opt Options) (vector.Size, vector.Affine2D) {
	opt = opt.withDefaults()
	k := opt.Scale
	if opt.UseViewport {
		if sc.Surface.W <= 0 || sc.Surface.H <= 0 {
			sc.Surface = canvas.DefaultSurface
		}
		size := sc.Surface
		if opt.Width > 0 && opt.Height > 0 {
			size = vector.Size{W: float32(opt.Width), H: float32(opt.Height)}
		}
		// fit the surface into the requested size, then apply the viewport
		fit := min(size.W/sc.Surface.W, size.H/sc.Surface.H)
		return vector.Size{W: size.W * k, H: size.H * k}, vector.Scale(k*fit, k*fit).Mul(sc.Transform())
	}

	b := sc.Bounds()
	if b.Empty() {
		w, h := float32(emptyW), float32(emptyH)
		if opt.Width > 0 && opt.Height > 0 {
			w, h = float32(opt.Width), float32(opt.Height)
		}
		return vector.Size{W: w * k, H: h * k}, vector.Scale(k, k)
	}
	content := b.Inset(-opt.Padding, -opt.Padding)
	out := content.Size()
	fit := float32(1)
	if opt.Width > 0 && opt.Height > 0 {
		out = vector.Size{W: float32(opt.Width), H: float32(opt.Height)}
		fit = min(out.W/content.W, out.H/content.H)
	}
	ox := (out.W - content.W*fit) / 2
	oy := (out.H - content.H*fit) / 2
	m := vector.Scale(k, k).
		Mul(vector.Translate(ox, oy)).
		Mul(vector.Scale(fit, fit)).
		Mul(vector.Translate(-content.X, -content.Y))
	return vector.Size{W: out.W * k, H: out.H * k}, m
}

// Digest identifies the rendered output of sc with opt. Two calls agree
// exactly when the painted frame would.
func Digest(sc canvas.Scene, f Format, opt Options) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(struct {
		Scene   canvas.Scene
		Format  Format
		W, H    int
		Pad     float32
		Scale   float32
		View    bool
		Grid    bool
		BG      vector.Color
		Title   string
		Font    string
		Version int
	}{sc, f, opt.Width, opt.Height, opt.Padding, opt.Scale, opt.UseViewport, opt.Grid, opt.Background, opt.Title, opt.FontKey, 1})
	return hex.EncodeToString(h.Sum(nil))
}

// surface is the drawing backend of one output format. Coordinates are
// output units; text is positioned by its left baseline.
type surface interface {
	fillPath(p vector.Path, c vector.Color, opacity float32)
	strokePath(p vector.Path, st vector.Stroke, opacity float32)
	text(s string, at vector.Pt, style textlayout.TextStyle, c vector.Color)
}

// paint draws sc onto s with m mapping scene to output coordinates. The
// background is the surface's job.
func paint(s surface, sc canvas.Scene, m vector.Affine2D, size vector.Size, opt Options) {
	k := scaleOf(m)
	if opt.Grid {
		paintGrid(s, m, size, k)
	}

	edge := diagram.EdgeStyleFor(sc.Mode)
	stroke := edge.Stroke
	stroke.Width *= k
	if len(stroke.Dash) > 0 {
		stroke.Dash = scaled(stroke.Dash, k)
	}
	for _, c := range sc.Connections {
		s.strokePath(c.Path.Transform(m), stroke, edge.Opacity)
		if c.Arrow != nil {
			s.fillPath(c.Arrow.Transform(m), edge.Stroke.Color, edge.Opacity)
		}
	}

	wrap := textlayout.NewWordWrap(opt.Provider)
	for _, i := range sc.DrawOrder() {
		paintNode(s, sc, sc.Nodes[i], m, k, wrap, opt)
	}
}

func paintNode(s surface, sc canvas.Scene, n diagram.Node, m vector.Affine2D, k float32, wrap *textlayout.WordWrapLayouter, opt Options) {
	st := diagram.StyleFor(sc.Mode, n)
	box := n.Bounds()
	outline := vector.Outline(st.Shape, box, st.Radius).Transform(m)
	s.fillPath(outline, st.Fill, 1)

	border := vector.Stroke{Color: st.Border, Width: 2 * k, Cap: vector.CapRound, Enabled: true}
	selected := n.ID == sc.Selected
	switch {
	case n.Editing:
		border.Color, border.Width = diagram.EditingColor, 3*k
	case selected:
		border.Color, border.Width = diagram.SelectionColor, 3*k
	}
	s.strokePath(outline, border, 1)

	mode := sc.Mode.String()
	inner := box.Inset(labelPad, labelPad)
	if st.Shape == vector.ShapeDiamond {
		inner = box.Inset(box.W/4, box.H/4)
	}
	top := inner.Y
	if st.Label != "" {
		badge := scaleStyle(opt.Styles.MustResolve(mode, textlayout.StyleBadge), k)
		bb := wrap.Wrap(st.Label, opt.Styles.MustResolve(mode, textlayout.StyleBadge), 0)
		at := m.Apply(vector.Pt{X: inner.X, Y: top + bb.Metrics.Ascent})
		if st.Shape == vector.ShapeDiamond {
			at = m.Apply(vector.Pt{X: box.Center().X - bb.Width/2, Y: box.Y + labelPad + bb.Metrics.Ascent})
		}
		s.text(st.Label, at, badge, st.Border)
		if st.Shape != vector.ShapeDiamond {
			top += bb.LineHeight + 2
		}
	}

	text := n.Text
	if n.Editing && sc.State == canvas.EditingNode && n.ID == sc.Target {
		text = sc.EditBuffer
	}
	name := textlayout.StyleLabel
	if st.Bold {
		name = textlayout.StyleTitle
	}
	style := opt.Styles.MustResolve(mode, name)
	tb := wrap.Wrap(text, style, inner.W)
	avail := inner.Y + inner.H - top
	if lines := int(avail / tb.LineHeight); lines >= 1 {
		tb = tb.Clip(lines)
	} else {
		tb = tb.Clip(1)
	}
	scaledLabel := scaleStyle(style, k)
	for j, ln := range tb.Lines {
		x := inner.X + (inner.W-ln.Width)/2
		y := top + tb.Metrics.Ascent + float32(j)*tb.LineHeight
		s.text(ln.Text, m.Apply(vector.Pt{X: x, Y: y}), scaledLabel, st.Text)
	}

	if selected && !n.Editing {
		h := canvas.HandleRect(n)
		s.fillPath(vector.Outline(vector.ShapeRounded, h, 3).Transform(m), diagram.HandleColor, 1)
	}
}

func paintGrid(s surface, m vector.Affine2D, size vector.Size, k float32) {
	inv, ok := m.Invert()
	if !ok {
		return
	}
	area := inv.ApplyRect(vector.R(0, 0, size.W, size.H))
	st := vector.Stroke{Color: diagram.GridColor, Width: k, Enabled: true}
	var p vector.Path
	x0 := float32(math.Floor(float64(area.X/gridStep))) * gridStep
	for x := x0; x <= area.X+area.W; x += gridStep {
		p.MoveTo(x, area.Y)
		p.LineTo(x, area.Y+area.H)
	}
	y0 := float32(math.Floor(float64(area.Y/gridStep))) * gridStep
	for y := y0; y <= area.Y+area.H; y += gridStep {
		p.MoveTo(area.X, y)
		p.LineTo(area.X+area.W, y)
	}
	s.strokePath(p.Transform(m), st, 1)
}

// scaleOf returns the uniform scale factor of m.
func scaleOf(m vector.Affine2D) float32 {
	return float32(math.Hypot(float64(m.A), float64(m.B)))
}

func scaleStyle(st textlayout.TextStyle, k float32) textlayout.TextStyle {
	st.Font.SizePt *= k
	st.Tracking *= k
	st.Leading *= k
	return st
}

func scaled(v []float32, k float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * k
	}
	return out
}
