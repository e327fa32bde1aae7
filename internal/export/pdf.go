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
	"io"

	"github.com/jung-kurt/gofpdf"

	"talkflow/internal/canvas"
	"talkflow/internal/textlayout"
	"talkflow/internal/vector"
)

// pdfSurface draws onto a single gofpdf page. Units are points and the
// page origin is top-left, so scene coordinates map 1:1.
type pdfSurface struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (s *pdfSurface) trace(p vector.Path) {
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			s.pdf.MoveTo(f64(d[0]), f64(d[1]))
		case vector.LineTo:
			s.pdf.LineTo(f64(d[0]), f64(d[1]))
		case vector.QuadTo:
			s.pdf.CurveTo(f64(d[0]), f64(d[1]), f64(d[2]), f64(d[3]))
		case vector.CubicTo:
			s.pdf.CurveBezierCubicTo(f64(d[0]), f64(d[1]), f64(d[2]), f64(d[3]), f64(d[4]), f64(d[5]))
		case vector.Close:
			s.pdf.ClosePath()
		}
	}
}

func (s *pdfSurface) alpha(opacity float32) {
	a := 1.0
	if opacity > 0 && opacity < 1 {
		a = float64(opacity)
	}
	s.pdf.SetAlpha(a, "Normal")
}

func (s *pdfSurface) fillPath(p vector.Path, c vector.Color, opacity float32) {
	if len(p.Cmds) == 0 {
		return
	}
	s.alpha(opacity)
	s.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	s.trace(p)
	s.pdf.DrawPath("F")
}

func (s *pdfSurface) strokePath(p vector.Path, st vector.Stroke, opacity float32) {
	if !st.Enabled || len(p.Cmds) == 0 {
		return
	}
	s.alpha(opacity)
	s.pdf.SetDrawColor(int(st.Color.R), int(st.Color.G), int(st.Color.B))
	s.pdf.SetLineWidth(f64(st.Width))
	s.pdf.SetLineCapStyle(svgCap(st.Cap))
	dash := make([]float64, len(st.Dash))
	for i, d := range st.Dash {
		dash[i] = f64(d)
	}
	s.pdf.SetDashPattern(dash, 0)
	s.trace(p)
	s.pdf.DrawPath("D")
	if len(dash) > 0 {
		s.pdf.SetDashPattern(nil, 0)
	}
}

func (s *pdfSurface) text(str string, at vector.Pt, style textlayout.TextStyle, c vector.Color) {
	if str == "" {
		return
	}
	s.alpha(1)
	fontStyle := ""
	if style.Font.Weight >= 600 {
		fontStyle = "B"
	}
	if style.Font.Italic {
		fontStyle += "I"
	}
	size := style.Font.SizePt
	if size <= 0 {
		size = 12
	}
	// built-in Helvetica keeps text vector without embedding
	s.pdf.SetFont("Helvetica", fontStyle, f64(size))
	s.pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	s.pdf.Text(f64(at.X), f64(at.Y), s.tr(str))
}

// WritePDF renders sc onto a single page sized to the frame.
func WritePDF(w io.Writer, sc canvas.Scene, opt Options) error {
	opt = opt.withDefaults()
	size, m := Frame(sc, opt)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: f64(size.W), Ht: f64(size.H)},
	})
	pdf.SetTitle(opt.Title, true)
	pdf.SetCreator("talkflow", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	bg := opt.Background
	pdf.SetFillColor(int(bg.R), int(bg.G), int(bg.B))
	pdf.Rect(0, 0, f64(size.W), f64(size.H), "F")

	s := &pdfSurface{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	paint(s, sc, m, size, opt)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func f64(v float32) float64 { return float64(v) }
