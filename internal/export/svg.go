/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"talkflow/internal/canvas"
	"talkflow/internal/diagram"
	"talkflow/internal/textlayout"
	"talkflow/internal/vector"
)

type svgSurface struct {
	buf bytes.Buffer
	err error
}

func (s *svgSurface) wf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(&s.buf, format, args...)
}

func (s *svgSurface) fillPath(p vector.Path, c vector.Color, opacity float32) {
	s.wf("  <path d=\"%s\" fill=\"%s\"%s/>\n", p.SVGData(), c.Hex(), opacityAttr("fill-opacity", opacity))
}

func (s *svgSurface) strokePath(p vector.Path, st vector.Stroke, opacity float32) {
	if !st.Enabled || len(p.Cmds) == 0 {
		return
	}
	var dash string
	if len(st.Dash) > 0 {
		parts := make([]string, len(st.Dash))
		for i, d := range st.Dash {
			parts[i] = num(d)
		}
		dash = fmt.Sprintf(" stroke-dasharray=\"%s\"", strings.Join(parts, " "))
	}
	s.wf("  <path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%s\" stroke-linecap=\"%s\"%s%s/>\n",
		p.SVGData(), st.Color.Hex(), num(st.Width), svgCap(st.Cap), dash, opacityAttr("stroke-opacity", opacity))
}

func (s *svgSurface) text(str string, at vector.Pt, style textlayout.TextStyle, c vector.Color) {
	if str == "" {
		return
	}
	weight := style.Font.Weight
	if weight == 0 {
		weight = 400
	}
	family := style.Font.Family
	if family == "" {
		family = "sans-serif"
	}
	s.wf("  <text x=\"%s\" y=\"%s\" font-family=\"%s\" font-size=\"%s\" font-weight=\"%d\" fill=\"%s\"",
		num(at.X), num(at.Y), esc(family), num(style.Font.SizePt), weight, c.Hex())
	if style.Tracking != 0 {
		s.wf(" letter-spacing=\"%s\"", num(style.Tracking))
	}
	s.wf(" xml:space=\"preserve\">")
	if style.Name == textlayout.StyleLabel || style.Name == textlayout.StyleTitle {
		s.highlighted(str)
	} else {
		s.wf("%s", esc(str))
	}
	s.wf("</text>\n")
}

// highlighted writes str with keyword matches set in bold.
func (s *svgSurface) highlighted(str string) {
	last := 0
	for _, r := range diagram.HighlightRanges(str) {
		s.wf("%s<tspan font-weight=\"700\">%s</tspan>", esc(str[last:r.Start]), esc(str[r.Start:r.End]))
		last = r.End
	}
	s.wf("%s", esc(str[last:]))
}

// WriteSVG renders sc as a standalone SVG document.
func WriteSVG(w io.Writer, sc canvas.Scene, opt Options) error {
	opt = opt.withDefaults()
	size, m := Frame(sc, opt)

	s := &svgSurface{}
	s.wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	s.wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%s\" height=\"%s\" viewBox=\"0 0 %s %s\">\n",
		num(size.W), num(size.H), num(size.W), num(size.H))
	s.wf("  <title>%s</title>\n", esc(opt.Title))
	s.wf("  <rect x=\"0\" y=\"0\" width=\"%s\" height=\"%s\" fill=\"%s\"/>\n", num(size.W), num(size.H), opt.Background.Hex())
	paint(s, sc, m, size, opt)
	s.wf("</svg>\n")
	if s.err != nil {
		return fmt.Errorf("build svg: %w", s.err)
	}
	if _, err := w.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func num(v float32) string {
	return strconv.FormatFloat(float64(vector.FloatRound(v, 3)), 'f', -1, 32)
}

func opacityAttr(name string, v float32) string {
	if v <= 0 || v >= 1 {
		return ""
	}
	return fmt.Sprintf(" %s=\"%s\"", name, num(v))
}

func svgCap(c vector.LineCap) string {
	switch c {
	case vector.CapRound:
		return "round"
	case vector.CapSquare:
		return "square"
	}
	return "butt"
}

// esc escapes text for character data and quoted attributes alike.
func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
