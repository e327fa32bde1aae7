/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Text measurement and line breaking for node labels. Everything goes
// through a Provider so exports and tests can measure deterministically.

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Ellipsis terminates a label that was clipped to fit its box.
const Ellipsis = "…"

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name
	SizePt float32
	Weight int // 100..900
	Italic bool
}

// Metrics are the vertical metrics of a resolved face in pixels. Scale is
// applied to advances measured with the face; it is 1 unless the provider
// stands in a fixed bitmap face for a different size.
type Metrics struct {
	Ascent, Descent, LineGap float32
	Scale                    float32
}

// LineHeight is the baseline-to-baseline distance without extra leading.
func (m Metrics) LineHeight() float32 { return m.Ascent + m.Descent + m.LineGap }

// Span is a run of text with the same font.
type Span struct {
	Text string
	Font FontSpec
}

// Line is one laid out line of a label.
type Line struct {
	Text  string
	Width float32
}

// TextBox is the result of wrapping text into a width.
type TextBox struct {
	Lines      []Line
	Width      float32
	Height     float32
	LineHeight float32
	Metrics    Metrics
}

// Provider maps a FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// basicSize is the nominal pixel size of basicfont.Face7x13.
const basicSize = 13

// BasicProvider uses x/image/basicfont Face7x13 scaled to the requested size.
// It needs no font files, which keeps tests and headless exports deterministic.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	k := float32(1)
	if spec.SizePt > 0 {
		k = spec.SizePt / basicSize
	}
	return f, Metrics{
		Ascent:  float32(m.Ascent.Round()) * k,
		Descent: float32(m.Descent.Round()) * k,
		LineGap: float32(m.Height.Round()-m.Ascent.Round()-m.Descent.Round()) * k,
		Scale:   k,
	}
}

// WordWrapLayouter breaks on whitespace and honours explicit newlines. Words
// wider than the box are split between runes. There is no shaping or
// hyphenation.
type WordWrapLayouter struct{ Provider Provider }

func NewWordWrap(provider Provider) *WordWrapLayouter { return &WordWrapLayouter{Provider: provider} }

// Wrap lays text out in style within maxWidth. A maxWidth of 0 or less only
// breaks at newlines.
func (l *WordWrapLayouter) Wrap(text string, style TextStyle, maxWidth float32) TextBox {
	p := l.Provider
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(style.Font)
	if met.Scale == 0 {
		met.Scale = 1
	}
	d := &font.Drawer{Face: face}
	measure := func(s string) float32 {
		if s == "" {
			return 0
		}
		w := advance(d, s) * met.Scale
		if style.Tracking != 0 {
			w += style.Tracking * float32(utf8.RuneCountInString(s)-1)
		}
		return w
	}

	box := TextBox{Metrics: met, LineHeight: met.LineHeight() + style.Leading}
	add := func(s string) {
		w := measure(s)
		box.Lines = append(box.Lines, Line{Text: s, Width: w})
		box.Width = max(box.Width, w)
		box.Height += box.LineHeight
	}

	for _, para := range strings.Split(text, "\n") {
		cur := ""
		for _, word := range strings.Fields(para) {
			for maxWidth > 0 && measure(word) > maxWidth {
				if cur != "" {
					add(cur)
					cur = ""
				}
				head, tail := splitToFit(word, maxWidth, measure)
				add(head)
				word = tail
			}
			if cur == "" {
				cur = word
				continue
			}
			if cand := cur + " " + word; maxWidth <= 0 || measure(cand) <= maxWidth {
				cur = cand
			} else {
				add(cur)
				cur = word
			}
		}
		add(cur)
	}
	return box
}

// splitToFit returns the longest rune prefix of word that fits maxWidth, and
// the rest. The prefix holds at least one rune.
func splitToFit(word string, maxWidth float32, measure func(string) float32) (string, string) {
	cut := 0
	for i, r := range word {
		end := i + utf8.RuneLen(r)
		if cut > 0 && measure(word[:end]) > maxWidth {
			break
		}
		cut = end
	}
	return word[:cut], word[cut:]
}

// Clip keeps at most maxLines lines, ending the last kept line with an
// ellipsis when anything was dropped.
func (b TextBox) Clip(maxLines int) TextBox {
	if maxLines < 1 || len(b.Lines) <= maxLines {
		return b
	}
	out := b
	out.Lines = append([]Line(nil), b.Lines[:maxLines]...)
	last := &out.Lines[maxLines-1]
	last.Text = strings.TrimRight(last.Text, " ") + Ellipsis
	out.Height = float32(maxLines) * b.LineHeight
	return out
}

// Texts returns the line strings of the box.
func (b TextBox) Texts() []string {
	out := make([]string, len(b.Lines))
	for i, ln := range b.Lines {
		out[i] = ln.Text
	}
	return out
}

func advance(d *font.Drawer, s string) float32 {
	return float32(d.MeasureString(s).Round())
}

// Measure returns the width of spans laid side by side and the line height
// of the default font, without line breaking.
func Measure(provider Provider, spans []Span) (w, h float32) {
	if provider == nil {
		provider = BasicProvider{}
	}
	_, met := provider.Resolve(FontSpec{})
	for _, sp := range spans {
		face, m := provider.Resolve(sp.Font)
		if m.Scale == 0 {
			m.Scale = 1
		}
		w += advance(&font.Drawer{Face: face}, sp.Text) * m.Scale
	}
	return w, met.Ascent + met.Descent
}
