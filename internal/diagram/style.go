/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package diagram

import "talkflow/internal/vector"

// NodeStyle is everything a renderer needs to paint one node.
type NodeStyle struct {
	Shape  vector.Shape
	Radius float32
	Fill   vector.Color
	Border vector.Color
	Text   vector.Color
	Label  string // badge text, empty for none
	Icon   string
	Bold   bool
}

// EdgeStyle describes how connections are stroked in a mode.
type EdgeStyle struct {
	Stroke  vector.Stroke
	Opacity float32
}

var (
	SelectionColor = vector.MustHex("#60a5fa")
	EditingColor   = vector.MustHex("#4ade80")
	HandleColor    = vector.MustHex("#3b82f6")
	CanvasColor    = vector.MustHex("#f8fafc")
	GridColor      = vector.MustHex("#e2e8f0")
)

type palette struct{ fill, border, text string }

func (p palette) apply(s *NodeStyle) {
	s.Fill = vector.MustHex(p.fill)
	s.Border = vector.MustHex(p.border)
	s.Text = vector.MustHex(p.text)
}

var (
	mindmapMain   = palette{"#e0e7ff", "#a5b4fc", "#312e81"}
	mindmapDetail = palette{"#f0f9ff", "#bae6fd", "#0c4a6e"}
	flowStart     = palette{"#dcfce7", "#86efac", "#14532d"}
	flowEnd       = palette{"#fee2e2", "#fca5a5", "#7f1d1d"}
	flowDecision  = palette{"#fef3c7", "#fcd34d", "#78350f"}
	flowProcess   = palette{"#ffffff", "#cbd5e1", "#0f172a"}
	outlineMain   = palette{"#fffbeb", "#fde68a", "#78350f"}
	outlineDetail = palette{"#f8fafc", "#e2e8f0", "#334155"}
)

// StyleFor returns the paint, outline and badge for n in mode.
func StyleFor(mode ViewMode, n Node) NodeStyle {
	s := NodeStyle{Shape: vector.ShapeRounded, Radius: 8, Bold: n.Level == 0}
	switch mode {
	case Mindmap:
		s.Radius = 12
		if n.Level == 0 {
			s.Radius = 16
			mindmapMain.apply(&s)
		} else {
			mindmapDetail.apply(&s)
		}
	case Flowchart:
		switch n.Kind {
		case KindStart:
			s.Shape, s.Label, s.Icon = vector.ShapePill, "Start", "▶"
			flowStart.apply(&s)
		case KindEnd:
			s.Shape, s.Label, s.Icon = vector.ShapePill, "End", "■"
			flowEnd.apply(&s)
		case KindDecision:
			s.Shape, s.Label, s.Icon = vector.ShapeDiamond, "Decision", "?"
			flowDecision.apply(&s)
		default:
			s.Label, s.Icon = "Step", "□"
			if n.Level == 0 {
				s.Label = "Process"
			}
			flowProcess.apply(&s)
		}
		return s
	case Outline:
		s.Radius = 6
		if n.Level == 0 {
			outlineMain.apply(&s)
		} else {
			outlineDetail.apply(&s)
		}
	default:
		flowProcess.apply(&s)
	}
	if n.Level == 0 {
		s.Label = "Main Idea"
	}
	return s
}

// EdgeStyleFor returns the connection stroke for mode.
func EdgeStyleFor(mode ViewMode) EdgeStyle {
	st := vector.Stroke{Width: 2, Cap: vector.CapRound, Enabled: true}
	switch mode {
	case Mindmap:
		st.Color = vector.MustHex("#0ea5e9")
	case Flowchart:
		st.Color = vector.MustHex("#4f46e5")
	default:
		st.Color = vector.MustHex("#f59e0b")
		st.Dash = []float32{5, 5}
	}
	return EdgeStyle{Stroke: st, Opacity: 0.6}
}
