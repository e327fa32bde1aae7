/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package diagram

import (
	"fmt"

	"talkflow/internal/vector"
)

// decisionCurve is the share of the horizontal span each cubic control point
// sits away from its endpoint.
const decisionCurve = 0.3

// Connection is the drawable edge between a node and its predecessor.
type Connection struct {
	From, To NodeID
	Path     vector.Path
	// Arrow is the closed arrowhead at To; nil when the mode draws none.
	Arrow *vector.Path
}

// Connect returns the curve from one node centre to another. It has no side
// effects and may be called once per connection per frame.
func Connect(from, to vector.Pt, mode ViewMode, target Kind) (vector.Path, *vector.Path, error) {
	var p vector.Path
	p.MoveTo(from.X, from.Y)
	switch mode {
	case Mindmap, Outline:
		p.LineTo(to.X, to.Y)
		return p, nil, nil
	case Flowchart:
		if target == KindDecision {
			dx := to.X - from.X
			c1 := vector.Pt{X: from.X + dx*decisionCurve, Y: from.Y}.Round(3)
			c2 := vector.Pt{X: to.X - dx*decisionCurve, Y: to.Y}.Round(3)
			p.CubicTo(c1.X, c1.Y, c2.X, c2.Y, to.X, to.Y)
		} else {
			mid := vector.Lerp(from, to, 0.5)
			p.QuadTo(mid.X, mid.Y, to.X, to.Y)
		}
		end, dir, ok := p.EndTangent()
		if !ok {
			dir = to.Sub(from)
		}
		arrow := vector.ComputeArrowhead(end, dir, vector.DefaultArrow).Path
		return p, &arrow, nil
	}
	return vector.Path{}, nil, fmt.Errorf("connect: %w: %d", ErrUnsupportedViewMode, uint8(mode))
}

// Connections builds one connection per node with a predecessor, running from
// the predecessor's centre to the node's centre.
func Connections(nodes []Node, mode ViewMode) ([]Connection, error) {
	byID := make(map[NodeID]int, len(nodes))
	for i, n := range nodes {
		byID[n.ID] = i
	}
	out := make([]Connection, 0, len(nodes))
	for _, n := range nodes {
		if !n.HasPrev() {
			continue
		}
		pi, ok := byID[n.Prev]
		if !ok {
			continue
		}
		path, arrow, err := Connect(nodes[pi].Center(), n.Center(), mode, n.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, Connection{From: n.Prev, To: n.ID, Path: path, Arrow: arrow})
	}
	return out, nil
}
