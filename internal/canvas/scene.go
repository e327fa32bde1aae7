/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"talkflow/internal/diagram"
	"talkflow/internal/vector"
)

// Scene is an immutable render snapshot of a controller.
type Scene struct {
	Mode        diagram.ViewMode     `json:"mode"`
	Nodes       []diagram.Node       `json:"nodes"`
	Connections []diagram.Connection `json:"-"`
	Viewport    Viewport             `json:"viewport"`
	Surface     vector.Size          `json:"surface"`
	Selected    diagram.NodeID       `json:"selected"`
	State       State                `json:"state"`
	Target      diagram.NodeID       `json:"target"`
	EditBuffer  string               `json:"edit_buffer,omitempty"`
}

// Scene captures everything a surface needs to draw the current frame.
func (c *Controller) Scene() Scene {
	nodes := c.model.Nodes()
	conns, err := diagram.Connections(nodes, c.model.Mode())
	if err != nil {
		c.log.Error("connections failed", "err", err)
	}
	sel, _ := c.Selected()
	return Scene{
		Mode:        c.model.Mode(),
		Nodes:       nodes,
		Connections: conns,
		Viewport:    c.view,
		Surface:     c.surface,
		Selected:    sel,
		State:       c.state,
		Target:      c.target,
		EditBuffer:  string(c.editBuffer),
	}
}

// Transform is the scene-to-screen matrix of the snapshot.
func (s Scene) Transform() vector.Affine2D { return s.Viewport.Transform(s.Surface) }

// DrawOrder returns node indexes bottom to top: transcript order with the
// selected node lifted to the top.
func (s Scene) DrawOrder() []int {
	order := make([]int, 0, len(s.Nodes))
	top := -1
	for i, n := range s.Nodes {
		if n.ID == s.Selected {
			top = i
			continue
		}
		order = append(order, i)
	}
	if top >= 0 {
		order = append(order, top)
	}
	return order
}

// Bounds returns the union of all node boxes in scene coordinates.
func (s Scene) Bounds() vector.Rect {
	var r vector.Rect
	for _, n := range s.Nodes {
		r = r.Union(n.Bounds())
		if n.ID == s.Selected {
			r = r.Union(HandleRect(n))
		}
	}
	return r
}
