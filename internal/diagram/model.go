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

// SyncResult tells the caller what a transcript update did to the nodes.
type SyncResult uint8

const (
	Unchanged SyncResult = iota
	Appended
	Rebuilt
)

func (r SyncResult) String() string {
	switch r {
	case Appended:
		return "appended"
	case Rebuilt:
		return "rebuilt"
	}
	return "unchanged"
}

// NodeState is the user-owned part of a node: where it was dragged, how it
// was resized and what its text was edited to.
type NodeState struct {
	ID       NodeID      `json:"id"`
	Position vector.Pt   `json:"position"`
	Size     vector.Size `json:"size"`
	Text     string      `json:"text"`
	Moved    bool        `json:"moved,omitempty"`
	Resized  bool        `json:"resized,omitempty"`
}

// Model owns the node collection of one session. All mutation goes through
// its methods; callers only ever receive copies. Not safe for concurrent use.
type Model struct {
	params LayoutParams
	mode   ViewMode
	lines  []string
	nodes  []Node
}

// NewModel returns an empty model in the given mode.
func NewModel(params LayoutParams, mode ViewMode) (*Model, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("new model: %w: %d", ErrUnsupportedViewMode, uint8(mode))
	}
	return &Model{params: params, mode: mode}, nil
}

func (m *Model) Mode() ViewMode { return m.mode }
func (m *Model) Len() int       { return len(m.nodes) }

// Transcript returns a copy of the lines the nodes were derived from.
func (m *Model) Transcript() []string { return append([]string(nil), m.lines...) }

// Nodes returns a copy of all nodes in transcript order.
func (m *Model) Nodes() []Node { return append([]Node(nil), m.nodes...) }

// Node looks a node up by id.
func (m *Model) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(m.nodes) {
		return Node{}, false
	}
	return m.nodes[id], true
}

// SetTranscript brings the nodes in line with lines. When lines extends the
// current transcript, existing nodes keep their edited text and any manual
// position or size while kind and level are re-derived. Any other change
// rebuilds every node from scratch.
func (m *Model) SetTranscript(lines []string) (SyncResult, error) {
	fresh, err := m.params.Layout(lines, m.mode)
	if err != nil {
		return Unchanged, err
	}
	if !hasPrefix(lines, m.lines) {
		m.lines = append([]string(nil), lines...)
		m.nodes = fresh
		return Rebuilt, nil
	}
	if len(lines) == len(m.lines) {
		return Unchanged, nil
	}
	for i, old := range m.nodes {
		n := fresh[i]
		if old.Moved {
			n.Position, n.Moved = old.Position, true
		}
		if old.Resized {
			n.Size, n.Resized = old.Size, true
		}
		n.Text = old.Text
		n.Editing = old.Editing
		fresh[i] = n
	}
	m.lines = append([]string(nil), lines...)
	m.nodes = fresh
	return Appended, nil
}

// SetMode re-derives every node's geometry for mode. Manual position and size
// are discarded; edited text is kept.
func (m *Model) SetMode(mode ViewMode) error {
	fresh, err := m.params.Layout(m.lines, mode)
	if err != nil {
		return err
	}
	for i := range fresh {
		fresh[i].Text = m.nodes[i].Text
	}
	m.mode = mode
	m.nodes = fresh
	return nil
}

// Reset drops every node and the transcript.
func (m *Model) Reset() {
	m.lines = nil
	m.nodes = nil
}

// MoveTo places a node's top-left corner at p.
func (m *Model) MoveTo(id NodeID, p vector.Pt) bool {
	n := m.ref(id)
	if n == nil {
		return false
	}
	n.Position = p
	n.Moved = true
	return true
}

// Resize sets a node's size, clamped to MinSize, and returns the applied size.
func (m *Model) Resize(id NodeID, s vector.Size) (vector.Size, bool) {
	n := m.ref(id)
	if n == nil {
		return vector.Size{}, false
	}
	n.Size = s.Clamp(MinSize)
	n.Resized = true
	return n.Size, true
}

// SetText replaces a node's display text. The transcript is left untouched.
func (m *Model) SetText(id NodeID, text string) bool {
	n := m.ref(id)
	if n == nil {
		return false
	}
	n.Text = text
	return true
}

// SetEditing flags a node as being edited. At most one node carries the flag.
func (m *Model) SetEditing(id NodeID, on bool) bool {
	n := m.ref(id)
	if n == nil {
		return false
	}
	if on {
		for i := range m.nodes {
			m.nodes[i].Editing = false
		}
	}
	n.Editing = on
	return true
}

// States returns the user-owned state of every node.
func (m *Model) States() []NodeState {
	out := make([]NodeState, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = NodeState{ID: n.ID, Position: n.Position, Size: n.Size, Text: n.Text, Moved: n.Moved, Resized: n.Resized}
	}
	return out
}

// Overrides returns only the states that differ from a fresh layout.
func (m *Model) Overrides() []NodeState {
	var out []NodeState
	for i, s := range m.States() {
		if s.Moved || s.Resized || s.Text != m.lines[i] {
			out = append(out, s)
		}
	}
	return out
}

// Restore applies saved node states. Unknown ids are skipped; geometry is only
// applied for states flagged as manual and sizes are clamped.
func (m *Model) Restore(states []NodeState) int {
	base, err := m.params.Layout(m.lines, m.mode)
	if err != nil {
		return 0
	}
	applied := 0
	for _, s := range states {
		n := m.ref(s.ID)
		if n == nil {
			continue
		}
		n.Position, n.Moved = base[s.ID].Position, false
		n.Size, n.Resized = base[s.ID].Size, false
		if s.Moved {
			n.Position, n.Moved = s.Position, true
		}
		if s.Resized {
			n.Size, n.Resized = s.Size.Clamp(MinSize), true
		}
		n.Text = s.Text
		if n.Text == "" {
			n.Text = m.lines[s.ID]
		}
		applied++
	}
	return applied
}

func (m *Model) ref(id NodeID) *Node {
	if id < 0 || int(id) >= len(m.nodes) {
		return nil
	}
	return &m.nodes[id]
}

func hasPrefix(lines, prefix []string) bool {
	if len(prefix) > len(lines) {
		return false
	}
	for i, p := range prefix {
		if lines[i] != p {
			return false
		}
	}
	return true
}
