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
	"strconv"
	"strings"

	"talkflow/internal/vector"
)

// NodeID identifies a node by its transcript position.
type NodeID int

// NoNode marks an absent node reference.
const NoNode NodeID = -1

func (id NodeID) String() string {
	if id < 0 {
		return ""
	}
	return "node-" + strconv.Itoa(int(id))
}

// ParseNodeID accepts "node-<i>" or a bare index.
func ParseNodeID(s string) (NodeID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "node-"))
	if err != nil || n < 0 {
		return NoNode, fmt.Errorf("invalid node id %q", s)
	}
	return NodeID(n), nil
}

func (id NodeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *NodeID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = NoNode
		return nil
	}
	v, err := ParseNodeID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

var (
	// DefaultSize is the size a freshly laid out node gets.
	DefaultSize = vector.Size{W: 200, H: 80}
	// DecisionSize is the square used for flowchart decision nodes.
	DecisionSize = vector.Size{W: 160, H: 160}
	// MinSize is the floor every resize is clamped to.
	MinSize = vector.Size{W: 100, H: 60}
)

// Node is one transcript line placed on the canvas. Position is the top-left
// corner in scene coordinates.
type Node struct {
	ID       NodeID      `json:"id"`
	Text     string      `json:"text"`
	Position vector.Pt   `json:"position"`
	Size     vector.Size `json:"size"`
	Level    int         `json:"level"`
	Kind     Kind        `json:"kind"`
	Prev     NodeID      `json:"prev"`
	Editing  bool        `json:"editing,omitempty"`

	// Moved and Resized record manual adjustments that survive transcript growth.
	Moved   bool `json:"moved,omitempty"`
	Resized bool `json:"resized,omitempty"`
}

// Bounds returns the node box in scene coordinates.
func (n Node) Bounds() vector.Rect { return vector.RectAt(n.Position, n.Size) }

// Center returns the middle of the node box.
func (n Node) Center() vector.Pt { return n.Bounds().Center() }

// HasPrev reports whether the node has a preceding connection.
func (n Node) HasPrev() bool { return n.Prev >= 0 }
