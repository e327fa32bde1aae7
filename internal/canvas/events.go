/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"fmt"

	"talkflow/internal/diagram"
	"talkflow/internal/vector"
)

// Button identifies the pointer button of an event.
type Button uint8

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// PointerEvent carries a position in surface pixels.
type PointerEvent struct {
	Pos    vector.Pt
	Button Button
}

// Key identifies keys the controller reacts to while editing.
type Key uint8

const (
	KeyRune Key = iota
	KeyEnter
	KeyEscape
	KeyBackspace
)

type KeyEvent struct {
	Key   Key
	Rune  rune
	Shift bool
}

// State is the interaction state. Exactly one is active at a time.
type State uint8

const (
	Idle State = iota
	PanningCanvas
	DraggingNode
	ResizingNode
	EditingNode
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PanningCanvas:
		return "panning"
	case DraggingNode:
		return "dragging"
	case ResizingNode:
		return "resizing"
	case EditingNode:
		return "editing"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for v := Idle; v <= EditingNode; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown interaction state %q", b)
}

// TextCommitted is emitted when an edit changes a node's text.
type TextCommitted struct {
	ID   diagram.NodeID `json:"id"`
	Text string         `json:"text"`
}

// HitKind says what lies under a pointer.
type HitKind uint8

const (
	HitCanvas HitKind = iota
	HitNode
	HitHandle
)

// Hit is the result of a hit test.
type Hit struct {
	Kind HitKind
	ID   diagram.NodeID
}
