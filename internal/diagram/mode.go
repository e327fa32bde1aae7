/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package diagram

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedViewMode is returned for a view mode outside the closed set.
var ErrUnsupportedViewMode = errors.New("unsupported view mode")

// ViewMode selects how the transcript is laid out.
type ViewMode uint8

const (
	Mindmap ViewMode = iota + 1
	Flowchart
	Outline
)

// ViewModes lists the supported modes in display order.
var ViewModes = []ViewMode{Mindmap, Flowchart, Outline}

func (m ViewMode) String() string {
	switch m {
	case Mindmap:
		return "mindmap"
	case Flowchart:
		return "flowchart"
	case Outline:
		return "outline"
	}
	return fmt.Sprintf("ViewMode(%d)", uint8(m))
}

// Title is the human label used by surfaces.
func (m ViewMode) Title() string {
	switch m {
	case Mindmap:
		return "Mind Map"
	case Flowchart:
		return "Flowchart"
	case Outline:
		return "Outline"
	}
	return m.String()
}

// Valid reports whether m is one of the supported modes.
func (m ViewMode) Valid() bool { return m >= Mindmap && m <= Outline }

// ParseViewMode maps a mode name to a ViewMode. Matching ignores case and
// surrounding space; "mind-map" and "mind_map" are accepted for mindmap.
func ParseViewMode(s string) (ViewMode, error) {
	switch strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s))) {
	case "mindmap":
		return Mindmap, nil
	case "flowchart":
		return Flowchart, nil
	case "outline":
		return Outline, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedViewMode, s)
}

func (m ViewMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedViewMode, uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *ViewMode) UnmarshalText(b []byte) error {
	v, err := ParseViewMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Kind is the semantic role of a node, used for flowchart shapes.
type Kind uint8

const (
	KindProcess Kind = iota
	KindStart
	KindDecision
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindProcess:
		return "process"
	case KindDecision:
		return "decision"
	case KindEnd:
		return "end"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "start":
		*k = KindStart
	case "process":
		*k = KindProcess
	case "decision":
		*k = KindDecision
	case "end":
		*k = KindEnd
	default:
		return fmt.Errorf("unknown node kind %q", b)
	}
	return nil
}
