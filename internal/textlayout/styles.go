/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// TextStyle is a named text preset. Tracking and Leading are in pixels.
type TextStyle struct {
	Name     string
	Font     FontSpec
	Tracking float32 // added per inter-glyph gap
	Leading  float32 // added to each line height
}

// Builtin style names used by the renderers.
const (
	StyleLabel = "Label"
	StyleTitle = "Title"
	StyleBadge = "Badge"
	StyleIcon  = "Icon"
)

// LabelFamily is the family of every builtin style.
const LabelFamily = "sans-serif"

var builtinStyles = map[string]TextStyle{
	StyleLabel: {Name: StyleLabel, Font: FontSpec{Family: LabelFamily, SizePt: 14, Weight: 400}, Leading: 4},
	StyleTitle: {Name: StyleTitle, Font: FontSpec{Family: LabelFamily, SizePt: 14, Weight: 700}, Leading: 4},
	StyleBadge: {Name: StyleBadge, Font: FontSpec{Family: LabelFamily, SizePt: 10, Weight: 600}, Tracking: 0.5},
	StyleIcon:  {Name: StyleIcon, Font: FontSpec{Family: LabelFamily, SizePt: 12, Weight: 400}},
}

// GetStyle returns a builtin style by name.
func GetStyle(name string) (TextStyle, bool) { s, ok := builtinStyles[name]; return s, ok }

// ListStyles lists the builtin style names in stable order.
func ListStyles() []string {
	return []string{StyleLabel, StyleTitle, StyleBadge, StyleIcon}
}
