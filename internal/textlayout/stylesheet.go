/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import "sort"

// StyleSheet resolves TextStyle presets in two scopes: Global styles apply to
// every view mode, Mode styles override them for one mode (keyed by the mode
// name, e.g. "flowchart"). Builtins are the final fallback.
type StyleSheet struct {
	Global map[string]TextStyle
	Mode   map[string]map[string]TextStyle
}

// NewStyleSheet returns a sheet seeded with the builtin styles.
func NewStyleSheet() *StyleSheet {
	ss := &StyleSheet{Global: map[string]TextStyle{}, Mode: map[string]map[string]TextStyle{}}
	for _, name := range ListStyles() {
		if st, ok := GetStyle(name); ok {
			ss.Global[name] = st
		}
	}
	return ss
}

// WithGlobal returns a copy with over merged into the global scope.
func (s *StyleSheet) WithGlobal(over map[string]TextStyle) *StyleSheet {
	cp := s.clone()
	for k, v := range over {
		cp.Global[k] = v
	}
	return cp
}

// WithMode returns a copy with over merged into the scope of mode.
func (s *StyleSheet) WithMode(mode string, over map[string]TextStyle) *StyleSheet {
	cp := s.clone()
	m := cp.Mode[mode]
	if m == nil {
		m = map[string]TextStyle{}
		cp.Mode[mode] = m
	}
	for k, v := range over {
		m[k] = v
	}
	return cp
}

// Resolve returns the effective style for name in mode: Mode > Global > Builtin.
func (s *StyleSheet) Resolve(mode, name string) (TextStyle, bool) {
	if s != nil {
		if st, ok := s.Mode[mode][name]; ok {
			return st, true
		}
		if st, ok := s.Global[name]; ok {
			return st, true
		}
	}
	return GetStyle(name)
}

// MustResolve is Resolve for the builtin names, which always resolve.
func (s *StyleSheet) MustResolve(mode, name string) TextStyle {
	st, _ := s.Resolve(mode, name)
	return st
}

// Names lists the builtins in their stable order followed by every other
// known name sorted.
func (s *StyleSheet) Names() []string {
	seen := map[string]bool{}
	out := ListStyles()
	for _, n := range out {
		seen[n] = true
	}
	var extra []string
	collect := func(m map[string]TextStyle) {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	if s != nil {
		collect(s.Global)
		for _, m := range s.Mode {
			collect(m)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (s *StyleSheet) clone() *StyleSheet {
	cp := &StyleSheet{Global: map[string]TextStyle{}, Mode: map[string]map[string]TextStyle{}}
	if s == nil {
		return cp
	}
	for k, v := range s.Global {
		cp.Global[k] = v
	}
	for mode, m := range s.Mode {
		mm := make(map[string]TextStyle, len(m))
		for k, v := range m {
			mm[k] = v
		}
		cp.Mode[mode] = mm
	}
	return cp
}
