/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package diagram

import (
	"regexp"
	"strings"
)

var (
	mainIdeaMarkers = []string{"project", "goal", "plan"}
	decisionMarkers = []string{"if", "whether", "decide"}
)

// IsMainIdea reports whether a line reads as a headline: more than eight
// words, or one of the marker words as a case-sensitive substring.
func IsMainIdea(text string) bool {
	if len(strings.Fields(text)) > 8 {
		return true
	}
	for _, m := range mainIdeaMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// IsDecision reports whether a line reads as a branch point. The markers are
// plain substrings of the lower-cased text, so "different" also matches "if".
func IsDecision(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range decisionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Keywords are highlighted in node labels.
var Keywords = []string{"project", "task", "idea", "goal", "plan", "step", "process", "workflow", "meeting", "discussion", "strategy", "implementation"}

var keywordRE = regexp.MustCompile(`(?i)\b(` + strings.Join(Keywords, "|") + `)\b`)

// Span is a half-open byte range [Start, End) into a string.
type Span struct{ Start, End int }

// HighlightRanges returns the byte spans of whole-word keyword matches in
// text, case-insensitively, in ascending order.
func HighlightRanges(text string) []Span {
	locs := keywordRE.FindAllStringIndex(text, -1)
	out := make([]Span, 0, len(locs))
	for _, l := range locs {
		out = append(out, Span{Start: l[0], End: l[1]})
	}
	return out
}
