/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package feed turns raw speech text into transcript utterances and follows
// transcript files as they grow.
package feed

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinLen drops fragments such as "Ok" or "So" that carry no idea.
const DefaultMinLen = 3

var terminators = regexp.MustCompile(`[.!?]+`)

// Segment splits text on runs of '.', '!' and '?', trims every piece and
// keeps those longer than minLen characters. A minLen of zero or less
// means DefaultMinLen.
func Segment(text string, minLen int) []string {
	if minLen <= 0 {
		minLen = DefaultMinLen
	}
	var out []string
	for _, s := range terminators.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" && utf8.RuneCountInString(s) > minLen {
			out = append(out, s)
		}
	}
	return out
}

// Segmenter segments a stream of text chunks. Text after the last
// terminator is held back until more text completes it or Flush is called.
// A line break ends an utterance like a full stop does.
// A Segmenter is not safe for concurrent use.
type Segmenter struct {
	MinLen  int
	pending strings.Builder
}

// NewSegmenter returns a segmenter with the given minimum length; zero or
// less means DefaultMinLen.
func NewSegmenter(minLen int) *Segmenter {
	if minLen <= 0 {
		minLen = DefaultMinLen
	}
	return &Segmenter{MinLen: minLen}
}

// Push adds a chunk and returns the utterances it completed.
func (s *Segmenter) Push(chunk string) []string {
	s.pending.WriteString(chunk)
	buf := s.pending.String()
	cut := strings.LastIndexAny(buf, ".!?\n")
	if cut < 0 {
		return nil
	}
	done, rest := buf[:cut+1], buf[cut+1:]
	s.pending.Reset()
	s.pending.WriteString(rest)
	return Segment(strings.ReplaceAll(done, "\n", "."), s.MinLen)
}

// Pending returns the unterminated text, i.e. the utterance in progress.
func (s *Segmenter) Pending() string { return strings.TrimSpace(s.pending.String()) }

// Flush returns whatever is pending as final utterances.
func (s *Segmenter) Flush() []string {
	rest := s.pending.String()
	s.pending.Reset()
	return Segment(rest, s.MinLen)
}

// Reset drops pending text.
func (s *Segmenter) Reset() { s.pending.Reset() }
