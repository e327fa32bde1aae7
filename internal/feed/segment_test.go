/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package feed

import (
	"reflect"
	"testing"
)

func TestSegment(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"We need a plan. If budget is approved we proceed!", []string{"We need a plan", "If budget is approved we proceed"}},
		{"Ok. So... what now?? Ship it", []string{"what now", "Ship it"}},
		{"   ", nil},
		{"Yes!!! No.", nil},
		{"Café time.", []string{"Café time"}},
	}
	for _, c := range cases {
		if got := Segment(c.in, DefaultMinLen); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("Segment(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
	if got := Segment("Ok. Hi.", 1); !reflect.DeepEqual(got, []string{"Ok", "Hi"}) {
		t.Fatalf("custom min length: %#v", got)
	}
}

func TestSegmenterHoldsPartialSentence(t *testing.T) {
	s := NewSegmenter(-1)
	if got := s.Push("Let's review the road"); got != nil {
		t.Fatalf("unterminated text emitted: %#v", got)
	}
	if s.Pending() != "Let's review the road" {
		t.Fatalf("pending = %q", s.Pending())
	}
	got := s.Push("map. Then we decide")
	if !reflect.DeepEqual(got, []string{"Let's review the roadmap"}) {
		t.Fatalf("push = %#v", got)
	}
	if got := s.Push(" on vendors\nWrap"); !reflect.DeepEqual(got, []string{"Then we decide on vendors"}) {
		t.Fatalf("newline should end an utterance: %#v", got)
	}
	if got := s.Flush(); !reflect.DeepEqual(got, []string{"Wrap"}) {
		t.Fatalf("flush = %#v", got)
	}
	if s.Pending() != "" {
		t.Fatalf("flush left %q", s.Pending())
	}
}

func TestZeroMinLenMeansDefault(t *testing.T) {
	if got := Segment("Fine. ok. Go on.", 0); !reflect.DeepEqual(got, []string{"Fine", "Go on"}) {
		t.Fatalf("Segment with zero min length = %#v", got)
	}
	s := NewSegmenter(0)
	if got := s.Push("We need a plan! ok. "); !reflect.DeepEqual(got, []string{"We need a plan"}) {
		t.Fatalf("push = %#v", got)
	}
}
