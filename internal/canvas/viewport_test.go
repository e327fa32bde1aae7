/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"testing"

	"talkflow/internal/vector"
)

func TestViewportZoomClamps(t *testing.T) {
	v := NewViewport()
	for i := 0; i < 20; i++ {
		v.ZoomIn()
	}
	if v.Zoom != MaxZoom {
		t.Fatalf("zoom = %v, want %v", v.Zoom, MaxZoom)
	}
	for i := 0; i < 20; i++ {
		v.ZoomOut()
	}
	if v.Zoom != MinZoom {
		t.Fatalf("zoom = %v, want %v", v.Zoom, MinZoom)
	}
	v.Reset()
	v.ZoomIn()
	if v.Zoom != 1.2 {
		t.Fatalf("one step in = %v, want 1.2", v.Zoom)
	}
}

func TestViewportPanLeavesZoom(t *testing.T) {
	v := NewViewport()
	v.ZoomIn()
	v.PanBy(vector.Pt{X: 10, Y: -5})
	v.PanBy(vector.Pt{X: 5, Y: 5})
	if v.Pan != (vector.Pt{X: 15, Y: 0}) || v.Zoom != 1.2 {
		t.Fatalf("unexpected viewport %+v", v)
	}
	v.Reset()
	if v != NewViewport() {
		t.Fatalf("reset = %+v", v)
	}
}

func TestViewportRoundTrip(t *testing.T) {
	surface := vector.Size{W: 1200, H: 800}
	v := Viewport{Pan: vector.Pt{X: 40, Y: -20}, Zoom: 2}
	// the surface centre stays put under zoom, only pan moves it
	if got := v.ToScreen(vector.Pt{X: 600, Y: 400}, surface); got != (vector.Pt{X: 640, Y: 380}) {
		t.Fatalf("centre maps to %+v", got)
	}
	if got := v.ToScreen(vector.Pt{X: 700, Y: 400}, surface); got != (vector.Pt{X: 840, Y: 380}) {
		t.Fatalf("offset point maps to %+v", got)
	}
	p := vector.Pt{X: 123, Y: 456}
	back := v.ToScene(v.ToScreen(p, surface), surface)
	if d := back.Sub(p).Len(); d > 1e-3 {
		t.Fatalf("round trip drifted by %v: %+v", d, back)
	}
}

func TestViewportIdentityAtRest(t *testing.T) {
	v := NewViewport()
	p := vector.Pt{X: 17, Y: 33}
	if got := v.ToScreen(p, DefaultSurface); got != p {
		t.Fatalf("reset viewport should not move points: %+v", got)
	}
}
