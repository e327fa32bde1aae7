/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

func TestBuiltinStyles(t *testing.T) {
	for _, name := range ListStyles() {
		st, ok := GetStyle(name)
		if !ok || st.Name != name || st.Font.SizePt <= 0 {
			t.Fatalf("builtin %s: %+v %v", name, st, ok)
		}
	}
	if st, _ := GetStyle(StyleTitle); st.Font.Weight <= 400 {
		t.Fatalf("title style should be bold: %+v", st)
	}
}

func TestOTProviderFallsBack(t *testing.T) {
	otp := OTProvider{Lib: NewFontLibrary()}
	w, h := Measure(otp, []Span{{Text: "Hello", Font: FontSpec{Family: "Nonexistent", SizePt: 13}}})
	if w != 35 || h <= 0 {
		t.Fatalf("fallback measure: w=%v h=%v", w, h)
	}
	if err := NewFontLibrary().Load("Broken", 400, false, []byte("not a font")); err == nil {
		t.Fatalf("expected a parse error")
	}
	var nilLib *FontLibrary
	if nilLib.Len() != 0 || nilLib.find(FontSpec{}) != nil {
		t.Fatalf("nil library should be empty")
	}
}

func TestStyleSheetPrecedence(t *testing.T) {
	ss := NewStyleSheet()
	base := ss.MustResolve("flowchart", StyleLabel)
	if base.Font.SizePt != 14 {
		t.Fatalf("builtin label: %+v", base)
	}

	big := base
	big.Font.SizePt = 18
	ss = ss.WithGlobal(map[string]TextStyle{StyleLabel: big})
	small := base
	small.Font.SizePt = 11
	ss = ss.WithMode("outline", map[string]TextStyle{StyleLabel: small})

	if got := ss.MustResolve("flowchart", StyleLabel); got.Font.SizePt != 18 {
		t.Fatalf("global override not applied: %+v", got)
	}
	if got := ss.MustResolve("outline", StyleLabel); got.Font.SizePt != 11 {
		t.Fatalf("mode override not applied: %+v", got)
	}
	if got := ss.MustResolve("outline", StyleBadge); got.Name != StyleBadge {
		t.Fatalf("mode sheet should fall through to global: %+v", got)
	}
	if _, ok := ss.Resolve("outline", "Nope"); ok {
		t.Fatalf("unknown style resolved")
	}
}

func TestStyleSheetCopiesOnWrite(t *testing.T) {
	a := NewStyleSheet()
	b := a.WithMode("mindmap", map[string]TextStyle{"Note": {Name: "Note"}})
	if _, ok := a.Resolve("mindmap", "Note"); ok {
		t.Fatalf("WithMode mutated the receiver")
	}
	want := append(ListStyles(), "Note")
	if got := b.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	var nilSheet *StyleSheet
	if _, ok := nilSheet.Resolve("mindmap", StyleLabel); !ok {
		t.Fatalf("nil sheet should resolve builtins")
	}
}

func TestFileProviderServesFamily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	p, err := NewFileProvider(LabelFamily, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Lib.Len() != 1 {
		t.Fatalf("library has %d faces", p.Lib.Len())
	}
	// Bold resolves to the only loaded weight.
	face, m := p.Resolve(FontSpec{Family: LabelFamily, SizePt: 14, Weight: 700})
	if _, ok := face.(*opentype.Face); !ok || m.Ascent <= 0 {
		t.Fatalf("expected the loaded face, got %T %+v", face, m)
	}
	if _, err := NewFileProvider(LabelFamily, filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
