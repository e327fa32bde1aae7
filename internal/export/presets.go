/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"talkflow/internal/canvas"
)

// PresetName is a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls a multi-format export of one scene.
//
// Files are named <Base>.<format> inside OutDir. PNG files of the print
// preset are rendered at twice the scale.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // empty means preset defaults
	OutDir  string
	Base    string // file name without extension; "diagram" when empty
	Grid    *bool  // when set, overrides the preset's default
	Options Options
}

// BatchExport writes sc once per format and returns the written paths.
func BatchExport(sc canvas.Scene, opt BatchOptions) ([]string, error) {
	names := opt.Formats
	if len(names) == 0 {
		names = presetDefaultFormats(opt.Preset)
	}
	base := strings.TrimSpace(opt.Base)
	if base == "" {
		base = "diagram"
	}
	grid := presetIncludeGrid(opt.Preset)
	if opt.Grid != nil {
		grid = *opt.Grid
	}

	var out []string
	for _, name := range names {
		f, err := ParseFormat(name)
		if err != nil {
			return out, err
		}
		o := opt.Options
		o.Grid = grid
		if f == PNG && opt.Preset == PresetPrint && o.Scale == 0 {
			o.Scale = 2
		}
		path := filepath.Join(opt.OutDir, base+"."+string(f))
		if err := WriteFile(path, sc, f, o); err != nil {
			return out, fmt.Errorf("%s: %w", f, err)
		}
		out = append(out, path)
	}
	return out, nil
}

// ParsePreset accepts "web" or "print".
func ParsePreset(s string) (PresetName, error) {
	switch p := PresetName(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetWeb, PresetPrint:
		return p, nil
	}
	return "", fmt.Errorf("unknown export preset %q", s)
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"svg", "png"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"svg"}
	}
}

func presetIncludeGrid(p PresetName) bool {
	return p == PresetWeb
}
