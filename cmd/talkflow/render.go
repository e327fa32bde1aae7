/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"talkflow/internal/diagram"
	"talkflow/internal/export"
	"talkflow/internal/feed"
	"talkflow/internal/workspace"
)

type renderFlags struct {
	mode    string
	format  string
	out     string
	preset  string
	title   string
	font    string
	width   int
	height  int
	grid    bool
	segment bool
}

func newRenderCmd(c *cli) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render TRANSCRIPT",
		Short: "Render a transcript file to SVG, PNG or PDF",
		Long: "Render lays out a transcript, one utterance per line, and writes the diagram.\n" +
			"With --preset the preset's formats are written next to -o instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := c.render(cmd.Context(), args[0], f)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", p)
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", "", "mindmap|flowchart|outline (default from config)")
	fl.StringVarP(&f.format, "format", "f", "", "svg|png|pdf (default from the output extension)")
	fl.StringVarP(&f.out, "output", "o", "", "output file (default <transcript>.<format>)")
	fl.StringVar(&f.preset, "preset", "", "web|print: write the preset's formats")
	fl.StringVar(&f.title, "title", "", "title drawn above the diagram")
	fl.StringVar(&f.font, "font", "", "TTF or OTF file for labels (default general.label_font)")
	fl.IntVar(&f.width, "width", 0, "fit into this width in pixels")
	fl.IntVar(&f.height, "height", 0, "fit into this height in pixels")
	fl.BoolVar(&f.grid, "grid", false, "draw the background grid")
	fl.BoolVar(&f.segment, "segment", false, "treat the file as running text and split it into sentences")
	return cmd
}

func (c *cli) render(ctx context.Context, src string, f renderFlags) ([]string, error) {
	lines, err := readTranscript(src, f.segment, c.cfg.Feed.MinSentenceLen)
	if err != nil {
		return nil, err
	}
	cfg := c.cfg
	if f.font != "" {
		cfg.General.LabelFont = f.font
	}
	ws, err := workspace.New(workspace.Options{Config: cfg, Logger: c.log})
	if err != nil {
		return nil, err
	}
	if f.mode != "" {
		mode, err := diagram.ParseViewMode(f.mode)
		if err != nil {
			return nil, err
		}
		if err := ws.SetMode(ctx, mode); err != nil {
			return nil, err
		}
	}
	if _, err := ws.Create(ctx, baseName(src)); err != nil {
		return nil, err
	}
	if err := ws.Append(ctx, lines...); err != nil {
		return nil, err
	}
	opt := export.Options{Width: f.width, Height: f.height, Title: f.title}
	sc := ws.Scene()

	if f.preset != "" {
		preset, err := export.ParsePreset(f.preset)
		if err != nil {
			return nil, err
		}
		dir, base := ".", baseName(src)
		if f.out != "" {
			dir, base = filepath.Dir(f.out), baseName(f.out)
		}
		var formats []string
		if f.format != "" {
			formats = []string{f.format}
		}
		var grid *bool
		if f.grid {
			grid = &f.grid
		}
		return export.BatchExport(sc, export.BatchOptions{
			Preset: preset, Formats: formats, OutDir: dir, Base: base, Grid: grid, Options: opt,
		})
	}

	format := export.SVG
	switch {
	case f.format != "":
		if format, err = export.ParseFormat(f.format); err != nil {
			return nil, err
		}
	case f.out != "":
		if format, err = export.FormatFromPath(f.out); err != nil {
			return nil, err
		}
	}
	out := f.out
	if out == "" {
		out = strings.TrimSuffix(src, filepath.Ext(src)) + "." + string(format)
	}
	opt.Grid = f.grid
	if err := export.WriteFile(out, sc, format, opt); err != nil {
		return nil, err
	}
	c.log.Info("rendered", "src", src, "out", out, "nodes", len(sc.Nodes), "mode", sc.Mode.String())
	return []string{out}, nil
}

// readTranscript loads one utterance per non-empty line. With segment set
// the file is running text and gets split into sentences.
func readTranscript(path string, segment bool, minLen int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if segment {
		return feed.Segment(string(data), minLen), nil
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
