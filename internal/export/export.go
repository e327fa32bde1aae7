/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a canvas scene to SVG, PNG and PDF files.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"talkflow/internal/canvas"
	applog "talkflow/internal/log"
)

// Render writes sc to w in format f.
func Render(w io.Writer, sc canvas.Scene, f Format, opt Options) error {
	switch f {
	case SVG:
		return WriteSVG(w, sc, opt)
	case PNG:
		return WritePNG(w, sc, opt)
	case PDF:
		return WritePDF(w, sc, opt)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// Bytes renders sc into memory.
func Bytes(sc canvas.Scene, f Format, opt Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, sc, f, opt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders sc to path, creating parent directories. An empty format
// is taken from the file extension. The file is written to a temporary name
// first and renamed into place.
func WriteFile(path string, sc canvas.Scene, f Format, opt Options) error {
	l := applog.WithOperation(applog.WithComponent("export"), "write_file").With("path", path)
	if f == "" {
		var err error
		if f, err = FormatFromPath(path); err != nil {
			return err
		}
	}
	data, err := Bytes(sc, f, opt)
	if err != nil {
		l.Error("render failed", "format", f, "err", err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", f, err)
	}
	l.Info("exported", "format", f, "bytes", len(data), "nodes", len(sc.Nodes))
	return nil
}
