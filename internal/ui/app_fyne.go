//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"talkflow/internal/canvas"
	"talkflow/internal/diagram"
	"talkflow/internal/export"
	applog "talkflow/internal/log"
)

// Run opens the desktop window and blocks until it is closed.
func Run(ctx context.Context, opts Options) error {
	if opts.Workspace == nil {
		return fmt.Errorf("ui: workspace is required")
	}
	l := applog.WithComponent("ui")
	l.Info("starting UI")
	ws := opts.Workspace
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fyneApp := app.NewWithID("talkflow")
	prefs := fyneApp.Preferences()
	title := ws.Session().Title
	if title == "" {
		title = "untitled"
	}
	w := fyneApp.NewWindow("talkflow - " + title)
	winW := max(prefs.IntWithFallback("window.width", 1200), 800)
	winH := max(prefs.IntWithFallback("window.height", 800), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	dc := NewDiagramCanvas(ctx, ws)
	refreshStatus := func() {
		sc := ws.Scene()
		status.SetText(fmt.Sprintf("%s | %d nodes | %d%%", sc.Mode.Title(), len(sc.Nodes), int(sc.Viewport.Zoom*100+0.5)))
	}
	dc.OnChange = refreshStatus
	dc.OnError = func(err error) { status.SetText("Error: " + err.Error()) }

	act := func(fn func(c *canvas.Controller)) func() {
		return func() {
			_ = ws.Do(ctx, func(c *canvas.Controller) error { fn(c); return nil })
			dc.Refresh()
			refreshStatus()
		}
	}

	titles := make([]string, len(diagram.ViewModes))
	for i, m := range diagram.ViewModes {
		titles[i] = m.Title()
	}
	modeSelect := widget.NewSelect(titles, func(s string) {
		for _, m := range diagram.ViewModes {
			if m.Title() == s && m != ws.Scene().Mode {
				if err := ws.SetMode(ctx, m); err != nil {
					dialog.ShowError(err, w)
				}
				prefs.SetString("view.mode", m.String())
				dc.Refresh()
				refreshStatus()
			}
		}
	})
	modeSelect.SetSelected(ws.Scene().Mode.Title())

	say := widget.NewEntry()
	say.SetPlaceHolder("Type what was said and press Enter")
	say.OnSubmitted = func(text string) {
		lines, err := ws.Ingest(ctx, text)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		say.SetText("")
		dc.Refresh()
		refreshStatus()
		l.Info("lines added", "count", len(lines))
	}

	exportTo := func(f export.Format) func() {
		return func() {
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil || uc == nil {
					return
				}
				defer uc.Close()
				data, err := ws.Render(ctx, f, export.Options{})
				if err == nil {
					_, err = uc.Write(data)
				}
				if err != nil {
					l.Error("export failed", "format", string(f), "err", err)
					dialog.ShowError(err, w)
					return
				}
				status.SetText("Exported " + uc.URI().Name())
			}, w)
			save.SetFileName("talkflow." + string(f))
			if dir, err := fstorage.ListerForURI(fstorage.NewFileURI(defaultExportDir(opts.ExportDir))); err == nil {
				save.SetLocation(dir)
			}
			save.Show()
		}
	}

	toolbar := container.NewHBox(
		modeSelect,
		widget.NewButton("−", act(func(c *canvas.Controller) { c.ZoomOut() })),
		widget.NewButton("+", act(func(c *canvas.Controller) { c.ZoomIn() })),
		widget.NewButton("Reset View", act(func(c *canvas.Controller) { c.ResetView() })),
		widget.NewButton("Undo", act(func(c *canvas.Controller) { c.Undo() })),
		widget.NewButton("Redo", act(func(c *canvas.Controller) { c.Redo() })),
		widget.NewButton("SVG", exportTo(export.SVG)),
		widget.NewButton("PNG", exportTo(export.PNG)),
		widget.NewButton("PDF", exportTo(export.PDF)),
	)
	bottom := container.NewBorder(nil, nil, nil, status, say)
	w.SetContent(container.NewBorder(toolbar, bottom, nil, nil, dc))

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		act(func(c *canvas.Controller) { c.Undo() })()
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		act(func(c *canvas.Controller) { c.Redo() })()
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		if err := ws.Save(ctx); err != nil {
			status.SetText("Save: " + err.Error())
			return
		}
		status.SetText("Saved")
	})

	if opts.Follow != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-opts.Follow:
					if !ok {
						return
					}
					if err := ws.ApplyFeed(ctx, ev); err != nil {
						l.Error("apply feed", "err", err)
					}
					fyne.Do(func() {
						dc.Refresh()
						refreshStatus()
					})
				}
			}
		}()
	}

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if err := ws.Close(ctx); err != nil {
			l.Error("closing workspace", "err", err)
		}
		cancel()
	})
	refreshStatus()
	w.ShowAndRun()
	return nil
}

// defaultExportDir is where quick exports land when no directory was given.
func defaultExportDir(dir string) string {
	if strings.TrimSpace(dir) != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Documents")
	}
	return "."
}
