/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package workspace binds a canvas controller to a session: it loads and
// autosaves the diagram through the session store, feeds transcript text in
// and renders exports through the render cache. Every surface (terminal,
// desktop, HTTP) drives the diagram through one Workspace.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"talkflow/internal/canvas"
	"talkflow/internal/config"
	"talkflow/internal/crash"
	"talkflow/internal/diagram"
	"talkflow/internal/export"
	"talkflow/internal/feed"
	applog "talkflow/internal/log"
	"talkflow/internal/storage"
	"talkflow/internal/telemetry"
	"talkflow/internal/textlayout"
	"talkflow/internal/undo"
	"talkflow/internal/vector"
)

// ErrNoStore is returned by operations that need a session store.
var ErrNoStore = errors.New("no session store configured")

// Options configure a Workspace.
type Options struct {
	Config  config.AppConfig
	Store   *storage.Store // nil keeps the session in memory only
	Surface vector.Size
	Capture canvas.CaptureScope
	Logger  *slog.Logger
}

// Workspace is safe for concurrent use; Do serialises access to the
// controller.
type Workspace struct {
	mu      sync.Mutex
	ctrl    *canvas.Controller
	store   *storage.Store
	cfg     config.AppConfig
	session storage.Session
	saved   storage.State
	pending []storage.Commit
	fonts   textlayout.Provider // nil without general.label_font
	log     *slog.Logger
}

// New creates a workspace with an empty, unsaved session.
func New(opts Options) (*Workspace, error) {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("workspace")
	}
	mode, err := opts.Config.General.ViewMode()
	if err != nil {
		l.Warn("invalid default mode, using mindmap", "err", err)
		mode = diagram.Mindmap
	}
	hist := undo.NewManager(undo.Config{
		MaxPerKey:   opts.Config.History.MaxDepth,
		MinInterval: time.Duration(opts.Config.History.CoalesceMs) * time.Millisecond,
	})
	ctrl, err := canvas.New(canvas.Options{
		Params:  opts.Config.Layout,
		Mode:    mode,
		Surface: opts.Surface,
		Capture: opts.Capture,
		History: hist,
		Logger:  l.With("sub", "canvas"),
	})
	if err != nil {
		return nil, fmt.Errorf("new workspace: %w", err)
	}
	w := &Workspace{
		ctrl:    ctrl,
		store:   opts.Store,
		cfg:     opts.Config,
		session: storage.Session{Mode: mode},
		saved:   storage.State{Mode: mode},
		log:     l,
	}
	if path := opts.Config.General.LabelFont; path != "" {
		p, err := textlayout.NewFileProvider(textlayout.LabelFamily, path)
		if err != nil {
			l.Warn("label font not loaded, using the built-in face", "path", path, "err", err)
		} else {
			w.fonts = p
		}
	}
	ctrl.OnTextCommitted(w.onCommit)
	return w, nil
}

// onCommit runs inside Do; the commit is written once fn returns.
func (w *Workspace) onCommit(ev canvas.TextCommitted) {
	w.pending = append(w.pending, storage.Commit{NodeID: ev.ID, Text: ev.Text, At: time.Now()})
}

// Session returns the metadata of the open session.
func (w *Workspace) Session() storage.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Store returns the backing store, or nil.
func (w *Workspace) Store() *storage.Store { return w.store }

// Config returns the configuration the workspace was built with.
func (w *Workspace) Config() config.AppConfig { return w.cfg }

// Do runs fn with exclusive access to the controller and autosaves what fn
// changed. Changes are not saved while a drag, resize or pan is in flight.
func (w *Workspace) Do(ctx context.Context, fn func(c *canvas.Controller) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := fn(w.ctrl)
	if perr := w.persistLocked(ctx); perr != nil {
		w.log.Error("autosave failed", "session", w.session.ID, "err", perr)
		if err == nil {
			err = perr
		}
	}
	return err
}

// Transcript returns a copy of the current transcript.
func (w *Workspace) Transcript() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctrl.Transcript()
}

// Scene returns a render snapshot of the current diagram.
func (w *Workspace) Scene() canvas.Scene {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctrl.Scene()
}

func (w *Workspace) persistLocked(ctx context.Context) error {
	if w.store == nil || w.session.ID == "" {
		w.pending = nil
		return nil
	}
	for len(w.pending) > 0 {
		if err := w.store.RecordCommit(ctx, w.session.ID, w.pending[0]); err != nil {
			return err
		}
		w.pending = w.pending[1:]
	}
	if !w.cfg.Storage.Autosave {
		return nil
	}
	switch w.ctrl.State() {
	case canvas.DraggingNode, canvas.ResizingNode, canvas.PanningCanvas:
		return nil
	}
	return w.saveLocked(ctx, false)
}

func (w *Workspace) saveLocked(ctx context.Context, force bool) error {
	st := storage.State{Mode: w.ctrl.Mode(), Transcript: w.ctrl.Transcript(), Overrides: w.ctrl.Overrides()}
	if !force && sameState(st, w.saved) {
		return nil
	}
	if err := w.store.SaveState(ctx, w.session.ID, st); err != nil {
		return err
	}
	w.saved = st
	w.session.Mode = st.Mode
	w.session.Lines = len(st.Transcript)
	w.session.UpdatedAt = time.Now().UTC()
	return nil
}

func sameState(a, b storage.State) bool {
	return a.Mode == b.Mode &&
		len(a.Transcript) == len(b.Transcript) && (len(a.Transcript) == 0 || reflect.DeepEqual(a.Transcript, b.Transcript)) &&
		len(a.Overrides) == len(b.Overrides) && (len(a.Overrides) == 0 || reflect.DeepEqual(a.Overrides, b.Overrides))
}

// Create starts a new session with an empty transcript in the current mode.
// Without a store the session only gets an id.
func (w *Workspace) Create(ctx context.Context, title string) (storage.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	mode := w.ctrl.Mode()
	var sess storage.Session
	if w.store != nil {
		var err error
		if sess, err = w.store.CreateSession(ctx, title, mode); err != nil {
			return storage.Session{}, err
		}
	} else {
		now := time.Now().UTC()
		sess = storage.Session{ID: uuid.NewString(), Title: title, Mode: mode, CreatedAt: now, UpdatedAt: now}
	}
	w.ctrl.NewSession(sess.ID)
	w.session = sess
	w.saved = storage.State{Mode: mode}
	w.pending = nil
	w.log.Info("session created", "session", sess.ID, "title", title)
	telemetry.Event("session_created", map[string]any{"mode": mode.String(), "persistent": w.store != nil})
	return sess, nil
}

// Open loads a stored session into the controller.
func (w *Workspace) Open(ctx context.Context, id string) (storage.Session, error) {
	if w.store == nil {
		return storage.Session{}, ErrNoStore
	}
	sess, err := w.store.GetSession(ctx, id)
	if err != nil {
		return storage.Session{}, err
	}
	st, err := w.store.LoadState(ctx, id)
	if err != nil {
		return storage.Session{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctrl.NewSession(id)
	if err := w.ctrl.SetViewMode(st.Mode); err != nil {
		return storage.Session{}, err
	}
	if _, err := w.ctrl.SetTranscript(st.Transcript); err != nil {
		return storage.Session{}, err
	}
	applied := w.ctrl.Restore(st.Overrides)
	w.session = sess
	w.saved = storage.State{Mode: st.Mode, Transcript: w.ctrl.Transcript(), Overrides: w.ctrl.Overrides()}
	w.pending = nil
	w.log.Info("session opened", "session", id, "lines", len(st.Transcript), "overrides", applied)
	return sess, nil
}

// OpenOrCreate opens id, or creates a session titled title when id is empty.
func (w *Workspace) OpenOrCreate(ctx context.Context, id, title string) (storage.Session, error) {
	if id != "" {
		return w.Open(ctx, id)
	}
	return w.Create(ctx, title)
}

// Save writes the current state regardless of the autosave setting.
func (w *Workspace) Save(ctx context.Context) error {
	if w.store == nil {
		return ErrNoStore
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session.ID == "" {
		return fmt.Errorf("save: no session open")
	}
	return w.saveLocked(ctx, true)
}

// SetTranscript replaces the transcript. A prefix extension keeps manual
// adjustments, anything else rebuilds the diagram.
func (w *Workspace) SetTranscript(ctx context.Context, lines []string) (diagram.SyncResult, error) {
	var res diagram.SyncResult
	err := w.Do(ctx, func(c *canvas.Controller) error {
		var err error
		res, err = c.SetTranscript(lines)
		return err
	})
	return res, err
}

// Append adds utterances to the end of the transcript.
func (w *Workspace) Append(ctx context.Context, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	return w.Do(ctx, func(c *canvas.Controller) error {
		_, err := c.SetTranscript(append(c.Transcript(), lines...))
		return err
	})
}

// Ingest splits raw speech text into sentences and appends them. It returns
// the lines that were added.
func (w *Workspace) Ingest(ctx context.Context, text string) ([]string, error) {
	lines := feed.Segment(text, w.cfg.Feed.MinSentenceLen)
	return lines, w.Append(ctx, lines...)
}

// ApplyFeed applies one event from a transcript tail.
func (w *Workspace) ApplyFeed(ctx context.Context, ev feed.Event) error {
	if ev.Reset {
		_, err := w.SetTranscript(ctx, ev.Lines)
		return err
	}
	return w.Append(ctx, ev.Lines...)
}

// SetMode switches the view mode.
func (w *Workspace) SetMode(ctx context.Context, mode diagram.ViewMode) error {
	return w.Do(ctx, func(c *canvas.Controller) error { return c.SetViewMode(mode) })
}

// Render exports the current scene. With a store and an open session the
// result goes through the render cache, keyed by the scene digest.
func (w *Workspace) Render(ctx context.Context, f export.Format, opt export.Options) ([]byte, error) {
	w.mu.Lock()
	sc := w.ctrl.Scene()
	id := w.session.ID
	w.mu.Unlock()
	if opt.Provider == nil && w.fonts != nil {
		opt.Provider = w.fonts
		opt.FontKey = w.cfg.General.LabelFont
	}

	gen := func(context.Context) ([]byte, error) { return export.Bytes(sc, f, opt) }
	if w.store == nil || id == "" {
		return gen(ctx)
	}
	key := storage.RenderKey{SessionID: id, Format: string(f), W: opt.Width, H: opt.Height, Digest: export.Digest(sc, f, opt)}
	data, err := w.store.GetOrCreateRender(ctx, key, gen)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}
	telemetry.Event("render", map[string]any{"format": string(f), "nodes": len(sc.Nodes)})
	return data, nil
}

// CrashSave writes the in-memory session to a snapshot file beside the
// store, or in the temp dir, and returns its path. It does not wait for a
// lock held by a panicking goroutine.
func (w *Workspace) CrashSave() (string, error) {
	if w.mu.TryLock() {
		defer w.mu.Unlock()
	}
	dir := w.backupsDir()
	sess := w.session
	if sess.ID == "" {
		sess.ID = "unsaved"
	}
	sess.Mode = w.ctrl.Mode()
	snap := storage.Snapshot{
		Format:     storage.SnapshotFormat,
		Version:    storage.SnapshotVersion,
		Session:    sess,
		Transcript: w.ctrl.Transcript(),
		Overrides:  w.ctrl.Overrides(),
		Commits:    append([]storage.Commit(nil), w.pending...),
	}
	snap.Session.Lines = len(snap.Transcript)
	path := filepath.Join(dir, fmt.Sprintf("crash-%s-%s.json", sess.ID, time.Now().Format("20060102-150405")))
	if err := storage.WriteSnapshotFile(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Workspace) backupsDir() string {
	if w.store == nil {
		return os.TempDir()
	}
	return filepath.Join(filepath.Dir(w.store.Path()), storage.BackupsDirName)
}

// CrashTarget describes the open session for crash.Recover.
func (w *Workspace) CrashTarget() crash.Target {
	w.mu.Lock()
	defer w.mu.Unlock()
	return crash.Target{Dir: w.backupsDir(), Session: w.session.ID, Autosave: w.CrashSave}
}

// Close writes pending changes. The store stays open.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctrl.CommitEdit()
	if err := w.persistLocked(ctx); err != nil {
		return err
	}
	if w.store != nil && w.session.ID != "" {
		return w.saveLocked(ctx, false)
	}
	return nil
}
