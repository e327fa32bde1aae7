/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "talkflow/internal/log"
)

// Event carries utterances read from a followed file. Reset reports that
// the file was truncated or replaced: earlier lines no longer apply and
// Lines starts a new transcript.
type Event struct {
	Lines []string
	Reset bool
}

// TailOptions configure a Tail.
type TailOptions struct {
	MinLen   int // zero means DefaultMinLen
	Debounce time.Duration
	// FromStart emits the current content first; otherwise only text
	// appended after Start is read.
	FromStart bool
}

// Tail follows a transcript file using fsnotify and emits the utterances
// appended to it. The directory is watched rather than the file so that
// editors which replace the file on save keep working.
type Tail struct {
	Path   string
	Events <-chan Event // Read-only external channel

	events  chan Event // Internal write channel
	done    chan struct{}
	watcher *fsnotify.Watcher
	opts    TailOptions
	seg     *Segmenter
	offset  int64
	log     *slog.Logger
}

// NewTail creates a tail for path. Call Start to begin following.
func NewTail(path string, opts TailOptions) (*Tail, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("tail: resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tail: create watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 100 * time.Millisecond
	}
	ch := make(chan Event, 16)
	return &Tail{
		Path:    abs,
		Events:  ch,
		events:  ch,
		done:    make(chan struct{}),
		watcher: fw,
		opts:    opts,
		seg:     NewSegmenter(opts.MinLen),
		log:     applog.WithComponent("feed").With(slog.String("path", abs)),
	}, nil
}

// Start reads the initial content (or skips it) and begins watching. The
// Events channel is closed when ctx ends or Stop is called.
func (t *Tail) Start(ctx context.Context) error {
	if err := t.watcher.Add(filepath.Dir(t.Path)); err != nil {
		_ = t.watcher.Close()
		return fmt.Errorf("tail: watch %s: %w", filepath.Dir(t.Path), err)
	}
	var initial []string
	if t.opts.FromStart {
		lines, _, err := t.read()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			_ = t.watcher.Close()
			return err
		}
		initial = lines
	} else if st, err := os.Stat(t.Path); err == nil {
		t.offset = st.Size()
	}
	go t.loop(ctx, initial)
	return nil
}

// Stop closes the watcher and waits for the loop to exit. Events must be
// drained or the Start context cancelled, or Stop blocks on a pending send.
func (t *Tail) Stop() {
	_ = t.watcher.Close()
	<-t.done
}

func (t *Tail) loop(ctx context.Context, initial []string) {
	defer close(t.events)
	defer close(t.done)

	if len(initial) > 0 && !t.send(ctx, Event{Lines: initial}) {
		return
	}
	ticker := time.NewTicker(t.opts.Debounce)
	defer ticker.Stop()
	var dirty bool
	var last time.Time

	for {
		select {
		case <-ctx.Done():
			_ = t.watcher.Close()
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				// Drain pending on close.
				t.flush(ctx, dirty)
				return
			}
			if filepath.Clean(event.Name) != t.Path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				dirty, last = true, time.Now()
			}
		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			if dirty && time.Since(last) >= t.opts.Debounce {
				dirty = false
				if !t.flush(ctx, true) {
					return
				}
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
			t.log.Warn("watch error", slog.Any("err", err))
		}
	}
}

func (t *Tail) flush(ctx context.Context, dirty bool) bool {
	if !dirty {
		return true
	}
	lines, reset, err := t.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.log.Warn("read failed", slog.Any("err", err))
		return true
	}
	if len(lines) == 0 && !reset {
		return true
	}
	return t.send(ctx, Event{Lines: lines, Reset: reset})
}

func (t *Tail) send(ctx context.Context, ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// read consumes bytes appended since the last read. A file shorter than the
// read offset was truncated or replaced and is read again from the start.
func (t *Tail) read() ([]string, bool, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	reset := false
	if st.Size() < t.offset {
		t.offset = 0
		t.seg.Reset()
		reset = true
		t.log.Info("file truncated, restarting transcript")
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, reset, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, reset, err
	}
	t.offset += int64(len(data))
	return t.seg.Push(string(data)), reset, nil
}
