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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collect(t *testing.T, tail *Tail, done func(lines []string, reset bool) bool) {
	t.Helper()
	var lines []string
	reset := false
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-tail.Events:
			if !ok {
				t.Fatalf("events closed early; got %v", lines)
			}
			lines = append(lines, ev.Lines...)
			reset = reset || ev.Reset
			if done(lines, reset) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out; got %v reset=%v", lines, reset)
		}
	}
}

func appendFile(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()
}

func TestTailFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.txt")
	if err := os.WriteFile(path, []byte("Hello there everyone. "), 0o644); err != nil {
		t.Fatal(err)
	}
	tail, err := NewTail(path, TailOptions{FromStart: true, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tail.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	collect(t, tail, func(lines []string, _ bool) bool {
		return len(lines) == 1 && lines[0] == "Hello there everyone"
	})

	appendFile(t, path, "We need a plan! ok. Next")
	collect(t, tail, func(lines []string, _ bool) bool {
		if len(lines) > 1 {
			t.Fatalf("unexpected lines %v", lines)
		}
		return len(lines) == 1 && lines[0] == "We need a plan"
	})

	if err := os.WriteFile(path, []byte("Fresh start.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	collect(t, tail, func(lines []string, reset bool) bool {
		return reset && len(lines) == 1 && lines[0] == "Fresh start"
	})

	tail.Stop()
	if _, ok := <-tail.Events; ok {
		t.Fatalf("events should be closed after Stop")
	}
}

func TestTailSkipsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.txt")
	if err := os.WriteFile(path, []byte("Old news from before.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tail, err := NewTail(path, TailOptions{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := tail.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	appendFile(t, path, "Brand new line.\n")
	collect(t, tail, func(lines []string, _ bool) bool {
		if len(lines) > 0 && lines[0] != "Brand new line" {
			t.Fatalf("old content replayed: %v", lines)
		}
		return len(lines) == 1
	})
	cancel()
	for range tail.Events {
	}
}

func TestTailMissingDirectory(t *testing.T) {
	tail, err := NewTail(filepath.Join(t.TempDir(), "nope", "talk.txt"), TailOptions{})
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	if err := tail.Start(context.Background()); err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
}

func TestTailZeroOptionsDropShortFragments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.txt")
	if err := os.WriteFile(path, []byte("Right. ok. Let us start.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tail, err := NewTail(path, TailOptions{FromStart: true})
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tail.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	collect(t, tail, func(lines []string, _ bool) bool {
		for _, l := range lines {
			if l == "ok" {
				t.Fatalf("short fragment kept: %v", lines)
			}
		}
		return len(lines) == 2 && lines[0] == "Right" && lines[1] == "Let us start"
	})
	cancel()
	tail.Stop()
}
