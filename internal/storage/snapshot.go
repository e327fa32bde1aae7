/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"talkflow/internal/diagram"
)

const (
	SnapshotFormat  = "talkflow.session"
	SnapshotVersion = 1
)

// ErrInvalidSnapshot is returned when a snapshot does not match the session schema.
var ErrInvalidSnapshot = errors.New("invalid session snapshot")

//go:embed session.schema.json
var snapshotSchema []byte

// Snapshot is the portable JSON form of a session.
type Snapshot struct {
	Format     string              `json:"format"`
	Version    int                 `json:"version"`
	Session    Session             `json:"session"`
	Transcript []string            `json:"transcript"`
	Overrides  []diagram.NodeState `json:"overrides"`
	Commits    []Commit            `json:"commits"`
}

// Export collects a session into a snapshot.
func (s *Store) Export(ctx context.Context, id string) (Snapshot, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	st, err := s.LoadState(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	commits, err := s.Commits(ctx, id, 1<<20)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Format:     SnapshotFormat,
		Version:    SnapshotVersion,
		Session:    sess,
		Transcript: st.Transcript,
		Overrides:  st.Overrides,
		Commits:    commits,
	}, nil
}

// Import stores a snapshot as a session. The snapshot's id is kept unless
// it is already taken, in which case a fresh one is assigned.
func (s *Store) Import(ctx context.Context, snap Snapshot) (Session, error) {
	if snap.Format != SnapshotFormat || snap.Version != SnapshotVersion {
		return Session{}, fmt.Errorf("%w: format %q version %d", ErrInvalidSnapshot, snap.Format, snap.Version)
	}
	if !snap.Session.Mode.Valid() {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, diagram.ErrUnsupportedViewMode)
	}
	sess := snap.Session
	if _, err := s.GetSession(ctx, sess.ID); err == nil || strings.TrimSpace(sess.ID) == "" {
		sess.ID = uuid.NewString()
	} else if !errors.Is(err, ErrSessionNotFound) {
		return Session{}, err
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions(id, title, mode, created_at, updated_at) VALUES(?,?,?,?,?)`,
		sess.ID, sess.Title, sess.Mode.String(), formatTS(sess.CreatedAt), formatTS(now)); err != nil {
		_ = tx.Rollback()
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	if err := saveStateTx(ctx, tx, sess.ID, State{Mode: sess.Mode, Transcript: snap.Transcript, Overrides: snap.Overrides}); err != nil {
		_ = tx.Rollback()
		return Session{}, err
	}
	for _, c := range snap.Commits {
		if c.At.IsZero() {
			c.At = now
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO text_commits(session_id, node_id, text, ts) VALUES(?,?,?,?)`, sess.ID, int64(c.NodeID), c.Text, formatTS(c.At)); err != nil {
			_ = tx.Rollback()
			return Session{}, fmt.Errorf("insert commit: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit: %w", err)
	}
	sess.Lines = len(snap.Transcript)
	return sess, nil
}

// ValidateSnapshot checks raw JSON against the session schema.
func ValidateSnapshot(data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(snapshotSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeSnapshot validates and parses snapshot JSON.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if err := ValidateSnapshot(data); err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return snap, nil
}

// ReadSnapshotFile loads and validates a snapshot file.
func ReadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// WriteSnapshotFile writes a snapshot with transactional semantics. An
// existing file at path is first copied to a timestamped backup.
func WriteSnapshotFile(path string, snap Snapshot) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("snapshot path is required")
	}
	// Marshal in human-readable form
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure snapshot dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(dir, BackupsDirName, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current snapshot: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename over target
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp snapshot: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace snapshot: %w", rerr)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
