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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"talkflow/internal/diagram"
	"talkflow/internal/vector"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Session is the metadata row of one recorded conversation.
type Session struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Mode      diagram.ViewMode `json:"mode"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Lines     int              `json:"lines"`
}

// State is everything needed to rebuild a session's diagram.
type State struct {
	Mode       diagram.ViewMode    `json:"mode"`
	Transcript []string            `json:"transcript"`
	Overrides  []diagram.NodeState `json:"overrides"`
}

// Commit is one committed label edit.
type Commit struct {
	NodeID diagram.NodeID `json:"node"`
	Text   string         `json:"text"`
	At     time.Time      `json:"at"`
}

// language=SQL
// dialect=SQLite
const selectSessionSQL = `SELECT s.id, s.title, s.mode, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM transcript_lines t WHERE t.session_id = s.id)
	FROM sessions s`

// CreateSession starts an empty session with a fresh id.
func (s *Store) CreateSession(ctx context.Context, title string, mode diagram.ViewMode) (Session, error) {
	if !mode.Valid() {
		return Session{}, fmt.Errorf("create session: %w: %d", diagram.ErrUnsupportedViewMode, uint8(mode))
	}
	now := time.Now().UTC()
	sess := Session{ID: uuid.NewString(), Title: strings.TrimSpace(title), Mode: mode, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO sessions(id, title, mode, created_at, updated_at) VALUES(?,?,?,?,?)`,
		sess.ID, sess.Title, mode.String(), formatTS(now), formatTS(now)); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	s.log.Info("session created", slog.String("session", sess.ID), slog.String("mode", mode.String()))
	return sess, nil
}

// GetSession returns one session or ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, selectSessionSQL+` WHERE s.id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// ListSessions returns sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, selectSessionSQL+` ORDER BY s.updated_at DESC, s.id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var sess Session
	var mode, created, updated string
	if err := r.Scan(&sess.ID, &sess.Title, &mode, &created, &updated, &sess.Lines); err != nil {
		return Session{}, err
	}
	m, err := diagram.ParseViewMode(mode)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Mode = m
	sess.CreatedAt, sess.UpdatedAt = parseTS(created), parseTS(updated)
	return sess, nil
}

// RenameSession changes the title.
func (s *Store) RenameSession(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET title=?, updated_at=? WHERE id=?`, strings.TrimSpace(title), formatTS(time.Now()), id)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return expectRow(res, id)
}

// DeleteSession removes a session with its transcript, overrides, commits and cached renders.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{
		`DELETE FROM transcript_lines WHERE session_id=?`,
		`DELETE FROM node_overrides WHERE session_id=?`,
		`DELETE FROM text_commits WHERE session_id=?`,
		`DELETE FROM render_cache WHERE session_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete session data: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete session: %w", err)
	}
	if err := expectRow(res, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Info("session deleted", slog.String("session", id))
	return nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// SaveState persists mode, transcript and overrides in one transaction.
// A stored transcript that is a prefix of the new one only gets the new
// tail appended; anything else replaces it.
func (s *Store) SaveState(ctx context.Context, id string, st State) error {
	if !st.Mode.Valid() {
		return fmt.Errorf("save state: %w: %d", diagram.ErrUnsupportedViewMode, uint8(st.Mode))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := saveStateTx(ctx, tx, id, st); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func saveStateTx(ctx context.Context, tx *sql.Tx, id string, st State) error {
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET mode=?, updated_at=? WHERE id=?`, st.Mode.String(), formatTS(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}
	stored, err := linesTx(ctx, tx, id)
	if err != nil {
		return err
	}
	from := len(stored)
	if !isPrefix(stored, st.Transcript) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_lines WHERE session_id=?`, id); err != nil {
			return fmt.Errorf("clear transcript: %w", err)
		}
		from = 0
	}
	if err := insertLines(ctx, tx, id, from, st.Transcript[from:]); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM node_overrides WHERE session_id=?`, id); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO node_overrides(session_id, node_id, x, y, w, h, text, moved, resized) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, o := range st.Overrides {
		if o.ID < 0 || int(o.ID) >= len(st.Transcript) {
			continue
		}
		if _, err := ins.ExecContext(ctx, id, int64(o.ID), o.Position.X, o.Position.Y, o.Size.W, o.Size.H, o.Text, boolInt(o.Moved), boolInt(o.Resized)); err != nil {
			return fmt.Errorf("insert override: %w", err)
		}
	}
	return nil
}

// AppendLines adds utterances to the end of a session transcript.
func (s *Store) AppendLines(ctx context.Context, id string, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at=? WHERE id=?`, formatTS(time.Now()), id)
	if err == nil {
		err = expectRow(res, id)
	}
	var n int
	if err == nil {
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript_lines WHERE session_id=?`, id).Scan(&n)
	}
	if err == nil {
		err = insertLines(ctx, tx, id, n, lines)
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append lines: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertLines(ctx context.Context, tx *sql.Tx, id string, from int, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO transcript_lines(session_id, idx, text) VALUES(?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for i, line := range lines {
		if _, err := ins.ExecContext(ctx, id, from+i, line); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return nil
}

// LoadState returns the persisted diagram state of a session.
func (s *Store) LoadState(ctx context.Context, id string) (State, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return State{}, err
	}
	st := State{Mode: sess.Mode}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return State{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if st.Transcript, err = linesTx(ctx, tx, id); err != nil {
		return State{}, err
	}
	rows, err := tx.QueryContext(ctx, `SELECT node_id, x, y, w, h, text, moved, resized FROM node_overrides WHERE session_id=? ORDER BY node_id`, id)
	if err != nil {
		return State{}, fmt.Errorf("query overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var o diagram.NodeState
		var nodeID int64
		var x, y, w, h float64
		var moved, resized int
		if err := rows.Scan(&nodeID, &x, &y, &w, &h, &o.Text, &moved, &resized); err != nil {
			return State{}, fmt.Errorf("scan override: %w", err)
		}
		o.ID = diagram.NodeID(nodeID)
		o.Position = vector.Pt{X: float32(x), Y: float32(y)}
		o.Size = vector.Size{W: float32(w), H: float32(h)}
		o.Moved, o.Resized = moved != 0, resized != 0
		st.Overrides = append(st.Overrides, o)
	}
	return st, rows.Err()
}

// Transcript returns the stored lines of a session in order.
func (s *Store) Transcript(ctx context.Context, id string) ([]string, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return linesTx(ctx, tx, id)
}

func linesTx(ctx context.Context, tx *sql.Tx, id string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT text FROM transcript_lines WHERE session_id=? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// RecordCommit appends a committed label edit to the session log.
func (s *Store) RecordCommit(ctx context.Context, id string, c Commit) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO text_commits(session_id, node_id, text, ts) VALUES(?,?,?,?)`, id, int64(c.NodeID), c.Text, formatTS(c.At)); err != nil {
		return fmt.Errorf("insert commit: %w", err)
	}
	return nil
}

// Commits returns up to limit most recent commits, oldest first.
func (s *Store) Commits(ctx context.Context, id string, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT node_id, text, ts FROM (
		SELECT id, node_id, text, ts FROM text_commits WHERE session_id=? ORDER BY ts DESC, id DESC LIMIT ?
	) ORDER BY ts, id`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Commit
	for rows.Next() {
		var c Commit
		var nodeID int64
		var ts string
		if err := rows.Scan(&nodeID, &c.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		c.NodeID, c.At = diagram.NodeID(nodeID), parseTS(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneCommits keeps at most keepLast commits for the session and deletes older ones.
func (s *Store) PruneCommits(ctx context.Context, id string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM text_commits WHERE session_id = ? AND id NOT IN (
		SELECT id FROM text_commits WHERE session_id = ? ORDER BY ts DESC, id DESC LIMIT ?
	)`, id, id, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune commits: %w", err)
	}
	return res.RowsAffected()
}

func isPrefix(prefix, lines []string) bool {
	if len(prefix) > len(lines) {
		return false
	}
	for i, p := range prefix {
		if lines[i] != p {
			return false
		}
	}
	return true
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
