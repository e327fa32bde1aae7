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
	"os"
	"strconv"
	"time"
)

// EnvRenderCacheMaxBytes caps the render cache size.
const EnvRenderCacheMaxBytes = "TALKFLOW_RENDER_CACHE_MAX_BYTES"

// RenderKey identifies one cached export. Digest fingerprints the scene it
// was rendered from, so a changed diagram never hits a stale entry.
type RenderKey struct {
	SessionID string
	Format    string // "svg" | "png" | "pdf"
	W, H      int
	Digest    string
}

// GetRender returns a cached render and marks it as recently used. A miss returns nil, nil.
func (s *Store) GetRender(ctx context.Context, k RenderKey) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM render_cache WHERE session_id=? AND format=? AND w=? AND h=? AND digest=?`,
		k.SessionID, k.Format, k.W, k.H, k.Digest).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query render: %w", err)
	}
	// touch
	now := formatTS(time.Now())
	_, _ = s.db.ExecContext(ctx, `UPDATE render_cache SET last_access=? WHERE session_id=? AND format=? AND w=? AND h=? AND digest=?`,
		now, k.SessionID, k.Format, k.W, k.H, k.Digest)
	return blob, nil
}

// PutRender upserts a render and enforces the cache size cap via LRU eviction.
func (s *Store) PutRender(ctx context.Context, k RenderKey, blob []byte) error {
	switch k.Format {
	case "svg", "png", "pdf":
	default:
		return fmt.Errorf("invalid render format: %q", k.Format)
	}
	now := formatTS(time.Now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO render_cache(session_id,format,w,h,digest,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id,format,w,h,digest) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		k.SessionID, k.Format, k.W, k.H, k.Digest, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert render: %w", err)
	}
	if capBytes := MaxRenderBytesFromEnv(); capBytes > 0 {
		return s.EvictRendersToFit(ctx, capBytes)
	}
	return nil
}

// GetOrCreateRender fetches a render or generates and stores it using gen.
func (s *Store) GetOrCreateRender(ctx context.Context, k RenderKey, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := s.GetRender(ctx, k); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if err := s.PutRender(ctx, k, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EvictRendersToFit deletes least-recently-used rows until total size <= capBytes.
func (s *Store) EvictRendersToFit(ctx context.Context, capBytes int64) error {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM render_cache`).Scan(&total); err != nil {
		return fmt.Errorf("sum render size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	// Oldest access first, never-read rows before everything else
	rows, err := s.db.QueryContext(ctx, `SELECT id, size FROM render_cache ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	toDelete := make([]any, 0, 32)
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		toDelete = append(toDelete, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// Important: close the rows cursor before attempting to write
	if err := rows.Close(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM render_cache WHERE id IN (`+placeholders(len(toDelete))+`)`, toDelete...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalRenderBytes returns total bytes tracked by render_cache.size.
func (s *Store) TotalRenderBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM render_cache`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MaxRenderBytesFromEnv reads TALKFLOW_RENDER_CACHE_MAX_BYTES, defaulting to 64MB if unset.
func MaxRenderBytesFromEnv() int64 {
	const def = 64 * 1024 * 1024
	v := os.Getenv(EnvRenderCacheMaxBytes)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
