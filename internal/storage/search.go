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
	"fmt"
	"strings"
)

// SearchQuery describes a transcript search.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// SessionID optionally restricts the search to one session.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string
	SessionID string
	Limit     int
	Offset    int
}

// SearchResult is one matching utterance. Line is its index in the
// transcript, which is also the id of the node it produced.
// Snippet marks matches with [ ] when Text was given.
type SearchResult struct {
	SessionID string `json:"session_id"`
	Line      int    `json:"line"`
	Text      string `json:"text"`
	Snippet   string `json:"snippet,omitempty"`
}

// Search runs a full-text query over transcript lines. When q.Text is
// empty it lists lines in transcript order.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT t.session_id, t.idx, t.text, snippet(fts_lines, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_lines JOIN transcript_lines t ON fts_lines.rowid = t.id\n")
		sb.WriteString("WHERE fts_lines MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT t.session_id, t.idx, t.text, ''\n")
		sb.WriteString("FROM transcript_lines t\nWHERE 1=1\n")
	}
	if id := strings.TrimSpace(q.SessionID); id != "" {
		sb.WriteString(" AND t.session_id = ?\n")
		args = append(args, id)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if useFTS {
		sb.WriteString("ORDER BY fts_lines.rank, t.session_id, t.idx\n")
	} else {
		sb.WriteString("ORDER BY t.session_id, t.idx\n")
	}
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.SessionID, &r.Line, &r.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
