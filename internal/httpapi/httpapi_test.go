/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkflow/internal/config"
	"talkflow/internal/storage"
)

var meeting = []string{
	"Let's review the roadmap.",
	"We must decide on a vendor?",
	"Collect the usage data!",
	"Ship it next week.",
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Defaults()
	srv := New(store, cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close(context.Background())
	})
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createMeeting(t *testing.T, ts *httptest.Server, mode string) storage.Session {
	t.Helper()
	resp := call(t, ts, http.MethodPost, "/api/v1/sessions", map[string]any{
		"title": "Standup",
		"mode":  mode,
		"lines": meeting,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out sessionResponse
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Session.ID)
	assert.Equal(t, meeting, out.Transcript)
	return out.Session
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := call(t, ts, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
	var out map[string]string
	decodeBody(t, resp, &out)
	assert.Equal(t, "ok", out["status"])
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	sess := createMeeting(t, ts, "flowchart")
	base := "/api/v1/sessions/" + sess.ID

	resp := call(t, ts, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Sessions []storage.Session `json:"sessions"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, 4, list.Sessions[0].Lines)

	resp = call(t, ts, http.MethodGet, base+"/scene", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scene struct {
		Scene struct {
			Mode  string `json:"mode"`
			Nodes []struct {
				ID   string `json:"id"`
				Text string `json:"text"`
				Kind string `json:"kind"`
			} `json:"nodes"`
		} `json:"scene"`
		Connections []connectionView `json:"connections"`
	}
	decodeBody(t, resp, &scene)
	assert.Equal(t, "flowchart", scene.Scene.Mode)
	require.Len(t, scene.Scene.Nodes, 4)
	assert.Equal(t, "node-1", scene.Scene.Nodes[1].ID)
	require.Len(t, scene.Connections, 3)
	assert.True(t, strings.HasPrefix(scene.Connections[0].Path, "M"))
	assert.NotEmpty(t, scene.Connections[0].Arrow, "flowchart edges carry arrowheads")

	resp = call(t, ts, http.MethodPut, base+"/nodes/node-2/text", map[string]string{"text": "  Gather numbers  "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edit struct {
		Changed bool `json:"changed"`
		Node    struct {
			Text string `json:"text"`
		} `json:"node"`
	}
	decodeBody(t, resp, &edit)
	assert.True(t, edit.Changed)
	assert.Equal(t, "Gather numbers", edit.Node.Text)

	resp = call(t, ts, http.MethodGet, base+"/commits", nil)
	var commits struct {
		Commits []storage.Commit `json:"commits"`
	}
	decodeBody(t, resp, &commits)
	require.Len(t, commits.Commits, 1)
	assert.Equal(t, "Gather numbers", commits.Commits[0].Text)

	var applied struct {
		Applied bool `json:"applied"`
	}
	resp = call(t, ts, http.MethodPost, base+"/undo", nil)
	decodeBody(t, resp, &applied)
	assert.True(t, applied.Applied)
	resp = call(t, ts, http.MethodPost, base+"/redo", nil)
	decodeBody(t, resp, &applied)
	assert.True(t, applied.Applied)

	resp = call(t, ts, http.MethodPatch, base, map[string]string{"title": "Weekly"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var renamed storage.Session
	decodeBody(t, resp, &renamed)
	assert.Equal(t, "Weekly", renamed.Title)

	resp = call(t, ts, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = call(t, ts, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModeSwitch(t *testing.T) {
	ts := newTestServer(t)
	sess := createMeeting(t, ts, "")
	assert.Equal(t, "mindmap", sess.Mode.String())

	resp := call(t, ts, http.MethodPut, "/api/v1/sessions/"+sess.ID+"/mode", map[string]string{"mode": "outline"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out sceneResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, "outline", out.Session.Mode.String())
	require.Len(t, out.Scene.Nodes, 4)
	assert.Equal(t, float32(100), out.Scene.Nodes[3].Position.X)
	assert.Equal(t, float32(400), out.Scene.Nodes[3].Position.Y)
	for _, c := range out.Connections {
		assert.Empty(t, c.Arrow)
	}
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name string
		body any
		want string
	}{
		{"missing title", map[string]any{"mode": "outline"}, "title is required"},
		{"bad mode", map[string]any{"title": "x", "mode": "gantt"}, "mode must be one of"},
		{"empty line", map[string]any{"title": "x", "lines": []string{"ok", ""}}, "is required"},
		{"unknown field", map[string]any{"title": "x", "colour": "red"}, "invalid request body"},
		{"not json", []byte("{"), "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := call(t, ts, http.MethodPost, "/api/v1/sessions", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var out struct {
				Error   bool   `json:"error"`
				Message string `json:"message"`
				Code    int    `json:"code"`
			}
			decodeBody(t, resp, &out)
			assert.True(t, out.Error)
			assert.Equal(t, http.StatusBadRequest, out.Code)
			assert.Contains(t, out.Message, tc.want)
		})
	}

	sess := createMeeting(t, ts, "mindmap")
	resp := call(t, ts, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/lines", map[string]any{"lines": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownSessionAndNode(t *testing.T) {
	ts := newTestServer(t)
	resp := call(t, ts, http.MethodGet, "/api/v1/sessions/nope/scene", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sess := createMeeting(t, ts, "mindmap")
	resp = call(t, ts, http.MethodPut, "/api/v1/sessions/"+sess.ID+"/nodes/node-9/text", map[string]string{"text": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = call(t, ts, http.MethodPut, "/api/v1/sessions/"+sess.ID+"/nodes/abc/text", map[string]string{"text": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLinesIngestAndSearch(t *testing.T) {
	ts := newTestServer(t)
	sess := createMeeting(t, ts, "mindmap")
	base := "/api/v1/sessions/" + sess.ID

	resp := call(t, ts, http.MethodPost, base+"/lines", map[string]any{"lines": []string{"Budget is tight."}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lines struct {
		Result string `json:"result"`
		Nodes  int    `json:"nodes"`
	}
	decodeBody(t, resp, &lines)
	assert.Equal(t, 5, lines.Nodes)

	resp = call(t, ts, http.MethodPost, base+"/ingest", map[string]string{"text": "Friday works for launch. Tell marketing!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ingest struct {
		Added []string `json:"added"`
		Nodes int      `json:"nodes"`
	}
	decodeBody(t, resp, &ingest)
	assert.Len(t, ingest.Added, 2)
	assert.Equal(t, 7, ingest.Nodes)

	resp = call(t, ts, http.MethodGet, "/api/v1/search?q=Friday&session="+sess.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found struct {
		Results []storage.SearchResult `json:"results"`
	}
	decodeBody(t, resp, &found)
	require.Len(t, found.Results, 1)
	assert.Equal(t, 5, found.Results[0].Line)

	resp = call(t, ts, http.MethodPost, base+"/lines", map[string]any{"lines": []string{"fresh start"}, "replace": true})
	decodeBody(t, resp, &lines)
	assert.Equal(t, "rebuilt", lines.Result)
	assert.Equal(t, 1, lines.Nodes)
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	sess := createMeeting(t, ts, "flowchart")
	base := "/api/v1/sessions/" + sess.ID + "/export/"

	resp := call(t, ts, http.MethodGet, base+"svg", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<svg")

	resp = call(t, ts, http.MethodGet, base+"png?w=320&h=240", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp = call(t, ts, http.MethodGet, base+"pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp = call(t, ts, http.MethodGet, base+"gif", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	sess := createMeeting(t, ts, "outline")
	base := "/api/v1/sessions/" + sess.ID

	call(t, ts, http.MethodPut, base+"/nodes/0/text", map[string]string{"text": "Roadmap review"})
	resp := call(t, ts, http.MethodGet, base+"/snapshot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), sess.ID)
	snap, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, storage.ValidateSnapshot(snap))

	resp = call(t, ts, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = call(t, ts, http.MethodPost, "/api/v1/snapshots", snap)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var imported storage.Session
	decodeBody(t, resp, &imported)
	assert.Equal(t, sess.ID, imported.ID)
	assert.Equal(t, 4, imported.Lines)

	resp = call(t, ts, http.MethodGet, base+"/scene", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out sceneResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, "Roadmap review", out.Scene.Nodes[0].Text)

	resp = call(t, ts, http.MethodPost, "/api/v1/snapshots", []byte(`{"format":"other"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp2, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}
