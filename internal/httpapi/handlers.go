/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"talkflow/internal/canvas"
	"talkflow/internal/diagram"
	"talkflow/internal/export"
	"talkflow/internal/storage"
	"talkflow/internal/workspace"
)

type createSessionRequest struct {
	Title string   `json:"title" validate:"required,max=200"`
	Mode  string   `json:"mode" validate:"omitempty,oneof=mindmap flowchart outline"`
	Lines []string `json:"lines" validate:"omitempty,dive,required"`
}

type renameRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type linesRequest struct {
	Lines []string `json:"lines" validate:"required,min=1,dive,required"`
	// Replace swaps the whole transcript instead of appending.
	Replace bool `json:"replace"`
}

type ingestRequest struct {
	Text string `json:"text" validate:"required"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=mindmap flowchart outline"`
}

type textRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// connectionView is a connection with its geometry as SVG path data.
type connectionView struct {
	From  diagram.NodeID `json:"from"`
	To    diagram.NodeID `json:"to"`
	Path  string         `json:"path"`
	Arrow string         `json:"arrow,omitempty"`
}

type sceneResponse struct {
	Session     storage.Session  `json:"session"`
	Scene       canvas.Scene     `json:"scene"`
	Connections []connectionView `json:"connections"`
}

type sessionResponse struct {
	Session    storage.Session `json:"session"`
	Transcript []string        `json:"transcript"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	list, err := s.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []storage.Session{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"sessions": list, "limit": limit, "offset": offset})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, err := s.newWorkspace()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	if req.Mode != "" {
		mode, err := diagram.ParseViewMode(req.Mode)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := ws.SetMode(ctx, mode); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if _, err := ws.Create(ctx, req.Title); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := ws.Append(ctx, req.Lines...); err != nil {
		s.fail(w, r, err)
		return
	}
	sess := ws.Session()
	s.mu.Lock()
	s.spaces[sess.ID] = ws
	s.mu.Unlock()
	s.respondJSON(w, http.StatusCreated, sessionResponse{Session: sess, Transcript: ws.Transcript()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse{Session: ws.Session(), Transcript: ws.Transcript()})
}

func (s *Server) renameSession(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "sessionID")
	if err := s.store.RenameSession(r.Context(), id, req.Title); err != nil {
		s.fail(w, r, err)
		return
	}
	// the cached workspace still carries the old title
	s.forget(id)
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.forget(id)
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) appendLines(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	result := diagram.Appended
	var err error
	if req.Replace {
		result, err = ws.SetTranscript(r.Context(), req.Lines)
	} else {
		err = ws.Append(r.Context(), req.Lines...)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"result": result.String(), "nodes": len(ws.Scene().Nodes)})
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	added, err := ws.Ingest(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"added": added, "nodes": len(ws.Scene().Nodes)})
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := diagram.ParseViewMode(req.Mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	if err := ws.SetMode(r.Context(), mode); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeScene(w, ws.Session(), ws.Scene())
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	s.writeScene(w, ws.Session(), ws.Scene())
}

func (s *Server) writeScene(w http.ResponseWriter, sess storage.Session, sc canvas.Scene) {
	conns := make([]connectionView, 0, len(sc.Connections))
	for _, c := range sc.Connections {
		v := connectionView{From: c.From, To: c.To, Path: c.Path.SVGData()}
		if c.Arrow != nil {
			v.Arrow = c.Arrow.SVGData()
		}
		conns = append(conns, v)
	}
	s.respondJSON(w, http.StatusOK, sceneResponse{Session: sess, Scene: sc, Connections: conns})
}

var errNodeNotFound = errors.New("node not found")

func (s *Server) editText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var id diagram.NodeID
	if err := id.UnmarshalText([]byte(chi.URLParam(r, "nodeID"))); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid node id")
		return
	}
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	changed := false
	var node diagram.Node
	err := ws.Do(r.Context(), func(c *canvas.Controller) error {
		if !c.BeginEdit(id) {
			return errNodeNotFound
		}
		c.SetEditBuffer(req.Text)
		changed = c.CommitEdit()
		node, _ = c.Node(id)
		return nil
	})
	if errors.Is(err, errNodeNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("node %s not found", id))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"node": node, "changed": changed})
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) { s.history(w, r, false) }
func (s *Server) redo(w http.ResponseWriter, r *http.Request) { s.history(w, r, true) }

func (s *Server) history(w http.ResponseWriter, r *http.Request, redo bool) {
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	applied := false
	err := ws.Do(r.Context(), func(c *canvas.Controller) error {
		if redo {
			applied = c.Redo()
		} else {
			applied = c.Undo()
		}
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

func (s *Server) commits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	list, err := s.store.Commits(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []storage.Commit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"commits": list})
}

func (s *Server) exportSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	// flush so the snapshot carries the latest state
	if err := ws.Save(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.store.Export(r.Context(), ws.Session().ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Session.ID+".json"))
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) importSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.store.Import(r.Context(), snap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.forget(sess.ID)
	s.respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, ok := s.open(w, r)
	if !ok {
		return
	}
	opt := export.Options{
		Width:  queryInt(r, "w", 0),
		Height: queryInt(r, "h", 0),
		Grid:   r.URL.Query().Get("grid") == "1",
		Title:  ws.Session().Title,
	}
	data, err := ws.Render(r.Context(), f, opt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.maxRender > 0 {
		if err := s.store.EvictRendersToFit(r.Context(), s.maxRender); err != nil {
			s.log.Warn("render cache eviction failed", "err", err)
		}
	}
	w.Header().Set("Content-Type", contentType(f))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentType(f export.Format) string {
	switch f {
	case export.SVG:
		return "image/svg+xml"
	case export.PNG:
		return "image/png"
	case export.PDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// an empty q lists lines in transcript order
	res, err := s.store.Search(r.Context(), storage.SearchQuery{
		Text:      strings.TrimSpace(q.Get("q")),
		SessionID: q.Get("session"),
		Limit:     queryInt(r, "limit", 20),
		Offset:    queryInt(r, "offset", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res == nil {
		res = []storage.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": res})
}

// open resolves the session in the URL, writing the error response itself.
func (s *Server) open(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, err := s.workspace(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return ws, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
