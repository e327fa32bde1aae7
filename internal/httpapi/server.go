/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package httpapi exposes sessions over a small JSON API: transcript input,
// view modes, label edits, undo, scene snapshots, exports and search.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"talkflow/internal/config"
	"talkflow/internal/diagram"
	applog "talkflow/internal/log"
	"talkflow/internal/storage"
	"talkflow/internal/version"
	"talkflow/internal/workspace"
)

var validate = validator.New()

const maxBody = 8 << 20

// Server serves the API for one session store. Workspaces are opened on
// first use and kept until the session is deleted or the server closes.
type Server struct {
	store     *storage.Store
	cfg       config.AppConfig
	log       *slog.Logger
	maxRender int64

	mu     sync.Mutex
	spaces map[string]*workspace.Workspace
}

// New creates a server backed by store.
func New(store *storage.Store, cfg config.AppConfig) *Server {
	return &Server{
		store:     store,
		cfg:       cfg,
		log:       applog.WithComponent("httpapi"),
		maxRender: storage.MaxRenderBytesFromEnv(),
		spaces:    map[string]*workspace.Workspace{},
	}
}

// Handler returns the router with all middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)
	if d, err := time.ParseDuration(s.cfg.Server.EffectiveTimeout()); err == nil {
		r.Use(chimiddleware.Timeout(d))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Post("/snapshots", s.importSnapshot)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.createSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Patch("/", s.renameSession)
				r.Delete("/", s.deleteSession)
				r.Post("/lines", s.appendLines)
				r.Post("/ingest", s.ingest)
				r.Put("/mode", s.setMode)
				r.Get("/scene", s.scene)
				r.Put("/nodes/{nodeID}/text", s.editText)
				r.Post("/undo", s.undo)
				r.Post("/redo", s.redo)
				r.Get("/commits", s.commits)
				r.Get("/snapshot", s.exportSnapshot)
				r.Get("/export/{format}", s.export)
			})
		})
	})
	return r
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr, "version", version.String())
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutCtx)
	if cerr := s.Close(shutCtx); err == nil {
		err = cerr
	}
	return err
}

// Close flushes every open workspace.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, ws := range s.spaces {
		if err := ws.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
		delete(s.spaces, id)
	}
	return errors.Join(errs...)
}

func (s *Server) newWorkspace() (*workspace.Workspace, error) {
	return workspace.New(workspace.Options{Config: s.cfg, Store: s.store, Logger: s.log.With("sub", "workspace")})
}

// workspace returns the open workspace for id, loading it from the store.
func (s *Server) workspace(ctx context.Context, id string) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.spaces[id]; ok {
		return ws, nil
	}
	ws, err := s.newWorkspace()
	if err != nil {
		return nil, err
	}
	if _, err := ws.Open(ctx, id); err != nil {
		return nil, err
	}
	s.spaces[id] = ws
	return ws, nil
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.spaces, id)
	s.mu.Unlock()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// fail maps err onto a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidSnapshot), errors.Is(err, diagram.ErrUnsupportedViewMode):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
	}
	s.respondError(w, status, err.Error())
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must have at least %s entries or characters", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must have at most %s entries or characters", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New("validation error: " + strings.Join(msgs, "; "))
}
