// Copyright 2026 The Lemmadex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the indexing control API over JSON HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lemmadex/lemmadex/internal/indexer"
	"github.com/lemmadex/lemmadex/internal/urlx"
)

// Control is the coordinator surface the API needs.
type Control interface {
	StartIndexing() error
	StopIndexing() error
	IndexPage(ctx context.Context, url string) error
}

// Server handles the /api endpoints.
type Server struct {
	control Control
	mux     *http.ServeMux
}

// New builds a Server over the given coordinator.
func New(control Control) *Server {
	s := &Server{
		control: control,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/startIndexing", s.handleStartIndexing)
	s.mux.HandleFunc("/api/stopIndexing", s.handleStopIndexing)
	s.mux.HandleFunc("/api/indexPage", s.handleIndexPage)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the API on addr until the context is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type controlResponse struct {
	Result bool   `json:"result"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleStartIndexing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.control.StartIndexing(); err != nil {
		writeControl(w, http.StatusBadRequest, controlResponse{
			Result: false,
			Error:  "Indexing is already running",
		})
		return
	}
	writeControl(w, http.StatusOK, controlResponse{Result: true})
}

func (s *Server) handleStopIndexing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.control.StopIndexing(); err != nil {
		writeControl(w, http.StatusBadRequest, controlResponse{
			Result: false,
			Error:  "Indexing is not running",
		})
		return
	}
	writeControl(w, http.StatusOK, controlResponse{Result: true})
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		url = r.PostFormValue("url")
	}
	if url == "" {
		writeControl(w, http.StatusBadRequest, controlResponse{Result: false, Error: "Invalid URL"})
		return
	}

	err := s.control.IndexPage(r.Context(), url)
	switch {
	case err == nil:
		writeControl(w, http.StatusOK, controlResponse{Result: true})
	case errors.Is(err, urlx.ErrMalformedURL):
		writeControl(w, http.StatusBadRequest, controlResponse{Result: false, Error: "Invalid URL"})
	case errors.Is(err, indexer.ErrOutOfScope):
		writeControl(w, http.StatusBadRequest, controlResponse{Result: false, Error: "URL is outside configured sites"})
	case errors.Is(err, indexer.ErrAlreadyRunning):
		writeControl(w, http.StatusBadRequest, controlResponse{Result: false, Error: "Indexing is already running"})
	default:
		log.Printf("server: indexPage %s: %v", url, err)
		writeControl(w, http.StatusInternalServerError, controlResponse{
			Result: false,
			Error:  fmt.Sprintf("indexing failed: %v", err),
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Printf("server: encoding health response: %v", err)
	}
}

func writeControl(w http.ResponseWriter, status int, body controlResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}
