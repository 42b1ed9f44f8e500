// Package server exposes the artifacts of completed runs to downstream
// consumers (the billing/revenue simulator) over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/tariffshift/tariffshift/pkg/log"
	"github.com/tariffshift/tariffshift/pkg/storage"
)

// Server serves run records and tariff artifacts.
type Server struct {
	storage storage.Database

	listenAddr string
	serverName string
	httpServer *http.Server

	oidcAudience string
	verifier     tokenVerifier
}

// Configured initializes the Server with dependencies. It uses lflag to
// register command-line flags for configuration.
func Configured(db storage.Database) *Server {
	srv := &Server{
		storage:    db,
		serverName: "tariffshift",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	oidcAudience := lflag.String("oidc-audience", "", "OIDC audience/client ID; when set, requests must carry a verified bearer token")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.oidcAudience = *oidcAudience
		if srv.oidcAudience != "" {
			v, err := newGoogleVerifier(context.Background(), srv.oidcAudience)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifier = v
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/runs/latest", s.handleLatestRun)
	apiMux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	apiMux.HandleFunc("GET /api/runs/{id}/tariff", s.handleGetTariff)
	apiMux.HandleFunc("GET /api/runs/{id}/assignments", s.handleGetAssignments)
	apiMux.HandleFunc("GET /api/runs/{id}/elasticity", s.handleGetElasticity)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(mux))
}

// Run starts the HTTP server and blocks until the context is canceled or an
// error occurs. It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.GetLatestRun(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeJSONError(w, "no runs recorded", http.StatusNotFound)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to get latest run", slog.Any("error", err))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeJSONError(w, "run not found", http.StatusNotFound)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to get run", slog.Any("error", err))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, run)
}

func (s *Server) handleGetTariff(w http.ResponseWriter, r *http.Request) {
	doc, err := s.storage.GetTariffDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			writeJSONError(w, "tariff not found", http.StatusNotFound)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to get tariff", slog.Any("error", err))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, doc)
}

func (s *Server) handleGetAssignments(w http.ResponseWriter, r *http.Request) {
	rows, err := s.storage.GetAssignments(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			writeJSONError(w, "assignments not found", http.StatusNotFound)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to get assignments", slog.Any("error", err))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, rows)
}

func (s *Server) handleGetElasticity(w http.ResponseWriter, r *http.Request) {
	recs, err := s.storage.GetElasticityRecords(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			writeJSONError(w, "elasticity records not found", http.StatusNotFound)
			return
		}
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to get elasticity records", slog.Any("error", err))
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, recs)
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
