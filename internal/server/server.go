// Package server is the HTTP front door: it accepts task queries and
// returns the step trace.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-agent/internal/metrics"
	"github.com/polzovatel/web-research-agent/internal/usecase"
)

type Server struct {
	uc     *usecase.Browser
	router chi.Router
	logger zerolog.Logger
}

func New(uc *usecase.Browser, logger zerolog.Logger) *Server {
	s := &Server{uc: uc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(s.requestLogger)

	r.Post("/api/browser/execute", s.handleExecute)
	r.Get("/api/browser/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

type executeRequest struct {
	Query   string `json:"query"`
	AgentID string `json:"agent_id"`
	UserID  string `json:"user_id"`
}

type executeResponse struct {
	Success bool             `json:"success"`
	Data    *usecase.Outcome `json:"data"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, executeResponse{Success: false, Error: "Request body is required"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, executeResponse{Success: false, Error: "Query is required"})
		return
	}

	outcome := s.uc.Execute(r.Context(), req.Query, req.AgentID, req.UserID)
	writeJSON(w, http.StatusOK, executeResponse{
		Success: outcome.OverallSuccess,
		Data:    &outcome,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Browser agent service is running",
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
