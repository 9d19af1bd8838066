// Package httpapi serves the latest analysis report over HTTP: a JSON read
// API, a refresh trigger, Prometheus metrics and an MCP endpoint exposing the
// same queries as tools.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rewired-gh/transferoracle/internal/analysis"
	"github.com/rewired-gh/transferoracle/internal/fixtures"
	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/metrics"
	"github.com/rewired-gh/transferoracle/internal/models"
)

// maxLimit caps the limit query parameter.
const maxLimit = 100

// Service answers the read queries. *analysis.Session implements it.
type Service interface {
	Report() *analysis.Report
	AnalyzeSquad() ([]analysis.SquadEntry, error)
	SuggestTransfers(limit int) ([]models.TransferSuggestion, error)
	UpcomingFixtures() ([]fixtures.TeamFixtures, error)
}

// RefreshFunc runs the pipeline once and returns the new report.
type RefreshFunc func(ctx context.Context) (*analysis.Report, error)

// Server routes HTTP requests to the service.
type Server struct {
	svc      Service
	refresh  RefreshFunc
	recorder *metrics.Recorder
	mcp      *mcp.Server
	router   *mux.Router
}

// New creates a server. refresh may be nil to disable POST /api/refresh and
// recorder may be nil to disable /metrics.
func New(svc Service, refresh RefreshFunc, recorder *metrics.Recorder, version string) *Server {
	s := &Server{
		svc:      svc,
		refresh:  refresh,
		recorder: recorder,
		mcp:      newMCPServer(svc, version),
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/team", s.handleTeam).Methods(http.MethodGet)
	api.HandleFunc("/squad", s.handleSquad).Methods(http.MethodGet)
	api.HandleFunc("/fixtures", s.handleFixtures).Methods(http.MethodGet)
	api.HandleFunc("/transfers", s.handleTransfers).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	if s.recorder != nil {
		r.Handle("/metrics", s.recorder.Handler()).Methods(http.MethodGet)
	}

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
	r.Handle("/mcp", mcpHandler)
}

// statusWriter remembers the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// observe logs and counts every request under its route template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		duration := time.Since(start)
		s.recorder.RecordRequest(route, sw.status, duration)
		logger.WithField("route", route).
			WithField("method", r.Method).
			WithField("status", sw.status).
			WithField("duration_ms", duration.Milliseconds()).
			Debug("request complete")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if rep := s.svc.Report(); rep != nil {
		body["run_id"] = rep.RunID
		body["generated_at"] = rep.GeneratedAt
	}
	writeJSON(w, http.StatusOK, body)
}

// teamView is the report header without the per-player details.
type teamView struct {
	RunID        string    `json:"run_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Week         int       `json:"week"`
	TeamID       string    `json:"team_id"`
	Manager      string    `json:"manager"`
	Value        int64     `json:"value"`
	Points       int       `json:"points"`
	Budget       int64     `json:"budget"`
	Position     int       `json:"position"`
	Players      int       `json:"players"`
	UniverseSize int       `json:"universe_size"`
	Candidates   int       `json:"candidates"`
	Enriched     int       `json:"enriched"`
	Warnings     []string  `json:"warnings"`
}

func newTeamView(r *analysis.Report) teamView {
	return teamView{
		RunID:        r.RunID,
		GeneratedAt:  r.GeneratedAt,
		Week:         r.Week,
		TeamID:       r.Team.ID,
		Manager:      r.Team.ManagerName,
		Value:        r.Team.Value,
		Points:       r.Team.Points,
		Budget:       r.Budget,
		Position:     r.Team.Position,
		Players:      len(r.Team.Players),
		UniverseSize: r.UniverseSize,
		Candidates:   r.Candidates,
		Enriched:     r.Enriched,
		Warnings:     r.Warnings,
	}
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	rep := s.svc.Report()
	if rep == nil || rep.Team == nil {
		writeError(w, analysis.ErrNoTeamLoaded)
		return
	}
	writeJSON(w, http.StatusOK, newTeamView(rep))
}

func (s *Server) handleSquad(w http.ResponseWriter, r *http.Request) {
	squad, err := s.svc.AnalyzeSquad()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, squad)
}

func (s *Server) handleFixtures(w http.ResponseWriter, r *http.Request) {
	upcoming, err := s.svc.UpcomingFixtures()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, upcoming)
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer between 1 and 100"})
			return
		}
		limit = n
	}
	suggestions, err := s.svc.SuggestTransfers(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "refresh is disabled"})
		return
	}
	rep, err := s.refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTeamView(rep))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

// writeError maps a missing team to 503 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, analysis.ErrNoTeamLoaded) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
