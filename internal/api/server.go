// Package api exposes lead ingestion and lookup over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/leads"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
)

const (
	maxBodyBytes = 1 << 20
	defaultLimit = 50
	maxLimit     = 500
)

// Ingester creates received leads from ingestion requests.
type Ingester interface {
	Ingest(ctx context.Context, req model.IngestRequest) (*model.Lead, error)
}

// LeadReader reads persisted leads.
type LeadReader interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, f model.LeadFilter) ([]model.Lead, error)
}

// Deps are the server's collaborators. Metrics may be nil.
type Deps struct {
	Ingester       Ingester
	Dispatcher     leads.Dispatcher
	Leads          LeadReader
	Metrics        http.Handler
	AllowedOrigins []string
}

// Server routes HTTP requests to the lead pipeline.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	return &Server{deps: deps}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Get("/leads", s.handleListLeads)
		r.Get("/leads/{id}", s.handleGetLead)
	})
	return r
}

// handleIngest creates the lead synchronously and hands it to the
// dispatcher. Pipeline outcomes are read back from the lead record.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req model.IngestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.IngestResponse{Message: "invalid request body"})
		return
	}

	lead, err := s.deps.Ingester.Ingest(r.Context(), req)
	var ve *resilience.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, model.IngestResponse{Message: ve.Error()})
		return
	case err != nil:
		zap.L().Error("api: ingest failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, model.IngestResponse{Message: "failed to create lead"})
		return
	}

	resp := model.IngestResponse{
		Success: true,
		LeadID:  lead.ID,
		Message: "Lead received and queued for processing",
	}
	pid, err := s.deps.Dispatcher.Dispatch(r.Context(), lead.ID)
	if err != nil {
		// The lead exists; it can be picked up later with resume.
		zap.L().Error("api: dispatch failed", zap.String("lead_id", lead.ID), zap.Error(err))
		resp.Message = "Lead received; processing will be retried"
	}
	resp.ProcessingID = pid
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := s.deps.Leads.GetLead(r.Context(), id)
	if err != nil {
		zap.L().Error("api: get lead failed", zap.String("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load lead")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.LeadFilter{
		Status:        model.ProcessingStatus(q.Get("status")),
		Qualification: model.Qualification(q.Get("qualification")),
		Limit:         defaultLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		f.Offset = n
	}

	list, err := s.deps.Leads.ListLeads(r.Context(), f)
	if err != nil {
		zap.L().Error("api: list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if list == nil {
		list = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": list, "count": len(list)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
