package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/podsmith/backend/internal/briefing"
	"github.com/podsmith/backend/internal/catalog"
	"github.com/podsmith/backend/internal/config"
	"github.com/podsmith/backend/internal/elasticsearch"
	"github.com/podsmith/backend/internal/models"
	"github.com/podsmith/backend/internal/newsapi"
)

const maxRequestBody = 1 << 20

type briefingBuilder interface {
	Build(ctx context.Context, req briefing.Request) (*models.Briefing, error)
	Catalog() *catalog.Catalog
}

type briefingArchive interface {
	Health(ctx context.Context) error
	GetBriefing(ctx context.Context, id string) (*models.Briefing, error)
	SearchBriefings(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
}

type briefingPublisher interface {
	Publish(ctx context.Context, doc *models.Briefing) error
}

type server struct {
	log *slog.Logger
	cfg *config.API
	svc briefingBuilder
	// archive and publisher are nil when disabled.
	archive   briefingArchive
	publisher briefingPublisher
}

type errorResponse struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamCode   string `json:"upstream_code,omitempty"`
}

type sourceView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type categoryView struct {
	Name          string       `json:"name"`
	CustomSources bool         `json:"custom_sources"`
	Sources       []sourceView `json:"sources"`
}

type catalogResponse struct {
	Categories []categoryView `json:"categories"`
	Speeds     []string       `json:"speeds"`
	Voices     []string       `json:"voices"`
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/catalog", s.handleCatalog)
	r.Route("/briefings", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.archive.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := s.svc.Catalog()
	resp := catalogResponse{
		Speeds: briefing.Speeds(),
		Voices: briefing.Voices(),
	}
	for _, c := range cat.Categories() {
		view := categoryView{Name: c.Name, CustomSources: c.CustomSources, Sources: make([]sourceView, 0, len(c.Sources))}
		for _, id := range c.Sources {
			view.Sources = append(view.Sources, sourceView{ID: id, Name: cat.DisplayName(id)})
		}
		resp.Categories = append(resp.Categories, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req briefing.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	doc, err := s.svc.Build(ctx, req)
	if err != nil {
		s.writeBuildError(w, r, err)
		return
	}

	if s.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		if err := s.publisher.Publish(pubCtx, doc); err != nil {
			s.log.Warn("publish briefing", slog.String("id", doc.ID), slog.Any("err", err))
		}
		cancel()
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *server) writeBuildError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())

	var fe *newsapi.FetchError
	switch {
	case errors.Is(err, briefing.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &fe):
		s.log.Warn("upstream fetch failed",
			slog.String("request_id", reqID),
			slog.Int("status", fe.Status),
			slog.String("code", fe.Code),
		)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:          err.Error(),
			UpstreamStatus: fe.Status,
			UpstreamCode:   fe.Code,
		})
	default:
		s.log.Error("build briefing", slog.String("request_id", reqID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "archive disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := s.archive.GetBriefing(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, elasticsearch.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "archive disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Category: strings.TrimSpace(q.Get("category")),
		Keyword:  strings.TrimSpace(q.Get("keyword")),
		From:     clampInt(q.Get("from"), 0, 10_000),
		Size:     clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Start:    parseTime(q.Get("start")),
		End:      parseTime(q.Get("end")),
	}

	result, err := s.archive.SearchBriefings(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
