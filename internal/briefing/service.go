// Package briefing runs one request through the article pipeline and
// assembles the document handed to script generation.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/podsmith/backend/internal/catalog"
	"github.com/podsmith/backend/internal/dedupe"
	"github.com/podsmith/backend/internal/grouping"
	"github.com/podsmith/backend/internal/models"
	"github.com/podsmith/backend/internal/newsapi"
	"github.com/podsmith/backend/internal/processing"
)

const (
	dateLayout = "2006-01-02"

	DefaultLengthMinutes = 5
	DefaultTimeframeDays = 2
	MaxLengthMinutes     = 180
)

var (
	// ErrInvalidRequest wraps every validation failure.
	ErrInvalidRequest = errors.New("invalid briefing request")
	// ErrNotConfigured is returned when the service lacks a fetcher.
	ErrNotConfigured = errors.New("briefing service not configured")
)

// Fetcher retrieves raw articles for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q newsapi.Query) (*newsapi.Result, error)
}

// Request carries the user's choices. Field names follow the public API.
type Request struct {
	Categories []string `json:"chosen_categories"`
	Keywords   []string `json:"chosen_keywords"`
	// Sources holds user-picked source names per category.
	Sources          map[string][]string `json:"chosen_sources,omitempty"`
	GeneralSources   []string            `json:"chosen_general_sources,omitempty"`
	PoliticalSources []string            `json:"chosen_political_sources,omitempty"`
	LengthMinutes    int                 `json:"chosen_length"`
	TimeframeDays    int                 `json:"chosen_timeframe"`
	// StartDate and EndDate (YYYY-MM-DD, inclusive) override TimeframeDays.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Speed     string `json:"chosen_speed"`
	Voice     string `json:"chosen_voice"`
}

// Deps lists the service collaborators.
type Deps struct {
	Catalog      *catalog.Catalog
	Fetcher      Fetcher
	Deduplicator *dedupe.Deduplicator
	Clock        func() time.Time
	NewID        func() string
	Logger       *slog.Logger
}

// Service holds no per-request state; Build can run concurrently.
type Service struct {
	catalog *catalog.Catalog
	fetcher Fetcher
	dedup   *dedupe.Deduplicator
	clock   func() time.Time
	newID   func() string
	log     *slog.Logger
}

// NewService fills defaults for optional dependencies.
func NewService(deps Deps) *Service {
	s := &Service{
		catalog: deps.Catalog,
		fetcher: deps.Fetcher,
		dedup:   deps.Deduplicator,
		clock:   deps.Clock,
		newID:   deps.NewID,
		log:     deps.Logger,
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.dedup == nil {
		s.dedup = dedupe.New(dedupe.DefaultThreshold, dedupe.DefaultWarnAbove, s.log)
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Catalog exposes the source table the service resolves against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

type plan struct {
	selection *catalog.Selection
	keywords  []string
	start     string
	end       string
	days      int
	length    int
	speed     string
	rate      float64
	voice     string
	words     models.WordCount
	now       time.Time
}

// Build validates the request, fetches, normalizes, dedupes, groups and
// assembles. Only validation and the fetch can fail.
func (s *Service) Build(ctx context.Context, req Request) (*models.Briefing, error) {
	if s.fetcher == nil {
		return nil, ErrNotConfigured
	}

	p, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	log := s.log.With(slog.String("start", p.start), slog.String("end", p.end))
	log.Info("fetching articles",
		slog.Int("sources", len(p.selection.Sources)),
		slog.Int("keywords", len(p.keywords)),
	)
	res, err := s.fetcher.Fetch(ctx, newsapi.Query{
		Sources:  p.selection.Sources,
		Keywords: p.keywords,
		From:     p.start,
		To:       p.end,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch articles: %w", err)
	}

	articles := processing.Normalize(res.Articles, p.selection)
	kept := s.dedup.Apply(articles)
	groups := grouping.New(p.keywords).Group(p.selection.Categories, kept)

	log.Info("articles processed",
		slog.Int("fetched", len(res.Articles)),
		slog.Int("total_hint", res.TotalResults),
		slog.Int("kept", len(kept)),
		slog.Int("categories", len(groups)),
	)

	settings := models.Settings{
		Categories:      p.selection.Categories,
		Keywords:        p.keywords,
		Sources:         nonNil(p.selection.DisplaySources),
		StartDate:       p.start,
		EndDate:         p.end,
		TimeframeDays:   p.days,
		LengthMinutes:   p.length,
		Speed:           p.speed,
		SpeechRate:      p.rate,
		Voice:           p.voice,
		WordCount:       p.words,
		ResultsReported: len(kept),
		TotalResults:    res.TotalResults,
		GeneratedAt:     p.now,
	}
	return Assemble(s.newID(), settings, groups), nil
}

func (s *Service) plan(req Request) (*plan, error) {
	p := &plan{now: s.clock().UTC()}

	categories := cleanList(req.Categories)
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: at least one category is required", ErrInvalidRequest)
	}
	sel, err := s.catalog.Resolve(categories, customSources(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	p.selection = sel
	p.keywords = cleanList(req.Keywords)
	for _, kw := range p.keywords {
		if grouping.IsSentinel(kw) {
			return nil, fmt.Errorf("%w: keyword %q is reserved", ErrInvalidRequest, kw)
		}
	}

	p.length = req.LengthMinutes
	if p.length == 0 {
		p.length = DefaultLengthMinutes
	}
	if p.length < 0 || p.length > MaxLengthMinutes {
		return nil, fmt.Errorf("%w: length must be between 1 and %d minutes", ErrInvalidRequest, MaxLengthMinutes)
	}

	p.speed = strings.TrimSpace(req.Speed)
	if p.speed == "" {
		p.speed = DefaultSpeed
	}
	if p.words, err = WordBounds(p.length, p.speed); err != nil {
		return nil, err
	}
	p.rate, _ = SpeechRate(p.speed)

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = DefaultVoice
	}
	var ok bool
	if p.voice, ok = ProviderVoice(voice); !ok {
		return nil, fmt.Errorf("%w: unknown voice %q", ErrInvalidRequest, voice)
	}

	if err := p.window(req); err != nil {
		return nil, err
	}
	return p, nil
}

// window resolves the date range: explicit bounds win, otherwise the last
// TimeframeDays days ending today (UTC).
func (p *plan) window(req Request) error {
	start, end := strings.TrimSpace(req.StartDate), strings.TrimSpace(req.EndDate)
	if start != "" || end != "" {
		if start == "" || end == "" {
			return fmt.Errorf("%w: start_date and end_date must be given together", ErrInvalidRequest)
		}
		from, err := time.Parse(dateLayout, start)
		if err != nil {
			return fmt.Errorf("%w: start_date: %w", ErrInvalidRequest, err)
		}
		to, err := time.Parse(dateLayout, end)
		if err != nil {
			return fmt.Errorf("%w: end_date: %w", ErrInvalidRequest, err)
		}
		if to.Before(from) {
			return fmt.Errorf("%w: end_date is before start_date", ErrInvalidRequest)
		}
		p.start, p.end = start, end
		p.days = int(to.Sub(from).Hours() / 24)
		return nil
	}

	days := req.TimeframeDays
	if days == 0 {
		days = DefaultTimeframeDays
	}
	if days < 0 {
		return fmt.Errorf("%w: timeframe must be positive", ErrInvalidRequest)
	}
	p.days = days
	p.end = p.now.Format(dateLayout)
	p.start = p.now.AddDate(0, 0, -days).Format(dateLayout)
	return nil
}

func customSources(req Request) map[string][]string {
	out := make(map[string][]string, len(req.Sources)+2)
	for cat, names := range req.Sources {
		out[cat] = names
	}
	if _, ok := out["General"]; !ok && len(req.GeneralSources) > 0 {
		out["General"] = req.GeneralSources
	}
	if _, ok := out["Politics"]; !ok && len(req.PoliticalSources) > 0 {
		out["Politics"] = req.PoliticalSources
	}
	return out
}

// cleanList trims entries and drops blanks and repeats, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
