// Package newsapi fetches articles from the NewsAPI "everything" endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/podsmith/backend/internal/models"
)

// ErrFetchFailed matches every *FetchError.
var ErrFetchFailed = errors.New("fetch failed")

const (
	// DefaultBaseURL is the public NewsAPI host.
	DefaultBaseURL = "https://newsapi.org"
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 100

	maxBodyBytes = 10 << 20
)

// FetchError reports a failed call to the search API. Status is zero when no
// HTTP response was received.
type FetchError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("newsapi fetch failed")
	if e.Status != 0 {
		b.WriteString(": status ")
		b.WriteString(strconv.Itoa(e.Status))
	}
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrFetchFailed) hold.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Query selects articles. From and To are YYYY-MM-DD; NewsAPI treats both
// bounds as inclusive.
type Query struct {
	Sources  []string
	Keywords []string
	From     string
	To       string
}

// Result is one page of raw articles plus the API's total-count hint.
type Result struct {
	Articles     []models.RawArticle
	TotalResults int
}

// Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	pageSize int
	log      *slog.Logger
}

// New instantiates the NewsAPI client.
func New(baseURL, apiKey string, timeout time.Duration, pageSize int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		pageSize: pageSize,
		log:      logger,
	}
}

type envelope struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []json.RawMessage `json:"articles"`
}

// Fetch runs one search. It never retries. A 2xx response without an
// articles list yields zero results rather than an error.
func (c *Client) Fetch(ctx context.Context, q Query) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(q), nil)
	if err != nil {
		return nil, &FetchError{Message: "build request", Err: err}
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		fe := &FetchError{Message: err.Error(), Err: err}
		if isTimeout(err) {
			fe.Code = "timeout"
		}
		return nil, fe
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Status: res.StatusCode, Message: "read body", Err: err}
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		fe := &FetchError{Status: res.StatusCode}
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Message != "" {
			fe.Code = env.Code
			fe.Message = env.Message
		} else {
			fe.Message = strings.TrimSpace(string(body))
		}
		return nil, fe
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		c.log.Warn("newsapi returned empty body")
		return &Result{}, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.log.Warn("newsapi returned malformed body", slog.Any("err", err))
		return &Result{}, nil
	}
	if env.Status == "error" {
		return nil, &FetchError{Status: res.StatusCode, Code: env.Code, Message: env.Message}
	}
	if env.Articles == nil {
		c.log.Warn("newsapi response has no articles")
		return &Result{TotalResults: env.TotalResults}, nil
	}

	articles := make([]models.RawArticle, 0, len(env.Articles))
	for i, raw := range env.Articles {
		var a models.RawArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			// keep whatever decoded; missing fields stay empty
			c.log.Warn("malformed article record", slog.Int("index", i), slog.Any("err", err))
		}
		articles = append(articles, a)
	}

	c.log.Debug("newsapi fetch complete",
		slog.Int("articles", len(articles)),
		slog.Int("total_results", env.TotalResults),
	)
	return &Result{Articles: articles, TotalResults: env.TotalResults}, nil
}

func (c *Client) endpoint(q Query) string {
	params := url.Values{}
	if len(q.Sources) > 0 {
		params.Set("sources", strings.Join(q.Sources, ","))
	}
	if len(q.Keywords) > 0 {
		params.Set("qInTitle", strings.Join(q.Keywords, " OR "))
	}
	if q.From != "" {
		params.Set("from", q.From)
	}
	if q.To != "" {
		params.Set("to", q.To)
	}
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("sortBy", "popularity")
	params.Set("language", "en")
	return fmt.Sprintf("%s/v2/everything?%s", c.baseURL, params.Encode())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
