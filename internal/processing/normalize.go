// Package processing turns raw search API records into canonical articles.
package processing

import (
	"regexp"
	"strings"

	"github.com/podsmith/backend/internal/models"
)

// Unicode separators count as whitespace too.
var whitespace = regexp.MustCompile(`[\s\p{Z}\x{85}]+`)

// CategoryResolver maps a source id or display name to its category.
type CategoryResolver interface {
	CategoryOf(key string) (string, bool)
}

// CleanField turns carriage returns into spaces, drops newlines, squeezes
// whitespace and trims. CleanField(CleanField(s)) == CleanField(s).
func CleanField(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DateOnly keeps the part of an ISO-8601 timestamp before the 'T' separator.
// Values without a separator are returned unchanged.
func DateOnly(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		return ts[:i]
	}
	return ts
}

// Normalize converts raw records one by one, preserving order. It never
// filters: missing fields become empty strings and unresolved sources land in
// models.UnknownCategory.
func Normalize(raws []models.RawArticle, categories CategoryResolver) []models.Article {
	out := make([]models.Article, 0, len(raws))
	for _, raw := range raws {
		out = append(out, models.Article{
			Source:          raw.Source.Name,
			PrimaryCategory: resolveCategory(raw.Source, categories),
			Title:           CleanField(raw.Title),
			Description:     CleanField(raw.Description),
			Content:         CleanField(raw.Content),
			URL:             raw.URL,
			Image:           raw.URLToImage,
			PublishedAt:     DateOnly(raw.PublishedAt),
		})
	}
	return out
}

func resolveCategory(src models.RawSource, categories CategoryResolver) string {
	if categories == nil {
		return models.UnknownCategory
	}
	if src.ID != "" {
		if cat, ok := categories.CategoryOf(src.ID); ok {
			return cat
		}
	}
	if src.Name != "" {
		if cat, ok := categories.CategoryOf(src.Name); ok {
			return cat
		}
	}
	return models.UnknownCategory
}
