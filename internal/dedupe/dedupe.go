// Package dedupe removes repeated stories from a batch of articles.
//
// Two passes run in order. The exact pass drops articles whose normalized
// title was already seen. The fuzzy pass compares each survivor with every
// article kept so far and drops it when the similarity ratio reaches the
// threshold. In both passes the earliest article in input order wins.
package dedupe

import (
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/podsmith/backend/internal/models"
)

const (
	// DefaultThreshold is the similarity ratio at which two titles are the same story.
	DefaultThreshold = 0.9
	// DefaultWarnAbove is the fuzzy candidate count that triggers a warning.
	DefaultWarnAbove = 2000
)

// Deduplicator holds only immutable settings and is safe for concurrent use.
type Deduplicator struct {
	threshold float64
	warnAbove int
	log       *slog.Logger
}

// New creates a Deduplicator. A threshold outside (0, 1] falls back to
// DefaultThreshold; a non-positive warnAbove disables the warning.
func New(threshold float64, warnAbove int, logger *slog.Logger) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Deduplicator{threshold: threshold, warnAbove: warnAbove, log: logger}
}

// Threshold returns the effective similarity threshold.
func (d *Deduplicator) Threshold() float64 {
	return d.threshold
}

// Apply runs both passes. The result points into articles.
func (d *Deduplicator) Apply(articles []models.Article) []*models.Article {
	refs := make([]*models.Article, len(articles))
	for i := range articles {
		refs[i] = &articles[i]
	}

	exact := Exact(refs)
	if d.warnAbove > 0 && len(exact) > d.warnAbove {
		d.log.Warn("fuzzy dedupe candidate count is high",
			slog.Int("candidates", len(exact)),
			slog.Int("warn_above", d.warnAbove),
		)
	}

	kept := d.fuzzy(exact)
	d.log.Debug("dedupe finished",
		slog.Int("input", len(articles)),
		slog.Int("after_exact", len(exact)),
		slog.Int("kept", len(kept)),
	)
	return kept
}

// Exact keeps the first article of every distinct normalized title.
func Exact(articles []*models.Article) []*models.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		key := NormalizeTitle(a.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

type keptTitle struct {
	chars []string
	runes int
}

func (d *Deduplicator) fuzzy(candidates []*models.Article) []*models.Article {
	out := make([]*models.Article, 0, len(candidates))
	kept := make([]keptTitle, 0, len(candidates))

	for _, a := range candidates {
		title := NormalizeTitle(a.Title)
		chars := strings.Split(title, "")
		runes := utf8.RuneCountInString(title)

		duplicate := false
		for _, k := range kept {
			if !mayReach(runes, k.runes, d.threshold) {
				continue
			}
			if ratio(chars, k.chars) >= d.threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, keptTitle{chars: chars, runes: runes})
		out = append(out, a)
	}
	return out
}

// NormalizeTitle lower-cases, squeezes whitespace and trims.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Similarity is the Ratcliff/Obershelp ratio 2*M/T of two titles after
// normalization, in [0, 1].
func Similarity(a, b string) float64 {
	return ratio(strings.Split(NormalizeTitle(a), ""), strings.Split(NormalizeTitle(b), ""))
}

func ratio(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	return difflib.NewMatcher(a, b).Ratio()
}

// mayReach reports whether two lengths allow a ratio of at least threshold.
// M can never exceed the shorter length, so 2*min/(la+lb) bounds the ratio.
func mayReach(la, lb int, threshold float64) bool {
	total := la + lb
	if total == 0 {
		return true
	}
	return 2*float64(min(la, lb))/float64(total) >= threshold
}
