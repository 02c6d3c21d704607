// Package grouping files articles into category and keyword buckets and puts
// everything in a deterministic order.
package grouping

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/podsmith/backend/internal/models"
)

const (
	dateLayout = "2006-01-02"

	wordClass    = `[\p{L}\p{N}_]`
	nonWordClass = `[^\p{L}\p{N}_]`
)

// Grouper matches titles against the chosen keywords. It is immutable once
// built.
type Grouper struct {
	keywords []string
	patterns []*regexp.Regexp
}

// New compiles one case-insensitive whole-word pattern per distinct, non-blank
// keyword, keeping input order. Keywords equal to a sentinel slot are dropped.
func New(keywords []string) *Grouper {
	g := &Grouper{}
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" || IsSentinel(kw) {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		g.keywords = append(g.keywords, kw)
		g.patterns = append(g.patterns, wordPattern(kw))
	}
	return g
}

// IsSentinel reports whether kw collides with a reserved bucket name.
func IsSentinel(kw string) bool {
	return kw == models.Unmatched || kw == models.NoKeywords
}

// wordPattern matches kw case-insensitively between word boundaries, where
// letters, digits and underscore of any script are word characters. An edge
// of kw that is a word character needs a non-word neighbour (or the end of
// the title); an edge that is not needs a word character next to it.
func wordPattern(kw string) *regexp.Regexp {
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)

	lead := wordClass
	if isWordRune(first) {
		lead = `(?:^|` + nonWordClass + `)`
	}
	trail := wordClass
	if isWordRune(last) {
		trail = `(?:$|` + nonWordClass + `)`
	}
	return regexp.MustCompile(`(?i)` + lead + regexp.QuoteMeta(kw) + trail)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Keywords returns the effective keyword list.
func (g *Grouper) Keywords() []string {
	return append([]string(nil), g.keywords...)
}

// Match returns the slots a title belongs to: matched keywords in keyword
// order, models.Unmatched when none match, models.NoKeywords without keywords.
func (g *Grouper) Match(title string) []string {
	if len(g.patterns) == 0 {
		return []string{models.NoKeywords}
	}
	var out []string
	for i, p := range g.patterns {
		if p.MatchString(title) {
			out = append(out, g.keywords[i])
		}
	}
	if len(out) == 0 {
		return []string{models.Unmatched}
	}
	return out
}

// Group partitions articles by category then keyword slot. An article can sit
// in several keyword buckets of its category. Buckets are sorted by publish
// date, oldest first, with unparsable dates first and ties kept in input
// order. Only the given categories are emitted, in the given order, and
// empty ones are skipped.
func (g *Grouper) Group(categories []string, articles []*models.Article) models.Groups {
	byCategory := make(map[string]map[string][]*models.Article)
	for _, a := range articles {
		cat := a.PrimaryCategory
		if cat == "" {
			cat = models.UnknownCategory
		}
		slots, ok := byCategory[cat]
		if !ok {
			slots = make(map[string][]*models.Article)
			byCategory[cat] = slots
		}
		for _, slot := range g.Match(a.Title) {
			slots[slot] = append(slots[slot], a)
		}
	}

	order := append(g.Keywords(), models.Unmatched, models.NoKeywords)
	out := make(models.Groups, 0, len(categories))
	emitted := make(map[string]struct{}, len(categories))
	for _, cat := range categories {
		if _, dup := emitted[cat]; dup {
			continue
		}
		slots, ok := byCategory[cat]
		if !ok {
			continue
		}
		emitted[cat] = struct{}{}

		group := models.CategoryGroup{Category: cat}
		for _, slot := range order {
			list, ok := slots[slot]
			if !ok {
				continue
			}
			SortChronological(list)
			group.Buckets = append(group.Buckets, models.Bucket{Keyword: slot, Articles: list})
		}
		out = append(out, group)
	}
	return out
}

// SortChronological stable-sorts articles by date-only publish date.
func SortChronological(articles []*models.Article) {
	dates := make(map[*models.Article]time.Time, len(articles))
	for _, a := range articles {
		dates[a] = parseDate(a.PublishedAt)
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return dates[articles[i]].Before(dates[articles[j]])
	})
}

// parseDate returns the zero time for anything that is not YYYY-MM-DD, so
// malformed dates sort first.
func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
